package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/backwire/internal/protocol/codec"
)

var (
	ErrShortFrame     = errors.New("frame: short frame")
	ErrFrameTooLarge  = errors.New("frame: frame too large")
	ErrInvalidLength  = errors.New("frame: invalid length prefix")
	ErrInvalidPacket  = errors.New("frame: invalid packet id")
	ErrVarIntTooLarge = errors.New("frame: varint too large")
)

// Frame is one uncompressed packet: VarInt length | VarInt packet id | body.
type Frame struct {
	ID   int32
	Body []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxFrameBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxFrameBytes: 2 * 1024 * 1024,
	}
}

// ReadFrame reads one frame from r. A clean EOF before the first byte is
// returned as io.EOF so stream loops can stop without logging an error.
func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	length, err := readVarInt(r)
	if err != nil {
		return Frame{}, err
	}
	if length <= 0 {
		return Frame{}, ErrInvalidLength
	}
	if int(length) > limits.MaxFrameBytes {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, limits.MaxFrameBytes)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Frame{}, ErrShortFrame
		}
		return Frame{}, err
	}

	cur := codec.NewReader(data)
	id, err := cur.VarInt()
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}
	if id < 0 {
		return Frame{}, ErrInvalidPacket
	}
	return Frame{ID: id, Body: cur.Rest()}, nil
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	b, err := Encode(f, limits)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Encode returns the wire bytes of f.
func Encode(f Frame, limits Limits) ([]byte, error) {
	if f.ID < 0 {
		return nil, ErrInvalidPacket
	}
	length := codec.VarIntSize(f.ID) + len(f.Body)
	if length > limits.MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, limits.MaxFrameBytes)
	}
	out := make([]byte, 0, codec.VarIntSize(int32(length))+length)
	out = codec.AppendVarInt(out, int32(length))
	out = codec.AppendVarInt(out, f.ID)
	out = append(out, f.Body...)
	return out, nil
}

func readVarInt(r io.Reader) (int32, error) {
	var (
		one [1]byte
		v   uint32
	)
	for i := 0; i < 5; i++ {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			if i == 0 && errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return 0, ErrShortFrame
			}
			return 0, err
		}
		v |= uint32(one[0]&0x7F) << (7 * i)
		if one[0]&0x80 == 0 {
			return int32(v), nil
		}
	}
	return 0, ErrVarIntTooLarge
}
