package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/danmuck/backwire/internal/protocol"
	"github.com/google/uuid"
)

// Reader is a forward-only cursor over one packet body.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

func (r *Reader) Offset() int { return r.off }

func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Rest returns every unread byte and moves the cursor to the end.
func (r *Reader) Rest() []byte {
	out := r.buf[r.off:]
	r.off = len(r.buf)
	return out
}

func (r *Reader) malformed(field, reason string) error {
	return &protocol.MalformedFieldError{Field: field, Offset: r.off, Reason: reason}
}

func (r *Reader) take(n int, field string) ([]byte, error) {
	if n < 0 {
		return nil, r.malformed(field, fmt.Sprintf("negative length %d", n))
	}
	if r.Remaining() < n {
		return nil, r.malformed(field, fmt.Sprintf("need %d bytes, have %d", n, r.Remaining()))
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

// Raw returns the next n bytes without copying.
func (r *Reader) Raw(n int) ([]byte, error) {
	return r.take(n, "raw")
}

func (r *Reader) Bool() (bool, error) {
	b, err := r.take(1, "bool")
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		r.off--
		return false, r.malformed("bool", fmt.Sprintf("invalid value %d", b[0]))
	}
}

func (r *Reader) Int8() (int8, error) {
	b, err := r.take(1, "byte")
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1, "ubyte")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Int16() (int16, error) {
	b, err := r.take(2, "short")
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.take(2, "ushort")
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) Int32() (int32, error) {
	b, err := r.take(4, "int")
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) Int64() (int64, error) {
	b, err := r.take(8, "long")
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) Float32() (float32, error) {
	b, err := r.take(4, "float")
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

func (r *Reader) Float64() (float64, error) {
	b, err := r.take(8, "double")
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

func (r *Reader) VarInt() (int32, error) {
	v, err := r.varint(5, "varint")
	return int32(uint32(v)), err
}

func (r *Reader) VarLong() (int64, error) {
	v, err := r.varint(10, "varlong")
	return int64(v), err
}

func (r *Reader) varint(maxBytes int, field string) (uint64, error) {
	start := r.off
	var v uint64
	for i := 0; i < maxBytes; i++ {
		if r.off >= len(r.buf) {
			r.off = start
			return 0, r.malformed(field, "truncated")
		}
		b := r.buf[r.off]
		r.off++
		if i == maxBytes-1 && b&lastByteOverflow(maxBytes) != 0 {
			r.off = start
			return 0, r.malformed(field, "overflows its width")
		}
		v |= uint64(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			if i > 0 && b == 0 {
				r.off = start
				return 0, r.malformed(field, "over-long encoding")
			}
			return v, nil
		}
	}
	r.off = start
	return 0, r.malformed(field, fmt.Sprintf("longer than %d bytes", maxBytes))
}

// lastByteOverflow masks the bits of the final group that lie beyond a
// 32- or 64-bit value.
func lastByteOverflow(maxBytes int) byte {
	if maxBytes == 5 {
		return 0xF0
	}
	return 0xFE
}

// Text reads a VarInt-prefixed UTF-8 string of at most maxChars characters.
func (r *Reader) Text(maxChars int) (string, error) {
	start := r.off
	n, err := r.VarInt()
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > maxChars*4 {
		r.off = start
		return "", r.malformed("string", fmt.Sprintf("length prefix %d out of range", n))
	}
	b, err := r.take(int(n), "string")
	if err != nil {
		r.off = start
		return "", err
	}
	if !utf8.Valid(b) {
		r.off = start
		return "", r.malformed("string", "invalid utf-8")
	}
	if utf8.RuneCount(b) > maxChars {
		r.off = start
		return "", r.malformed("string", fmt.Sprintf("longer than %d characters", maxChars))
	}
	return string(b), nil
}

func (r *Reader) UUID() (uuid.UUID, error) {
	b, err := r.take(16, "uuid")
	if err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

// ByteArray reads a VarInt-prefixed byte array. The result is a copy.
func (r *Reader) ByteArray() ([]byte, error) {
	start := r.off
	n, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n), "byte_array")
	if err != nil {
		r.off = start
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Count reads a VarInt element count and sanity-checks it against the bytes
// left, each element taking at least minWidth bytes.
func (r *Reader) Count(field string, minWidth int) (int, error) {
	start := r.off
	n, err := r.VarInt()
	if err != nil {
		return 0, err
	}
	if n < 0 || (minWidth > 0 && int64(n)*int64(minWidth) > int64(r.Remaining())) {
		r.off = start
		return 0, r.malformed(field, fmt.Sprintf("count %d out of range", n))
	}
	return int(n), nil
}
