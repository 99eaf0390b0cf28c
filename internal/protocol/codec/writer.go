package codec

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
)

// Writer is an append-only output buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) Int8(v int8)   { w.buf = append(w.buf, byte(v)) }
func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) Int16(v int16)   { w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v)) }
func (w *Writer) Uint16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *Writer) Int32(v int32)   { w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v)) }
func (w *Writer) Int64(v int64)   { w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v)) }

func (w *Writer) Float32(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *Writer) Float64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

func (w *Writer) VarInt(v int32) { w.buf = AppendVarInt(w.buf, v) }

func (w *Writer) VarLong(v int64) {
	u := uint64(v)
	for u >= 0x80 {
		w.buf = append(w.buf, byte(u)|0x80)
		u >>= 7
	}
	w.buf = append(w.buf, byte(u))
}

func (w *Writer) Text(s string) {
	w.VarInt(int32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) UUID(id uuid.UUID) { w.buf = append(w.buf, id[:]...) }

func (w *Writer) ByteArray(b []byte) {
	w.VarInt(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// AppendVarInt appends the continuation-bit encoding of v.
func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for u >= 0x80 {
		dst = append(dst, byte(u)|0x80)
		u >>= 7
	}
	return append(dst, byte(u))
}

// VarIntSize is the encoded width of v.
func VarIntSize(v int32) int {
	u := uint32(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}
