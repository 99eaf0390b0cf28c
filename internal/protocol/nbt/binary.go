package nbt

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/danmuck/backwire/internal/protocol"
)

// MaxDepth bounds compound/list nesting on decode.
const MaxDepth = 512

// Root is a named top-level compound as carried on the wire.
type Root struct {
	Name     string
	Compound *Compound
}

// Unmarshal decodes one root tag from b and returns the number of bytes
// consumed. A lone end tag decodes to a nil root.
func Unmarshal(b []byte) (*Root, int, error) {
	d := decoder{buf: b}
	kind, err := d.u8()
	if err != nil {
		return nil, d.off, err
	}
	if Kind(kind) == KindEnd {
		return nil, d.off, nil
	}
	if Kind(kind) != KindCompound {
		return nil, d.off, d.malformed(fmt.Sprintf("root tag is %s, want compound", Kind(kind)))
	}
	name, err := d.str()
	if err != nil {
		return nil, d.off, err
	}
	c, err := d.compound(0)
	if err != nil {
		return nil, d.off, err
	}
	return &Root{Name: name, Compound: c}, d.off, nil
}

// AppendRoot appends the wire form of r to dst. A nil root encodes as a
// lone end tag.
func AppendRoot(dst []byte, r *Root) ([]byte, error) {
	if r == nil || r.Compound == nil {
		return append(dst, byte(KindEnd)), nil
	}
	e := encoder{buf: dst}
	e.buf = append(e.buf, byte(KindCompound))
	if err := e.str(r.Name); err != nil {
		return dst, err
	}
	if err := e.compound(r.Compound); err != nil {
		return dst, err
	}
	return e.buf, nil
}

// Marshal returns the wire form of r.
func Marshal(r *Root) ([]byte, error) {
	return AppendRoot(nil, r)
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) malformed(reason string) error {
	return &protocol.MalformedFieldError{Field: "nbt", Offset: d.off, Reason: reason}
}

func (d *decoder) need(n int) error {
	if n < 0 || len(d.buf)-d.off < n {
		return d.malformed(fmt.Sprintf("need %d bytes, have %d", n, len(d.buf)-d.off))
	}
	return nil
}

func (d *decoder) u8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.buf[d.off]
	d.off++
	return v, nil
}

func (d *decoder) u16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.buf[d.off:])
	d.off += 2
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.buf[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) str() (string, error) {
	n, err := d.u16()
	if err != nil {
		return "", err
	}
	if err := d.need(int(n)); err != nil {
		return "", err
	}
	s := string(d.buf[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

// length reads an int32 array/list length and checks it against the bytes
// left, each element taking at least width bytes.
func (d *decoder) length(width int) (int, error) {
	raw, err := d.u32()
	if err != nil {
		return 0, err
	}
	n := int32(raw)
	if n < 0 {
		return 0, d.malformed(fmt.Sprintf("negative length %d", n))
	}
	if width > 0 && int64(n)*int64(width) > int64(len(d.buf)-d.off) {
		return 0, d.malformed(fmt.Sprintf("length %d exceeds remaining bytes", n))
	}
	return int(n), nil
}

func (d *decoder) compound(depth int) (*Compound, error) {
	if depth > MaxDepth {
		return nil, d.malformed("tree too deep")
	}
	c := NewCompound()
	for {
		kind, err := d.u8()
		if err != nil {
			return nil, err
		}
		if Kind(kind) == KindEnd {
			return c, nil
		}
		if !Kind(kind).Valid() {
			return nil, d.malformed(fmt.Sprintf("unknown tag id %d", kind))
		}
		name, err := d.str()
		if err != nil {
			return nil, err
		}
		if _, dup := c.Get(name); dup {
			return nil, d.malformed(fmt.Sprintf("duplicate compound key %q", name))
		}
		t, err := d.payload(Kind(kind), depth+1)
		if err != nil {
			return nil, err
		}
		c.Put(name, t)
	}
}

func (d *decoder) payload(kind Kind, depth int) (Tag, error) {
	switch kind {
	case KindByte:
		v, err := d.u8()
		return NewByte(int8(v)), err
	case KindShort:
		v, err := d.u16()
		return NewShort(int16(v)), err
	case KindInt:
		v, err := d.u32()
		return NewInt(int32(v)), err
	case KindLong:
		v, err := d.u64()
		return NewLong(int64(v)), err
	case KindFloat:
		v, err := d.u32()
		return NewFloat(math.Float32frombits(v)), err
	case KindDouble:
		v, err := d.u64()
		return NewDouble(math.Float64frombits(v)), err
	case KindString:
		v, err := d.str()
		return NewString(v), err
	case KindByteArray:
		n, err := d.length(1)
		if err != nil {
			return nil, err
		}
		v := make([]byte, n)
		copy(v, d.buf[d.off:d.off+n])
		d.off += n
		return NewByteArray(v), nil
	case KindIntArray:
		n, err := d.length(4)
		if err != nil {
			return nil, err
		}
		v := make([]int32, n)
		for i := range v {
			raw, _ := d.u32()
			v[i] = int32(raw)
		}
		return NewIntArray(v), nil
	case KindLongArray:
		n, err := d.length(8)
		if err != nil {
			return nil, err
		}
		v := make([]int64, n)
		for i := range v {
			raw, _ := d.u64()
			v[i] = int64(raw)
		}
		return NewLongArray(v), nil
	case KindList:
		return d.list(depth)
	case KindCompound:
		return d.compound(depth)
	default:
		return nil, d.malformed(fmt.Sprintf("unexpected tag %s", kind))
	}
}

func (d *decoder) list(depth int) (*List, error) {
	if depth > MaxDepth {
		return nil, d.malformed("tree too deep")
	}
	elem, err := d.u8()
	if err != nil {
		return nil, err
	}
	if !Kind(elem).Valid() {
		return nil, d.malformed(fmt.Sprintf("unknown list element id %d", elem))
	}
	n, err := d.length(0)
	if err != nil {
		return nil, err
	}
	if Kind(elem) == KindEnd && n > 0 {
		return nil, d.malformed("non-empty list of end tags")
	}
	l := &List{elem: Kind(elem)}
	for i := 0; i < n; i++ {
		t, err := d.payload(Kind(elem), depth+1)
		if err != nil {
			return nil, err
		}
		l.items = append(l.items, t)
	}
	return l, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) str(s string) error {
	if len(s) > math.MaxUint16 {
		return &protocol.MalformedFieldError{Field: "nbt", Offset: len(e.buf), Reason: "string too long"}
	}
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(len(s)))
	e.buf = append(e.buf, s...)
	return nil
}

func (e *encoder) compound(c *Compound) error {
	for _, k := range c.keys {
		t := c.vals[k]
		e.buf = append(e.buf, byte(t.Kind()))
		if err := e.str(k); err != nil {
			return err
		}
		if err := e.payload(t); err != nil {
			return err
		}
	}
	e.buf = append(e.buf, byte(KindEnd))
	return nil
}

func (e *encoder) payload(t Tag) error {
	switch v := t.(type) {
	case *Compound:
		return e.compound(v)
	case *List:
		e.buf = append(e.buf, byte(v.elem))
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v.items)))
		for _, item := range v.items {
			if err := e.payload(item); err != nil {
				return err
			}
		}
		return nil
	case *Leaf:
		return e.leaf(v)
	default:
		return &protocol.MalformedFieldError{Field: "nbt", Offset: len(e.buf), Reason: fmt.Sprintf("unsupported tag %T", t)}
	}
}

func (e *encoder) leaf(l *Leaf) error {
	switch v := l.value.(type) {
	case int8:
		e.buf = append(e.buf, byte(v))
	case int16:
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(v))
	case int32:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
	case int64:
		e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
	case float32:
		e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(v))
	case float64:
		e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(v))
	case string:
		return e.str(v)
	case []byte:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v)))
		e.buf = append(e.buf, v...)
	case []int32:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v)))
		for _, x := range v {
			e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(x))
		}
	case []int64:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(len(v)))
		for _, x := range v {
			e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(x))
		}
	default:
		return &protocol.MalformedFieldError{Field: "nbt", Offset: len(e.buf), Reason: fmt.Sprintf("unsupported leaf %T", v)}
	}
	return nil
}
