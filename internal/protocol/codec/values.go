package codec

import (
	"fmt"

	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/nbt"
)

// Pos is a block position packed into one long: x 26 bits, z 26 bits, y 12 bits.
type Pos struct {
	X, Y, Z int32
}

func UnpackPosition(v int64) Pos {
	return Pos{
		X: int32(v >> 38),
		Y: int32(v << 52 >> 52),
		Z: int32(v << 26 >> 38),
	}
}

func (p Pos) Pack() int64 {
	return (int64(p.X)&0x3FFFFFF)<<38 | (int64(p.Z)&0x3FFFFFF)<<12 | int64(p.Y)&0xFFF
}

// Item is a present inventory slot.
type Item struct {
	ID    int32
	Count int8
	Tag   *nbt.Root
}

func decodeSlot(r *Reader) (any, error) {
	present, err := r.Bool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	id, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	count, err := r.Int8()
	if err != nil {
		return nil, err
	}
	tag, err := NBT.Decode(r)
	if err != nil {
		return nil, err
	}
	item := Item{ID: id, Count: count}
	item.Tag, _ = tag.(*nbt.Root)
	return item, nil
}

func encodeSlot(w *Writer, v any) error {
	if v == nil {
		w.Bool(false)
		return nil
	}
	item, ok := v.(Item)
	if !ok {
		return &protocol.MalformedFieldError{Field: Slot.Name(), Offset: w.Len(), Reason: fmt.Sprintf("cannot encode %T", v)}
	}
	w.Bool(true)
	w.VarInt(item.ID)
	w.Int8(item.Count)
	return NBT.Encode(w, item.Tag)
}

type optional struct {
	inner Codec
}

// Opt wraps c with a presence flag. Absent values decode to nil.
func Opt(c Codec) Codec { return optional{inner: c} }

func (o optional) Name() string { return "opt_" + o.inner.Name() }

func (o optional) Decode(r *Reader) (any, error) {
	present, err := r.Bool()
	if err != nil || !present {
		return nil, err
	}
	return o.inner.Decode(r)
}

func (o optional) Encode(w *Writer, v any) error {
	if v == nil {
		w.Bool(false)
		return nil
	}
	w.Bool(true)
	return o.inner.Encode(w, v)
}

type structure struct {
	name   string
	fields []Codec
}

// Struct is a fixed sequence of fields; its value is a []any of the same length.
func Struct(name string, fields ...Codec) Codec {
	return structure{name: name, fields: fields}
}

func (s structure) Name() string { return s.name }

func (s structure) Decode(r *Reader) (any, error) {
	out := make([]any, len(s.fields))
	for i, f := range s.fields {
		v, err := f.Decode(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s structure) Encode(w *Writer, v any) error {
	vals, ok := v.([]any)
	if !ok || len(vals) != len(s.fields) {
		return &protocol.MalformedFieldError{
			Field:  s.name,
			Offset: w.Len(),
			Reason: fmt.Sprintf("want %d fields, got %T", len(s.fields), v),
		}
	}
	for i, f := range s.fields {
		if err := f.Encode(w, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

type array struct {
	elem Codec
}

// Array is a VarInt-counted sequence of elem; its value is a []any.
func Array(elem Codec) Codec { return array{elem: elem} }

func (a array) Name() string { return a.elem.Name() + "[]" }

func (a array) Decode(r *Reader) (any, error) {
	n, err := r.Count(a.Name(), 1)
	if err != nil {
		return nil, err
	}
	out := make([]any, n)
	for i := range out {
		if out[i], err = a.elem.Decode(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (a array) Encode(w *Writer, v any) error {
	vals, ok := v.([]any)
	if !ok {
		return &protocol.MalformedFieldError{Field: a.Name(), Offset: w.Len(), Reason: fmt.Sprintf("cannot encode %T", v)}
	}
	w.VarInt(int32(len(vals)))
	for _, item := range vals {
		if err := a.elem.Encode(w, item); err != nil {
			return err
		}
	}
	return nil
}
