package entity

import (
	"fmt"
	"sort"

	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/codec"
)

// EndOfMetadata terminates a metadata list on the wire.
const EndOfMetadata uint8 = 0xFF

// Entry is one metadata attribute. Type is a wire id of the value type
// table the entry was decoded with or remapped to.
type Entry struct {
	Index uint8
	Type  int32
	Value any
}

func (e Entry) String() string {
	return fmt.Sprintf("{%d type=%d %v}", e.Index, e.Type, e.Value)
}

// ListCodec transcodes a metadata list against one value type table. Its Go
// value is []Entry.
func (vt *ValueTypes) ListCodec() codec.Codec {
	return listCodec{types: vt}
}

type listCodec struct {
	types *ValueTypes
}

func (l listCodec) Name() string { return "metadata_" + l.types.version }

func (l listCodec) Decode(r *codec.Reader) (any, error) {
	var out []Entry
	for {
		index, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		if index == EndOfMetadata {
			return out, nil
		}
		at := r.Offset()
		typ, err := r.VarInt()
		if err != nil {
			return nil, err
		}
		c, ok := l.types.Codec(typ)
		if !ok {
			return nil, &protocol.MalformedFieldError{
				Field:  l.Name(),
				Offset: at,
				Reason: fmt.Sprintf("index %d: unknown value type %d", index, typ),
			}
		}
		v, err := c.Decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Index: index, Type: typ, Value: v})
	}
}

func (l listCodec) Encode(w *codec.Writer, v any) error {
	entries, ok := v.([]Entry)
	if !ok && v != nil {
		return &protocol.MalformedFieldError{Field: l.Name(), Offset: w.Len(), Reason: fmt.Sprintf("cannot encode %T", v)}
	}
	for _, e := range entries {
		if e.Index == EndOfMetadata {
			return &protocol.MalformedFieldError{Field: l.Name(), Offset: w.Len(), Reason: "index 255 is reserved"}
		}
		c, ok := l.types.Codec(e.Type)
		if !ok {
			return &protocol.MalformedFieldError{
				Field:  l.Name(),
				Offset: w.Len(),
				Reason: fmt.Sprintf("index %d: unknown value type %d", e.Index, e.Type),
			}
		}
		w.Uint8(e.Index)
		w.VarInt(e.Type)
		if err := c.Encode(w, e.Value); err != nil {
			return err
		}
	}
	w.Uint8(EndOfMetadata)
	return nil
}

// Merge overlays update onto base by index and returns the result ordered by
// index. base is not modified.
func Merge(base, update []Entry) []Entry {
	byIndex := make(map[uint8]Entry, len(base)+len(update))
	for _, e := range base {
		byIndex[e.Index] = e
	}
	for _, e := range update {
		byIndex[e.Index] = e
	}
	out := make([]Entry, 0, len(byIndex))
	for _, e := range byIndex {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
