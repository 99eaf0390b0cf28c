package codec

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/nbt"
	"github.com/google/uuid"
)

// MaxStringChars is the protocol cap for ordinary strings.
const MaxStringChars = 32767

// MaxComponentChars is the cap for JSON chat components.
const MaxComponentChars = 262144

// Codec transcodes one field type.
type Codec interface {
	Name() string
	Decode(r *Reader) (any, error)
	Encode(w *Writer, v any) error
}

// Type enumerates the primitive field types. Go values:
//
//	Bool bool, Byte int8, UByte uint8, Short int16, UShort uint16,
//	Int int32, Long int64, Float float32, Double float64,
//	VarInt int32, VarLong int64, String/Component string, UUID uuid.UUID,
//	ByteArray []byte, StringArray []string, VarIntArray []int32,
//	Position Position, OptVarInt nil|int32, NBT *nbt.Root (nil for an end tag),
//	Slot nil|Item
type Type uint8

const (
	Bool Type = iota + 1
	Byte
	UByte
	Short
	UShort
	Int
	Long
	Float
	Double
	VarInt
	VarLong
	String
	Component
	UUID
	ByteArray
	StringArray
	VarIntArray
	Position
	OptVarInt
	NBT
	Slot
)

var typeNames = map[Type]string{
	Bool: "bool", Byte: "byte", UByte: "ubyte", Short: "short", UShort: "ushort",
	Int: "int", Long: "long", Float: "float", Double: "double",
	VarInt: "varint", VarLong: "varlong", String: "string", Component: "component",
	UUID: "uuid", ByteArray: "byte_array", StringArray: "string_array",
	VarIntArray: "varint_array", Position: "position", OptVarInt: "opt_varint",
	NBT: "nbt", Slot: "slot",
}

func (t Type) Name() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

func (t Type) String() string { return t.Name() }

// Decode reads one value of c from r.
func Decode(c Codec, r *Reader) (any, error) { return c.Decode(r) }

// Encode appends the canonical encoding of v as c.
func Encode(c Codec, v any, w *Writer) error { return c.Encode(w, v) }

func (t Type) Decode(r *Reader) (any, error) {
	switch t {
	case Bool:
		return r.Bool()
	case Byte:
		return r.Int8()
	case UByte:
		return r.Uint8()
	case Short:
		return r.Int16()
	case UShort:
		return r.Uint16()
	case Int:
		return r.Int32()
	case Long:
		return r.Int64()
	case Float:
		return r.Float32()
	case Double:
		return r.Float64()
	case VarInt:
		return r.VarInt()
	case VarLong:
		return r.VarLong()
	case String:
		return r.Text(MaxStringChars)
	case Component:
		return r.Text(MaxComponentChars)
	case UUID:
		return r.UUID()
	case ByteArray:
		return r.ByteArray()
	case StringArray:
		n, err := r.Count(t.Name(), 1)
		if err != nil {
			return nil, err
		}
		out := make([]string, n)
		for i := range out {
			if out[i], err = r.Text(MaxStringChars); err != nil {
				return nil, err
			}
		}
		return out, nil
	case VarIntArray:
		n, err := r.Count(t.Name(), 1)
		if err != nil {
			return nil, err
		}
		out := make([]int32, n)
		for i := range out {
			if out[i], err = r.VarInt(); err != nil {
				return nil, err
			}
		}
		return out, nil
	case Position:
		v, err := r.Int64()
		if err != nil {
			return nil, err
		}
		return UnpackPosition(v), nil
	case OptVarInt:
		v, err := r.VarInt()
		if err != nil {
			return nil, err
		}
		if v == 0 {
			return nil, nil
		}
		if v < 0 {
			return nil, r.malformed(t.Name(), fmt.Sprintf("value %d out of range", v))
		}
		return v - 1, nil
	case NBT:
		root, n, err := nbt.Unmarshal(r.buf[r.off:])
		if err != nil {
			var mf *protocol.MalformedFieldError
			if errors.As(err, &mf) {
				mf.Offset += r.off
			}
			return nil, err
		}
		r.off += n
		return root, nil
	case Slot:
		return decodeSlot(r)
	default:
		return nil, r.malformed(t.Name(), "unknown field type")
	}
}

func (t Type) Encode(w *Writer, v any) error {
	mismatch := func() error {
		return &protocol.MalformedFieldError{
			Field:  t.Name(),
			Offset: w.Len(),
			Reason: fmt.Sprintf("cannot encode %T", v),
		}
	}
	switch t {
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return mismatch()
		}
		w.Bool(b)
	case Byte:
		b, ok := v.(int8)
		if !ok {
			return mismatch()
		}
		w.Int8(b)
	case UByte:
		b, ok := v.(uint8)
		if !ok {
			return mismatch()
		}
		w.Uint8(b)
	case Short:
		s, ok := v.(int16)
		if !ok {
			return mismatch()
		}
		w.Int16(s)
	case UShort:
		s, ok := v.(uint16)
		if !ok {
			return mismatch()
		}
		w.Uint16(s)
	case Int, VarInt:
		i, ok := v.(int32)
		if !ok {
			return mismatch()
		}
		if t == Int {
			w.Int32(i)
		} else {
			w.VarInt(i)
		}
	case Long, VarLong:
		i, ok := v.(int64)
		if !ok {
			return mismatch()
		}
		if t == Long {
			w.Int64(i)
		} else {
			w.VarLong(i)
		}
	case Float:
		f, ok := v.(float32)
		if !ok {
			return mismatch()
		}
		w.Float32(f)
	case Double:
		f, ok := v.(float64)
		if !ok {
			return mismatch()
		}
		w.Float64(f)
	case String, Component:
		s, ok := v.(string)
		if !ok {
			return mismatch()
		}
		limit := MaxStringChars
		if t == Component {
			limit = MaxComponentChars
		}
		if !utf8.ValidString(s) {
			return &protocol.MalformedFieldError{Field: t.Name(), Offset: w.Len(), Reason: "invalid utf-8"}
		}
		if len(s) > limit*4 || utf8.RuneCountInString(s) > limit {
			return &protocol.MalformedFieldError{
				Field:  t.Name(),
				Offset: w.Len(),
				Reason: fmt.Sprintf("longer than %d characters", limit),
			}
		}
		w.Text(s)
	case UUID:
		id, ok := v.(uuid.UUID)
		if !ok {
			return mismatch()
		}
		w.UUID(id)
	case ByteArray:
		b, ok := v.([]byte)
		if !ok {
			return mismatch()
		}
		w.ByteArray(b)
	case StringArray:
		ss, ok := v.([]string)
		if !ok {
			return mismatch()
		}
		w.VarInt(int32(len(ss)))
		for _, s := range ss {
			if err := String.Encode(w, s); err != nil {
				return err
			}
		}
	case VarIntArray:
		is, ok := v.([]int32)
		if !ok {
			return mismatch()
		}
		w.VarInt(int32(len(is)))
		for _, i := range is {
			w.VarInt(i)
		}
	case Position:
		p, ok := v.(Pos)
		if !ok {
			return mismatch()
		}
		w.Int64(p.Pack())
	case OptVarInt:
		if v == nil {
			w.VarInt(0)
			return nil
		}
		i, ok := v.(int32)
		if !ok {
			return mismatch()
		}
		if i < 0 || i == math.MaxInt32 {
			return &protocol.MalformedFieldError{
				Field:  t.Name(),
				Offset: w.Len(),
				Reason: fmt.Sprintf("value %d out of range", i),
			}
		}
		w.VarInt(i + 1)
	case NBT:
		root, ok := v.(*nbt.Root)
		if !ok && v != nil {
			return mismatch()
		}
		out, err := nbt.AppendRoot(w.buf, root)
		if err != nil {
			return err
		}
		w.buf = out
	case Slot:
		return encodeSlot(w, v)
	default:
		return mismatch()
	}
	return nil
}
