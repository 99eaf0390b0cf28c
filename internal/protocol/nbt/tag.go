package nbt

import (
	"fmt"

	"github.com/danmuck/backwire/internal/protocol"
)

// Kind is the wire id of a tag.
type Kind uint8

const (
	KindEnd Kind = iota
	KindByte
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindByteArray
	KindString
	KindList
	KindCompound
	KindIntArray
	KindLongArray
)

var kindNames = [...]string{
	"end", "byte", "short", "int", "long", "float", "double",
	"byte_array", "string", "list", "compound", "int_array", "long_array",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k is a known tag id.
func (k Kind) Valid() bool { return k <= KindLongArray }

// Tag is any node of a tree: *Leaf, *List or *Compound.
type Tag interface {
	Kind() Kind
}

// Leaf is a scalar or primitive array node. The held value always matches
// the leaf kind:
//
//	byte int8, short int16, int int32, long int64, float float32,
//	double float64, string string, byte_array []byte,
//	int_array []int32, long_array []int64
type Leaf struct {
	kind  Kind
	value any
}

func (l *Leaf) Kind() Kind { return l.kind }

// Value returns the held Go value.
func (l *Leaf) Value() any { return l.value }

// Int returns the leaf as an integer when it holds one of the integer kinds.
func (l *Leaf) Int() (int64, bool) {
	switch v := l.value.(type) {
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// String returns the leaf text when it is a string leaf.
func (l *Leaf) String() (string, bool) {
	v, ok := l.value.(string)
	return v, ok
}

func NewByte(v int8) *Leaf         { return &Leaf{kind: KindByte, value: v} }
func NewShort(v int16) *Leaf       { return &Leaf{kind: KindShort, value: v} }
func NewInt(v int32) *Leaf         { return &Leaf{kind: KindInt, value: v} }
func NewLong(v int64) *Leaf        { return &Leaf{kind: KindLong, value: v} }
func NewFloat(v float32) *Leaf     { return &Leaf{kind: KindFloat, value: v} }
func NewDouble(v float64) *Leaf    { return &Leaf{kind: KindDouble, value: v} }
func NewString(v string) *Leaf     { return &Leaf{kind: KindString, value: v} }
func NewByteArray(v []byte) *Leaf  { return &Leaf{kind: KindByteArray, value: v} }
func NewIntArray(v []int32) *Leaf  { return &Leaf{kind: KindIntArray, value: v} }
func NewLongArray(v []int64) *Leaf { return &Leaf{kind: KindLongArray, value: v} }

// NewBool encodes a flag the way the protocol does: a byte leaf of 0 or 1.
func NewBool(v bool) *Leaf {
	if v {
		return NewByte(1)
	}
	return NewByte(0)
}

// NewLeaf builds a leaf from a Go value, inferring the kind.
func NewLeaf(v any) (*Leaf, error) {
	kind, ok := leafKind(v)
	if !ok {
		return nil, &protocol.SchemaViolationError{Reason: fmt.Sprintf("unsupported leaf value %T", v)}
	}
	return &Leaf{kind: kind, value: v}, nil
}

func leafKind(v any) (Kind, bool) {
	switch v.(type) {
	case int8:
		return KindByte, true
	case int16:
		return KindShort, true
	case int32:
		return KindInt, true
	case int64:
		return KindLong, true
	case float32:
		return KindFloat, true
	case float64:
		return KindDouble, true
	case string:
		return KindString, true
	case []byte:
		return KindByteArray, true
	case []int32:
		return KindIntArray, true
	case []int64:
		return KindLongArray, true
	default:
		return KindEnd, false
	}
}
