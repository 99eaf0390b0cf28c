package pipeline

import (
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/codec"
)

// HandlerFunc is an arbitrary stateful step.
type HandlerFunc func(w *Wrapper) error

type opKind uint8

const (
	opMap opKind = iota
	opRead
	opCreate
	opHandler
)

// Op is one step of a Descriptor.
type Op struct {
	kind    opKind
	from    codec.Codec
	to      codec.Codec
	value   any
	handler HandlerFunc
}

// Map decodes c and re-encodes it unchanged.
func Map(c codec.Codec) Op {
	return Op{kind: opMap, from: c, to: c}
}

// MapTo decodes as from and encodes the same Go value as to (for example
// VarInt widened to Int).
func MapTo(from, to codec.Codec) Op {
	return Op{kind: opMap, from: from, to: to}
}

// Read decodes c and drops it from the destination.
func Read(c codec.Codec) Op {
	return Op{kind: opRead, from: c}
}

// Create writes v as c without consuming source bytes.
func Create(c codec.Codec, v any) Op {
	return Op{kind: opCreate, to: c, value: v}
}

func Handler(fn HandlerFunc) Op {
	return Op{kind: opHandler, handler: fn}
}

// Cancel is a handler that suppresses the packet.
func Cancel() Op {
	return Handler(func(w *Wrapper) error {
		w.Cancel()
		return nil
	})
}

// Descriptor identifies one translation: direction, source id, destination
// id and the ordered operations. It is immutable once registered.
type Descriptor struct {
	Direction protocol.Direction
	SourceID  int32
	DestID    int32
	Ops       []Op
}

// Packet is a framed packet id and body.
type Packet struct {
	ID   int32
	Body []byte
}

// Result is the outcome of one translation. Packets holds the translated
// packet followed by any packets its handlers emitted; it is empty when
// Cancelled.
type Result struct {
	Packets   []Packet
	Cancelled bool
}
