package pipeline

import (
	"errors"
	"fmt"

	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/codec"
)

var (
	ErrMissingField = errors.New("pipeline: missing expected field")
	ErrFieldType    = errors.New("pipeline: unexpected field type")
	ErrNotMapped    = errors.New("pipeline: field is not written to the destination")
)

type slot struct {
	codec codec.Codec
	value any
	out   int
}

type output struct {
	codec codec.Codec
	value any
	raw   []byte
}

// Wrapper is the per-packet view handed to handlers.
type Wrapper struct {
	desc      *Descriptor
	id        int32
	r         *codec.Reader
	read      []slot
	out       []output
	store     *conn.Store
	staged    []func(*conn.Store)
	emitted   []Packet
	cancelled bool
}

func newWrapper(d *Descriptor, body []byte, store *conn.Store) *Wrapper {
	return &Wrapper{
		desc:  d,
		id:    d.DestID,
		r:     codec.NewReader(body),
		store: store,
	}
}

func (w *Wrapper) Direction() protocol.Direction { return w.desc.Direction }

// PacketID is the destination id the packet will be written with.
func (w *Wrapper) PacketID() int32 { return w.id }

func (w *Wrapper) SetPacketID(id int32) { w.id = id }

// Fields is the number of values decoded so far.
func (w *Wrapper) Fields() int { return len(w.read) }

// Remaining is the number of unread source bytes.
func (w *Wrapper) Remaining() int { return w.r.Remaining() }

// Get returns the value decoded at position pos.
func (w *Wrapper) Get(pos int) (any, bool) {
	if pos < 0 || pos >= len(w.read) {
		return nil, false
	}
	return w.read[pos].value, true
}

// Set rewrites the destination value of the mapped field at pos.
func (w *Wrapper) Set(pos int, v any) error {
	if pos < 0 || pos >= len(w.read) {
		return fmt.Errorf("%w: position %d", ErrMissingField, pos)
	}
	s := w.read[pos]
	if s.out < 0 {
		return fmt.Errorf("%w: position %d", ErrNotMapped, pos)
	}
	w.read[pos].value = v
	w.out[s.out].value = v
	return nil
}

// Read decodes c and drops it from the destination.
func (w *Wrapper) Read(c codec.Codec) (any, error) {
	v, err := c.Decode(w.r)
	if err != nil {
		return nil, err
	}
	w.read = append(w.read, slot{codec: c, value: v, out: -1})
	return v, nil
}

// Passthrough decodes c and keeps it in the destination.
func (w *Wrapper) Passthrough(c codec.Codec) (any, error) {
	return w.mapField(c, c)
}

func (w *Wrapper) mapField(from, to codec.Codec) (any, error) {
	v, err := from.Decode(w.r)
	if err != nil {
		return nil, err
	}
	w.out = append(w.out, output{codec: to, value: v})
	w.read = append(w.read, slot{codec: from, value: v, out: len(w.out) - 1})
	return v, nil
}

// Write appends v as c to the destination.
func (w *Wrapper) Write(c codec.Codec, v any) {
	w.out = append(w.out, output{codec: c, value: v})
}

// WriteRaw appends pre-encoded bytes to the destination.
func (w *Wrapper) WriteRaw(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	w.out = append(w.out, output{raw: cp})
}

// Cancel suppresses the packet: nothing is emitted and staged state is dropped.
func (w *Wrapper) Cancel() { w.cancelled = true }

func (w *Wrapper) Cancelled() bool { return w.cancelled }

// Store gives read access to connection state. Mutations go through Stage.
func (w *Wrapper) Store() *conn.Store { return w.store }

// Stage queues a connection state change that applies only when the packet
// translates successfully and is not cancelled.
func (w *Wrapper) Stage(fn func(*conn.Store)) {
	w.staged = append(w.staged, fn)
}

// Emit queues an extra packet sent right after this one.
func (w *Wrapper) Emit(id int32, body []byte) {
	w.emitted = append(w.emitted, Packet{ID: id, Body: body})
}

func (w *Wrapper) apply(op Op) error {
	switch op.kind {
	case opMap:
		_, err := w.mapField(op.from, op.to)
		return err
	case opRead:
		_, err := w.Read(op.from)
		return err
	case opCreate:
		w.Write(op.to, op.value)
		return nil
	case opHandler:
		return op.handler(w)
	default:
		return fmt.Errorf("pipeline: unknown op kind %d", op.kind)
	}
}

func (w *Wrapper) encode() ([]byte, error) {
	out := codec.NewWriter()
	for _, o := range w.out {
		if o.codec == nil {
			out.Raw(o.raw)
			continue
		}
		if err := o.codec.Encode(out, o.value); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

// Value returns the field at pos as T.
func Value[T any](w *Wrapper, pos int) (T, error) {
	var zero T
	v, ok := w.Get(pos)
	if !ok {
		return zero, fmt.Errorf("%w: position %d", ErrMissingField, pos)
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: position %d holds %T, want %T", ErrFieldType, pos, v, zero)
	}
	return out, nil
}
