package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrDuplicateDescriptor = errors.New("pipeline: duplicate descriptor")

type key struct {
	dir protocol.Direction
	id  int32
}

// Registry is an immutable set of descriptors keyed by (direction, source
// id). It is built once at startup and safe for concurrent reads.
type Registry struct {
	name  string
	descs map[key]*Descriptor
}

// Builder accumulates descriptors for one Registry.
type Builder struct {
	name  string
	descs map[key]*Descriptor
	errs  []error
}

func NewBuilder(name string) *Builder {
	return &Builder{name: name, descs: make(map[key]*Descriptor)}
}

func (b *Builder) Register(d Descriptor) *Builder {
	k := key{dir: d.Direction, id: d.SourceID}
	if _, exists := b.descs[k]; exists {
		b.errs = append(b.errs, fmt.Errorf("%w: %s %s 0x%02X", ErrDuplicateDescriptor, b.name, d.Direction, d.SourceID))
		return b
	}
	ops := make([]Op, len(d.Ops))
	copy(ops, d.Ops)
	d.Ops = ops
	b.descs[k] = &d
	return b
}

func (b *Builder) Clientbound(src, dst int32, ops ...Op) *Builder {
	return b.Register(Descriptor{Direction: protocol.Clientbound, SourceID: src, DestID: dst, Ops: ops})
}

func (b *Builder) Serverbound(src, dst int32, ops ...Op) *Builder {
	return b.Register(Descriptor{Direction: protocol.Serverbound, SourceID: src, DestID: dst, Ops: ops})
}

// Has reports whether a descriptor for (dir, src) was already registered.
func (b *Builder) Has(dir protocol.Direction, src int32) bool {
	_, ok := b.descs[key{dir: dir, id: src}]
	return ok
}

func (b *Builder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	descs := make(map[key]*Descriptor, len(b.descs))
	for k, d := range b.descs {
		descs[k] = d
	}
	return &Registry{name: b.name, descs: descs}, nil
}

func (r *Registry) Name() string { return r.name }

func (r *Registry) Len() int { return len(r.descs) }

func (r *Registry) Lookup(dir protocol.Direction, id int32) (*Descriptor, bool) {
	d, ok := r.descs[key{dir: dir, id: id}]
	return d, ok
}

// Descriptors lists every descriptor ordered by direction then source id.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.descs))
	for _, d := range r.descs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Direction != out[j].Direction {
			return out[i].Direction < out[j].Direction
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// Translate looks up the descriptor for p and runs it. Unregistered ids
// pass through unchanged unless strict, where they fail with
// UnknownPacketError.
func (r *Registry) Translate(dir protocol.Direction, p Packet, tx *conn.Tx, strict bool) (Result, error) {
	d, ok := r.Lookup(dir, p.ID)
	if !ok {
		if strict {
			log.Debug().
				Str("registry", r.name).
				Stringer("direction", dir).
				Int32("packet_id", p.ID).
				Msg("pipeline.Translate unknown packet")
			return Result{}, &protocol.UnknownPacketError{Direction: dir, PacketID: p.ID}
		}
		return Result{Packets: []Packet{p}}, nil
	}
	res, err := Run(d, p.Body, tx)
	if err != nil {
		log.Debug().
			Str("registry", r.name).
			Stringer("direction", dir).
			Int32("packet_id", p.ID).
			Err(err).
			Msg("pipeline.Translate failed")
		return Result{}, err
	}
	if res.Cancelled {
		log.Trace().
			Str("registry", r.name).
			Stringer("direction", dir).
			Int32("packet_id", p.ID).
			Msg("pipeline.Translate cancelled")
	}
	return res, nil
}
