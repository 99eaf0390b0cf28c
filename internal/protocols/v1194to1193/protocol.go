// Package v1194to1193 lets 1.19.3 clients join 1.19.4 servers.
//
// Display entities become marker armor stands, the metadata value types
// added in 1.19.4 are contracted back, registries the older client cannot
// parse are dropped from the join packet and the hurt animation is sent as a
// plain entity animation.
package v1194to1193

import (
	"fmt"

	"github.com/danmuck/backwire/internal/entity"
	"github.com/danmuck/backwire/internal/mappings"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/codec"
	"github.com/danmuck/backwire/internal/protocols"
)

const (
	Newer = "1.19.4"
	Older = "1.19.3"
)

// Protocol is the 1.19.4 -> 1.19.3 pair.
type Protocol struct {
	*protocols.Base
	entities *entity.Rewriter
	world    *worldTracker
}

func New() (*Protocol, error) {
	newer, err := mappings.Load(Newer)
	if err != nil {
		return nil, err
	}
	older, err := mappings.Load(Older)
	if err != nil {
		return nil, err
	}
	data, err := mappings.LoadPair(Newer, Older)
	if err != nil {
		return nil, err
	}

	rw, err := newEntityRewriter(newer, older, data)
	if err != nil {
		return nil, fmt.Errorf("%s->%s entities: %w", Newer, Older, err)
	}
	p := &Protocol{entities: rw, world: newWorldTracker()}

	cb := func(name string) (int32, int32) {
		return newer.MustPacketID(protocol.Clientbound, name), older.MustPacketID(protocol.Clientbound, name)
	}
	b := pipeline.NewBuilder(Newer + "->" + Older)

	src, dst := cb("spawn_entity")
	b.Clientbound(src, dst, rw.SpawnTracker()...)
	src, dst = cb("remove_entities")
	b.Clientbound(src, dst, rw.RemoveEntities()...)
	src, dst = cb("entity_metadata")
	b.Clientbound(src, dst, rw.Metadata()...)
	src, dst = cb("join_game")
	b.Clientbound(src, dst, p.joinGame()...)
	src, dst = cb("respawn")
	b.Clientbound(src, dst, p.respawn()...)
	b.Clientbound(
		newer.MustPacketID(protocol.Clientbound, "hit_animation"),
		older.MustPacketID(protocol.Clientbound, "entity_animation"),
		pipeline.Map(codec.VarInt),             // entity id
		pipeline.Read(codec.Float),             // yaw
		pipeline.Create(codec.UByte, uint8(1)), // hurt
	)

	if err := protocols.RemapByName(b, newer, older, data); err != nil {
		return nil, err
	}
	reg, err := b.Build()
	if err != nil {
		return nil, err
	}
	base, err := protocols.NewBase(newer, older, reg, rw.Init, p.world.init)
	if err != nil {
		return nil, err
	}
	p.Base = base
	return p, nil
}

// Entities exposes the entity rewriter for inspection of tracked state.
func (p *Protocol) Entities() *entity.Rewriter { return p.entities }
