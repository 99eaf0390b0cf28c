package v1194to1193

import (
	"fmt"

	"github.com/danmuck/backwire/internal/entity"
	"github.com/danmuck/backwire/internal/mappings"
	"github.com/danmuck/backwire/internal/protocol"
)

// Indices above this are display-only state (transforms, interpolation,
// billboard, text, block and item) the armor stand stand-in cannot show.
const maxDisplayIndex = 7

// ownerSlot is the horse owner UUID index 1.19.3 still carries.
const ownerSlot = 18

func newEntityRewriter(newer, older *mappings.Version, data *mappings.Pair) (*entity.Rewriter, error) {
	srcTypes, err := newer.Entities()
	if err != nil {
		return nil, err
	}
	dstTypes, err := older.Entities()
	if err != nil {
		return nil, err
	}
	srcMeta, err := newer.ValueTypes()
	if err != nil {
		return nil, err
	}
	dstMeta, err := older.ValueTypes()
	if err != nil {
		return nil, err
	}
	ms, err := data.EntityMappings(dstMeta)
	if err != nil {
		return nil, err
	}
	resolver, err := entity.NewResolver(srcTypes, dstTypes, ms)
	if err != nil {
		return nil, err
	}
	chain, err := metadataFilters(srcTypes, srcMeta, dstMeta)
	if err != nil {
		return nil, err
	}
	return entity.NewRewriter(entity.RewriterConfig{
		Name:             Newer + "->" + Older,
		Resolver:         resolver,
		Chain:            chain,
		SourceMeta:       srcMeta,
		DestMeta:         dstMeta,
		MetadataPacketID: older.MustPacketID(protocol.Clientbound, "entity_metadata"),
	})
}

func metadataFilters(types *entity.Hierarchy, src, dst *entity.ValueTypes) (*entity.Chain, error) {
	ids := func(vt *entity.ValueTypes, k entity.Kind) int32 {
		id, ok := vt.ID(k)
		if !ok {
			panic(fmt.Sprintf("%s has no %s value type", vt.Version(), k))
		}
		return id
	}
	vector := ids(src, entity.KindVector3f)
	optState := ids(src, entity.KindOptBlockState)
	painting := ids(src, entity.KindPaintingVariant)
	particle := ids(dst, entity.KindParticle)

	return entity.NewChain(types).
		// vector3f and quaternion only exist on display entities.
		Filter().ValueTypeAtLeast(vector).Cancel().
		// opt_block_state folds into block_state and shifts the rest down.
		Filter().ValueTypeRange(optState, painting).RemapFunc(func(id int32) int32 { return id - 1 }).
		Filter().ValueType(particle).Handler(remapParticle(src.Particles(), dst.Particles())).
		CancelIndexAbove("display", maxDisplayIndex).
		Filter().Family("abstract_horse").AddIndex(ownerSlot).
		Build()
}

func remapParticle(src, dst *entity.Particles) entity.Action {
	return func(ev *entity.Event, e *entity.Entry) error {
		p, ok := e.Value.(entity.Particle)
		if !ok {
			return fmt.Errorf("particle entry holds %T", e.Value)
		}
		name, ok := src.Name(p.ID)
		if !ok {
			ev.Cancel()
			return nil
		}
		id, ok := dst.ID(name)
		if !ok {
			ev.Cancel()
			return nil
		}
		p.ID = id
		e.Value = p
		return nil
	}
}
