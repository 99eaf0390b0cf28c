package v1194to1193

import (
	"errors"

	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol/codec"
	"github.com/danmuck/backwire/internal/protocol/nbt"
)

var ErrMissingRegistry = errors.New("v1194to1193: join game without a registry")

// Registries the 1.19.3 client does not know.
var droppedRegistries = []string{
	"minecraft:trim_pattern",
	"minecraft:trim_material",
	"minecraft:damage_type",
}

// World is the dimension state of one connection.
type World struct {
	// Dimensions maps dimension type names to their registry element.
	Dimensions map[string]*nbt.Compound
	Biomes     int
	Dimension  string
	Name       string
}

// Element returns the registry element of the current dimension type.
func (w *World) Element() (*nbt.Compound, bool) {
	c, ok := w.Dimensions[w.Dimension]
	return c, ok
}

type worldTracker struct {
	key conn.Key[*World]
}

func newWorldTracker() *worldTracker {
	return &worldTracker{key: conn.NewKey[*World](Newer + "->" + Older + ".world")}
}

func (t *worldTracker) init(s *conn.Store) {
	conn.Put(s, t.key, &World{Dimensions: map[string]*nbt.Compound{}})
}

// World returns the connection's dimension state.
func (p *Protocol) World(s *conn.Store) (*World, bool) {
	return conn.Get(s, p.world.key)
}

func (p *Protocol) joinGame() []pipeline.Op {
	return []pipeline.Op{
		pipeline.Map(codec.Int),         // entity id
		pipeline.Map(codec.Bool),        // hardcore
		pipeline.Map(codec.UByte),       // game mode
		pipeline.Map(codec.Byte),        // previous game mode
		pipeline.Map(codec.StringArray), // dimension names
		pipeline.Map(codec.NBT),         // registry
		pipeline.Map(codec.String),      // dimension type
		pipeline.Map(codec.String),      // dimension name
		pipeline.Handler(p.trackWorld),
		pipeline.Handler(rewriteRegistry),
	}
}

func (p *Protocol) respawn() []pipeline.Op {
	return []pipeline.Op{
		pipeline.Map(codec.String), // dimension type
		pipeline.Map(codec.String), // dimension name
		pipeline.Handler(func(w *pipeline.Wrapper) error {
			dim, err := pipeline.Value[string](w, 0)
			if err != nil {
				return err
			}
			name, err := pipeline.Value[string](w, 1)
			if err != nil {
				return err
			}
			w.Stage(func(s *conn.Store) {
				world := p.worldOf(s)
				world.Dimension = dim
				world.Name = name
			})
			return nil
		}),
	}
}

func (p *Protocol) worldOf(s *conn.Store) *World {
	world, ok := conn.Get(s, p.world.key)
	if !ok {
		world = &World{Dimensions: map[string]*nbt.Compound{}}
		conn.Put(s, p.world.key, world)
	}
	return world
}

func registry(w *pipeline.Wrapper) (*nbt.Compound, error) {
	root, err := pipeline.Value[*nbt.Root](w, 5)
	if err != nil {
		return nil, err
	}
	if root == nil || root.Compound == nil {
		return nil, ErrMissingRegistry
	}
	return root.Compound, nil
}

func (p *Protocol) trackWorld(w *pipeline.Wrapper) error {
	reg, err := registry(w)
	if err != nil {
		return err
	}
	dim, err := pipeline.Value[string](w, 6)
	if err != nil {
		return err
	}
	name, err := pipeline.Value[string](w, 7)
	if err != nil {
		return err
	}

	dims := map[string]*nbt.Compound{}
	if list, ok := nbt.Get(reg, "minecraft:dimension_type", "value"); ok {
		if l, ok := list.(*nbt.List); ok {
			for tag := range nbt.ForEach(l) {
				entry, ok := tag.(*nbt.Compound)
				if !ok {
					continue
				}
				key, _ := entry.Leaf("name")
				element, ok := entry.Compound("element")
				if key == nil || !ok {
					continue
				}
				if s, ok := key.String(); ok {
					dims[s] = nbt.Clone(element).(*nbt.Compound)
				}
			}
		}
	}
	biomes := 0
	if list, ok := nbt.Get(reg, "minecraft:worldgen/biome", "value"); ok {
		if l, ok := list.(*nbt.List); ok {
			biomes = l.Len()
		}
	}

	w.Stage(func(s *conn.Store) {
		world := p.worldOf(s)
		world.Dimensions = dims
		world.Biomes = biomes
		world.Dimension = dim
		world.Name = name
	})
	return nil
}

// rewriteRegistry drops registries the older client rejects and derives the
// biome precipitation string it still expects.
func rewriteRegistry(w *pipeline.Wrapper) error {
	reg, err := registry(w)
	if err != nil {
		return err
	}
	for _, key := range droppedRegistries {
		nbt.Remove(reg, key)
	}
	return derivePrecipitation(reg)
}

func derivePrecipitation(reg *nbt.Compound) error {
	tag, ok := nbt.Get(reg, "minecraft:worldgen/biome", "value")
	if !ok {
		return nil
	}
	biomes, ok := tag.(*nbt.List)
	if !ok {
		return nil
	}
	for biome := range nbt.ForEach(biomes) {
		element, ok := nbt.GetCompound(biome, "element")
		if !ok {
			continue
		}
		value := "none"
		if flag, ok := element.Leaf("has_precipitation"); ok {
			if n, ok := flag.Int(); ok && n == 1 {
				value = "rain"
			}
		}
		nbt.Put(element, "precipitation", nbt.NewString(value))
	}
	return nil
}
