package mappings

import (
	"errors"
	"fmt"
	"io/fs"
	"math"

	"github.com/danmuck/backwire/internal/entity"
)

var ErrUnknownPair = errors.New("mappings: unknown version pair")

type spawnEntry struct {
	Index uint8  `toml:"index"`
	Type  string `toml:"type"`
	Value any    `toml:"value"`
}

type spawnSet struct {
	Entries []spawnEntry `toml:"entries"`
}

type entityMapping struct {
	From  string `toml:"from"`
	To    string `toml:"to"`
	Spawn string `toml:"spawn"`
}

// Pair describes how version From degrades into version To.
type Pair struct {
	From               string              `toml:"from"`
	To                 string              `toml:"to"`
	DroppedClientbound []string            `toml:"dropped_clientbound"`
	DroppedServerbound []string            `toml:"dropped_serverbound"`
	RenamedClientbound map[string]string   `toml:"renamed_clientbound"`
	RenamedServerbound map[string]string   `toml:"renamed_serverbound"`
	Entity             []entityMapping     `toml:"entity"`
	Spawn              map[string]spawnSet `toml:"spawn"`
	WindowTypes        map[string]string   `toml:"window_types"`
}

func LoadPair(from, to string) (*Pair, error) {
	var p Pair
	if err := decode(from+"-"+to+".toml", &p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownPair, from, to)
		}
		return nil, err
	}
	if p.From != from || p.To != to {
		return nil, fmt.Errorf("mappings: pair file %s-%s declares %s -> %s", from, to, p.From, p.To)
	}
	return &p, nil
}

// EntityMappings resolves the pair's entity mappings, typing spawn entries
// against the older version's value type table.
func (p *Pair) EntityMappings(dst *entity.ValueTypes) ([]entity.Mapping, error) {
	out := make([]entity.Mapping, 0, len(p.Entity))
	for _, m := range p.Entity {
		mapping := entity.Mapping{From: m.From, To: m.To}
		if m.Spawn != "" {
			set, ok := p.Spawn[m.Spawn]
			if !ok {
				return nil, fmt.Errorf("mappings: %s uses unknown spawn set %q", m.From, m.Spawn)
			}
			for _, e := range set.Entries {
				entry, err := typedEntry(dst, e)
				if err != nil {
					return nil, fmt.Errorf("mappings: spawn set %q index %d: %w", m.Spawn, e.Index, err)
				}
				mapping.Spawn = append(mapping.Spawn, entry)
			}
		}
		out = append(out, mapping)
	}
	return out, nil
}

func typedEntry(dst *entity.ValueTypes, e spawnEntry) (entity.Entry, error) {
	kind, err := entity.ParseKind(e.Type)
	if err != nil {
		return entity.Entry{}, err
	}
	id, ok := dst.ID(kind)
	if !ok {
		return entity.Entry{}, fmt.Errorf("%w: %s not in %s", entity.ErrUnknownValueType, kind, dst.Version())
	}
	v, err := convert(kind, e.Value)
	if err != nil {
		return entity.Entry{}, err
	}
	return entity.Entry{Index: e.Index, Type: id, Value: v}, nil
}

func convert(kind entity.Kind, v any) (any, error) {
	switch kind {
	case entity.KindByte:
		n, ok := v.(int64)
		if !ok || n < math.MinInt8 || n > math.MaxUint8 {
			return nil, fmt.Errorf("byte value %v out of range", v)
		}
		return int8(n), nil
	case entity.KindVarInt, entity.KindDirection, entity.KindBlockState, entity.KindPose:
		n, ok := v.(int64)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("int value %v out of range", v)
		}
		return int32(n), nil
	case entity.KindFloat:
		switch f := v.(type) {
		case float64:
			return float32(f), nil
		case int64:
			return float32(f), nil
		}
	case entity.KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case entity.KindString, entity.KindComponent:
		if s, ok := v.(string); ok {
			return s, nil
		}
	default:
		return nil, fmt.Errorf("value type %s cannot be written in a pair file", kind)
	}
	return nil, fmt.Errorf("%s value %v has type %T", kind, v, v)
}
