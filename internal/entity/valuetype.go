package entity

import (
	"errors"
	"fmt"

	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/codec"
)

var ErrUnknownValueType = errors.New("entity: unknown metadata value type")

// Kind is the meaning of a metadata value type independent of its wire id.
type Kind uint8

const (
	KindByte Kind = iota + 1
	KindVarInt
	KindVarLong
	KindFloat
	KindString
	KindComponent
	KindOptComponent
	KindItem
	KindBoolean
	KindRotation
	KindPosition
	KindOptPosition
	KindDirection
	KindOptUUID
	KindBlockState
	KindOptBlockState
	KindNBT
	KindParticle
	KindVillagerData
	KindOptVarInt
	KindPose
	KindCatVariant
	KindFrogVariant
	KindOptGlobalPos
	KindPaintingVariant
	KindVector3f
	KindQuaternion
)

var kindNames = map[Kind]string{
	KindByte:            "byte",
	KindVarInt:          "varint",
	KindVarLong:         "varlong",
	KindFloat:           "float",
	KindString:          "string",
	KindComponent:       "component",
	KindOptComponent:    "opt_component",
	KindItem:            "item",
	KindBoolean:         "boolean",
	KindRotation:        "rotation",
	KindPosition:        "position",
	KindOptPosition:     "opt_position",
	KindDirection:       "direction",
	KindOptUUID:         "opt_uuid",
	KindBlockState:      "block_state",
	KindOptBlockState:   "opt_block_state",
	KindNBT:             "nbt",
	KindParticle:        "particle",
	KindVillagerData:    "villager_data",
	KindOptVarInt:       "opt_varint",
	KindPose:            "pose",
	KindCatVariant:      "cat_variant",
	KindFrogVariant:     "frog_variant",
	KindOptGlobalPos:    "opt_global_pos",
	KindPaintingVariant: "painting_variant",
	KindVector3f:        "vector3f",
	KindQuaternion:      "quaternion",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func ParseKind(name string) (Kind, error) {
	k, ok := kindByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownValueType, name)
	}
	return k, nil
}

// ValueTypes is the metadata value type table of one protocol version.
type ValueTypes struct {
	version   string
	kinds     []Kind
	ids       map[Kind]int32
	codecs    []codec.Codec
	particles *Particles
}

// NewValueTypes builds a table from kind names in wire id order.
func NewValueTypes(version string, names []string, particles *Particles) (*ValueTypes, error) {
	vt := &ValueTypes{
		version:   version,
		kinds:     make([]Kind, len(names)),
		ids:       make(map[Kind]int32, len(names)),
		codecs:    make([]codec.Codec, len(names)),
		particles: particles,
	}
	for i, name := range names {
		k, err := ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", version, err)
		}
		if _, dup := vt.ids[k]; dup {
			return nil, fmt.Errorf("%s: value type %q listed twice", version, name)
		}
		vt.kinds[i] = k
		vt.ids[k] = int32(i)
		vt.codecs[i] = vt.codecFor(k)
	}
	return vt, nil
}

func (vt *ValueTypes) Version() string { return vt.version }

func (vt *ValueTypes) Len() int { return len(vt.kinds) }

func (vt *ValueTypes) Kind(id int32) (Kind, bool) {
	if id < 0 || int(id) >= len(vt.kinds) {
		return 0, false
	}
	return vt.kinds[id], true
}

func (vt *ValueTypes) ID(k Kind) (int32, bool) {
	id, ok := vt.ids[k]
	return id, ok
}

// Codec returns the value codec for wire id.
func (vt *ValueTypes) Codec(id int32) (codec.Codec, bool) {
	if id < 0 || int(id) >= len(vt.codecs) {
		return nil, false
	}
	return vt.codecs[id], true
}

func (vt *ValueTypes) Particles() *Particles { return vt.particles }

var (
	rotationCodec   = codec.Struct("rotation", codec.Float, codec.Float, codec.Float)
	villagerCodec   = codec.Struct("villager_data", codec.VarInt, codec.VarInt, codec.VarInt)
	globalPosCodec  = codec.Opt(codec.Struct("global_pos", codec.String, codec.Position))
	vector3fCodec   = codec.Struct("vector3f", codec.Float, codec.Float, codec.Float)
	quaternionCodec = codec.Struct("quaternion", codec.Float, codec.Float, codec.Float, codec.Float)
)

func (vt *ValueTypes) codecFor(k Kind) codec.Codec {
	switch k {
	case KindByte:
		return codec.Byte
	case KindVarInt, KindDirection, KindBlockState, KindOptBlockState, KindPose,
		KindCatVariant, KindFrogVariant, KindPaintingVariant:
		return codec.VarInt
	case KindVarLong:
		return codec.VarLong
	case KindFloat:
		return codec.Float
	case KindString:
		return codec.String
	case KindComponent:
		return codec.Component
	case KindOptComponent:
		return codec.Opt(codec.Component)
	case KindItem:
		return codec.Slot
	case KindBoolean:
		return codec.Bool
	case KindRotation:
		return rotationCodec
	case KindPosition:
		return codec.Position
	case KindOptPosition:
		return codec.Opt(codec.Position)
	case KindOptUUID:
		return codec.Opt(codec.UUID)
	case KindNBT:
		return codec.NBT
	case KindParticle:
		return particleCodec{table: vt.particles}
	case KindVillagerData:
		return villagerCodec
	case KindOptVarInt:
		return codec.OptVarInt
	case KindOptGlobalPos:
		return globalPosCodec
	case KindVector3f:
		return vector3fCodec
	case KindQuaternion:
		return quaternionCodec
	default:
		return nil
	}
}

// Particle is a particle id plus its type-specific data (nil when the
// particle carries none).
type Particle struct {
	ID   int32
	Data any
}

// Particles maps particle ids of one version to names and data layouts.
type Particles struct {
	names []string
	ids   map[string]int32
}

func NewParticles(names []string) *Particles {
	p := &Particles{names: names, ids: make(map[string]int32, len(names))}
	for i, n := range names {
		p.ids[n] = int32(i)
	}
	return p
}

func (p *Particles) Name(id int32) (string, bool) {
	if p == nil || id < 0 || int(id) >= len(p.names) {
		return "", false
	}
	return p.names[id], true
}

func (p *Particles) ID(name string) (int32, bool) {
	if p == nil {
		return 0, false
	}
	id, ok := p.ids[name]
	return id, ok
}

var (
	dustCodec           = codec.Struct("dust", codec.Float, codec.Float, codec.Float, codec.Float)
	dustTransitionCodec = codec.Struct("dust_color_transition",
		codec.Float, codec.Float, codec.Float, codec.Float, codec.Float, codec.Float, codec.Float)
)

func particleData(name string) codec.Codec {
	switch name {
	case "block", "block_marker", "falling_dust":
		return codec.VarInt
	case "dust":
		return dustCodec
	case "dust_color_transition":
		return dustTransitionCodec
	case "item":
		return codec.Slot
	case "vibration":
		return vibrationCodec{}
	case "sculk_charge":
		return codec.Float
	case "shriek":
		return codec.VarInt
	default:
		return nil
	}
}

type particleCodec struct {
	table *Particles
}

func (particleCodec) Name() string { return "particle" }

func (p particleCodec) Decode(r *codec.Reader) (any, error) {
	id, err := r.VarInt()
	if err != nil {
		return nil, err
	}
	out := Particle{ID: id}
	name, ok := p.table.Name(id)
	if !ok {
		return nil, &protocol.MalformedFieldError{Field: "particle", Offset: r.Offset(), Reason: fmt.Sprintf("unknown particle id %d", id)}
	}
	if c := particleData(name); c != nil {
		if out.Data, err = c.Decode(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p particleCodec) Encode(w *codec.Writer, v any) error {
	pt, ok := v.(Particle)
	if !ok {
		return &protocol.MalformedFieldError{Field: "particle", Offset: w.Len(), Reason: fmt.Sprintf("cannot encode %T", v)}
	}
	name, ok := p.table.Name(pt.ID)
	if !ok {
		return &protocol.MalformedFieldError{Field: "particle", Offset: w.Len(), Reason: fmt.Sprintf("unknown particle id %d", pt.ID)}
	}
	w.VarInt(pt.ID)
	if c := particleData(name); c != nil {
		return c.Encode(w, pt.Data)
	}
	return nil
}

// Vibration is the position source of a vibration particle.
type Vibration struct {
	Source   string
	Block    codec.Pos
	EntityID int32
	EyeY     float32
	Ticks    int32
}

type vibrationCodec struct{}

func (vibrationCodec) Name() string { return "vibration" }

func (vibrationCodec) Decode(r *codec.Reader) (any, error) {
	src, err := r.Text(codec.MaxStringChars)
	if err != nil {
		return nil, err
	}
	v := Vibration{Source: src}
	switch src {
	case "minecraft:block":
		raw, err := r.Int64()
		if err != nil {
			return nil, err
		}
		v.Block = codec.UnpackPosition(raw)
	case "minecraft:entity":
		if v.EntityID, err = r.VarInt(); err != nil {
			return nil, err
		}
		if v.EyeY, err = r.Float32(); err != nil {
			return nil, err
		}
	default:
		return nil, &protocol.MalformedFieldError{Field: "vibration", Offset: r.Offset(), Reason: fmt.Sprintf("unknown position source %q", src)}
	}
	if v.Ticks, err = r.VarInt(); err != nil {
		return nil, err
	}
	return v, nil
}

func (vibrationCodec) Encode(w *codec.Writer, v any) error {
	vib, ok := v.(Vibration)
	if !ok {
		return &protocol.MalformedFieldError{Field: "vibration", Offset: w.Len(), Reason: fmt.Sprintf("cannot encode %T", v)}
	}
	w.Text(vib.Source)
	switch vib.Source {
	case "minecraft:block":
		w.Int64(vib.Block.Pack())
	case "minecraft:entity":
		w.VarInt(vib.EntityID)
		w.Float32(vib.EyeY)
	default:
		return &protocol.MalformedFieldError{Field: "vibration", Offset: w.Len(), Reason: fmt.Sprintf("unknown position source %q", vib.Source)}
	}
	w.VarInt(vib.Ticks)
	return nil
}
