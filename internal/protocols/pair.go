package protocols

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/mappings"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol"
)

var ErrUnmappedPacket = errors.New("protocols: packet has no mapping in the older version")

// Pair translates between a newer version (From) and the version right
// below it (To). Clientbound packets flow From -> To, serverbound To -> From.
type Pair interface {
	Name() string
	From() *semver.Version
	To() *semver.Version
	// FromProtocol and ToProtocol are the handshake protocol numbers.
	FromProtocol() int32
	ToProtocol() int32
	Registry() *pipeline.Registry
	// Init seeds a new connection's store.
	Init(s *conn.Store)
}

// Base implements Pair for the version subpackages.
type Base struct {
	name      string
	from, to  *semver.Version
	fromProto int32
	toProto   int32
	reg       *pipeline.Registry
	inits     []func(*conn.Store)
}

// NewBase parses the version names of newer and older.
func NewBase(newer, older *mappings.Version, reg *pipeline.Registry, inits ...func(*conn.Store)) (*Base, error) {
	from, err := semver.NewVersion(newer.Name)
	if err != nil {
		return nil, fmt.Errorf("protocols: version %q: %w", newer.Name, err)
	}
	to, err := semver.NewVersion(older.Name)
	if err != nil {
		return nil, fmt.Errorf("protocols: version %q: %w", older.Name, err)
	}
	if !from.GreaterThan(to) {
		return nil, fmt.Errorf("protocols: %s is not newer than %s", newer.Name, older.Name)
	}
	return &Base{
		name:      newer.Name + "->" + older.Name,
		from:      from,
		to:        to,
		fromProto: newer.Protocol,
		toProto:   older.Protocol,
		reg:       reg,
		inits:     inits,
	}, nil
}

func (b *Base) Name() string                 { return b.name }
func (b *Base) From() *semver.Version        { return b.from }
func (b *Base) To() *semver.Version          { return b.to }
func (b *Base) FromProtocol() int32          { return b.fromProto }
func (b *Base) ToProtocol() int32            { return b.toProto }
func (b *Base) Registry() *pipeline.Registry { return b.reg }

func (b *Base) Init(s *conn.Store) {
	for _, fn := range b.inits {
		fn(s)
	}
}

// RemapByName registers an id-only descriptor for every packet the two
// versions share by name, and a cancelling descriptor for every packet the
// pair file drops. Packets already registered on b are left alone. A packet
// with neither a counterpart nor a drop entry is an error, so tables stay
// complete.
func RemapByName(b *pipeline.Builder, newer, older *mappings.Version, pair *mappings.Pair) error {
	var errs []error
	remap := func(dir protocol.Direction, src, dst *mappings.Version, renamed map[string]string, dropped []string) {
		drop := make(map[string]struct{}, len(dropped))
		for _, name := range dropped {
			drop[name] = struct{}{}
		}
		for srcID, name := range src.PacketNames(dir) {
			if b.Has(dir, int32(srcID)) {
				continue
			}
			if _, ok := drop[name]; ok {
				b.Register(pipeline.Descriptor{Direction: dir, SourceID: int32(srcID), DestID: -1, Ops: []pipeline.Op{pipeline.Cancel()}})
				continue
			}
			target := name
			if to, ok := renamed[name]; ok {
				target = to
			}
			dstID, ok := dst.PacketID(dir, target)
			if !ok {
				errs = append(errs, fmt.Errorf("%w: %s %s %q", ErrUnmappedPacket, src.Name, dir, name))
				continue
			}
			b.Register(pipeline.Descriptor{Direction: dir, SourceID: int32(srcID), DestID: dstID})
		}
	}
	remap(protocol.Clientbound, newer, older, pair.RenamedClientbound, pair.DroppedClientbound)
	remap(protocol.Serverbound, older, newer, pair.RenamedServerbound, pair.DroppedServerbound)
	return errors.Join(errs...)
}
