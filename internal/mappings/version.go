package mappings

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/danmuck/backwire/internal/entity"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/pelletier/go-toml/v2"
)

//go:embed data/*.toml
var files embed.FS

var ErrUnknownVersion = errors.New("mappings: unknown version")

type packetTable struct {
	Clientbound []string `toml:"clientbound"`
	Serverbound []string `toml:"serverbound"`
}

// Version is the table set of one protocol version.
type Version struct {
	Name        string      `toml:"name"`
	Protocol    int32       `toml:"protocol"`
	EntityTypes []string    `toml:"entity_types"`
	MetaTypes   []string    `toml:"meta_types"`
	Particles   []string    `toml:"particles"`
	Packets     packetTable `toml:"packets"`

	ids map[protocol.Direction]map[string]int32
}

type familyTable struct {
	Abstract []string          `toml:"abstract"`
	Parents  map[string]string `toml:"parents"`
}

var (
	cacheMu  sync.Mutex
	versions = map[string]*Version{}
	families *familyTable
)

func decode(name string, out any) error {
	data, err := files.ReadFile("data/" + name)
	if err != nil {
		return err
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("mappings parse failed (%s): %w", name, err)
	}
	return nil
}

// Load returns the tables of version name. Results are cached and must be
// treated as read-only.
func Load(name string) (*Version, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if v, ok := versions[name]; ok {
		return v, nil
	}
	var v Version
	if err := decode(name+".toml", &v); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, name)
		}
		return nil, err
	}
	if v.Name != name {
		return nil, fmt.Errorf("mappings: %s.toml declares version %q", name, v.Name)
	}
	v.ids = map[protocol.Direction]map[string]int32{
		protocol.Clientbound: index(v.Packets.Clientbound),
		protocol.Serverbound: index(v.Packets.Serverbound),
	}
	if len(v.ids[protocol.Clientbound]) != len(v.Packets.Clientbound) ||
		len(v.ids[protocol.Serverbound]) != len(v.Packets.Serverbound) {
		return nil, fmt.Errorf("mappings: %s lists a packet name twice", name)
	}
	versions[name] = &v
	return &v, nil
}

// Versions lists every embedded version name.
func Versions() []string {
	entries, _ := fs.Glob(files, "data/*.toml")
	var out []string
	for _, e := range entries {
		base := strings.TrimSuffix(strings.TrimPrefix(e, "data/"), ".toml")
		if base == "families" || strings.Contains(base, "-") {
			continue
		}
		out = append(out, base)
	}
	sort.Strings(out)
	return out
}

func index(names []string) map[string]int32 {
	out := make(map[string]int32, len(names))
	for i, n := range names {
		out[n] = int32(i)
	}
	return out
}

func (v *Version) PacketID(dir protocol.Direction, name string) (int32, bool) {
	id, ok := v.ids[dir][name]
	return id, ok
}

// MustPacketID panics when name is not in the table; for wiring code that
// runs once at startup against embedded data.
func (v *Version) MustPacketID(dir protocol.Direction, name string) int32 {
	id, ok := v.PacketID(dir, name)
	if !ok {
		panic(fmt.Sprintf("mappings: %s has no %s packet %q", v.Name, dir, name))
	}
	return id
}

func (v *Version) PacketName(dir protocol.Direction, id int32) (string, bool) {
	names := v.Packets.Clientbound
	if dir == protocol.Serverbound {
		names = v.Packets.Serverbound
	}
	if id < 0 || int(id) >= len(names) {
		return "", false
	}
	return names[id], true
}

// PacketNames lists the packets of dir in id order.
func (v *Version) PacketNames(dir protocol.Direction) []string {
	if dir == protocol.Serverbound {
		return append([]string(nil), v.Packets.Serverbound...)
	}
	return append([]string(nil), v.Packets.Clientbound...)
}

func loadFamilies() (*familyTable, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if families != nil {
		return families, nil
	}
	var f familyTable
	if err := decode("families.toml", &f); err != nil {
		return nil, err
	}
	families = &f
	return families, nil
}

// Entities builds the version's type hierarchy from its concrete types and
// the shared family tree.
func (v *Version) Entities() (*entity.Hierarchy, error) {
	if len(v.EntityTypes) == 0 {
		return nil, fmt.Errorf("mappings: %s has no entity types", v.Name)
	}
	fam, err := loadFamilies()
	if err != nil {
		return nil, err
	}
	parent := func(name string) string {
		if p, ok := fam.Parents[name]; ok {
			return p
		}
		if name == "entity" {
			return ""
		}
		return "entity"
	}
	types := make([]entity.Type, 0, len(fam.Abstract)+len(v.EntityTypes))
	concrete := make(map[string]struct{}, len(v.EntityTypes))
	for i, name := range v.EntityTypes {
		concrete[name] = struct{}{}
		types = append(types, entity.Type{ID: int32(i), Name: name, Parent: parent(name)})
	}
	for _, name := range fam.Abstract {
		if _, ok := concrete[name]; ok {
			continue
		}
		types = append(types, entity.Type{ID: entity.Abstract, Name: name, Parent: parent(name)})
	}
	return entity.NewHierarchy(v.Name, types)
}

// ValueTypes builds the version's metadata value type table.
func (v *Version) ValueTypes() (*entity.ValueTypes, error) {
	if len(v.MetaTypes) == 0 {
		return nil, fmt.Errorf("mappings: %s has no metadata value types", v.Name)
	}
	return entity.NewValueTypes(v.Name, v.MetaTypes, entity.NewParticles(v.Particles))
}
