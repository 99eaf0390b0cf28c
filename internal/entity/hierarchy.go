package entity

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownType   = errors.New("entity: unknown type")
	ErrInvalidFamily = errors.New("entity: invalid family tree")
)

// Abstract is the id carried by family-only types that never appear on the wire.
const Abstract int32 = -1

// Type is one entity type of a protocol version. Parent is empty for the root.
type Type struct {
	ID     int32
	Name   string
	Parent string
}

func (t Type) Concrete() bool { return t.ID >= 0 }

func (t Type) String() string {
	if !t.Concrete() {
		return t.Name + "(abstract)"
	}
	return fmt.Sprintf("%s(%d)", t.Name, t.ID)
}

type node struct {
	typ       Type
	ancestors []string
	families  map[string]struct{}
}

// Hierarchy is the immutable type tree of one protocol version.
type Hierarchy struct {
	version string
	byName  map[string]*node
	byID    map[int32]*node
}

// NewHierarchy validates types and precomputes every ancestor chain. Names
// and concrete ids must be unique, every parent must exist and the tree must
// not contain cycles.
func NewHierarchy(version string, types []Type) (*Hierarchy, error) {
	h := &Hierarchy{
		version: version,
		byName:  make(map[string]*node, len(types)),
		byID:    make(map[int32]*node, len(types)),
	}
	for _, t := range types {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: %s: empty type name", ErrInvalidFamily, version)
		}
		if _, dup := h.byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate type %q", ErrInvalidFamily, version, t.Name)
		}
		n := &node{typ: t}
		h.byName[t.Name] = n
		if !t.Concrete() {
			continue
		}
		if prev, dup := h.byID[t.ID]; dup {
			return nil, fmt.Errorf("%w: %s: id %d used by %q and %q", ErrInvalidFamily, version, t.ID, prev.typ.Name, t.Name)
		}
		h.byID[t.ID] = n
	}
	for _, n := range h.byName {
		chain := []string{n.typ.Name}
		seen := map[string]struct{}{n.typ.Name: {}}
		for parent := n.typ.Parent; parent != ""; {
			p, ok := h.byName[parent]
			if !ok {
				return nil, fmt.Errorf("%w: %s: %q has unknown parent %q", ErrInvalidFamily, version, n.typ.Name, parent)
			}
			if _, loop := seen[parent]; loop {
				return nil, fmt.Errorf("%w: %s: cycle through %q", ErrInvalidFamily, version, parent)
			}
			seen[parent] = struct{}{}
			chain = append(chain, parent)
			parent = p.typ.Parent
		}
		n.ancestors = chain
		n.families = seen
	}
	return h, nil
}

func (h *Hierarchy) Version() string { return h.version }

func (h *Hierarchy) Len() int { return len(h.byName) }

func (h *Hierarchy) ByID(id int32) (Type, bool) {
	n, ok := h.byID[id]
	if !ok {
		return Type{}, false
	}
	return n.typ, true
}

func (h *Hierarchy) ByName(name string) (Type, bool) {
	n, ok := h.byName[name]
	if !ok {
		return Type{}, false
	}
	return n.typ, true
}

// IsA reports whether name is family or descends from it.
func (h *Hierarchy) IsA(name, family string) bool {
	n, ok := h.byName[name]
	if !ok {
		return false
	}
	_, ok = n.families[family]
	return ok
}

// Ancestors returns the chain from name up to the root, name first.
func (h *Hierarchy) Ancestors(name string) []string {
	n, ok := h.byName[name]
	if !ok {
		return nil
	}
	out := make([]string, len(n.ancestors))
	copy(out, n.ancestors)
	return out
}

// Concrete lists the wire types ordered by id.
func (h *Hierarchy) Concrete() []Type {
	out := make([]Type, 0, len(h.byID))
	for _, n := range h.byID {
		out = append(out, n.typ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
