package entity

import (
	"fmt"
)

// Mapping forces From (a newer type) onto To (an older type) and attaches
// spawn entries, given in the older version's value type ids.
type Mapping struct {
	From  string
	To    string
	Spawn []Entry
}

// Resolution is the older-version stand-in for a declared type.
type Resolution struct {
	Type   Type
	Spawn  []Entry
	Mapped bool
}

// Resolver answers declared type → fallback type with a precomputed table.
type Resolver struct {
	src, dst *Hierarchy
	table    map[int32]Resolution
}

// NewResolver precomputes the fallback of every concrete source type:
// an explicit mapping first, otherwise the nearest ancestor (self included)
// that is concrete in dst. Types without either are suppressed.
func NewResolver(src, dst *Hierarchy, mappings []Mapping) (*Resolver, error) {
	explicit := make(map[string]Mapping, len(mappings))
	for _, m := range mappings {
		if _, ok := src.ByName(m.From); !ok {
			return nil, fmt.Errorf("%w: mapping from %q not in %s", ErrUnknownType, m.From, src.Version())
		}
		to, ok := dst.ByName(m.To)
		if !ok || !to.Concrete() {
			return nil, fmt.Errorf("%w: mapping target %q not concrete in %s", ErrUnknownType, m.To, dst.Version())
		}
		if _, dup := explicit[m.From]; dup {
			return nil, fmt.Errorf("%w: %q mapped twice", ErrInvalidFamily, m.From)
		}
		explicit[m.From] = m
	}

	r := &Resolver{src: src, dst: dst, table: make(map[int32]Resolution)}
	for _, t := range src.Concrete() {
		if m, ok := explicit[t.Name]; ok {
			to, _ := dst.ByName(m.To)
			spawn := make([]Entry, len(m.Spawn))
			copy(spawn, m.Spawn)
			r.table[t.ID] = Resolution{Type: to, Spawn: spawn, Mapped: true}
			continue
		}
		for _, name := range src.Ancestors(t.Name) {
			if to, ok := dst.ByName(name); ok && to.Concrete() {
				r.table[t.ID] = Resolution{Type: to, Mapped: name != t.Name}
				break
			}
		}
	}
	return r, nil
}

// Resolve returns the fallback for a source type id. ok is false when the
// type has no stand-in and must be suppressed.
func (r *Resolver) Resolve(id int32) (Resolution, bool) {
	res, ok := r.table[id]
	if !ok {
		return Resolution{}, false
	}
	res.Spawn = append([]Entry(nil), res.Spawn...)
	return res, true
}

func (r *Resolver) Source() *Hierarchy { return r.src }

func (r *Resolver) Dest() *Hierarchy { return r.dst }
