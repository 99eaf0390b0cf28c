package entity

import (
	"errors"
	"fmt"
)

var ErrFilterConfig = errors.New("entity: invalid filter")

// Action is applied to an entry that matched a filter. It may rewrite the
// entry in place, cancel it through the event or add extra entries.
type Action func(ev *Event, e *Entry) error

// Event is the per-entry context a filter action runs in.
type Event struct {
	EntityID int32
	// Declared is the entity's type as the newer version knows it. It is the
	// zero Type when the entity is not tracked.
	Declared  Type
	Tracked   bool
	cancelled bool
	extra     []Entry
}

func (ev *Event) Cancel() { ev.cancelled = true }

func (ev *Event) Cancelled() bool { return ev.cancelled }

// CreateExtra appends an entry to the outgoing list after the current one.
// Extra entries are not filtered again.
func (ev *Event) CreateExtra(e Entry) { ev.extra = append(ev.extra, e) }

type filter struct {
	valueType func(int32) bool
	index     func(uint8) bool
	family    string
	action    Action
}

// Chain is an immutable ordered list of metadata filters.
type Chain struct {
	types   *Hierarchy
	filters []filter
}

func (c *Chain) Len() int { return len(c.filters) }

func (c *Chain) matches(f *filter, ev *Event, e *Entry) bool {
	if f.valueType != nil && !f.valueType(e.Type) {
		return false
	}
	if f.family != "" {
		if !ev.Tracked || !c.types.IsA(ev.Declared.Name, f.family) {
			return false
		}
	}
	if f.index != nil && !f.index(e.Index) {
		return false
	}
	return true
}

// Apply runs every entry through the filters in registration order. A
// cancel drops the entry and stops evaluation for it; any other action lets
// later filters see the rewritten entry. entries is not modified.
func (c *Chain) Apply(ev Event, entries []Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	for _, in := range entries {
		e := in
		entryEv := ev
		entryEv.cancelled = false
		entryEv.extra = nil
		for i := range c.filters {
			f := &c.filters[i]
			if !c.matches(f, &entryEv, &e) {
				continue
			}
			if err := f.action(&entryEv, &e); err != nil {
				return nil, fmt.Errorf("entity %d index %d: %w", ev.EntityID, in.Index, err)
			}
			if entryEv.cancelled {
				break
			}
		}
		if !entryEv.cancelled {
			out = append(out, e)
		}
		out = append(out, entryEv.extra...)
	}
	return out, nil
}

// ChainBuilder accumulates filters for one Chain.
type ChainBuilder struct {
	types   *Hierarchy
	filters []filter
	errs    []error
}

// NewChain starts a chain whose family predicates resolve against types.
func NewChain(types *Hierarchy) *ChainBuilder {
	return &ChainBuilder{types: types}
}

func (b *ChainBuilder) Build() (*Chain, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	filters := make([]filter, len(b.filters))
	copy(filters, b.filters)
	return &Chain{types: b.types, filters: filters}, nil
}

// Filter starts a filter; it is registered by one of its action methods.
func (b *ChainBuilder) Filter() *FilterBuilder {
	return &FilterBuilder{chain: b}
}

// CancelIndexAbove drops every entry above max for entities of family.
func (b *ChainBuilder) CancelIndexAbove(family string, max uint8) *ChainBuilder {
	b.Filter().Family(family).IndexAbove(max).Cancel()
	return b
}

// FilterBuilder configures one filter. Predicates combine with AND.
type FilterBuilder struct {
	chain *ChainBuilder
	f     filter
}

func (fb *FilterBuilder) ValueType(id int32) *FilterBuilder {
	fb.f.valueType = func(t int32) bool { return t == id }
	return fb
}

// ValueTypeRange matches value type ids in [lo, hi].
func (fb *FilterBuilder) ValueTypeRange(lo, hi int32) *FilterBuilder {
	fb.f.valueType = func(t int32) bool { return t >= lo && t <= hi }
	return fb
}

func (fb *FilterBuilder) ValueTypeAtLeast(lo int32) *FilterBuilder {
	fb.f.valueType = func(t int32) bool { return t >= lo }
	return fb
}

// Family restricts the filter to tracked entities whose declared type is
// family or one of its descendants.
func (fb *FilterBuilder) Family(name string) *FilterBuilder {
	if _, ok := fb.chain.types.ByName(name); !ok {
		fb.chain.errs = append(fb.chain.errs, fmt.Errorf("%w: unknown family %q", ErrFilterConfig, name))
	}
	fb.f.family = name
	return fb
}

func (fb *FilterBuilder) Index(i uint8) *FilterBuilder {
	fb.f.index = func(x uint8) bool { return x == i }
	return fb
}

func (fb *FilterBuilder) IndexAbove(max uint8) *FilterBuilder {
	fb.f.index = func(x uint8) bool { return x > max }
	return fb
}

func (fb *FilterBuilder) IndexAtLeast(min uint8) *FilterBuilder {
	fb.f.index = func(x uint8) bool { return x >= min }
	return fb
}

func (fb *FilterBuilder) Handler(a Action) *ChainBuilder {
	if a == nil {
		fb.chain.errs = append(fb.chain.errs, fmt.Errorf("%w: nil action", ErrFilterConfig))
		return fb.chain
	}
	fb.f.action = a
	fb.chain.filters = append(fb.chain.filters, fb.f)
	return fb.chain
}

func (fb *FilterBuilder) Cancel() *ChainBuilder {
	return fb.Handler(func(ev *Event, _ *Entry) error {
		ev.Cancel()
		return nil
	})
}

// Remap rewrites the entry's value type id. The value must already be
// encoded identically under the new id.
func (fb *FilterBuilder) Remap(to int32) *ChainBuilder {
	return fb.RemapFunc(func(int32) int32 { return to })
}

func (fb *FilterBuilder) RemapFunc(fn func(int32) int32) *ChainBuilder {
	return fb.Handler(func(_ *Event, e *Entry) error {
		e.Type = fn(e.Type)
		return nil
	})
}

// AddIndex shifts every matching entry at or above index up by one, opening
// a slot the older version still reserves.
func (fb *FilterBuilder) AddIndex(index uint8) *ChainBuilder {
	return fb.Handler(func(_ *Event, e *Entry) error {
		if e.Index >= index {
			if e.Index == EndOfMetadata-1 {
				return fmt.Errorf("%w: index %d cannot shift past the terminator", ErrFilterConfig, e.Index)
			}
			e.Index++
		}
		return nil
	})
}
