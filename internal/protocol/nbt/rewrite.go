package nbt

import (
	"fmt"
	"iter"

	"github.com/danmuck/backwire/internal/protocol"
)

// Get walks path from node. Path elements are string keys for compounds and
// int indices for lists.
func Get(node Tag, path ...any) (Tag, bool) {
	cur := node
	for _, step := range path {
		switch k := step.(type) {
		case string:
			c, ok := cur.(*Compound)
			if !ok {
				return nil, false
			}
			next, ok := c.Get(k)
			if !ok {
				return nil, false
			}
			cur = next
		case int:
			l, ok := cur.(*List)
			if !ok {
				return nil, false
			}
			next, ok := l.At(k)
			if !ok {
				return nil, false
			}
			cur = next
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// GetCompound is Get narrowed to a compound result.
func GetCompound(node Tag, path ...any) (*Compound, bool) {
	t, ok := Get(node, path...)
	if !ok {
		return nil, false
	}
	c, ok := t.(*Compound)
	return c, ok
}

// Remove deletes key from c; siblings keep their order and values.
func Remove(c *Compound, key string) bool {
	return c.Remove(key)
}

// Put stores t under key in c.
func Put(c *Compound, key string, t Tag) {
	c.Put(key, t)
}

// ForEach yields the list elements lazily. The sequence is single-pass: it
// yields nothing once it has been ranged over; call ForEach again to
// re-iterate.
func ForEach(l *List) iter.Seq[Tag] {
	used := false
	return func(yield func(Tag) bool) {
		if used {
			return
		}
		used = true
		for i := 0; i < len(l.items); i++ {
			if !yield(l.items[i]) {
				return
			}
		}
	}
}

// ReplaceInPlace swaps the value held by leaf. The new value must have the
// same kind as the leaf.
func ReplaceInPlace(leaf *Leaf, v any) error {
	kind, ok := leafKind(v)
	if !ok {
		return &protocol.SchemaViolationError{Reason: fmt.Sprintf("unsupported leaf value %T", v)}
	}
	if kind != leaf.kind {
		return &protocol.SchemaViolationError{
			Reason: fmt.Sprintf("cannot replace %s leaf with %s", leaf.kind, kind),
		}
	}
	leaf.value = v
	return nil
}

// Clone deep-copies a tree.
func Clone(t Tag) Tag {
	switch v := t.(type) {
	case *Compound:
		out := NewCompound()
		for _, k := range v.keys {
			out.Put(k, Clone(v.vals[k]))
		}
		return out
	case *List:
		out := &List{elem: v.elem, items: make([]Tag, len(v.items))}
		for i, item := range v.items {
			out.items[i] = Clone(item)
		}
		return out
	case *Leaf:
		switch a := v.value.(type) {
		case []byte:
			return &Leaf{kind: v.kind, value: append([]byte(nil), a...)}
		case []int32:
			return &Leaf{kind: v.kind, value: append([]int32(nil), a...)}
		case []int64:
			return &Leaf{kind: v.kind, value: append([]int64(nil), a...)}
		default:
			return &Leaf{kind: v.kind, value: v.value}
		}
	default:
		return t
	}
}
