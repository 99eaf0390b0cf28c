package nbt

import (
	"fmt"

	"github.com/danmuck/backwire/internal/protocol"
)

// List is a homogeneous sequence. An empty list may still declare an
// element kind; that kind is preserved on the wire.
type List struct {
	elem  Kind
	items []Tag
}

// NewList creates an empty list of elem kind. KindEnd leaves the element
// kind open until the first append.
func NewList(elem Kind) *List {
	return &List{elem: elem}
}

func (l *List) Kind() Kind { return KindList }

func (l *List) Elem() Kind { return l.elem }

func (l *List) Len() int { return len(l.items) }

func (l *List) At(i int) (Tag, bool) {
	if i < 0 || i >= len(l.items) {
		return nil, false
	}
	return l.items[i], true
}

// Append adds t, failing when t would make the list heterogeneous.
func (l *List) Append(t Tag) error {
	if err := l.accept(t, len(l.items)); err != nil {
		return err
	}
	if l.elem == KindEnd {
		l.elem = t.Kind()
	}
	l.items = append(l.items, t)
	return nil
}

// Set replaces the element at i under the same element-kind rule as Append.
func (l *List) Set(i int, t Tag) error {
	if i < 0 || i >= len(l.items) {
		return &protocol.SchemaViolationError{
			Path:   fmt.Sprintf("[%d]", i),
			Reason: fmt.Sprintf("index out of range (len %d)", len(l.items)),
		}
	}
	if err := l.accept(t, i); err != nil {
		return err
	}
	l.items[i] = t
	return nil
}

func (l *List) accept(t Tag, i int) error {
	if t == nil || t.Kind() == KindEnd {
		return &protocol.SchemaViolationError{Path: fmt.Sprintf("[%d]", i), Reason: "end tag is not a list element"}
	}
	if l.elem != KindEnd && t.Kind() != l.elem {
		return &protocol.SchemaViolationError{
			Path:   fmt.Sprintf("[%d]", i),
			Reason: fmt.Sprintf("list of %s cannot hold %s", l.elem, t.Kind()),
		}
	}
	return nil
}
