package conn

import (
	"github.com/google/uuid"
)

type keyID struct {
	name string
}

// Key names one capability slot holding a value of type T. Keys compare by
// identity: two keys created with the same name are distinct slots.
type Key[T any] struct {
	id *keyID
}

func NewKey[T any](name string) Key[T] {
	return Key[T]{id: &keyID{name: name}}
}

func (k Key[T]) String() string {
	if k.id == nil {
		return "<nil key>"
	}
	return k.id.name
}

// Store maps capability keys to attached state for one connection.
type Store struct {
	id     uuid.UUID
	values map[*keyID]any
	closed bool
}

func NewStore() *Store {
	return &Store{
		id:     uuid.New(),
		values: make(map[*keyID]any),
	}
}

func (s *Store) ID() uuid.UUID { return s.id }

// Len is the number of populated keys.
func (s *Store) Len() int { return len(s.values) }

func (s *Store) Closed() bool { return s.closed }

// Close discards every entry at once. A closed store reads as empty and
// ignores writes.
func (s *Store) Close() {
	s.values = nil
	s.closed = true
}

func Get[T any](s *Store, k Key[T]) (T, bool) {
	var zero T
	if s == nil || s.closed || k.id == nil {
		return zero, false
	}
	v, ok := s.values[k.id]
	if !ok {
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}

func Has[T any](s *Store, k Key[T]) bool {
	_, ok := Get(s, k)
	return ok
}

func Put[T any](s *Store, k Key[T], v T) {
	if s == nil || s.closed || k.id == nil {
		return
	}
	s.values[k.id] = v
}

func Remove[T any](s *Store, k Key[T]) {
	if s == nil || s.closed || k.id == nil {
		return
	}
	delete(s.values, k.id)
}
