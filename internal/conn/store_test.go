package conn

import (
	"testing"

	"github.com/danmuck/backwire/internal/testutil/testlog"
)

type window struct {
	Inventory string
	EntityID  int32
}

func TestStoreGetPutRemove(t *testing.T) {
	testlog.Start(t)
	s := NewStore()
	k := NewKey[*window]("window")

	if _, ok := Get(s, k); ok {
		t.Fatalf("fresh store must be empty")
	}
	Put(s, k, &window{Inventory: "EntityHorse", EntityID: 7})
	w, ok := Get(s, k)
	if !ok || w.EntityID != 7 {
		t.Fatalf("unexpected value: %+v ok=%v", w, ok)
	}
	if !Has(s, k) || s.Len() != 1 {
		t.Fatalf("expected one populated key, len=%d", s.Len())
	}
	Remove(s, k)
	if Has(s, k) {
		t.Fatalf("removed key still present")
	}
}

func TestKeysWithSameNameAreDistinct(t *testing.T) {
	testlog.Start(t)
	s := NewStore()
	a := NewKey[int]("tracker")
	b := NewKey[int]("tracker")
	Put(s, a, 1)
	if _, ok := Get(s, b); ok {
		t.Fatalf("distinct keys must not alias")
	}
	if a.String() != "tracker" {
		t.Fatalf("unexpected key name %q", a.String())
	}
}

func TestStoresAreIsolated(t *testing.T) {
	testlog.Start(t)
	k := NewKey[string]("world")
	s1, s2 := NewStore(), NewStore()
	Put(s1, k, "minecraft:overworld")
	if _, ok := Get(s2, k); ok {
		t.Fatalf("state leaked across connections")
	}
	if s1.ID() == s2.ID() {
		t.Fatalf("store ids must be unique")
	}
}

func TestCloseDiscardsEverything(t *testing.T) {
	testlog.Start(t)
	s := NewStore()
	k := NewKey[string]("world")
	Put(s, k, "minecraft:overworld")
	s.Close()
	if _, ok := Get(s, k); ok || s.Len() != 0 || !s.Closed() {
		t.Fatalf("closed store must read empty")
	}
	Put(s, k, "minecraft:the_end")
	if _, ok := Get(s, k); ok {
		t.Fatalf("closed store must ignore writes")
	}
}

func TestTxAppliesOnlyOnCommit(t *testing.T) {
	testlog.Start(t)
	s := NewStore()
	k := NewKey[int]("counter")
	Put(s, k, 1)

	tx := s.Begin()
	tx.Stage(func(s *Store) { Put(s, k, 2) })
	tx.Stage(func(s *Store) {
		v, _ := Get(s, k)
		Put(s, k, v*10)
	})
	if v, _ := Get(tx.Store(), k); v != 1 {
		t.Fatalf("staged write visible before commit: %d", v)
	}
	if tx.Pending() != 2 {
		t.Fatalf("unexpected pending=%d", tx.Pending())
	}
	tx.Commit()
	if v, _ := Get(s, k); v != 20 {
		t.Fatalf("commit order not preserved: %d", v)
	}
	tx.Commit()
	if v, _ := Get(s, k); v != 20 {
		t.Fatalf("double commit re-applied: %d", v)
	}

	discarded := s.Begin()
	discarded.Stage(func(s *Store) { Put(s, k, 99) })
	discarded.Discard()
	discarded.Commit()
	if v, _ := Get(s, k); v != 20 {
		t.Fatalf("discarded tx mutated store: %d", v)
	}
}
