package v1011to1010

import (
	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol/codec"
)

// horseWindow is the window type that carries a trailing entity id.
const horseWindow = "EntityHorse"

// Window is the connection's open window. EntityID is -1 unless the window
// belongs to a horse.
type Window struct {
	ID        uint8
	Inventory string
	EntityID  int32
}

func (w Window) Horse() bool { return w.EntityID != -1 }

type windowTracker struct {
	key   conn.Key[*Window]
	types map[string]string
}

func newWindowTracker(types map[string]string) *windowTracker {
	return &windowTracker{
		key:   conn.NewKey[*Window](Newer + "->" + Older + ".window"),
		types: types,
	}
}

func (t *windowTracker) init(s *conn.Store) {
	conn.Remove(s, t.key)
}

// Window returns the window the client has open, if any.
func (p *Protocol) Window(s *conn.Store) (Window, bool) {
	w, ok := conn.Get(s, p.windows.key)
	if !ok || w == nil {
		return Window{}, false
	}
	return *w, true
}

func (t *windowTracker) open() []pipeline.Op {
	return []pipeline.Op{
		pipeline.Map(codec.UByte),     // window id
		pipeline.Map(codec.String),    // window type
		pipeline.Map(codec.Component), // title
		pipeline.Map(codec.UByte),     // slot count
		pipeline.Handler(func(w *pipeline.Wrapper) error {
			id, err := pipeline.Value[uint8](w, 0)
			if err != nil {
				return err
			}
			inventory, err := pipeline.Value[string](w, 1)
			if err != nil {
				return err
			}
			window := &Window{ID: id, Inventory: inventory, EntityID: -1}
			if inventory == horseWindow {
				v, err := w.Passthrough(codec.Int)
				if err != nil {
					return err
				}
				window.EntityID = v.(int32)
			}
			if older, ok := t.types[inventory]; ok {
				if err := w.Set(1, older); err != nil {
					return err
				}
			}
			w.Stage(func(s *conn.Store) { conn.Put(s, t.key, window) })
			return nil
		}),
	}
}

func (t *windowTracker) close() []pipeline.Op {
	return []pipeline.Op{
		pipeline.Map(codec.UByte),
		pipeline.Handler(func(w *pipeline.Wrapper) error {
			w.Stage(func(s *conn.Store) { conn.Remove(s, t.key) })
			return nil
		}),
	}
}
