package entity

import (
	"errors"
	"fmt"

	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol/codec"
	"github.com/rs/zerolog/log"
)

// RewriterConfig wires a Rewriter for one version pair.
type RewriterConfig struct {
	Name       string
	Resolver   *Resolver
	Chain      *Chain
	SourceMeta *ValueTypes
	DestMeta   *ValueTypes
	// MetadataPacketID is the older version's entity metadata packet id,
	// used for the packet carrying spawn entries.
	MetadataPacketID int32
}

// Rewriter builds the entity packet handlers of one version pair. It is
// immutable and shared by every connection; per-connection state lives in a
// Tracker stored under the rewriter's own key.
type Rewriter struct {
	name     string
	resolver *Resolver
	chain    *Chain
	srcList  codec.Codec
	dstList  codec.Codec
	metaID   int32
	key      conn.Key[*Tracker]
}

func NewRewriter(cfg RewriterConfig) (*Rewriter, error) {
	switch {
	case cfg.Resolver == nil:
		return nil, errors.New("entity: rewriter needs a resolver")
	case cfg.Chain == nil:
		return nil, errors.New("entity: rewriter needs a filter chain")
	case cfg.SourceMeta == nil || cfg.DestMeta == nil:
		return nil, errors.New("entity: rewriter needs both value type tables")
	}
	return &Rewriter{
		name:     cfg.Name,
		resolver: cfg.Resolver,
		chain:    cfg.Chain,
		srcList:  cfg.SourceMeta.ListCodec(),
		dstList:  cfg.DestMeta.ListCodec(),
		metaID:   cfg.MetadataPacketID,
		key:      conn.NewKey[*Tracker](cfg.Name + ".entities"),
	}, nil
}

// Init installs an empty tracker in a new connection's store.
func (rw *Rewriter) Init(s *conn.Store) {
	conn.Put(s, rw.key, NewTracker())
}

// Tracker returns the connection's tracker, if Init ran.
func (rw *Rewriter) Tracker(s *conn.Store) (*Tracker, bool) {
	return conn.Get(s, rw.key)
}

func (rw *Rewriter) tracker(s *conn.Store) *Tracker {
	t, ok := conn.Get(s, rw.key)
	if !ok {
		t = NewTracker()
		conn.Put(s, rw.key, t)
	}
	return t
}

// SpawnTracker handles a spawn packet whose body starts with
// VarInt entity id, UUID, VarInt type. The type id is rewritten to its
// fallback, the entity is tracked and spawn entries are sent in a metadata
// packet right after the spawn. Types with no fallback are cancelled.
func (rw *Rewriter) SpawnTracker() []pipeline.Op {
	return []pipeline.Op{
		pipeline.Map(codec.VarInt),
		pipeline.Map(codec.UUID),
		pipeline.Map(codec.VarInt),
		pipeline.Handler(rw.handleSpawn),
	}
}

func (rw *Rewriter) handleSpawn(w *pipeline.Wrapper) error {
	id, err := pipeline.Value[int32](w, 0)
	if err != nil {
		return err
	}
	typeID, err := pipeline.Value[int32](w, 2)
	if err != nil {
		return err
	}
	declared, ok := rw.resolver.Source().ByID(typeID)
	if !ok {
		return fmt.Errorf("%w: id %d in %s", ErrUnknownType, typeID, rw.resolver.Source().Version())
	}
	res, ok := rw.resolver.Resolve(typeID)
	if !ok {
		log.Debug().
			Str("rewriter", rw.name).
			Int32("entity", id).
			Str("type", declared.Name).
			Msg("entity.Spawn suppressed")
		w.Cancel()
		return nil
	}
	if err := w.Set(2, res.Type.ID); err != nil {
		return err
	}
	if len(res.Spawn) > 0 {
		body := codec.NewWriter()
		body.VarInt(id)
		if err := rw.dstList.Encode(body, res.Spawn); err != nil {
			return err
		}
		w.Emit(rw.metaID, body.Bytes())
	}
	w.Stage(func(s *conn.Store) {
		rec := rw.tracker(s).Track(id, declared, res.Type)
		rec.Merge(res.Spawn)
	})
	return nil
}

// RemoveEntities forgets every id in a VarInt-array remove packet.
func (rw *Rewriter) RemoveEntities() []pipeline.Op {
	return []pipeline.Op{
		pipeline.Map(codec.VarIntArray),
		pipeline.Handler(func(w *pipeline.Wrapper) error {
			ids, err := pipeline.Value[[]int32](w, 0)
			if err != nil {
				return err
			}
			w.Stage(func(s *conn.Store) { rw.tracker(s).Remove(ids...) })
			return nil
		}),
	}
}

// Metadata filters a metadata packet (VarInt entity id, metadata list) and
// merges the result into the entity's record. A non-empty update whose
// entries were all dropped is cancelled.
func (rw *Rewriter) Metadata() []pipeline.Op {
	return []pipeline.Op{
		pipeline.Map(codec.VarInt),
		pipeline.MapTo(rw.srcList, rw.dstList),
		pipeline.Handler(rw.handleMetadata),
	}
}

func (rw *Rewriter) handleMetadata(w *pipeline.Wrapper) error {
	id, err := pipeline.Value[int32](w, 0)
	if err != nil {
		return err
	}
	entries, err := pipeline.Value[[]Entry](w, 1)
	if err != nil {
		return err
	}
	ev := Event{EntityID: id}
	if t, ok := conn.Get(w.Store(), rw.key); ok {
		if rec, ok := t.Entity(id); ok {
			ev.Declared = rec.Declared
			ev.Tracked = true
		}
	}
	out, err := rw.chain.Apply(ev, entries)
	if err != nil {
		return err
	}
	if len(out) == 0 && len(entries) > 0 {
		w.Cancel()
		return nil
	}
	if err := w.Set(1, out); err != nil {
		return err
	}
	if ev.Tracked {
		w.Stage(func(s *conn.Store) {
			if rec, ok := rw.tracker(s).Entity(id); ok {
				rec.Merge(out)
			}
		})
	}
	return nil
}
