package bridge

import (
	"time"

	"github.com/danmuck/backwire/internal/conn"
	"github.com/danmuck/backwire/internal/observability"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocols"
	"github.com/rs/zerolog/log"
)

// Session is one connection's view of the engine: its store and the chain
// of pairs between the server and client versions. A Session is owned by a
// single goroutine.
type Session struct {
	store  *conn.Store
	chain  []protocols.Pair
	strict bool
}

// NewSession attaches chain to store, creating a store when nil, and runs
// each pair's Init.
func (e *Engine) NewSession(chain []protocols.Pair, store *conn.Store) *Session {
	if store == nil {
		store = conn.NewStore()
	}
	for _, p := range chain {
		p.Init(store)
	}
	log.Debug().
		Str("session", store.ID().String()).
		Int("pairs", len(chain)).
		Msg("bridge.NewSession attached")
	return &Session{store: store, chain: chain, strict: e.strict}
}

func (s *Session) Store() *conn.Store { return s.store }

func (s *Session) Chain() []protocols.Pair { return s.chain }

func (s *Session) Close() { s.store.Close() }

// Translate runs p through the chain: clientbound from the server's pair
// down, serverbound from the client's pair up. Packets a pair emits run
// through the remaining pairs too. The first packet of every stage is the
// one descended from p; if any pair cancels it the whole translation is
// cancelled, dropping every emitted packet and every staged store mutation.
// A cancelled emitted packet drops only itself. Store mutations commit only
// when p survives every pair; a nil slice with nil error means p was
// cancelled.
func (s *Session) Translate(dir protocol.Direction, p pipeline.Packet) ([]pipeline.Packet, error) {
	if s.store.Closed() {
		return nil, ErrSessionClosed
	}
	tx := s.store.Begin()
	packets := []pipeline.Packet{p}
	for i := range s.chain {
		pair := s.chain[i]
		if dir == protocol.Serverbound {
			pair = s.chain[len(s.chain)-1-i]
		}
		next := make([]pipeline.Packet, 0, len(packets))
		for j, pkt := range packets {
			start := time.Now()
			res, err := pair.Registry().Translate(dir, pkt, tx, s.strict)
			elapsed := time.Since(start)
			if err != nil {
				observability.RecordTranslation(pair.Name(), dir.String(), observability.OutcomeFailed, elapsed)
				tx.Discard()
				return nil, err
			}
			if res.Cancelled {
				observability.RecordTranslation(pair.Name(), dir.String(), observability.OutcomeCancelled, elapsed)
				if j == 0 {
					tx.Discard()
					return nil, nil
				}
				continue
			}
			observability.RecordTranslation(pair.Name(), dir.String(), observability.OutcomeTranslated, elapsed)
			next = append(next, res.Packets...)
		}
		packets = next
	}
	tx.Commit()
	return packets, nil
}
