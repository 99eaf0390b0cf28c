// Package bridge chains version pairs into per-connection translation
// sessions and runs them on a single worker per connection.
package bridge

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/danmuck/backwire/internal/protocols"
	"github.com/rs/zerolog/log"
)

var (
	ErrDuplicatePair   = errors.New("bridge: duplicate version pair")
	ErrNoChain         = errors.New("bridge: no pair chain between versions")
	ErrUnknownProtocol = errors.New("bridge: unknown protocol number")
	ErrSessionClosed   = errors.New("bridge: session closed")
)

type Options struct {
	// Passthrough forwards packets whose id has no descriptor unchanged.
	// Without it they fail with an UnknownPacketError.
	Passthrough bool
}

// Engine holds the immutable set of version pairs shared by every session.
type Engine struct {
	pairs    []protocols.Pair
	byFrom   map[string]protocols.Pair
	versions map[int32]*semver.Version
	strict   bool
}

func NewEngine(pairs []protocols.Pair, opts Options) (*Engine, error) {
	e := &Engine{
		byFrom:   make(map[string]protocols.Pair, len(pairs)),
		versions: make(map[int32]*semver.Version, len(pairs)+1),
		strict:   !opts.Passthrough,
	}
	for _, p := range pairs {
		key := p.From().String()
		if prev, ok := e.byFrom[key]; ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicatePair, prev.Name(), p.Name())
		}
		e.byFrom[key] = p
		e.versions[p.FromProtocol()] = p.From()
		e.versions[p.ToProtocol()] = p.To()
		e.pairs = append(e.pairs, p)
	}
	sort.Slice(e.pairs, func(i, j int) bool {
		return e.pairs[i].From().GreaterThan(e.pairs[j].From())
	})
	log.Debug().Int("pairs", len(e.pairs)).Bool("strict", e.strict).Msg("bridge.NewEngine ready")
	return e, nil
}

func (e *Engine) Strict() bool { return e.strict }

// Pairs lists every registered pair, newest first.
func (e *Engine) Pairs() []protocols.Pair {
	out := make([]protocols.Pair, len(e.pairs))
	copy(out, e.pairs)
	return out
}

// Version resolves a handshake protocol number.
func (e *Engine) Version(protocolNumber int32) (*semver.Version, error) {
	v, ok := e.versions[protocolNumber]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownProtocol, protocolNumber)
	}
	return v, nil
}

// Protocol is the handshake protocol number of v.
func (e *Engine) Protocol(v *semver.Version) (int32, bool) {
	for proto, known := range e.versions {
		if known.Equal(v) {
			return proto, true
		}
	}
	return 0, false
}

// Chain walks contiguous pairs from server down to client. Equal versions
// give an empty chain.
func (e *Engine) Chain(server, client *semver.Version) ([]protocols.Pair, error) {
	if client.GreaterThan(server) {
		return nil, fmt.Errorf("%w: client %s is newer than server %s", ErrNoChain, client, server)
	}
	var chain []protocols.Pair
	cur := server
	for !cur.Equal(client) {
		p, ok := e.byFrom[cur.String()]
		if !ok || p.To().LessThan(client) {
			return nil, fmt.Errorf("%w: %s -> %s stops at %s", ErrNoChain, server, client, cur)
		}
		chain = append(chain, p)
		cur = p.To()
	}
	return chain, nil
}

// ChainNames parses both versions and returns Chain.
func (e *Engine) ChainNames(server, client string) ([]protocols.Pair, error) {
	s, err := semver.NewVersion(server)
	if err != nil {
		return nil, fmt.Errorf("bridge: server version %q: %w", server, err)
	}
	c, err := semver.NewVersion(client)
	if err != nil {
		return nil, fmt.Errorf("bridge: client version %q: %w", client, err)
	}
	return e.Chain(s, c)
}
