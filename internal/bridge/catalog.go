package bridge

import (
	"github.com/danmuck/backwire/internal/protocols"
	"github.com/danmuck/backwire/internal/protocols/v1011to1010"
	"github.com/danmuck/backwire/internal/protocols/v1194to1193"
)

// DefaultPairs builds every pair shipped with backwire.
func DefaultPairs() ([]protocols.Pair, error) {
	p1194, err := v1194to1193.New()
	if err != nil {
		return nil, err
	}
	p1011, err := v1011to1010.New()
	if err != nil {
		return nil, err
	}
	return []protocols.Pair{p1194, p1011}, nil
}

// NewDefaultEngine is NewEngine over DefaultPairs.
func NewDefaultEngine(opts Options) (*Engine, error) {
	pairs, err := DefaultPairs()
	if err != nil {
		return nil, err
	}
	return NewEngine(pairs, opts)
}
