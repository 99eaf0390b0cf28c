package proxy

import (
	"context"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog/log"
)

// Backoff spaces upstream dial attempts.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2,
		Jitter:       true,
	}
}

// Delay returns the wait before attempt N (1-based).
func (b Backoff) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || b.InitialDelay <= 0 {
		return b.InitialDelay
	}
	mult := b.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	delay := float64(b.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

// dialUpstream tries up to attempts times, waiting Backoff between tries.
func (p *Proxy) dialUpstream(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: p.cfg.DialTimeout}
	attempts := p.cfg.DialAttempts
	if attempts <= 0 {
		attempts = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		c, err := dialer.DialContext(ctx, "tcp", p.cfg.Upstream)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := p.cfg.Backoff.Delay(attempt, rng)
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Str("upstream", p.cfg.Upstream).
			Msg("proxy upstream dial retry")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}
