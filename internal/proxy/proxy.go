// Package proxy carries client connections to one upstream server and runs
// every play packet through the bridge.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/danmuck/backwire/internal/bridge"
	"github.com/danmuck/backwire/internal/observability"
	"github.com/danmuck/backwire/internal/pipeline"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/danmuck/backwire/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Upstream      string
	ServerVersion string
	Limits        frame.Limits
	DialTimeout   time.Duration
	DialAttempts  int
	Backoff       Backoff
	Worker        bridge.WorkerOptions
}

// Proxy accepts clients and bridges each one to Upstream.
type Proxy struct {
	cfg         Config
	engine      *bridge.Engine
	server      *semver.Version
	serverProto int32
	active      atomic.Int64
}

func New(engine *bridge.Engine, cfg Config) (*Proxy, error) {
	if strings.TrimSpace(cfg.Upstream) == "" {
		return nil, errors.New("proxy: upstream address is required")
	}
	server, err := semver.NewVersion(cfg.ServerVersion)
	if err != nil {
		return nil, fmt.Errorf("proxy: server version %q: %w", cfg.ServerVersion, err)
	}
	proto, ok := engine.Protocol(server)
	if !ok {
		return nil, fmt.Errorf("proxy: server version %s has no pairs", server)
	}
	if cfg.Limits.MaxFrameBytes <= 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Proxy{cfg: cfg, engine: engine, server: server, serverProto: proto}, nil
}

// Active is the number of open client connections.
func (p *Proxy) Active() int64 { return p.active.Load() }

func (p *Proxy) ServerVersion() *semver.Version { return p.server }

func (p *Proxy) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return err
	}
	return p.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done.
func (p *Proxy) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("upstream", p.cfg.Upstream).
		Str("server", p.server.Original()).
		Msg("proxy.Serve listening")

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		client, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.handle(ctx, client)
		}()
	}
}

func (p *Proxy) handle(ctx context.Context, client net.Conn) {
	defer client.Close()
	remote := client.RemoteAddr().String()
	active := p.active.Add(1)
	observability.ConnectionOpened()
	log.Info().Str("remote", remote).Int64("active", active).Msg("proxy client connected")
	defer func() {
		remaining := p.active.Add(-1)
		observability.ConnectionClosed()
		log.Info().Str("remote", remote).Int64("active", remaining).Msg("proxy client disconnected")
	}()

	upstream, err := p.dialUpstream(ctx)
	if err != nil {
		log.Error().Err(err).Str("upstream", p.cfg.Upstream).Msg("proxy upstream dial failed")
		return
	}
	defer upstream.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tr := newTranslator(p.engine, p.server, p.serverProto)
	opts := p.cfg.Worker
	opts.Fatal = func(err error) bool { return errors.Is(err, ErrRejected) }
	w := bridge.NewWorker(tr, func(dir protocol.Direction, pkt pipeline.Packet) error {
		dst := client
		if dir == protocol.Serverbound {
			dst = upstream
		}
		return frame.WriteFrame(dst, frame.Frame{ID: pkt.ID, Body: pkt.Body}, p.cfg.Limits)
	}, opts)

	var pumps sync.WaitGroup
	pumps.Add(2)
	go p.pump(ctx, cancel, &pumps, w, client, protocol.Serverbound)
	go p.pump(ctx, cancel, &pumps, w, upstream, protocol.Clientbound)
	go func() {
		<-ctx.Done()
		_ = client.Close()
		_ = upstream.Close()
	}()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("remote", remote).Str("phase", tr.Phase().String()).Msg("proxy connection ended")
	}
	cancel()
	pumps.Wait()
}

// pump reads frames from src and queues them on the worker.
func (p *Proxy) pump(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, w *bridge.Worker, src net.Conn, dir protocol.Direction) {
	defer wg.Done()
	defer cancel()
	for {
		f, err := frame.ReadFrame(src, p.cfg.Limits)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Stringer("direction", dir).Msg("proxy read failed")
			}
			return
		}
		observability.RecordFrame(dir.String())
		if err := w.Submit(ctx, dir, pipeline.Packet{ID: f.ID, Body: f.Body}); err != nil {
			return
		}
	}
}
