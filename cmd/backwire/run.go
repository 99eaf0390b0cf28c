package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/danmuck/backwire/internal/admin"
	"github.com/danmuck/backwire/internal/bridge"
	"github.com/danmuck/backwire/internal/config"
	"github.com/danmuck/backwire/internal/logging"
	"github.com/danmuck/backwire/internal/protocol/frame"
	"github.com/danmuck/backwire/internal/proxy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const heartbeatInterval = 30 * time.Second

// applyLogLevel honours the config level unless the env override is set.
func applyLogLevel(raw string) {
	if os.Getenv(logging.EnvLogLevel) != "" {
		return
	}
	if lvl, ok := logging.ParseLevel(raw); ok {
		zerolog.SetGlobalLevel(lvl)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	engine, err := bridge.NewDefaultEngine(bridge.Options{Passthrough: cfg.Passthrough})
	if err != nil {
		return err
	}
	p, err := proxy.New(engine, proxy.Config{
		Upstream:      cfg.Upstream,
		ServerVersion: cfg.ServerVersion,
		Limits:        frame.Limits{MaxFrameBytes: cfg.MaxFrameBytes},
		DialTimeout:   cfg.DialTimeout,
		DialAttempts:  cfg.DialAttempts,
		Backoff:       proxy.DefaultBackoff(),
		Worker: bridge.WorkerOptions{
			Buffer:   cfg.WorkerBuffer,
			FailFast: cfg.FailFast,
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	proxyErr := make(chan error, 1)
	adminErr := make(chan error, 1)
	go func() {
		proxyErr <- p.ListenAndServe(ctx, cfg.Listen)
	}()
	if strings.TrimSpace(cfg.Admin.Addr) != "" {
		srv := admin.New(admin.Options{
			ID:          cfg.Name,
			CorsOrigins: cfg.Admin.CorsOrigins,
			Token:       cfg.Admin.Token,
		}, engine, p)
		go func() {
			adminErr <- srv.Serve(ctx, cfg.Admin.Addr)
		}()
	}

	log.Info().
		Str("name", cfg.Name).
		Str("listen", cfg.Listen).
		Str("upstream", cfg.Upstream).
		Str("server_version", cfg.ServerVersion).
		Int("pairs", len(engine.Pairs())).
		Bool("passthrough", cfg.Passthrough).
		Msg("backwire.run ready")

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("backwire.run shutdown")
			return nil
		case err := <-proxyErr:
			return err
		case err := <-adminErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
			log.Info().Int64("connections", p.Active()).Msg("backwire.run heartbeat")
		}
	}
}
