package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/backwire/internal/config"
	"github.com/danmuck/backwire/internal/logging"
)

func main() {
	path := flag.String("config", "", "path to a backwire TOML config (defaults when empty)")
	flag.Parse()

	logging.ConfigureRuntime()
	cfg, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backwire: %v\n", err)
		os.Exit(1)
	}
	applyLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "backwire: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg := config.DefaultConfig()
		return cfg, config.Validate(cfg)
	}
	return config.Load(path)
}
