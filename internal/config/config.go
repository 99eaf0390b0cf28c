package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/danmuck/backwire/internal/logging"
)

var ErrInvalidConfig = errors.New("config: invalid")

type AdminConfig struct {
	Addr        string
	CorsOrigins []string
	// Token, when set, is required as a bearer token on every admin route
	// except /healthz.
	Token string
}

// Config is the runtime configuration of one backwire proxy.
type Config struct {
	Name          string
	Listen        string
	Upstream      string
	ServerVersion string
	Passthrough   bool
	FailFast      bool
	MaxFrameBytes int
	WorkerBuffer  int
	DialTimeout   time.Duration
	DialAttempts  int
	LogLevel      string
	Admin         AdminConfig
}

func DefaultConfig() Config {
	return Config{
		Name:          "backwire",
		Listen:        ":25566",
		Upstream:      "127.0.0.1:25565",
		ServerVersion: "1.19.4",
		MaxFrameBytes: 2 * 1024 * 1024,
		WorkerBuffer:  64,
		DialTimeout:   5 * time.Second,
		DialAttempts:  3,
		LogLevel:      "info",
		Admin: AdminConfig{
			Addr:        "127.0.0.1:9090",
			CorsOrigins: []string{"http://localhost:3000"},
		},
	}
}

type fileAdmin struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
	Token       string   `toml:"token"`
}

type fileConfig struct {
	Name          string    `toml:"name"`
	Listen        string    `toml:"listen"`
	Upstream      string    `toml:"upstream"`
	ServerVersion string    `toml:"server_version"`
	Passthrough   bool      `toml:"passthrough"`
	FailFast      bool      `toml:"fail_fast"`
	MaxFrameBytes int       `toml:"max_frame_bytes"`
	WorkerBuffer  int       `toml:"worker_buffer"`
	DialTimeout   string    `toml:"dial_timeout"`
	DialAttempts  int       `toml:"dial_attempts"`
	LogLevel      string    `toml:"log_level"`
	Admin         fileAdmin `toml:"admin"`
}

// Load overlays the keys present in the TOML file at path onto
// DefaultConfig and validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("upstream") {
		cfg.Upstream = strings.TrimSpace(raw.Upstream)
	}
	if meta.IsDefined("server_version") {
		cfg.ServerVersion = strings.TrimSpace(raw.ServerVersion)
	}
	if meta.IsDefined("passthrough") {
		cfg.Passthrough = raw.Passthrough
	}
	if meta.IsDefined("fail_fast") {
		cfg.FailFast = raw.FailFast
	}
	if meta.IsDefined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("worker_buffer") {
		cfg.WorkerBuffer = raw.WorkerBuffer
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.DialTimeout = d
	}
	if meta.IsDefined("dial_attempts") {
		cfg.DialAttempts = raw.DialAttempts
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("admin", "addr") {
		cfg.Admin.Addr = strings.TrimSpace(raw.Admin.Addr)
	}
	if meta.IsDefined("admin", "cors_origins") {
		cfg.Admin.CorsOrigins = normalizeOrigins(raw.Admin.CorsOrigins)
	}
	if meta.IsDefined("admin", "token") {
		cfg.Admin.Token = strings.TrimSpace(raw.Admin.Token)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cfg. An empty admin addr disables the admin server.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("%w: missing listen", ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Upstream) == "" {
		return fmt.Errorf("%w: missing upstream", ErrInvalidConfig)
	}
	if _, err := semver.NewVersion(cfg.ServerVersion); err != nil {
		return fmt.Errorf("%w: server_version %q: %v", ErrInvalidConfig, cfg.ServerVersion, err)
	}
	if cfg.MaxFrameBytes <= 0 {
		return fmt.Errorf("%w: max_frame_bytes must be positive", ErrInvalidConfig)
	}
	if cfg.WorkerBuffer <= 0 {
		return fmt.Errorf("%w: worker_buffer must be positive", ErrInvalidConfig)
	}
	if cfg.DialTimeout <= 0 {
		return fmt.Errorf("%w: dial_timeout must be positive", ErrInvalidConfig)
	}
	if cfg.DialAttempts <= 0 {
		return fmt.Errorf("%w: dial_attempts must be positive", ErrInvalidConfig)
	}
	if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, cfg.LogLevel)
	}
	return nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	return out
}
