package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/danmuck/backwire/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backwire.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplateLoadsAsDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "backwire.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected existing config to be kept without overwrite")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Fatalf("template differs from defaults:\n got %+v\nwant %+v", cfg, DefaultConfig())
	}
	if cfg.Passthrough {
		t.Fatalf("unknown packets must fail unless passthrough is configured")
	}
}

func TestLoadOverlaysDefinedKeys(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
upstream = " 10.0.0.5:25565 "
server_version = "1.11"
passthrough = true
dial_timeout = "250ms"

[admin]
cors_origins = [" https://ops.example ", ""]
token = " s3cret "
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	def := DefaultConfig()
	if cfg.Upstream != "10.0.0.5:25565" {
		t.Fatalf("unexpected upstream: %q", cfg.Upstream)
	}
	if cfg.ServerVersion != "1.11" {
		t.Fatalf("unexpected server version: %q", cfg.ServerVersion)
	}
	if !cfg.Passthrough {
		t.Fatalf("expected passthrough enabled")
	}
	if cfg.DialTimeout != 250*time.Millisecond {
		t.Fatalf("unexpected dial timeout: %v", cfg.DialTimeout)
	}
	if !reflect.DeepEqual(cfg.Admin.CorsOrigins, []string{"https://ops.example"}) {
		t.Fatalf("unexpected cors origins: %+v", cfg.Admin.CorsOrigins)
	}
	if cfg.Admin.Token != "s3cret" {
		t.Fatalf("unexpected admin token: %q", cfg.Admin.Token)
	}
	if cfg.Listen != def.Listen || cfg.Admin.Addr != def.Admin.Addr || cfg.MaxFrameBytes != def.MaxFrameBytes {
		t.Fatalf("undefined keys must keep defaults: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"unknown key":     `bogus = 1`,
		"bad version":     `server_version = "latest"`,
		"bad level":       `log_level = "loud"`,
		"zero frame":      `max_frame_bytes = 0`,
		"empty upstream":  `upstream = ""`,
		"negative buffer": `worker_buffer = -1`,
		"zero attempts":   `dial_attempts = 0`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if _, err := Load(writeConfig(t, `dial_timeout = "soon"`)); err == nil {
		t.Fatalf("expected bad duration to fail")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected missing file to fail")
	}
}
