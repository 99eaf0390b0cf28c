package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"off":     zerolog.Disabled,
		"trace":   zerolog.TraceLevel,
		"warning": zerolog.WarnLevel,
	}
	for raw, want := range cases {
		got, ok := ParseLevel(raw)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q)=%v,%v want %v", raw, got, ok, want)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("unknown level must not parse")
	}
	if _, ok := ParseLevel(""); ok {
		t.Fatalf("empty level must not parse")
	}
}

func TestApplyJSONWritesStructuredEvents(t *testing.T) {
	prev := log.Logger
	prevLevel := zerolog.GlobalLevel()
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()

	var buf bytes.Buffer
	Apply(Config{Level: zerolog.InfoLevel, JSON: true, Out: &buf})
	log.Debug().Msg("hidden")
	log.Info().Str("pair", "1.19.4->1.19.3").Msg("loaded")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug event leaked at info level: %s", out)
	}
	if !strings.Contains(out, `"pair":"1.19.4->1.19.3"`) {
		t.Fatalf("missing structured field: %s", out)
	}
}
