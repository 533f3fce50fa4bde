package logging

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevelKnownValues(t *testing.T) {
	cases := []struct {
		raw  string
		want zerolog.Level
		ok   bool
	}{
		{"", zerolog.InfoLevel, false},
		{"trace", zerolog.TraceLevel, true},
		{"diagnostics", zerolog.TraceLevel, true},
		{"DEBUG", zerolog.DebugLevel, true},
		{"info", zerolog.InfoLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"off", zerolog.Disabled, true},
		{"bogus", zerolog.InfoLevel, false},
	}
	for _, tc := range cases {
		got, ok := parseLevel(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseLevel(%q) = (%v, %v), want (%v, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseBool(t *testing.T) {
	if _, ok := parseBool(""); ok {
		t.Fatalf("empty value should not parse")
	}
	if _, ok := parseBool("maybe"); ok {
		t.Fatalf("invalid value should not parse")
	}
	v, ok := parseBool("true")
	if !ok || !v {
		t.Fatalf("expected true, got (%v, %v)", v, ok)
	}
}

func TestDefaultConfigProfiles(t *testing.T) {
	runtime := defaultConfig(ProfileRuntime)
	if runtime.Level != zerolog.InfoLevel || !runtime.Timestamp {
		t.Fatalf("unexpected runtime defaults: %+v", runtime)
	}
	test := defaultConfig(ProfileTest)
	if test.Level != zerolog.DebugLevel || test.Timestamp {
		t.Fatalf("unexpected test defaults: %+v", test)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogNoColor, "true")

	cfg := defaultConfig(ProfileRuntime)
	applyEnvOverrides(&cfg)
	if cfg.Level != zerolog.ErrorLevel {
		t.Fatalf("expected error level override, got %v", cfg.Level)
	}
	if !cfg.NoColor {
		t.Fatalf("expected nocolor override")
	}
}
