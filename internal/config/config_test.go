package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sentiglobe.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[backend]
kind = "rest"
url = "https://example.supabase.co"
poll_interval = "30s"

[display]
charset = "braille"

[globe]
distance = 20
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Kind != "rest" || cfg.Backend.PollInterval.Duration != 30*time.Second {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Display.Charset != "braille" {
		t.Errorf("charset = %q", cfg.Display.Charset)
	}
	if cfg.Globe.Distance != 20 || cfg.Globe.MaxDistance != 30 {
		t.Errorf("globe = %+v", cfg.Globe)
	}
	if cfg.Display.AspectRatio != 2.0 {
		t.Errorf("untouched default lost: aspect %v", cfg.Display.AspectRatio)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[display]\ncolour = \"red\"\n")
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestValidateRanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"refresh too fast", func(c *Config) { c.Display.RefreshRate = 10 }},
		{"aspect too wide", func(c *Config) { c.Display.AspectRatio = 5 }},
		{"unknown charset", func(c *Config) { c.Display.Charset = "emoji" }},
		{"distance outside bounds", func(c *Config) { c.Globe.Distance = 40 }},
		{"inverted bounds", func(c *Config) { c.Globe.MinDistance = 31 }},
		{"poll too slow", func(c *Config) { c.Backend.PollInterval.Duration = time.Hour }},
		{"rest without url", func(c *Config) { c.Backend.Kind = "rest" }},
		{"unknown backend", func(c *Config) { c.Backend.Kind = "mongo" }},
		{"zoom too far", func(c *Config) { c.Map.Zoom = 1 }},
		{"bad route", func(c *Config) { c.Display.Route = "/4d" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}
