package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if err := Validate(cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.World.MaxX != 1000 || cfg.World.MinX != -1000 {
		t.Fatalf("unexpected default bounds: %+v", cfg.World)
	}
	if cfg.Sync.EntityTimeout().Seconds() != 5 {
		t.Fatalf("unexpected default timeout: %v", cfg.Sync.EntityTimeout())
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg != Default() {
			t.Fatalf("expected defaults, got %+v", cfg)
		}
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "coopsync.toml")
		body := `
[world]
min_x = -50.0
min_y = -50.0
max_x = 50.0
max_y = 50.0

[sync]
entity_timeout_millis = 2500
`
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write temp config: %v", err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.World.MaxX != 50 {
			t.Fatalf("override not applied: %+v", cfg.World)
		}
		if cfg.Sync.EntityTimeoutMillis != 2500 {
			t.Fatalf("override not applied: %+v", cfg.Sync)
		}
		if cfg.Net.ListenAddress != ":7770" {
			t.Fatalf("untouched defaults should survive: %+v", cfg.Net)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})

	t.Run("inverted bounds are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.toml")
		body := `
[world]
min_x = 10.0
min_y = 0.0
max_x = -10.0
max_y = 10.0
`
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write temp config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("expected validation error")
		}
	})
}
