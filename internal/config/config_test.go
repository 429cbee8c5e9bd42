package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load("", "")
	if cfg.LogLevel != "warn" || cfg.ListenAddr == "" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"loglevel":"debug","listen_addr":"0.0.0.0:9000"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path, "")
	if cfg.LogLevel != "debug" {
		t.Errorf("expected loglevel debug, got %s", cfg.LogLevel)
	}
	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("expected overridden listen_addr, got %s", cfg.ListenAddr)
	}
	// Untouched field keeps its default.
	if cfg.CacheCapacity != Default().CacheCapacity {
		t.Errorf("expected cache_capacity to keep default, got %d", cfg.CacheCapacity)
	}
}

func TestLoadMissingConfigFileIsNotFatal(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.json"), "")
	if cfg.LogLevel != Default().LogLevel {
		t.Fatal("missing config file should fall back to defaults, not error")
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"loglevel":"debug"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ADA_LOGLEVEL", "crit")
	cfg := Load(path, "")
	if cfg.LogLevel != "crit" {
		t.Errorf("expected env override to win, got %s", cfg.LogLevel)
	}
}
