package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 37707 || cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("storage backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.Memory.HalfLifeDays != 30 || cfg.Memory.MaxInjected != 10 {
		t.Errorf("memory defaults = %+v", cfg.Memory)
	}
	if cfg.Memory.MinConfidence != 0.3 || cfg.Memory.MaxContextLength != 2000 || cfg.Memory.PatternThreshold != 0.7 {
		t.Errorf("memory defaults = %+v", cfg.Memory)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Development {
		t.Errorf("logging defaults = %+v", cfg.Logging)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KEEPSAKE_SERVER_PORT", "4000")
	t.Setenv("KEEPSAKE_STORAGE_BACKEND", "json")
	t.Setenv("KEEPSAKE_MEMORY_HALF_LIFE_DAYS", "14")
	t.Setenv("KEEPSAKE_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d, want env override 4000", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "json" {
		t.Errorf("backend = %q, want json", cfg.Storage.Backend)
	}
	if cfg.Memory.HalfLifeDays != 14 {
		t.Errorf("half life = %v, want 14", cfg.Memory.HalfLifeDays)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
}

func TestConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".keepsake")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := "server:\n  port: 5050\nmemory:\n  max_injected: 5\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5050 {
		t.Errorf("port = %d, want file value 5050", cfg.Server.Port)
	}
	if cfg.Memory.MaxInjected != 5 {
		t.Errorf("max_injected = %d, want file value 5", cfg.Memory.MaxInjected)
	}
	// Untouched keys keep their defaults.
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("bind = %q, want default", cfg.Server.Bind)
	}
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	if got := cfg.ListenAddr(); got != "127.0.0.1:37707" {
		t.Errorf("ListenAddr = %q", got)
	}
}
