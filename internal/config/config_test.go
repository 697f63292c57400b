package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != "sqlite" || cfg.Content.Source != "dir" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
content:
  source: http
  baseURL: https://example.com/quiz
store:
  backend: redis
  namespace: demo
redis:
  addr: localhost:6379
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Content.Source != "http" || cfg.Content.BaseURL != "https://example.com/quiz" {
		t.Fatalf("unexpected content config %+v", cfg.Content)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.Namespace != "demo" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("unexpected store config %+v / %+v", cfg.Store, cfg.Redis)
	}
	if cfg.Content.FetchLimit != 8 {
		t.Fatalf("expected default fetch limit to survive, got %d", cfg.Content.FetchLimit)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	_ = os.WriteFile(path, []byte("store: [unterminated"), 0o600)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestDuration(t *testing.T) {
	if d := Duration("", time.Second); d != time.Second {
		t.Fatalf("expected fallback, got %v", d)
	}
	if d := Duration("250ms", time.Second); d != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", d)
	}
	if d := Duration("soon", time.Second); d != time.Second {
		t.Fatalf("expected fallback for invalid input, got %v", d)
	}
}
