package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  host: 127.0.0.1\ndatabase:\n  host: localhost\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default server port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.MaxFileSize != 100<<20 {
		t.Errorf("default max file size = %d, want %d", cfg.Storage.MaxFileSize, int64(100<<20))
	}
	if cfg.Share.ConsumeRetries != 8 {
		t.Errorf("default consume retries = %d, want 8", cfg.Share.ConsumeRetries)
	}
	if cfg.Share.DeleteOnExhaust {
		t.Error("delete_on_exhaust should default to false")
	}
	if cfg.Cleanup.IntervalSeconds != 3600 {
		t.Errorf("default cleanup interval = %d, want 3600", cfg.Cleanup.IntervalSeconds)
	}
	if cfg.Pagination.MaxPageSize != 100 {
		t.Errorf("default max page size = %d, want 100", cfg.Pagination.MaxPageSize)
	}
}

func TestLoadConfigKeepsExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
storage:
  max_file_size: 1048576
share:
  default_ttl_hours: 24
  delete_on_exhaust: true
  consume_retries: 3
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Storage.MaxFileSize != 1048576 {
		t.Errorf("max file size = %d, want 1048576", cfg.Storage.MaxFileSize)
	}
	if cfg.Share.DefaultTTLHours != 24 {
		t.Errorf("default ttl hours = %d, want 24", cfg.Share.DefaultTTLHours)
	}
	if !cfg.Share.DeleteOnExhaust {
		t.Error("delete_on_exhaust should be true")
	}
	if cfg.Share.ConsumeRetries != 3 {
		t.Errorf("consume retries = %d, want 3", cfg.Share.ConsumeRetries)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
