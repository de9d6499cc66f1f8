package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
server:
  host: "0.0.0.0"
  port: 8080
database:
  path: "/var/lib/liftlog/liftlog.db"
  quota_bytes: 1048576
remote:
  base_url: "https://sync.example.com"
  api_key: "test-key-123"
  timeout: 10s
sync:
  debounce: 500ms
  auto_interval: 1m
  max_retries: 3
  probe_url: "https://probe.example.com/204"
  probe_interval: 15s
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadValid verifies that a well-formed YAML config loads with all fields populated.
func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Path != "/var/lib/liftlog/liftlog.db" {
		t.Errorf("database.path = %q", cfg.Database.Path)
	}
	if cfg.Remote.BaseURL != "https://sync.example.com" {
		t.Errorf("remote.base_url = %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.Timeout.Std() != 10*time.Second {
		t.Errorf("remote.timeout = %v, want 10s", cfg.Remote.Timeout.Std())
	}
	if cfg.Sync.Debounce.Std() != 500*time.Millisecond {
		t.Errorf("sync.debounce = %v, want 500ms", cfg.Sync.Debounce.Std())
	}
	if cfg.Sync.MaxRetries != 3 {
		t.Errorf("sync.max_retries = %d, want 3", cfg.Sync.MaxRetries)
	}
}

// TestLoadMissingFile verifies that a missing config file falls back to
// defaults instead of failing. The daemon should start on a fresh machine
// with no config written yet.
func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8484 {
		t.Errorf("server.port = %d, want default 8484", cfg.Server.Port)
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Errorf("sync.max_retries = %d, want default 5", cfg.Sync.MaxRetries)
	}
	if cfg.Sync.Debounce.Std() != 2*time.Second {
		t.Errorf("sync.debounce = %v, want default 2s", cfg.Sync.Debounce.Std())
	}
	if cfg.Database.Path == "" {
		t.Error("database.path default is empty")
	}
}

// TestEnvOverride verifies that LIFTLOG_ env vars take precedence over YAML values.
// This ensures production deployments can override config via environment.
func TestEnvOverride(t *testing.T) {
	t.Setenv("LIFTLOG_DB_PATH", "/tmp/override.db")
	t.Setenv("LIFTLOG_SERVER_PORT", "9999")
	t.Setenv("LIFTLOG_REMOTE_API_KEY", "env-key")
	t.Setenv("LIFTLOG_SYNC_DEBOUNCE", "50ms")

	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("database.path = %q, want override", cfg.Database.Path)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("server.port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Remote.APIKey != "env-key" {
		t.Errorf("remote.api_key = %q, want %q", cfg.Remote.APIKey, "env-key")
	}
	if cfg.Sync.Debounce.Std() != 50*time.Millisecond {
		t.Errorf("sync.debounce = %v, want 50ms", cfg.Sync.Debounce.Std())
	}
	// Unchanged fields should keep YAML values
	if cfg.Remote.BaseURL != "https://sync.example.com" {
		t.Errorf("remote.base_url = %q, want YAML value", cfg.Remote.BaseURL)
	}
}

// TestValidationMissingPort verifies that missing required fields produce a clear error.
func TestValidationMissingPort(t *testing.T) {
	yaml := `
server:
  host: "0.0.0.0"
  port: 0
database:
  path: "/tmp/x.db"
`
	_, err := Load(writeTemp(t, yaml))
	if err == nil {
		t.Fatal("expected validation error for missing port")
	}
}

// TestValidationBadRetries verifies that a retry ceiling below 1 is rejected.
// A zero ceiling would quarantine every queued operation on first failure.
func TestValidationBadRetries(t *testing.T) {
	yaml := `
sync:
  max_retries: 0
`
	_, err := Load(writeTemp(t, yaml))
	if err == nil {
		t.Fatal("expected validation error for max_retries = 0")
	}
}

// TestBadDuration verifies that malformed duration strings are rejected at parse time.
func TestBadDuration(t *testing.T) {
	yaml := `
sync:
  debounce: "soon"
`
	_, err := Load(writeTemp(t, yaml))
	if err == nil {
		t.Fatal("expected parse error for bad duration")
	}
}
