// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.BaseURL == "" {
		t.Error("default base URL should not be empty")
	}
	if cfg.Session.RefreshMarginSecs != 300 {
		t.Errorf("refresh margin = %d, want 300", cfg.Session.RefreshMarginSecs)
	}
	if cfg.Session.MaxRefreshAttempts != 3 {
		t.Errorf("max refresh attempts = %d, want 3", cfg.Session.MaxRefreshAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
version = "1"
field_mode = true

[api]
base_url = "https://api.example.test/v2"
timeout_secs = 10

[session]
refresh_margin_secs = 60
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.API.BaseURL != "https://api.example.test/v2" {
		t.Errorf("base URL = %q", cfg.API.BaseURL)
	}
	if cfg.Timeout() != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.Timeout())
	}
	if cfg.RefreshMargin() != time.Minute {
		t.Errorf("refresh margin = %v, want 1m", cfg.RefreshMargin())
	}
	if !cfg.FieldMode {
		t.Error("field mode should be true")
	}

	// Unset values fall back to defaults.
	if cfg.API.MaxRetries != Default().API.MaxRetries {
		t.Errorf("max retries = %d, want default %d", cfg.API.MaxRetries, Default().API.MaxRetries)
	}
}

func TestCachePersistDefaultsOnWhenOmitted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	// A file without a [cache] section keeps persistence on.
	content := `
[api]
base_url = "https://api.example.test/v2"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if !cfg.CachePersist() {
		t.Error("omitted cache.persist should default to true")
	}

	// An explicit false is honoured.
	content += "\n[cache]\npersist = false\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	cfg, err = LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.CachePersist() {
		t.Error("explicit cache.persist = false should disable persistence")
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[api]
base_url = "not a url"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := LoadFromPath(path); err == nil {
		t.Error("expected validation error for bad base URL")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BUILDER_API_URL", "https://override.example.test")
	t.Setenv("BUILDER_FIELD_MODE", "true")

	cfg := Default()
	cfg.applyEnvOverrides()

	if cfg.API.BaseURL != "https://override.example.test" {
		t.Errorf("base URL = %q, want override", cfg.API.BaseURL)
	}
	if !cfg.FieldMode {
		t.Error("field mode should be overridden to true")
	}
}

func TestNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	cfg := Default()
	cfg.applyEnvOverrides()

	if cfg.Color != "never" {
		t.Errorf("color = %q, want never", cfg.Color)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Color = "sometimes"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid color value")
	}

	cfg = Default()
	cfg.Session.MaxRefreshAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max refresh attempts")
	}
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	if err := os.WriteFile(path, []byte("[api]\nbase_url = \"https://api.example.test\"\ntimeout_secs = 5\n"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	// Give the watcher a moment to register, then rewrite the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("[api]\nbase_url = \"https://api.example.test\"\ntimeout_secs = 20\n"), 0600); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.API.TimeoutSecs != 20 {
			t.Errorf("reloaded timeout = %d, want 20", cfg.API.TimeoutSecs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not deliver reloaded config")
	}
}
