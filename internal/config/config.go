// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// builder client.
//
// TOML configuration with sensible defaults, environment variable overrides,
// and validation.
//
// File location: ~/.builder/config.toml (override with BUILDER_CONFIG).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pedrocodesforcoffee/builder-go/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete builder client configuration.
type Config struct {
	Version string `toml:"version"`

	// API configuration
	API APIConfig `toml:"api"`

	// Session configuration
	Session SessionConfig `toml:"session"`

	// Permission cache configuration
	Cache CacheConfig `toml:"cache"`

	// Field mode (job-site offline operation)
	FieldMode bool `toml:"field_mode"`

	// UI output configuration
	Color string `toml:"color"` // "auto", "always", "never"
}

// APIConfig contains settings for the Builder REST API client.
type APIConfig struct {
	// BaseURL is the API root, e.g. https://api.builder.example/v1
	BaseURL string `toml:"base_url"`
	// TimeoutSecs is the per-request timeout in seconds.
	TimeoutSecs int `toml:"timeout_secs"`
	// MaxRetries is the retry count for transient (5xx/429) failures.
	MaxRetries int `toml:"max_retries"`
	// RateLimit is the maximum requests per second issued by the client.
	RateLimit float64 `toml:"rate_limit"`
}

// SessionConfig contains token lifecycle settings.
type SessionConfig struct {
	// RefreshMarginSecs is how long before token expiry a proactive
	// refresh is scheduled. Default 300 (5 minutes).
	RefreshMarginSecs int `toml:"refresh_margin_secs"`
	// MaxRefreshAttempts is the number of consecutive refresh failures
	// tolerated before the session is cleared. Default 3.
	MaxRefreshAttempts int `toml:"max_refresh_attempts"`
}

// CacheConfig contains permission cache settings.
type CacheConfig struct {
	// Dir is the directory for persisted snapshots (empty = ~/.builder/cache).
	Dir string `toml:"dir"`
	// Persist enables the SQLite snapshot store so stale fallback
	// survives restarts. A pointer so a file that omits the key keeps the
	// default of true; read it through Config.CachePersist.
	Persist *bool `toml:"persist"`
	// ExpiryWarnDays is the threshold for "permissions expiring soon"
	// warnings in the CLI.
	ExpiryWarnDays int `toml:"expiry_warn_days"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		API: APIConfig{
			BaseURL:     "https://api.builder.example/v1",
			TimeoutSecs: 30,
			MaxRetries:  3,
			RateLimit:   10,
		},
		Session: SessionConfig{
			RefreshMarginSecs:  300,
			MaxRefreshAttempts: 3,
		},
		Cache: CacheConfig{
			Persist:        boolPtr(true),
			ExpiryWarnDays: 7,
		},
		FieldMode: false,
		Color:     "auto",
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the builder configuration directory (~/.builder).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".builder"), nil
}

// Path returns the config file path, honouring the BUILDER_CONFIG override.
func Path() (string, error) {
	if p := os.Getenv("BUILDER_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the directory for persisted permission snapshots.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file, falling back to defaults when it does not
// exist. Environment overrides are applied after the file is read.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		cfg.applyEnvOverrides()
		return cfg, cfg.Validate()
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.fillDefaults()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration atomically with owner-only permissions.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}

	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// Config may carry the API base URL of a private deployment; keep it 0600.
	return util.AtomicWriteFileWithDir(path, []byte(sb.String()), 0600, 0700)
}

// fillDefaults fills any zero values with defaults.
func (c *Config) fillDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = d.API.MaxRetries
	}
	if c.API.RateLimit == 0 {
		c.API.RateLimit = d.API.RateLimit
	}
	if c.Session.RefreshMarginSecs == 0 {
		c.Session.RefreshMarginSecs = d.Session.RefreshMarginSecs
	}
	if c.Session.MaxRefreshAttempts == 0 {
		c.Session.MaxRefreshAttempts = d.Session.MaxRefreshAttempts
	}
	if c.Cache.Persist == nil {
		c.Cache.Persist = d.Cache.Persist
	}
	if c.Cache.ExpiryWarnDays == 0 {
		c.Cache.ExpiryWarnDays = d.Cache.ExpiryWarnDays
	}
	if c.Color == "" {
		c.Color = d.Color
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// applyEnvOverrides applies BUILDER_* environment variables over the loaded
// file values. Environment wins over config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BUILDER_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("BUILDER_API_TIMEOUT_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.API.TimeoutSecs = n
		}
	}
	if v := os.Getenv("BUILDER_FIELD_MODE"); v != "" {
		c.FieldMode = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("BUILDER_COLOR"); v != "" {
		c.Color = v
	}
	// NO_COLOR convention (https://no-color.org/)
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.Color = "never"
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError describes a single invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config field %q: %s", e.Field, e.Message)
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{Field: "api.base_url", Message: "must be an http(s) URL"})
	}
	if c.API.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "api.timeout_secs", Message: "must be >= 0"})
	}
	if c.API.MaxRetries < 0 {
		errs = append(errs, ValidationError{Field: "api.max_retries", Message: "must be >= 0"})
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "api.rate_limit", Message: "must be >= 0"})
	}
	if c.Session.RefreshMarginSecs < 0 {
		errs = append(errs, ValidationError{Field: "session.refresh_margin_secs", Message: "must be >= 0"})
	}
	if c.Session.MaxRefreshAttempts < 1 {
		errs = append(errs, ValidationError{Field: "session.max_refresh_attempts", Message: "must be >= 1"})
	}
	switch c.Color {
	case "auto", "always", "never":
	default:
		errs = append(errs, ValidationError{Field: "color", Message: `must be "auto", "always" or "never"`})
	}

	return errors.Join(errs...)
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// Timeout returns the per-request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// RefreshMargin returns the proactive refresh margin as a duration.
func (c *Config) RefreshMargin() time.Duration {
	return time.Duration(c.Session.RefreshMarginSecs) * time.Second
}

// CachePersist reports whether the snapshot store is enabled. Unset means
// enabled.
func (c *Config) CachePersist() bool {
	return c.Cache.Persist == nil || *c.Cache.Persist
}

func boolPtr(b bool) *bool { return &b }
