// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package offline implements field mode for job sites without connectivity.
//
// Construction sites frequently have no usable network. In field mode the
// API client refuses outbound requests up front instead of waiting on
// timeouts, which pushes permission checks onto the cached snapshots and
// keeps the app responsive.
package offline

import (
	"errors"
	"net/url"
	"strings"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrFieldMode is returned when a network operation is attempted in field mode.
	ErrFieldMode = errors.New("network request blocked: field mode is enabled")

	// ErrInvalidURLScheme is returned when a URL scheme is not http or https.
	// Blocks file://, javascript://, data:// and custom protocol handlers.
	ErrInvalidURLScheme = errors.New("only http and https schemes are allowed")
)

// =============================================================================
// MODE MANAGEMENT
// =============================================================================

var (
	fieldMode   bool
	fieldModeMu sync.RWMutex
)

// SetFieldMode enables or disables field mode globally. When enabled all
// outbound API requests fail fast with ErrFieldMode and callers fall back
// to cached data.
func SetFieldMode(enabled bool) {
	fieldModeMu.Lock()
	defer fieldModeMu.Unlock()
	fieldMode = enabled
}

// IsFieldMode reports whether field mode is currently enabled.
func IsFieldMode() bool {
	fieldModeMu.RLock()
	defer fieldModeMu.RUnlock()
	return fieldMode
}

// =============================================================================
// URL VALIDATION
// =============================================================================

// ValidateRequestURL checks that a request URL is permitted. The scheme check
// always applies; the field-mode check applies only when field mode is on.
func ValidateRequestURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURLScheme
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURLScheme
	}

	if IsFieldMode() {
		return ErrFieldMode
	}

	return nil
}
