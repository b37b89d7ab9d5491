// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package secstore provides encrypted at-rest storage for session tokens.
//
// Tokens are sealed with AES-256-GCM. The master key is generated on first
// use and kept in a 0600 file next to the store; a passphrase-derived key
// (PBKDF2-SHA-256) can be used instead for shared machines.
package secstore

import (
	"errors"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound indicates no secret is stored under the requested key.
	ErrNotFound = errors.New("secret not found")

	// ErrInvalidCiphertext indicates the stored blob is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrDecryptionFailed indicates decryption failed (wrong key or tampered data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the secret store consumed by the session manager. Implementations
// must be safe for concurrent use.
type Store interface {
	// Save stores a secret under key, replacing any existing value.
	Save(key string, value []byte) error
	// Load retrieves a secret. Returns ErrNotFound if absent.
	Load(key string) ([]byte, error)
	// Delete removes a secret. Deleting an absent key is not an error.
	Delete(key string) error
	// Exists reports whether a secret is stored under key.
	Exists(key string) bool
}

// ZeroBytes zeros sensitive byte slices so key material does not linger in
// crash dumps.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
