// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package secstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/pedrocodesforcoffee/builder-go/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// NonceSize is the AES-GCM nonce size (96 bits).
	NonceSize = 12

	// KeySize is the AES-256 key size.
	KeySize = 32

	// SaltSize is the salt size for passphrase key derivation.
	SaltSize = 32

	// PBKDF2Iterations follows the OWASP 2023 recommendation for
	// PBKDF2-SHA-256.
	PBKDF2Iterations = 600000

	keyFileName  = "master.key"
	saltFileName = "master.salt"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps each secret in its own AES-256-GCM sealed file under a
// 0700 directory. Stored format: nonce || ciphertext || tag.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	cipher cipher.AEAD
}

// NewFileStore opens (or initializes) a store rooted at dir. A master key is
// generated on first use and written to dir/master.key with 0600 permissions.
func NewFileStore(dir string) (*FileStore, error) {
	key, err := loadOrCreateMasterKey(filepath.Join(dir, keyFileName))
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key)

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, cipher: aead}, nil
}

// NewFileStoreWithPassphrase opens a store whose key is derived from a
// passphrase with PBKDF2-SHA-256. The salt persists in dir/master.salt; no
// key material is written to disk.
func NewFileStoreWithPassphrase(dir, passphrase string) (*FileStore, error) {
	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFileName))
	if err != nil {
		return nil, err
	}

	key := DeriveKey(passphrase, salt)
	defer ZeroBytes(key)

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, cipher: aead}, nil
}

// DeriveKey derives an AES-256 key from a passphrase and salt using
// PBKDF2-SHA-256 (NIST SP 800-132).
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// =============================================================================
// STORE IMPLEMENTATION
// =============================================================================

// Save seals value and writes it atomically to dir/<key>.enc.
func (s *FileStore) Save(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.cipher.Seal(nonce, nonce, value, nil)
	return util.AtomicWriteFileWithDir(s.secretPath(key), sealed, 0600, 0700)
}

// Load reads and opens dir/<key>.enc.
func (s *FileStore) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(s.secretPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	if len(sealed) < NonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, ciphertext := sealed[:NonceSize], sealed[NonceSize:]
	plaintext, err := s.cipher.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Delete removes the secret file for key.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.secretPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}

// Exists reports whether a secret file exists for key.
func (s *FileStore) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.secretPath(key))
	return err == nil
}

// secretPath maps a logical key to a file path. Keys are flattened so a key
// like "auth/session" cannot escape the store directory.
func (s *FileStore) secretPath(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, name+".enc")
}

// =============================================================================
// KEY MATERIAL
// =============================================================================

// loadOrCreateMasterKey reads the master key, generating and persisting a
// fresh one when none exists.
func loadOrCreateMasterKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != KeySize {
			return nil, fmt.Errorf("master key has wrong size: %d", len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	key = make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, key, 0600, 0700); err != nil {
		return nil, fmt.Errorf("failed to store master key: %w", err)
	}
	return key, nil
}

// loadOrCreateSalt reads the KDF salt, generating one when absent.
func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != SaltSize {
			return nil, fmt.Errorf("salt has wrong size: %d", len(salt))
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	salt = make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, salt, 0600, 0700); err != nil {
		return nil, fmt.Errorf("failed to store salt: %w", err)
	}
	return salt, nil
}
