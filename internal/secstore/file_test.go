// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package secstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	secret := []byte(`{"access_token":"abc","refresh_token":"def"}`)
	require.NoError(t, store.Save("session", secret))

	got, err := store.Load("session")
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestFileStore_LoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Overwrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("session", []byte("first")))
	require.NoError(t, store.Save("session", []byte("second")))

	got, err := store.Load("session")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func TestFileStore_Delete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("session", []byte("x")))
	require.NoError(t, store.Delete("session"))
	assert.False(t, store.Exists("session"))

	// Deleting an absent key is not an error.
	require.NoError(t, store.Delete("session"))
}

func TestFileStore_CiphertextNotPlaintext(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	secret := []byte("super-secret-refresh-token")
	require.NoError(t, store.Save("session", secret))

	raw, err := os.ReadFile(filepath.Join(dir, "session.enc"))
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, secret), "token must not appear in plaintext on disk")
}

func TestFileStore_ReopenWithSameKey(t *testing.T) {
	dir := t.TempDir()

	store1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store1.Save("session", []byte("persisted")))

	// A second store over the same directory picks up the master key.
	store2, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := store2.Load("session")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}

func TestFileStore_WrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()

	store1, err := NewFileStoreWithPassphrase(dir, "correct horse")
	require.NoError(t, err)
	require.NoError(t, store1.Save("session", []byte("secret")))

	store2, err := NewFileStoreWithPassphrase(dir, "battery staple")
	require.NoError(t, err)
	_, err = store2.Load("session")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestFileStore_TamperedCiphertext(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save("session", []byte("secret")))

	path := filepath.Join(dir, "session.enc")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0600))

	_, err = store.Load("session")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestFileStore_TruncatedCiphertext(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "session.enc")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0600))

	_, err = store.Load("session")
	if !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestFileStore_KeyFilePermissions(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFileStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, keyFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_PathSanitized(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save("../escape", []byte("x")))

	// The secret must land inside the store directory.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "..")
	}
	outside, _ := os.Stat(filepath.Join(filepath.Dir(dir), "escape.enc"))
	assert.Nil(t, outside)
}

func TestZeroBytes(t *testing.T) {
	b := []byte{1, 2, 3}
	ZeroBytes(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}
