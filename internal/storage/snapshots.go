// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists permission snapshots in SQLite so the stale
// fallback survives process restarts. The permission cache writes through
// to a SnapshotStore when one is configured.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/pedrocodesforcoffee/builder-go/internal/permission"
)

// ErrSnapshotNotFound indicates no persisted snapshot for the project.
var ErrSnapshotNotFound = errors.New("snapshot not found in store")

// schema holds one row per project. The snapshot body is stored as JSON;
// expiry is duplicated into a column so housekeeping queries can run
// without decoding every row.
const schema = `
CREATE TABLE IF NOT EXISTS permission_snapshots (
    project_id TEXT PRIMARY KEY,
    body       TEXT NOT NULL,
    fetched_at INTEGER NOT NULL,
    expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_snapshots_expires ON permission_snapshots(expires_at);
`

// SnapshotStore is the SQLite-backed permission.PersistentStore.
type SnapshotStore struct {
	db *sql.DB
}

// Open opens (or creates) the snapshot database at path.
func Open(path string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Upsert writes a snapshot, replacing any previous row for the project.
func (s *SnapshotStore) Upsert(snap *permission.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	var expiresAt sql.NullInt64
	if snap.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: snap.ExpiresAt.Unix(), Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO permission_snapshots (project_id, body, fetched_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			body = excluded.body,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at`,
		snap.ProjectID, string(body), snap.FetchedAt.Unix(), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// Get loads the snapshot for a project. Returns ErrSnapshotNotFound when
// none is persisted.
func (s *SnapshotStore) Get(projectID string) (*permission.Snapshot, error) {
	var body string
	err := s.db.QueryRow(
		"SELECT body FROM permission_snapshots WHERE project_id = ?",
		projectID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap permission.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the snapshot for a project. Deleting an absent row is not
// an error.
func (s *SnapshotStore) Delete(projectID string) error {
	_, err := s.db.Exec("DELETE FROM permission_snapshots WHERE project_id = ?", projectID)
	return err
}

// Clear removes all persisted snapshots.
func (s *SnapshotStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM permission_snapshots")
	return err
}

// ExpiredBefore returns the project IDs whose persisted snapshots expired
// before cutoff, for housekeeping.
func (s *SnapshotStore) ExpiredBefore(cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT project_id FROM permission_snapshots WHERE expires_at IS NOT NULL AND expires_at < ?",
		cutoff.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
