// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pedrocodesforcoffee/builder-go/internal/permission"
)

func openTestStore(t *testing.T) *SnapshotStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testSnapshot(projectID string, expiresAt *time.Time) *permission.Snapshot {
	return &permission.Snapshot{
		ProjectID:   projectID,
		Permissions: map[string]bool{"rfi:read": true, "budget:read": false},
		Role:        "foreman",
		Scope:       &permission.Scope{Trades: []string{"concrete"}},
		ExpiresAt:   expiresAt,
		FetchedAt:   time.Now().Truncate(time.Second),
	}
}

func TestUpsertGetRoundTrip(t *testing.T) {
	store := openTestStore(t)

	exp := time.Now().Add(30 * 24 * time.Hour).Truncate(time.Second)
	want := testSnapshot("p1", &exp)
	if err := store.Upsert(want); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Get("p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ProjectID != "p1" || got.Role != "foreman" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if !got.Has("rfi:read") || got.Has("budget:read") {
		t.Errorf("permissions not round-tripped: %+v", got.Permissions)
	}
	if got.Scope == nil || len(got.Scope.Trades) != 1 {
		t.Errorf("scope not round-tripped: %+v", got.Scope)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(exp) {
		t.Errorf("expiry not round-tripped: %v", got.ExpiresAt)
	}
	if got.Stale {
		t.Error("Stale must never persist")
	}
}

func TestUpsertOverwrites(t *testing.T) {
	store := openTestStore(t)

	first := testSnapshot("p1", nil)
	if err := store.Upsert(first); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	second := testSnapshot("p1", nil)
	second.Role = "project_manager"
	second.Permissions = map[string]bool{"budget:read": true}
	if err := store.Upsert(second); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	got, err := store.Get("p1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Role != "project_manager" || !got.Has("budget:read") {
		t.Errorf("overwrite not applied: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get("nope")
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestDeleteAndClear(t *testing.T) {
	store := openTestStore(t)

	if err := store.Upsert(testSnapshot("p1", nil)); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(testSnapshot("p2", nil)); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete("p1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get("p1"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Error("p1 still present after delete")
	}

	// Deleting an absent row is not an error.
	if err := store.Delete("p1"); err != nil {
		t.Errorf("second Delete errored: %v", err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := store.Get("p2"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Error("p2 still present after clear")
	}
}

func TestExpiredBefore(t *testing.T) {
	store := openTestStore(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	if err := store.Upsert(testSnapshot("old", &past)); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(testSnapshot("fresh", &future)); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(testSnapshot("forever", nil)); err != nil {
		t.Fatal(err)
	}

	ids, err := store.ExpiredBefore(time.Now())
	if err != nil {
		t.Fatalf("ExpiredBefore failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "old" {
		t.Errorf("ids = %v, want [old]", ids)
	}
}

func TestCacheWriteThrough(t *testing.T) {
	store := openTestStore(t)
	cache := permission.NewCacheWithStore(store)

	if err := cache.Put(testSnapshot("p1", nil)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// A second cache over the same store sees the snapshot: the fallback
	// path survives a restart.
	cache2 := permission.NewCacheWithStore(store)
	got, err := cache2.Get("p1")
	if err != nil {
		t.Fatalf("Get through fresh cache failed: %v", err)
	}
	if got.Role != "foreman" {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}
