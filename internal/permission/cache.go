// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package permission

import (
	"errors"
	"sync"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrSnapshotNotFound is returned when no snapshot is cached for a project.
	ErrSnapshotNotFound = errors.New("permission snapshot not found")
)

// =============================================================================
// PERSISTENT STORE INTERFACE
// =============================================================================

// PersistentStore is the optional disk backing for the cache, so the
// stale-fallback path survives process restarts. Implemented by the SQLite
// store in internal/storage.
type PersistentStore interface {
	// Upsert writes a snapshot, replacing any prior entry for its project.
	Upsert(snap *Snapshot) error
	// Get loads a snapshot. Returns ErrSnapshotNotFound when absent.
	Get(projectID string) (*Snapshot, error)
	// Delete removes a project's snapshot. Absent is not an error.
	Delete(projectID string) error
	// Clear removes all snapshots.
	Clear() error
}

// =============================================================================
// PERMISSION CACHE
// =============================================================================

// Cache holds permission snapshots keyed by project ID. Reads and writes
// are safe for concurrent use. Snapshots are retained even when stale;
// staleness policy belongs to the Service, not the cache.
type Cache struct {
	mu    sync.RWMutex
	byID  map[string]*Snapshot
	store PersistentStore // nil when persistence is disabled

	// Statistics
	hits   int
	misses int
}

// CacheStats holds cache counters for the status command.
type CacheStats struct {
	Hits    int
	Misses  int
	Entries int
	HitRate float64
}

// NewCache creates an in-memory cache without persistence.
func NewCache() *Cache {
	return &Cache{byID: make(map[string]*Snapshot)}
}

// NewCacheWithStore creates a cache backed by a persistent store. Writes go
// through to the store; misses fall back to it before reporting not-found.
func NewCacheWithStore(store PersistentStore) *Cache {
	return &Cache{byID: make(map[string]*Snapshot), store: store}
}

// Get returns the cached snapshot for a project, consulting the persistent
// store on a memory miss. The returned snapshot is a copy.
func (c *Cache) Get(projectID string) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if snap, ok := c.byID[projectID]; ok {
		c.hits++
		return snap.Clone(), nil
	}

	if c.store != nil {
		snap, err := c.store.Get(projectID)
		if err == nil {
			c.byID[projectID] = snap
			c.hits++
			return snap.Clone(), nil
		}
	}

	c.misses++
	return nil, ErrSnapshotNotFound
}

// Put upserts a snapshot, overwriting any prior entry for the project, and
// writes through to the persistent store when configured.
func (c *Cache) Put(snap *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := snap.Clone()
	cp.Stale = false
	c.byID[cp.ProjectID] = cp

	if c.store != nil {
		return c.store.Upsert(cp)
	}
	return nil
}

// Clear removes the snapshot for one project.
func (c *Cache) Clear(projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.byID, projectID)
	if c.store != nil {
		return c.store.Delete(projectID)
	}
	return nil
}

// ClearAll removes every snapshot. Called on logout so one user's
// authorization never leaks into the next session.
func (c *Cache) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID = make(map[string]*Snapshot)
	if c.store != nil {
		return c.store.Clear()
	}
	return nil
}

// Stats returns cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rate := 0.0
	if total := c.hits + c.misses; total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: len(c.byID),
		HitRate: rate,
	}
}

// ExpiringSoon returns project IDs whose snapshots expire within
// thresholdDays, for the CLI's expiry warnings.
func (c *Cache) ExpiringSoon(now time.Time, thresholdDays int) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids []string
	for id, snap := range c.byID {
		if snap.IsExpiringSoon(now, thresholdDays) {
			ids = append(ids, id)
		}
	}
	return ids
}
