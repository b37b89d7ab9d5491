// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package permission

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PERMISSION SERVICE
// =============================================================================

// Fetcher retrieves a fresh permission snapshot for a project from the
// Builder API. Implemented by the API client's permissions service.
type Fetcher interface {
	FetchPermissions(ctx context.Context, projectID string) (*Snapshot, error)
}

// Service implements the read policy over the cache:
//
//	cache hit, not expired  -> serve immediately
//	otherwise               -> fetch from network, overwrite cache
//	network failure         -> serve whatever is cached, even expired,
//	                           marked Stale; no cached snapshot -> error
//
// A stale snapshot is always flagged so the caller can show a warning
// instead of presenting outdated permissions as current.
type Service struct {
	cache   *Cache
	fetcher Fetcher
	now     func() time.Time
}

// NewService creates a permission service over the given cache and fetcher.
func NewService(cache *Cache, fetcher Fetcher) *Service {
	return &Service{cache: cache, fetcher: fetcher, now: time.Now}
}

// Fetch returns the user's permissions for a project per the read policy.
func (s *Service) Fetch(ctx context.Context, projectID string) (*Snapshot, error) {
	now := s.now()

	if snap, err := s.cache.Get(projectID); err == nil && !snap.IsExpired(now) {
		return snap, nil
	}

	fresh, err := s.fetcher.FetchPermissions(ctx, projectID)
	if err == nil {
		fresh.FetchedAt = now
		if cacheErr := s.cache.Put(fresh); cacheErr != nil {
			// A failed cache write must not discard a successful fetch.
			return fresh, nil
		}
		return fresh, nil
	}

	// Network failed: fall back to the cached snapshot if one exists.
	if snap, cacheErr := s.cache.Get(projectID); cacheErr == nil {
		snap.Stale = snap.IsExpired(now)
		return snap, nil
	}

	return nil, fmt.Errorf("failed to fetch permissions for project %s: %w", projectID, err)
}

// Invalidate drops the cached snapshot for a project, forcing the next
// Fetch to hit the network.
func (s *Service) Invalidate(projectID string) error {
	return s.cache.Clear(projectID)
}

// Reset drops all cached snapshots.
func (s *Service) Reset() error {
	return s.cache.ClearAll()
}

// Cache exposes the underlying cache for status reporting.
func (s *Service) Cache() *Cache {
	return s.cache
}
