// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package permission

import (
	"time"
)

// =============================================================================
// PERMISSION SNAPSHOT
// =============================================================================

// Snapshot is a user's authorization for one project at a point in time.
// Snapshots are retained past their expiry so the client stays usable on
// job sites without connectivity; an expired snapshot served as a fallback
// carries Stale=true so callers can warn rather than present it as fresh.
type Snapshot struct {
	ProjectID   string          `json:"project_id"`
	Permissions map[string]bool `json:"permissions"`
	Role        string          `json:"role"`
	Scope       *Scope          `json:"scope,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	FetchedAt   time.Time       `json:"fetched_at"`

	// Stale is set by the service when an expired snapshot is served
	// because the network was unavailable. Never persisted.
	Stale bool `json:"-"`
}

// Has reports whether the named permission is granted.
func (s *Snapshot) Has(perm string) bool {
	return s.Permissions[perm]
}

// IsExpired reports whether the snapshot's recorded expiry has passed.
// A snapshot without an expiry never expires.
func (s *Snapshot) IsExpired(now time.Time) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return now.After(*s.ExpiresAt)
}

// DaysUntilExpiration returns whole days until expiry, negative once
// expired. Returns false when the snapshot has no expiry.
func (s *Snapshot) DaysUntilExpiration(now time.Time) (int, bool) {
	if s.ExpiresAt == nil {
		return 0, false
	}
	return int(s.ExpiresAt.Sub(now).Hours() / 24), true
}

// IsExpiringSoon reports whether the snapshot expires within thresholdDays:
// true iff 0 < days until expiration <= thresholdDays. Already-expired
// snapshots and snapshots without expiry return false.
func (s *Snapshot) IsExpiringSoon(now time.Time, thresholdDays int) bool {
	days, ok := s.DaysUntilExpiration(now)
	if !ok {
		return false
	}
	return days > 0 && days <= thresholdDays
}

// InScope reports whether itemID of the given kind is visible under the
// snapshot's scope.
func (s *Snapshot) InScope(itemID string, kind ScopeKind) bool {
	return s.Scope.InScope(itemID, kind)
}

// Clone returns a deep copy. The cache hands out clones so callers cannot
// mutate cached state.
func (s *Snapshot) Clone() *Snapshot {
	cp := *s
	if s.Permissions != nil {
		cp.Permissions = make(map[string]bool, len(s.Permissions))
		for k, v := range s.Permissions {
			cp.Permissions[k] = v
		}
	}
	if s.Scope != nil {
		sc := Scope{
			Trades: append([]string(nil), s.Scope.Trades...),
			Areas:  append([]string(nil), s.Scope.Areas...),
			Phases: append([]string(nil), s.Scope.Phases...),
		}
		cp.Scope = &sc
	}
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
