// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package permission provides per-project authorization snapshots with
// expiry semantics, an in-memory cache with optional persistence, and the
// read-through service used by screens and CLI commands.
package permission

// =============================================================================
// USER SCOPE
// =============================================================================

// ScopeKind identifies which scope category an item belongs to.
type ScopeKind string

const (
	ScopeTrade ScopeKind = "trade"
	ScopeArea  ScopeKind = "area"
	ScopePhase ScopeKind = "phase"
)

// Scope restricts a user to specific trades, areas or phases within a
// project. A nil or empty scope means unrestricted access.
type Scope struct {
	Trades []string `json:"trades,omitempty"`
	Areas  []string `json:"areas,omitempty"`
	Phases []string `json:"phases,omitempty"`
}

// IsEmpty reports whether the scope places no restriction at all.
func (s *Scope) IsEmpty() bool {
	if s == nil {
		return true
	}
	return len(s.Trades) == 0 && len(s.Areas) == 0 && len(s.Phases) == 0
}

// InScope reports whether itemID is visible under this scope. An empty
// scope admits everything; otherwise the item must be a member of the set
// matching its kind. An unknown kind is out of scope for a restricted user.
func (s *Scope) InScope(itemID string, kind ScopeKind) bool {
	if s.IsEmpty() {
		return true
	}

	var set []string
	switch kind {
	case ScopeTrade:
		set = s.Trades
	case ScopeArea:
		set = s.Areas
	case ScopePhase:
		set = s.Phases
	default:
		return false
	}

	for _, id := range set {
		if id == itemID {
			return true
		}
	}
	return false
}
