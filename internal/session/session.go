// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns authentication state for the builder client: login,
// proactive and 401-triggered token refresh, and logout. A single Manager
// instance is injected into the API client and the CLI; there are no
// package-level singletons.
package session

import (
	"encoding/json"
	"errors"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotAuthenticated indicates an operation that requires a session
	// was called without one.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrRefreshFailed indicates token refresh failed and the attempt
	// budget is exhausted; the session has been cleared.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrSessionExpired indicates the persisted session could not be
	// resumed because both tokens are unusable.
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// =============================================================================
// STATE
// =============================================================================

// State is the authentication state machine.
//
// Transitions:
//
//	Unknown        -> Authenticated | Unauthenticated   (Resume)
//	Authenticated  -> Refreshing                        (proactive or 401 refresh)
//	Refreshing     -> Authenticated                     (refresh success)
//	Refreshing     -> Unauthenticated                   (refresh failure, forced logout)
//	any            -> Unauthenticated                   (Logout)
type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
	StateRefreshing
)

// String returns the state name for logs and the status command.
func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// =============================================================================
// SESSION
// =============================================================================

// User is the authenticated user's profile as returned by the auth endpoints.
type User struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// Session is a token pair plus the user it belongs to. At most one session
// is current per Manager; AccessToken is never empty while the manager is
// authenticated.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// TimeUntilExpiry returns how long the access token remains valid.
func (s *Session) TimeUntilExpiry(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}

// clone returns a copy so accessors never leak the manager's internal
// session to concurrent mutation.
func (s *Session) clone() *Session {
	cp := *s
	return &cp
}

// marshal serializes the session for the secure store.
func (s *Session) marshal() ([]byte, error) {
	return json.Marshal(s)
}

// unmarshalSession deserializes a persisted session.
func unmarshalSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
