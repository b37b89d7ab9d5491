// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pedrocodesforcoffee/builder-go/internal/secstore"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// AuthAPI is the slice of the Builder API the manager needs. Implemented by
// the API client's auth client; faked in tests.
type AuthAPI interface {
	// Login exchanges credentials for a session.
	Login(ctx context.Context, email, password string) (*Session, error)
	// Refresh exchanges a refresh token for a new session.
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	// Register creates an account and returns its first session.
	Register(ctx context.Context, email, password, firstName, lastName string) (*Session, error)
	// Logout revokes the session server-side. Best effort.
	Logout(ctx context.Context, accessToken string) error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds manager tuning knobs.
type Config struct {
	// RefreshMargin is how long before expiry a proactive refresh runs
	// (default: 5 minutes).
	RefreshMargin time.Duration

	// MaxRefreshAttempts is the number of consecutive refresh failures
	// tolerated before the session is cleared (default: 3).
	MaxRefreshAttempts int

	// RefreshTimeout bounds a single refresh exchange (default: 30s).
	// Refreshes run on their own context: a caller abandoning its wait
	// must not cancel a refresh other callers depend on.
	RefreshTimeout time.Duration
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		RefreshMargin:      5 * time.Minute,
		MaxRefreshAttempts: 3,
		RefreshTimeout:     30 * time.Second,
	}
}

// Secure store keys.
const (
	sessionKey      = "session"
	pendingRouteKey = "pending_route"
)

// =============================================================================
// STATE CHANGE EVENTS
// =============================================================================

// Change is delivered to subscribers on every state transition.
type Change struct {
	State State
	// User is set while authenticated.
	User User
}

// =============================================================================
// MANAGER
// =============================================================================

// refreshCall is one in-flight refresh shared by every concurrent trigger.
type refreshCall struct {
	done chan struct{}
	sess *Session
	err  error
}

// Manager owns the session lifecycle. All mutation goes through its mutex;
// refresh is single-flight: concurrent triggers join the in-flight exchange
// instead of issuing duplicate refresh calls.
type Manager struct {
	mu sync.Mutex

	cfg   Config
	api   AuthAPI
	store secstore.Store

	state    State
	sess     *Session
	attempts int // consecutive refresh failures

	inflight *refreshCall
	timer    *time.Timer

	subscribers map[int]chan Change
	nextSubID   int

	now func() time.Time
}

// NewManager creates a session manager. The store holds the persisted
// session between runs; state starts Unknown until Resume is called.
func NewManager(api AuthAPI, store secstore.Store, cfg Config) *Manager {
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = 5 * time.Minute
	}
	if cfg.MaxRefreshAttempts <= 0 {
		cfg.MaxRefreshAttempts = 3
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	return &Manager{
		cfg:         cfg,
		api:         api,
		store:       store,
		state:       StateUnknown,
		subscribers: make(map[int]chan Change),
		now:         time.Now,
	}
}

// =============================================================================
// READ ACCESSORS
// =============================================================================

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the current session, or nil when signed out.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	return m.sess.clone()
}

// =============================================================================
// LOGIN / REGISTER / RESUME
// =============================================================================

// Login exchanges credentials for a session. On success the session is
// persisted, state becomes Authenticated and a proactive refresh is
// scheduled at expiry minus the refresh margin.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	sess, err := m.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	m.adoptSession(sess)
	return sess.clone(), nil
}

// Register creates an account and signs it in.
func (m *Manager) Register(ctx context.Context, email, password, firstName, lastName string) (*Session, error) {
	sess, err := m.api.Register(ctx, email, password, firstName, lastName)
	if err != nil {
		return nil, err
	}
	m.adoptSession(sess)
	return sess.clone(), nil
}

// Resume performs the startup check: it loads any persisted session and
// transitions Unknown to Authenticated or Unauthenticated. A persisted
// session past its expiry is refreshed eagerly; if that fails the user must
// log in again.
func (m *Manager) Resume(ctx context.Context) error {
	data, err := m.store.Load(sessionKey)
	if err != nil {
		m.setState(StateUnauthenticated)
		return nil
	}

	sess, err := unmarshalSession(data)
	if err != nil {
		// Corrupt entry; discard rather than loop on it forever.
		_ = m.store.Delete(sessionKey)
		m.setState(StateUnauthenticated)
		return nil
	}

	m.mu.Lock()
	m.sess = sess
	m.mu.Unlock()

	if sess.TimeUntilExpiry(m.now()) <= 0 {
		if _, err := m.RefreshTokens(ctx); err != nil {
			m.forceLogout()
			return ErrSessionExpired
		}
		return nil
	}

	m.adoptSession(sess)
	return nil
}

// adoptSession installs a session as current: reset the failure budget,
// schedule the proactive refresh, go Authenticated, then persist.
func (m *Manager) adoptSession(sess *Session) {
	m.mu.Lock()
	m.installSessionLocked(sess)
	m.mu.Unlock()

	m.persistSession(sess)
	m.notify()
}

// installSessionLocked makes sess the current session. Caller holds the
// mutex.
func (m *Manager) installSessionLocked(sess *Session) {
	m.sess = sess.clone()
	m.attempts = 0
	m.scheduleRefreshLocked(sess.ExpiresAt)
	m.setStateLocked(StateAuthenticated)
}

// persistSession writes the session to the secure store. Failure is logged,
// not fatal: the in-memory session stays usable for this run.
func (m *Manager) persistSession(sess *Session) {
	data, err := sess.marshal()
	if err != nil {
		log.Printf("session: failed to encode session: %v", err)
		return
	}
	if err := m.store.Save(sessionKey, data); err != nil {
		log.Printf("session: failed to persist session: %v", err)
	}
}

// =============================================================================
// TOKEN ACCESS
// =============================================================================

// Token returns a bearer token valid for at least a moment, refreshing
// first when expiry is near. This is what the API client calls per request.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if err := m.CheckAndRefreshIfNeeded(ctx); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return "", ErrNotAuthenticated
	}
	// StateRefreshing still serves the old token: it stays valid until the
	// exchange lands.
	if m.state != StateAuthenticated && m.state != StateRefreshing {
		return "", ErrNotAuthenticated
	}
	return m.sess.AccessToken, nil
}

// CheckAndRefreshIfNeeded refreshes the token pair when less than the
// refresh margin remains before expiry. A comfortable margin is a no-op.
func (m *Manager) CheckAndRefreshIfNeeded(ctx context.Context) error {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	remaining := m.sess.TimeUntilExpiry(m.now())
	margin := m.cfg.RefreshMargin
	m.mu.Unlock()

	if remaining > margin {
		return nil
	}
	_, err := m.RefreshTokens(ctx)
	return err
}

// =============================================================================
// REFRESH
// =============================================================================

// RefreshTokens exchanges the refresh token for a new pair. Concurrent
// callers share one in-flight exchange. Each failure consumes one attempt
// from the budget; exhausting it clears the session and forces logout.
//
// Cancelling ctx abandons this caller's wait only; the exchange itself
// continues for the other waiters.
func (m *Manager) RefreshTokens(ctx context.Context) (*Session, error) {
	call := m.joinOrStartRefresh()

	select {
	case <-call.done:
		return call.sess, call.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// joinOrStartRefresh returns the in-flight refresh, starting one when none
// is running.
func (m *Manager) joinOrStartRefresh() *refreshCall {
	m.mu.Lock()
	if m.inflight != nil {
		call := m.inflight
		m.mu.Unlock()
		return call
	}

	call := &refreshCall{done: make(chan struct{})}
	m.inflight = call

	var refreshToken string
	if m.sess != nil {
		refreshToken = m.sess.RefreshToken
	}
	if refreshToken != "" {
		m.setStateLocked(StateRefreshing)
	}
	m.mu.Unlock()
	m.notify()

	go m.runRefresh(call, refreshToken)
	return call
}

// runRefresh performs the exchange on a background context so an impatient
// caller cannot cancel it out from under the other waiters.
func (m *Manager) runRefresh(call *refreshCall, refreshToken string) {
	if refreshToken == "" {
		m.finishRefresh(call, nil, ErrNotAuthenticated)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RefreshTimeout)
	defer cancel()

	sess, err := m.api.Refresh(ctx, refreshToken)
	m.finishRefresh(call, sess, err)
}

// finishRefresh publishes the result to every waiter and updates state.
func (m *Manager) finishRefresh(call *refreshCall, sess *Session, err error) {
	if err == nil && sess != nil {
		// Clear the in-flight marker and install the new pair in one
		// critical section. A trigger landing between the two would start a
		// second exchange with the refresh token this one just consumed.
		m.mu.Lock()
		m.inflight = nil
		m.installSessionLocked(sess)
		m.mu.Unlock()

		call.sess = sess.clone()
		close(call.done)

		m.persistSession(sess)
		m.notify()
		return
	}

	m.mu.Lock()
	m.inflight = nil
	m.attempts++
	exhausted := m.attempts >= m.cfg.MaxRefreshAttempts
	if !exhausted && m.sess != nil {
		// Budget remains: the old token pair stays current until the
		// next attempt.
		m.setStateLocked(StateAuthenticated)
	}
	m.mu.Unlock()
	m.notify()

	if exhausted {
		m.forceLogout()
		call.err = fmt.Errorf("%w after %d attempts: %v", ErrRefreshFailed, m.cfg.MaxRefreshAttempts, err)
	} else {
		call.err = fmt.Errorf("token refresh attempt failed: %w", err)
	}
	close(call.done)
}

// HandleUnauthorized is called by the API layer on a 401. It refreshes the
// token pair (joining any refresh already in flight) and reports whether
// the caller should retry the original request, which it must do at most
// once. A failed refresh here forces logout: the server has already
// rejected the current token, so there is nothing left to fall back to.
func (m *Manager) HandleUnauthorized(ctx context.Context) (retry bool, err error) {
	if _, err := m.RefreshTokens(ctx); err != nil {
		m.forceLogout()
		return false, err
	}
	return true, nil
}

// =============================================================================
// LOGOUT
// =============================================================================

// Logout revokes the session server-side (best effort), clears persisted
// tokens and any pending deep-link route, cancels the scheduled refresh and
// goes Unauthenticated.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	var accessToken string
	if m.sess != nil {
		accessToken = m.sess.AccessToken
	}
	m.mu.Unlock()

	if accessToken != "" {
		if err := m.api.Logout(ctx, accessToken); err != nil {
			log.Printf("session: server-side logout failed: %v", err)
		}
	}

	m.forceLogout()
	return nil
}

// forceLogout clears all local session state. Idempotent; used by Logout
// and by unrecoverable refresh failure.
func (m *Manager) forceLogout() {
	if err := m.store.Delete(sessionKey); err != nil {
		log.Printf("session: failed to clear persisted session: %v", err)
	}
	if err := m.store.Delete(pendingRouteKey); err != nil {
		log.Printf("session: failed to clear pending route: %v", err)
	}

	m.mu.Lock()
	m.sess = nil
	m.attempts = 0
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.setStateLocked(StateUnauthenticated)
	m.mu.Unlock()
	m.notify()
}

// =============================================================================
// PROACTIVE REFRESH SCHEDULING
// =============================================================================

// scheduleRefreshLocked arms the proactive refresh timer for expiresAt
// minus the margin. Caller holds the mutex.
func (m *Manager) scheduleRefreshLocked(expiresAt time.Time) {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	d := expiresAt.Sub(m.now()) - m.cfg.RefreshMargin
	if d <= 0 {
		// Already inside the margin. Arming a zero-delay timer would loop
		// whenever each refreshed pair also lands inside it; the next token
		// access refreshes via CheckAndRefreshIfNeeded instead.
		return
	}
	m.timer = time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RefreshTimeout)
		defer cancel()
		if _, err := m.RefreshTokens(ctx); err != nil {
			log.Printf("session: proactive refresh failed: %v", err)
		}
	})
}

// =============================================================================
// PENDING DEEP LINK
// =============================================================================

// SetPendingRoute persists a deep-link route to restore after the next
// login. Cleared by Logout.
func (m *Manager) SetPendingRoute(route string) error {
	return m.store.Save(pendingRouteKey, []byte(route))
}

// PendingRoute returns the persisted deep-link route, or "" when none.
func (m *Manager) PendingRoute() string {
	data, err := m.store.Load(pendingRouteKey)
	if err != nil {
		return ""
	}
	return string(data)
}

// ClearPendingRoute removes the persisted deep-link route.
func (m *Manager) ClearPendingRoute() error {
	return m.store.Delete(pendingRouteKey)
}

// =============================================================================
// OBSERVERS
// =============================================================================

// Subscribe registers a state-change observer. The returned channel is
// buffered; a slow consumer misses intermediate transitions rather than
// blocking the manager. Cancel with the returned func.
func (m *Manager) Subscribe() (<-chan Change, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan Change, 8)
	m.subscribers[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
	}
}

// setStateLocked records a transition. Caller holds the mutex; delivery
// happens in notify, outside the lock.
func (m *Manager) setStateLocked(s State) {
	m.state = s
}

// setState is setStateLocked plus notification, for call sites that do not
// hold the mutex.
func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.setStateLocked(s)
	m.mu.Unlock()
	m.notify()
}

// notify delivers the current state to all subscribers without blocking.
func (m *Manager) notify() {
	m.mu.Lock()
	change := Change{State: m.state}
	if m.sess != nil {
		change.User = m.sess.User
	}
	subs := make([]chan Change, 0, len(m.subscribers))
	for _, ch := range m.subscribers {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// Close stops the proactive refresh timer. The manager is not usable
// afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
