// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedrocodesforcoffee/builder-go/internal/secstore"
)

// =============================================================================
// FAKES
// =============================================================================

// fakeAuthAPI counts calls and serves scripted responses.
type fakeAuthAPI struct {
	mu            sync.Mutex
	loginCalls    int
	refreshCalls  int
	logoutCalls   int
	refreshTokens []string // refresh tokens presented, in order

	refreshErr  error
	refreshGate chan struct{} // when set, Refresh blocks until closed

	tokenSeq int64
}

func (f *fakeAuthAPI) newSession(ttl time.Duration) *Session {
	n := atomic.AddInt64(&f.tokenSeq, 1)
	return &Session{
		AccessToken:  fmt.Sprintf("access-%d", n),
		RefreshToken: fmt.Sprintf("refresh-%d", n),
		TokenType:    "Bearer",
		ExpiresAt:    time.Now().Add(ttl),
		User:         User{ID: "u1", Email: "pm@builder.test", FirstName: "Pat", LastName: "Mason"},
	}
}

func (f *fakeAuthAPI) Login(ctx context.Context, email, password string) (*Session, error) {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	if password != "correct-horse" {
		return nil, errors.New("invalid credentials")
	}
	return f.newSession(time.Hour), nil
}

func (f *fakeAuthAPI) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	f.mu.Lock()
	f.refreshCalls++
	f.refreshTokens = append(f.refreshTokens, refreshToken)
	gate := f.refreshGate
	err := f.refreshErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return f.newSession(time.Hour), nil
}

func (f *fakeAuthAPI) Register(ctx context.Context, email, password, firstName, lastName string) (*Session, error) {
	return f.newSession(time.Hour), nil
}

func (f *fakeAuthAPI) Logout(ctx context.Context, accessToken string) error {
	f.mu.Lock()
	f.logoutCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeAuthAPI) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

func (f *fakeAuthAPI) seenRefreshTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshTokens...)
}

// memStore is an in-memory secstore.Store for tests.
type memStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{m: make(map[string][]byte)}
}

func (s *memStore) Save(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.m[key] = cp
	return nil
}

func (s *memStore) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return nil, secstore.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func (s *memStore) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[key]
	return ok
}

// hookStore is a memStore that reports every Save, letting tests act at the
// instant a session is persisted.
type hookStore struct {
	*memStore
	onSave func(key string)
}

func (s *hookStore) Save(key string, value []byte) error {
	err := s.memStore.Save(key, value)
	if s.onSave != nil {
		s.onSave(key)
	}
	return err
}

func newTestManager(api *fakeAuthAPI) (*Manager, *memStore) {
	store := newMemStore()
	m := NewManager(api, store, DefaultConfig())
	return m, store
}

// =============================================================================
// LOGIN / LOGOUT / RESUME
// =============================================================================

func TestLoginPersistsSessionAndAuthenticates(t *testing.T) {
	api := &fakeAuthAPI{}
	m, store := newTestManager(api)
	defer m.Close()

	sess, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.Equal(t, StateAuthenticated, m.State())
	assert.True(t, store.Exists("session"))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, tok)
}

func TestLoginFailureLeavesStateUntouched(t *testing.T) {
	api := &fakeAuthAPI{}
	m, store := newTestManager(api)
	defer m.Close()

	_, err := m.Login(context.Background(), "pm@builder.test", "wrong")
	require.Error(t, err)
	assert.Equal(t, StateUnknown, m.State())
	assert.False(t, store.Exists("session"))
}

func TestLogoutClearsSessionAndPendingRoute(t *testing.T) {
	api := &fakeAuthAPI{}
	m, store := newTestManager(api)
	defer m.Close()

	_, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, m.SetPendingRoute("projects/42/rfis"))

	require.NoError(t, m.Logout(context.Background()))

	assert.Equal(t, StateUnauthenticated, m.State())
	assert.False(t, store.Exists("session"))
	assert.False(t, store.Exists("pending_route"))
	assert.Equal(t, 1, api.logoutCalls)

	_, err = m.Token(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestResumeWithoutPersistedSession(t *testing.T) {
	api := &fakeAuthAPI{}
	m, _ := newTestManager(api)
	defer m.Close()

	require.NoError(t, m.Resume(context.Background()))
	assert.Equal(t, StateUnauthenticated, m.State())
}

func TestResumeWithValidPersistedSession(t *testing.T) {
	api := &fakeAuthAPI{}
	store := newMemStore()

	sess := api.newSession(time.Hour)
	data, err := sess.marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save("session", data))

	m := NewManager(api, store, DefaultConfig())
	defer m.Close()

	require.NoError(t, m.Resume(context.Background()))
	assert.Equal(t, StateAuthenticated, m.State())

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, tok)
	assert.Equal(t, 0, api.refreshCount())
}

func TestResumeWithExpiredPersistedSessionRefreshes(t *testing.T) {
	api := &fakeAuthAPI{}
	store := newMemStore()

	sess := api.newSession(-time.Minute)
	data, err := sess.marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save("session", data))

	m := NewManager(api, store, DefaultConfig())
	defer m.Close()

	require.NoError(t, m.Resume(context.Background()))
	assert.Equal(t, StateAuthenticated, m.State())
	assert.Equal(t, 1, api.refreshCount())
}

func TestResumeWithExpiredSessionAndFailedRefresh(t *testing.T) {
	api := &fakeAuthAPI{refreshErr: errors.New("refresh token revoked")}
	store := newMemStore()

	sess := api.newSession(-time.Minute)
	data, err := sess.marshal()
	require.NoError(t, err)
	require.NoError(t, store.Save("session", data))

	m := NewManager(api, store, DefaultConfig())
	defer m.Close()

	err = m.Resume(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, StateUnauthenticated, m.State())
	assert.False(t, store.Exists("session"))
}

func TestResumeWithCorruptPersistedSession(t *testing.T) {
	api := &fakeAuthAPI{}
	store := newMemStore()
	require.NoError(t, store.Save("session", []byte("not json")))

	m := NewManager(api, store, DefaultConfig())
	defer m.Close()

	require.NoError(t, m.Resume(context.Background()))
	assert.Equal(t, StateUnauthenticated, m.State())
	assert.False(t, store.Exists("session"))
}

// =============================================================================
// REFRESH
// =============================================================================

func TestConcurrentUnauthorizedTriggersSingleRefresh(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAuthAPI{refreshGate: gate}
	m, _ := newTestManager(api)
	defer m.Close()

	_, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)

	const callers = 10
	var wg sync.WaitGroup
	retries := make([]bool, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			retries[i], errs[i] = m.HandleUnauthorized(context.Background())
		}(i)
	}

	// Give the callers a moment to pile up behind the in-flight exchange,
	// then release it.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		assert.True(t, retries[i], "caller %d", i)
	}
	assert.Equal(t, 1, api.refreshCount())
	assert.Equal(t, StateAuthenticated, m.State())
}

func TestRefreshFailureKeepsSessionUntilBudgetExhausted(t *testing.T) {
	api := &fakeAuthAPI{}
	m, store := newTestManager(api)
	defer m.Close()

	_, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)

	api.mu.Lock()
	api.refreshErr = errors.New("upstream 503")
	api.mu.Unlock()

	// Two failures stay within the budget of three.
	for i := 0; i < 2; i++ {
		_, err := m.RefreshTokens(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRefreshFailed)
		assert.Equal(t, StateAuthenticated, m.State())
		assert.True(t, store.Exists("session"))
	}

	// Third failure exhausts the budget and forces logout.
	_, err = m.RefreshTokens(context.Background())
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, StateUnauthenticated, m.State())
	assert.False(t, store.Exists("session"))
}

func TestRefreshSuccessResetsAttemptBudget(t *testing.T) {
	api := &fakeAuthAPI{}
	m, _ := newTestManager(api)
	defer m.Close()

	_, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)

	api.mu.Lock()
	api.refreshErr = errors.New("upstream 503")
	api.mu.Unlock()

	for i := 0; i < 2; i++ {
		_, err := m.RefreshTokens(context.Background())
		require.Error(t, err)
	}

	api.mu.Lock()
	api.refreshErr = nil
	api.mu.Unlock()

	_, err = m.RefreshTokens(context.Background())
	require.NoError(t, err)

	// The budget is back to three after a success.
	api.mu.Lock()
	api.refreshErr = errors.New("upstream 503")
	api.mu.Unlock()

	for i := 0; i < 2; i++ {
		_, err := m.RefreshTokens(context.Background())
		require.Error(t, err)
		assert.Equal(t, StateAuthenticated, m.State())
	}
}

func TestHandleUnauthorizedFailureForcesLogout(t *testing.T) {
	api := &fakeAuthAPI{}
	m, store := newTestManager(api)
	defer m.Close()

	_, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)

	api.mu.Lock()
	api.refreshErr = errors.New("refresh token revoked")
	api.mu.Unlock()

	retry, err := m.HandleUnauthorized(context.Background())
	assert.False(t, retry)
	require.Error(t, err)
	assert.Equal(t, StateUnauthenticated, m.State())
	assert.False(t, store.Exists("session"))
}

func TestRefreshTriggerDuringPersistUsesRotatedToken(t *testing.T) {
	api := &fakeAuthAPI{}
	store := &hookStore{memStore: newMemStore()}
	m := NewManager(api, store, DefaultConfig())
	defer m.Close()

	// Fire a second refresh at the instant the first one's result is being
	// persisted. Refresh tokens are single-use: the second exchange must
	// present the freshly rotated token, not the consumed one.
	var armed atomic.Bool
	store.onSave = func(key string) {
		if key == "session" && armed.CompareAndSwap(true, false) {
			_, _ = m.RefreshTokens(context.Background())
		}
	}

	sess, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)
	armed.Store(true)

	_, err = m.RefreshTokens(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return api.refreshCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	tokens := api.seenRefreshTokens()
	require.Len(t, tokens, 2)
	assert.Equal(t, sess.RefreshToken, tokens[0])
	assert.NotEqual(t, tokens[0], tokens[1], "second exchange reused a consumed refresh token")
	assert.Equal(t, StateAuthenticated, m.State())
}

func TestRefreshWithoutSession(t *testing.T) {
	api := &fakeAuthAPI{}
	m, _ := newTestManager(api)
	defer m.Close()

	_, err := m.RefreshTokens(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, api.refreshCount())
}

func TestCallerCancellationAbandonsWaitNotRefresh(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAuthAPI{refreshGate: gate}
	m, _ := newTestManager(api)
	defer m.Close()

	_, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.RefreshTokens(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// The exchange itself was not cancelled: release it and confirm the
	// new session landed.
	close(gate)
	require.Eventually(t, func() bool {
		return m.State() == StateAuthenticated && api.refreshCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

// =============================================================================
// PROACTIVE REFRESH
// =============================================================================

func TestCheckAndRefreshNoOpWithComfortableMargin(t *testing.T) {
	api := &fakeAuthAPI{}
	m, _ := newTestManager(api)
	defer m.Close()

	_, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, m.CheckAndRefreshIfNeeded(context.Background()))
	assert.Equal(t, 0, api.refreshCount())
}

func TestCheckAndRefreshNearExpiry(t *testing.T) {
	api := &fakeAuthAPI{}
	m, _ := newTestManager(api)
	defer m.Close()

	_, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)

	// Freeze the clock one minute before expiry so the session sits inside
	// the refresh margin.
	m.mu.Lock()
	frozen := m.sess.ExpiresAt.Add(-time.Minute)
	m.now = func() time.Time { return frozen }
	m.mu.Unlock()

	require.NoError(t, m.CheckAndRefreshIfNeeded(context.Background()))
	assert.Equal(t, 1, api.refreshCount())
}

func TestRefreshInsideMarginDoesNotRearmTimer(t *testing.T) {
	api := &fakeAuthAPI{}
	m, _ := newTestManager(api)
	defer m.Close()

	// Freeze the clock two minutes before the hour-long sessions the fake
	// issues expire, so every pair lands inside the five-minute margin. The
	// proactive timer must stay unarmed rather than fire at zero delay over
	// and over.
	frozen := time.Now().Add(58 * time.Minute)
	m.mu.Lock()
	m.now = func() time.Time { return frozen }
	m.mu.Unlock()

	_, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, api.refreshCount())

	// Token access still refreshes on demand, exactly once per request.
	require.NoError(t, m.CheckAndRefreshIfNeeded(context.Background()))
	assert.Equal(t, 1, api.refreshCount())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, api.refreshCount())
	assert.Equal(t, StateAuthenticated, m.State())
}

func TestProactiveRefreshTimerFires(t *testing.T) {
	api := &fakeAuthAPI{}
	store := newMemStore()
	cfg := DefaultConfig()
	cfg.RefreshMargin = 40 * time.Millisecond
	m := NewManager(api, store, cfg)
	defer m.Close()

	// Adopt a session that expires just past the margin so the timer
	// fires almost immediately.
	m.adoptSession(api.newSession(60 * time.Millisecond))

	require.Eventually(t, func() bool {
		return api.refreshCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateAuthenticated, m.State())
}

// =============================================================================
// OBSERVERS
// =============================================================================

func TestSubscribeReceivesTransitions(t *testing.T) {
	api := &fakeAuthAPI{}
	m, _ := newTestManager(api)
	defer m.Close()

	ch, cancel := m.Subscribe()
	defer cancel()

	_, err := m.Login(context.Background(), "pm@builder.test", "correct-horse")
	require.NoError(t, err)

	select {
	case change := <-ch:
		assert.Equal(t, StateAuthenticated, change.State)
		assert.Equal(t, "pm@builder.test", change.User.Email)
	case <-time.After(time.Second):
		t.Fatal("no state change delivered")
	}

	require.NoError(t, m.Logout(context.Background()))

	deadline := time.After(time.Second)
	for {
		select {
		case change := <-ch:
			if change.State == StateUnauthenticated {
				return
			}
		case <-deadline:
			t.Fatal("no logout notification delivered")
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	api := &fakeAuthAPI{}
	m, _ := newTestManager(api)
	defer m.Close()

	ch, cancel := m.Subscribe()
	cancel()

	_, open := <-ch
	assert.False(t, open)
}

// =============================================================================
// PENDING ROUTE
// =============================================================================

func TestPendingRouteRoundTrip(t *testing.T) {
	api := &fakeAuthAPI{}
	m, _ := newTestManager(api)
	defer m.Close()

	assert.Equal(t, "", m.PendingRoute())

	require.NoError(t, m.SetPendingRoute("projects/7/permissions"))
	assert.Equal(t, "projects/7/permissions", m.PendingRoute())

	require.NoError(t, m.ClearPendingRoute())
	assert.Equal(t, "", m.PendingRoute())
}
