package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shiftworks/linetrack/internal/logging"
)

// ---- fakes ----

type fakeAPI struct {
	mu sync.Mutex

	CheckRet   *CheckResult
	CheckErr   error
	CheckCalls int

	LoginRet   *LoginResult
	LoginErr   error
	LoginCalls int

	LogoutErr            error
	LogoutCalls          int
	LastLogoutAllDevices bool

	RefreshRet   *RefreshResult
	RefreshErr   error
	RefreshCalls int
}

func (f *fakeAPI) CheckSession(ctx context.Context) (*CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CheckCalls++
	if f.CheckErr != nil {
		return nil, f.CheckErr
	}
	r := *f.CheckRet
	return &r, nil
}

func (f *fakeAPI) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoginCalls++
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	r := *f.LoginRet
	return &r, nil
}

func (f *fakeAPI) Logout(ctx context.Context, allDevices bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogoutCalls++
	f.LastLogoutAllDevices = allDevices
	return f.LogoutErr
}

func (f *fakeAPI) Refresh(ctx context.Context) (*RefreshResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshCalls++
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	r := *f.RefreshRet
	return &r, nil
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) checkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CheckCalls
}

func (f *fakeAPI) refreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RefreshCalls
}

// fakeClock feeds deterministic time to the Manager. Each After call reports
// its duration on asleep and parks on a channel the test can fire.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	asleep chan time.Duration
	timers chan chan time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{
		now:    start,
		asleep: make(chan time.Duration, 64),
		timers: make(chan chan time.Time, 64),
	}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.asleep <- d
	c.timers <- ch
	return ch
}

// fire wakes the oldest parked sleeper.
func (c *fakeClock) fire(t *testing.T) {
	t.Helper()
	select {
	case ch := <-c.timers:
		ch <- c.Now()
	case <-time.After(2 * time.Second):
		t.Fatal("no parked timer to fire")
	}
}

func waitSleep(t *testing.T, c *fakeClock) time.Duration {
	t.Helper()
	select {
	case d := <-c.asleep:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("expected the loop to sleep")
		return 0
	}
}

func noSleepWithin(t *testing.T, c *fakeClock, d time.Duration) {
	t.Helper()
	select {
	case got := <-c.asleep:
		t.Fatalf("unexpected sleep of %v", got)
	case <-time.After(d):
	}
}

// ---- helpers ----

func testUser() *User {
	return &User{ID: "u1", Name: "Lina Ortiz", Role: "worker", AccountStatus: AccountStatusActive}
}

func newTestManager(t *testing.T, api API, opts ...Option) (*Manager, *fakeClock) {
	t.Helper()
	log := logging.NewSlogLogger(testSlog(t))
	m := NewManager(api, log, opts...)
	clk := newFakeClock(time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC))
	m.clk = clk
	t.Cleanup(func() {
		m.Logout(context.Background(), LogoutOptions{Silent: true})
		requireLoopStopped(t, m)
	})
	return m, clk
}

func requireLoopStopped(t *testing.T, m *Manager) {
	t.Helper()
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.loopCancel == nil
	}, 2*time.Second, 5*time.Millisecond, "refresh loop must stop")
}

// ---- initialize ----

func TestInitialize_HappyPath(t *testing.T) {
	api := &fakeAPI{CheckRet: &CheckResult{
		Authenticated: true,
		User:          testUser(),
		ExpiresAt:     time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}}
	m, _ := newTestManager(t, api)

	require.NoError(t, m.Initialize(context.Background()))

	s := m.Snapshot()
	require.Equal(t, StatusAuthenticated, s.Status)
	require.NotNil(t, s.User)
	require.Equal(t, "u1", s.User.ID)
	require.Equal(t, 1, api.checkCalls())
}

func TestInitialize_Unauthenticated(t *testing.T) {
	api := &fakeAPI{CheckRet: &CheckResult{Authenticated: false}}
	m, _ := newTestManager(t, api)

	require.NoError(t, m.Initialize(context.Background()))

	s := m.Snapshot()
	require.Equal(t, StatusUnauthenticated, s.Status)
	require.Nil(t, s.User)
}

func TestInitialize_NetworkBlip_PreservesPriorIdentity(t *testing.T) {
	api := &fakeAPI{CheckRet: &CheckResult{
		Authenticated: true,
		User:          testUser(),
		ExpiresAt:     time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}}
	m, clk := newTestManager(t, api)
	require.NoError(t, m.Initialize(context.Background()))

	// Credential lapsed, and now the server is unreachable.
	clk.Advance(2 * time.Hour)
	api.set(func(f *fakeAPI) { f.CheckErr = fmt.Errorf("%w: connection refused", ErrNetwork) })

	err := m.Initialize(context.Background())
	require.ErrorIs(t, err, ErrNetwork)

	s := m.Snapshot()
	require.Equal(t, StatusNetworkError, s.Status)
	require.NotNil(t, s.User, "a network blip must not wipe the cached identity")
	require.Equal(t, "u1", s.User.ID)
}

func TestInitialize_CachedLiveSession_SkipsNetwork(t *testing.T) {
	api := &fakeAPI{CheckRet: &CheckResult{
		Authenticated: true,
		User:          testUser(),
		ExpiresAt:     time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}}
	m, _ := newTestManager(t, api)
	require.NoError(t, m.Initialize(context.Background()))
	require.Equal(t, 1, api.checkCalls())

	// Second init with a live in-memory session: no extra check.
	require.NoError(t, m.Initialize(context.Background()))
	require.Equal(t, 1, api.checkCalls())
}

// ---- login ----

func TestLogin_SessionCheckIsSourceOfTruth(t *testing.T) {
	loginUser := &User{ID: "u1", Name: "stale-name", Role: "worker", AccountStatus: AccountStatusActive}
	canonical := testUser()
	api := &fakeAPI{
		LoginRet: &LoginResult{User: loginUser, ExpiresAt: time.Date(2025, 6, 2, 8, 30, 0, 0, time.UTC)},
		CheckRet: &CheckResult{Authenticated: true, User: canonical, ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
	}
	m, _ := newTestManager(t, api)

	require.NoError(t, m.Login(context.Background(), Credentials{Username: "lina", Password: "pw"}))

	s := m.Snapshot()
	require.Equal(t, StatusAuthenticated, s.Status)
	require.Equal(t, "Lina Ortiz", s.User.Name, "identity must come from the session check")
	require.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), s.ExpiresAt)
}

func TestLogin_FallsBackToLoginClaimsWhenCheckFails(t *testing.T) {
	api := &fakeAPI{
		LoginRet: &LoginResult{User: testUser(), ExpiresAt: time.Date(2025, 6, 2, 8, 45, 0, 0, time.UTC)},
		CheckErr: fmt.Errorf("%w: timeout", ErrNetwork),
	}
	m, _ := newTestManager(t, api)

	require.NoError(t, m.Login(context.Background(), Credentials{Username: "lina", Password: "pw"}))

	s := m.Snapshot()
	require.Equal(t, StatusAuthenticated, s.Status)
	require.Equal(t, "u1", s.User.ID)
	require.Equal(t, time.Date(2025, 6, 2, 8, 45, 0, 0, time.UTC), s.ExpiresAt)
}

func TestLogin_PendingActivation_NeedsPasswordReset(t *testing.T) {
	u := testUser()
	u.AccountStatus = AccountStatusPendingActivation
	api := &fakeAPI{
		LoginRet: &LoginResult{User: u, ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
		CheckRet: &CheckResult{Authenticated: true, User: u, ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
	}
	m, _ := newTestManager(t, api)

	require.NoError(t, m.Login(context.Background(), Credentials{Username: "lina", Password: "pw"}))
	require.Equal(t, StatusNeedsPasswordReset, m.Snapshot().Status)
}

func TestLogin_Failure(t *testing.T) {
	api := &fakeAPI{LoginErr: errors.New("invalid credentials")}
	m, _ := newTestManager(t, api)

	require.Error(t, m.Login(context.Background(), Credentials{Username: "lina", Password: "nope"}))

	s := m.Snapshot()
	require.Equal(t, StatusUnauthenticated, s.Status)
	require.Contains(t, s.Err, "invalid credentials")
}

// Atomicity: no observer may ever see authenticated without a user.
func TestStateChanges_AtomicFromObserverPerspective(t *testing.T) {
	api := &fakeAPI{
		LoginRet: &LoginResult{User: testUser(), ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
		CheckRet: &CheckResult{Authenticated: true, User: testUser(), ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
	}
	m, _ := newTestManager(t, api)

	ch, cancel := m.Subscribe()
	defer cancel()

	require.NoError(t, m.Login(context.Background(), Credentials{Username: "lina", Password: "pw"}))

	deadline := time.After(time.Second)
	for {
		select {
		case s := <-ch:
			if s.Authenticated() {
				require.NotNil(t, s.User, "authenticated state published without a user")
			}
			if s.Status == StatusAuthenticated {
				return
			}
		case <-deadline:
			t.Fatal("never observed the authenticated state")
		}
	}
}

// ---- logout ----

func TestLogout_Idempotent(t *testing.T) {
	api := &fakeAPI{CheckRet: &CheckResult{Authenticated: false}}
	m, _ := newTestManager(t, api)
	require.NoError(t, m.Initialize(context.Background()))

	m.Logout(context.Background(), LogoutOptions{})
	first := m.Snapshot()
	m.Logout(context.Background(), LogoutOptions{})
	second := m.Snapshot()

	require.Equal(t, StatusUnauthenticated, first.Status)
	require.Equal(t, first, second)
	require.Nil(t, second.User)
}

func TestLogout_Silent_SkipsRemoteAndRedirect(t *testing.T) {
	redirected := false
	api := &fakeAPI{CheckRet: &CheckResult{
		Authenticated: true, User: testUser(), ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}}
	m, _ := newTestManager(t, api, WithRedirect(func() { redirected = true }))
	require.NoError(t, m.Initialize(context.Background()))

	m.Logout(context.Background(), LogoutOptions{Silent: true})

	require.Equal(t, 0, api.LogoutCalls)
	require.False(t, redirected)
	require.Equal(t, StatusUnauthenticated, m.Snapshot().Status)
}

func TestLogout_AllDevices_PropagatedToServer(t *testing.T) {
	api := &fakeAPI{CheckRet: &CheckResult{Authenticated: false}}
	m, _ := newTestManager(t, api)

	m.Logout(context.Background(), LogoutOptions{AllDevices: true})

	require.Equal(t, 1, api.LogoutCalls)
	require.True(t, api.LastLogoutAllDevices)
}

func TestLogout_RemoteFailureStillClearsLocalState(t *testing.T) {
	api := &fakeAPI{
		CheckRet:  &CheckResult{Authenticated: true, User: testUser(), ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
		LogoutErr: errors.New("server down"),
	}
	m, _ := newTestManager(t, api)
	require.NoError(t, m.Initialize(context.Background()))

	m.Logout(context.Background(), LogoutOptions{})

	require.Equal(t, StatusUnauthenticated, m.Snapshot().Status)
}

// ---- refresh (explicit) ----

func TestRefresh_FailureForcesReLogin(t *testing.T) {
	api := &fakeAPI{
		CheckRet:   &CheckResult{Authenticated: true, User: testUser(), ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
		RefreshErr: errors.New("refresh token rejected"),
	}
	m, _ := newTestManager(t, api)
	require.NoError(t, m.Initialize(context.Background()))

	require.Error(t, m.Refresh(context.Background()))
	require.Equal(t, StatusUnauthenticated, m.Snapshot().Status)
}

func TestRefresh_NotAuthenticated(t *testing.T) {
	api := &fakeAPI{CheckRet: &CheckResult{Authenticated: false}}
	m, _ := newTestManager(t, api)
	require.NoError(t, m.Initialize(context.Background()))

	require.ErrorIs(t, m.Refresh(context.Background()), ErrNotAuthenticated)
}

// ---- unauthorized handling ----

func TestHandleUnauthorized_ThrottleWindow(t *testing.T) {
	api := &fakeAPI{CheckRet: &CheckResult{
		Authenticated: true, User: testUser(), ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}}
	m, clk := newTestManager(t, api)
	require.NoError(t, m.Initialize(context.Background()))
	require.Equal(t, 1, api.checkCalls())

	// A burst of rejected requests inside the window: no extra checks, and the
	// last check's verdict (authenticated) stands for everyone.
	for i := 0; i < 5; i++ {
		d, err := m.HandleUnauthorized(context.Background())
		require.NoError(t, err)
		require.Equal(t, DecisionRetry, d)
	}
	require.Equal(t, 1, api.checkCalls())

	// Window elapsed: the next rejection triggers exactly one real check.
	clk.Advance(11 * time.Second)
	d, err := m.HandleUnauthorized(context.Background())
	require.NoError(t, err)
	require.Equal(t, DecisionRetry, d)
	require.Equal(t, 2, api.checkCalls())
}

func TestHandleUnauthorized_StaleSession_ForcesLogout(t *testing.T) {
	redirected := false
	api := &fakeAPI{CheckRet: &CheckResult{
		Authenticated: true, User: testUser(), ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}}
	m, clk := newTestManager(t, api, WithRedirect(func() { redirected = true }))
	require.NoError(t, m.Initialize(context.Background()))

	clk.Advance(11 * time.Second)
	api.set(func(f *fakeAPI) { f.CheckRet = &CheckResult{Authenticated: false} })

	d, err := m.HandleUnauthorized(context.Background())

	require.Equal(t, DecisionFail, d)
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Equal(t, 1, api.LogoutCalls, "stale session must trigger a non-silent logout")
	require.True(t, redirected)
	require.Equal(t, StatusSessionExpired, m.Snapshot().Status)
}

func TestHandleUnauthorized_NetworkErrorDoesNotLogout(t *testing.T) {
	api := &fakeAPI{CheckRet: &CheckResult{
		Authenticated: true, User: testUser(), ExpiresAt: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
	}}
	m, clk := newTestManager(t, api)
	require.NoError(t, m.Initialize(context.Background()))

	clk.Advance(11 * time.Second)
	api.set(func(f *fakeAPI) { f.CheckErr = fmt.Errorf("%w: no route to host", ErrNetwork) })

	d, err := m.HandleUnauthorized(context.Background())

	require.Equal(t, DecisionFail, d)
	require.ErrorIs(t, err, ErrNetwork)
	require.Equal(t, 0, api.LogoutCalls)

	s := m.Snapshot()
	require.Equal(t, StatusNetworkError, s.Status)
	require.NotNil(t, s.User)
}

func TestHandleUnauthorized_ThrottledAndUnauthenticated_Fails(t *testing.T) {
	api := &fakeAPI{CheckRet: &CheckResult{Authenticated: false}}
	m, _ := newTestManager(t, api)
	require.NoError(t, m.Initialize(context.Background()))

	// Within the window after that check, the cached verdict is final.
	d, err := m.HandleUnauthorized(context.Background())
	require.Equal(t, DecisionFail, d)
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Equal(t, 1, api.checkCalls())
}
