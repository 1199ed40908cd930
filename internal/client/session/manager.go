package session

import (
	"context"
	"sync"
	"time"

	"github.com/shiftworks/linetrack/internal/logging"
)

// Timing policy for session checks and credential renewal. One canonical set
// of constants, applied uniformly to every caller.
const (
	// checkThrottleWindow is the minimum time between two real session-check
	// network calls, no matter who asks (boot, user action, rejected request).
	checkThrottleWindow = 10 * time.Second

	// refreshHeadroom is how close to expiry the credential must be before the
	// loop starts renewing it.
	refreshHeadroom = 45 * time.Minute

	// idleSleep caps a single long sleep while plenty of validity remains, so
	// a logout or expiry change is picked up within one interval.
	idleSleep = 30 * time.Minute

	// minRefreshGap is the minimum spacing between successful renewals.
	minRefreshGap = 10 * time.Minute

	// failureRetryDelay is the flat wait after a failed renewal attempt.
	failureRetryDelay = 5 * time.Minute

	// successSleepFactor and minSuccessSleep size the sleep after a successful
	// renewal: max(successSleepFactor × timeUntilExpiry, minSuccessSleep).
	successSleepFactor = 0.8
	minSuccessSleep    = 10 * time.Minute
)

// ReasonSessionExpired is the logout reason used when a rejected request
// could not be recovered.
const ReasonSessionExpired = "session expired"

// LogoutOptions control how a logout is performed.
type LogoutOptions struct {
	// Silent clears local state without calling the remote logout endpoint or
	// redirecting the UI. Used for forced/background logout.
	Silent bool

	// Reason is recorded on the resulting session for the UI to display.
	Reason string

	// AllDevices asks the server to revoke every credential for this user.
	AllDevices bool
}

// Manager is the single owner of the client-side Session. UI code dispatches
// intents (Login/Logout) and observes status; the request layer reports
// rejected requests via HandleUnauthorized. Nobody else writes session state.
type Manager struct {
	api      API
	log      logging.Logger
	clk      clock
	redirect func()

	mu          sync.Mutex
	sess        Session
	lastCheck   time.Time
	lastRefresh time.Time
	generation  int
	loopCancel  context.CancelFunc
	subs        map[int]chan Session
	nextSubID   int
}

// Option configures a Manager.
type Option func(*Manager)

// WithRedirect sets the hook invoked after a non-silent logout, typically to
// route the UI back to the login entry point.
func WithRedirect(fn func()) Option {
	return func(m *Manager) { m.redirect = fn }
}

// NewManager constructs a Manager over the given transport.
func NewManager(api API, log logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		api:  api,
		log:  log,
		clk:  systemClock{},
		sess: Session{Status: StatusChecking},
		subs: make(map[int]chan Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns a copy of the current session state.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.clone()
}

// Subscribe returns a channel that receives the session after every state
// change, plus a cancel func. Notifications are coalesced: a slow reader sees
// the latest state, not every intermediate one.
func (m *Manager) Subscribe() (<-chan Session, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan Session, 1)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Initialize resolves the initial session state. If a live session is already
// cached in memory it only makes sure the refresh loop is running; otherwise
// it performs a session check. A transport failure preserves prior state and
// surfaces StatusNetworkError instead of logging the user out.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.sess.Authenticated() && m.clk.Now().Before(m.sess.ExpiresAt) {
		m.startLoopLocked()
		m.mu.Unlock()
		return nil
	}
	s := m.sess
	s.Status = StatusChecking
	s.Err = ""
	m.setLocked(s)
	gen := m.generation
	m.mu.Unlock()

	res, err := m.runCheck(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return nil
	}
	if err != nil {
		s := m.sess
		s.Status = StatusNetworkError
		s.Err = err.Error()
		m.setLocked(s)
		m.log.Warn(ctx, "session check failed", "error", err)
		return err
	}
	if !res.Authenticated {
		m.setLocked(Session{Status: StatusUnauthenticated})
		return nil
	}
	m.applyAuthLocked(res.User, res.ExpiresAt)
	m.startLoopLocked()
	return nil
}

// Login authenticates and re-derives the full session state from a follow-up
// session check, falling back to the login response's own claims only if that
// check fails. Starts the refresh loop on success.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	s := m.sess
	s.Status = StatusChecking
	s.Err = ""
	m.setLocked(s)
	gen := m.generation
	m.mu.Unlock()

	res, err := m.api.Login(ctx, creds)
	if err != nil {
		m.mu.Lock()
		if m.generation == gen {
			m.setLocked(Session{Status: StatusUnauthenticated, Err: err.Error()})
		}
		m.mu.Unlock()
		return err
	}

	user, expiresAt := res.User, res.ExpiresAt
	if chk, cerr := m.runCheck(ctx); cerr == nil && chk.Authenticated {
		user, expiresAt = chk.User, chk.ExpiresAt
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return nil
	}
	m.applyAuthLocked(user, expiresAt)
	m.startLoopLocked()
	m.log.Info(ctx, "logged in", "status", string(m.sess.Status))
	return nil
}

// Logout terminates the session. Unless silent, the remote credential is
// revoked (best-effort) and the redirect hook fires. Logout is idempotent:
// calling it while already unauthenticated just re-clears state.
func (m *Manager) Logout(ctx context.Context, opts LogoutOptions) {
	m.mu.Lock()
	m.generation++
	if m.loopCancel != nil {
		m.loopCancel()
		m.loopCancel = nil
	}
	m.mu.Unlock()

	if !opts.Silent {
		if err := m.api.Logout(ctx, opts.AllDevices); err != nil {
			m.log.Warn(ctx, "remote logout failed", "error", err)
		}
	}

	st := StatusUnauthenticated
	if opts.Reason == ReasonSessionExpired {
		st = StatusSessionExpired
	}
	m.mu.Lock()
	m.setLocked(Session{Status: st, Err: opts.Reason})
	m.mu.Unlock()

	if !opts.Silent && m.redirect != nil {
		m.redirect()
	}
}

// Refresh renews the credential once. Failure forces re-login; retries are the
// refresh loop's business, never done inline here.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.refresh(ctx, false)
}

// HandleUnauthorized is invoked by the request layer when any API call comes
// back with an auth rejection. Within the throttle window no network call is
// made and the most recent check's verdict stands for this caller too. Outside
// the window a real check runs; if it recovers the session the caller should
// retry, otherwise the session is terminated.
func (m *Manager) HandleUnauthorized(ctx context.Context) (Decision, error) {
	m.mu.Lock()
	throttled := !m.lastCheck.IsZero() && m.clk.Now().Sub(m.lastCheck) < checkThrottleWindow
	authed := m.sess.Authenticated()
	gen := m.generation
	m.mu.Unlock()

	if throttled {
		if authed {
			return DecisionRetry, nil
		}
		return DecisionFail, ErrSessionExpired
	}

	res, err := m.runCheck(ctx)
	if err != nil {
		// Could not verify; a transport failure is not an auth verdict.
		m.mu.Lock()
		if m.generation == gen {
			s := m.sess
			s.Status = StatusNetworkError
			s.Err = err.Error()
			m.setLocked(s)
		}
		m.mu.Unlock()
		return DecisionFail, err
	}
	if res.Authenticated {
		m.mu.Lock()
		if m.generation == gen {
			m.applyAuthLocked(res.User, res.ExpiresAt)
			m.startLoopLocked()
		}
		m.mu.Unlock()
		return DecisionRetry, nil
	}

	m.Logout(ctx, LogoutOptions{Reason: ReasonSessionExpired})
	return DecisionFail, ErrSessionExpired
}

// refresh performs one renewal attempt. On success the session is re-derived
// from a session check (the canonical source), with the refresh response as
// fallback. fromLoop selects the failure policy: the loop keeps the session
// alive while the credential is unexpired, an explicit Refresh does not.
func (m *Manager) refresh(ctx context.Context, fromLoop bool) error {
	m.mu.Lock()
	if !m.sess.Authenticated() {
		m.mu.Unlock()
		return ErrNotAuthenticated
	}
	gen := m.generation
	prev := m.sess.Status
	s := m.sess
	s.Status = StatusRefreshingToken
	m.setLocked(s)
	m.mu.Unlock()

	res, err := m.api.Refresh(ctx)

	var chk *CheckResult
	if err == nil {
		if c, cerr := m.runCheck(ctx); cerr == nil && c.Authenticated {
			chk = c
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		// Logged out while the call was in flight; discard the result.
		return nil
	}
	if err != nil {
		if fromLoop && m.clk.Now().Before(m.sess.ExpiresAt) {
			s := m.sess
			s.Status = prev
			m.setLocked(s)
			return err
		}
		if fromLoop {
			m.setLocked(Session{Status: StatusSessionExpired, Err: err.Error()})
			return err
		}
		m.setLocked(Session{Status: StatusUnauthenticated, Err: err.Error()})
		return err
	}

	user, expiresAt := m.sess.User, res.ExpiresAt
	if chk != nil {
		user, expiresAt = chk.User, chk.ExpiresAt
	}
	m.applyAuthLocked(user, expiresAt)
	m.lastRefresh = m.clk.Now()
	return nil
}

// runCheck performs a real session-check call, stamping lastCheck up front so
// concurrent unauthorized handlers are throttled while it is in flight.
func (m *Manager) runCheck(ctx context.Context) (*CheckResult, error) {
	m.mu.Lock()
	m.lastCheck = m.clk.Now()
	m.mu.Unlock()
	return m.api.CheckSession(ctx)
}

// applyAuthLocked installs an authenticated session atomically: status and
// user are never observable half-updated.
func (m *Manager) applyAuthLocked(user *User, expiresAt time.Time) {
	if user == nil {
		m.setLocked(Session{Status: StatusUnauthenticated, Err: "server reported no user"})
		return
	}
	st := StatusAuthenticated
	if user.AccountStatus == AccountStatusPendingActivation {
		st = StatusNeedsPasswordReset
	}
	u := *user
	m.setLocked(Session{Status: st, User: &u, ExpiresAt: expiresAt})
}

func (m *Manager) setLocked(s Session) {
	m.sess = s
	for _, ch := range m.subs {
		// Coalesce: replace a pending notification instead of blocking.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.clone():
		default:
		}
	}
}
