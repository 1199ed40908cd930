package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNetwork marks transport-level failures (server unreachable, timeout).
	// The transport layer wraps such errors so the Manager can tell a network
	// blip apart from an authentication rejection.
	ErrNetwork = errors.New("network error")

	// ErrSessionExpired is returned to request-layer callers when a rejected
	// request could not be recovered and the session was terminated.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotAuthenticated is returned by operations that require a live session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Credentials are what the user types at the login prompt.
type Credentials struct {
	Username string
	Password string
}

// CheckResult is the server's answer to "who am I right now".
// Authenticated=false with a nil error is a definitive "nobody" — it is not
// a failure of the check itself.
type CheckResult struct {
	Authenticated bool
	User          *User
	ExpiresAt     time.Time
}

// LoginResult carries the claims from a successful login response. The Manager
// treats these as a fallback only: the canonical user/expiry always comes from
// a follow-up session check.
type LoginResult struct {
	User      *User
	ExpiresAt time.Time
}

// RefreshResult carries the new expiry after a credential renewal.
type RefreshResult struct {
	ExpiresAt time.Time
}

// API is the contract the Manager needs from the transport layer. All calls
// rely on the ambient cookie credential; none of them take or return tokens.
type API interface {
	// CheckSession asks the server whether the ambient credential identifies a
	// user. Idempotent and safe to call repeatedly.
	CheckSession(ctx context.Context) (*CheckResult, error)

	// Login exchanges credentials for a server-set cookie credential.
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)

	// Logout invalidates the server-side credential. Best-effort: the Manager
	// clears local state even if this fails.
	Logout(ctx context.Context, allDevices bool) error

	// Refresh renews the cookie credential using the server-held refresh token.
	Refresh(ctx context.Context) (*RefreshResult, error)
}

// Decision tells the request layer what to do with a request that came back
// unauthorized.
type Decision int

const (
	// DecisionRetry means the session was re-validated; retry the original request once.
	DecisionRetry Decision = iota

	// DecisionFail means the session could not be recovered; propagate the failure.
	DecisionFail
)
