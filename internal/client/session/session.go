// Package session owns the client-side authentication session: current status,
// user identity, and credential expiry. The Manager is the single writer of
// that state. It coordinates login/logout/refresh against the server's session
// endpoint and runs a background loop that renews the credential before expiry.
//
// The actual credential never passes through this package: the transport layer
// keeps it in an HTTP-only cookie jar, and the Manager only ever learns
// "authenticated or not" plus the expiry reported by the server.
package session

import "time"

// Status describes where the session is in its lifecycle.
type Status string

const (
	// StatusChecking means a session check is in flight and no verdict exists yet.
	StatusChecking Status = "checking"

	// StatusUnauthenticated means there is no valid session.
	StatusUnauthenticated Status = "unauthenticated"

	// StatusAuthenticated means the user is logged in and the credential is live.
	StatusAuthenticated Status = "authenticated"

	// StatusRefreshingToken means a credential renewal is in flight.
	StatusRefreshingToken Status = "refreshing_token"

	// StatusNeedsPasswordReset means the user authenticated but the account is
	// still pending activation and must set a permanent password.
	StatusNeedsPasswordReset Status = "needs_password_reset"

	// StatusSessionExpired means the credential lapsed and renewal gave up;
	// the user must log in again.
	StatusSessionExpired Status = "session_expired"

	// StatusNetworkError means the last session check failed at the transport
	// level. Prior session state is preserved so the app can keep showing
	// cached data instead of logging the user out over a network blip.
	StatusNetworkError Status = "network_error"
)

// User is the identity record attached to an authenticated session.
type User struct {
	ID            string
	Name          string
	Role          string
	AccountStatus string
}

// Account statuses reported by the server.
const (
	AccountStatusActive            = "active"
	AccountStatusPendingActivation = "pending_activation"
)

// Session is the in-memory authentication state. Readers obtain copies via
// Manager.Snapshot or a subscription; only the Manager mutates it.
type Session struct {
	Status    Status
	User      *User
	ExpiresAt time.Time
	Err       string
}

// Authenticated reports whether the session carries a live identity
// (including the pending-activation and mid-refresh states).
func (s Session) Authenticated() bool {
	switch s.Status {
	case StatusAuthenticated, StatusRefreshingToken, StatusNeedsPasswordReset:
		return true
	}
	return false
}

func (s Session) clone() Session {
	out := s
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	return out
}
