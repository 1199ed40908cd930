package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shiftworks/linetrack/internal/common"
	"github.com/shiftworks/linetrack/internal/server/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if s.limiter != nil {
		key := fmt.Sprintf("login:%s:%s", username, clientIP(r))
		ok, err := s.limiter.Allow(r.Context(), key)
		if err != nil {
			s.log.Warn(r.Context(), "rate limiter unavailable", "error", err)
		}
		if !ok {
			rateLimitedTotal.Inc()
			writeError(w, http.StatusTooManyRequests, "too_many_attempts")
			return
		}
	}

	user, pair, err := s.users.Login(r.Context(), username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrAccountDisabled):
			writeError(w, http.StatusForbidden, "account_disabled")
		case errors.Is(err, common.ErrorUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
		default:
			s.log.Error(r.Context(), "login failed", "error", err)
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	loginsTotal.Inc()
	s.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		Status:    "authenticated",
		User:      toUserPayload(user),
		ExpiresAt: &pair.AccessExpiresAt,
	})
}

// handleSession reports the caller's session state. It always answers 200:
// an absent or stale cookie is an unauthenticated session, not an error.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	unauthenticated := sessionResponse{Status: "unauthenticated"}

	cookie, err := r.Cookie(accessCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusOK, unauthenticated)
		return
	}

	claims, err := auth.ParseToken(cookie.Value, []byte(s.cfg.SecretKey))
	if err != nil {
		writeJSON(w, http.StatusOK, unauthenticated)
		return
	}

	user, err := s.users.GetSessionUser(r.Context(), claims.UserID)
	if err != nil {
		if !errors.Is(err, common.ErrorUnauthorized) {
			s.log.Error(r.Context(), "session lookup failed", "error", err)
		}
		writeJSON(w, http.StatusOK, unauthenticated)
		return
	}

	expires := claims.ExpiresAt.Time
	writeJSON(w, http.StatusOK, sessionResponse{
		Status:    "authenticated",
		User:      toUserPayload(user),
		ExpiresAt: &expires,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		writeError(w, http.StatusUnauthorized, "missing_refresh_token")
		return
	}

	user, pair, err := s.users.RefreshToken(r.Context(), cookie.Value)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRefreshTokenExpired):
			clearSessionCookies(w)
			writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		case errors.Is(err, common.ErrInvalidToken):
			clearSessionCookies(w)
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		default:
			s.log.Error(r.Context(), "token refresh failed", "error", err)
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	refreshesTotal.Inc()
	s.setSessionCookies(w, pair)
	writeJSON(w, http.StatusOK, sessionResponse{
		Status:    "authenticated",
		User:      toUserPayload(user),
		ExpiresAt: &pair.AccessExpiresAt,
	})
}

// handleLogout revokes the presented refresh token (all of the user's tokens
// with ?all=1) and clears both cookies. Revocation is best effort: the
// response is 200 even when the token is already gone.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	allDevices := r.URL.Query().Get("all") == "1"

	var refreshToken string
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		refreshToken = cookie.Value
	}

	if err := s.users.Logout(r.Context(), refreshToken, allDevices); err != nil {
		s.log.Warn(r.Context(), "logout cleanup failed", "error", err)
	}

	clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
