// Package httpapi exposes the linetrack HTTP surface: cookie-based session
// endpoints, the shift-log resource, and operational routes.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shiftworks/linetrack/internal/logging"
	"github.com/shiftworks/linetrack/internal/server/auth"
	"github.com/shiftworks/linetrack/internal/server/config"
	"github.com/shiftworks/linetrack/internal/server/models"
	"github.com/shiftworks/linetrack/internal/server/services"
)

// Session cookie names. The refresh cookie is path-limited so it only travels
// to the auth endpoints.
const (
	accessCookieName  = "lt_access"
	refreshCookieName = "lt_refresh"
	refreshCookiePath = "/api/v1/auth"
)

// userService is the slice of services.UserService the handlers need.
type userService interface {
	Login(ctx context.Context, userName, password string) (*models.User, *services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.User, *services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string, allDevices bool) error
	GetSessionUser(ctx context.Context, userID string) (*models.User, error)
}

// shiftLogService is the slice of services.ShiftLogService the handlers need.
type shiftLogService interface {
	Create(ctx context.Context, in *services.ShiftLogInput, userID string) (*models.ShiftLog, error)
	List(ctx context.Context) ([]*models.ShiftLog, error)
}

// attachmentService is the slice of services.AttachmentService the handlers need.
type attachmentService interface {
	PresignUpload(ctx context.Context, shiftLogID string) (string, error)
	PresignDownload(ctx context.Context, shiftLogID string) (string, error)
}

// loginLimiter matches ratelimit.Limiter. A nil limiter allows everything.
type loginLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Server struct {
	cfg         *config.Config
	log         logging.Logger
	users       userService
	shiftLogs   shiftLogService
	attachments attachmentService
	limiter     loginLimiter
}

func NewServer(cfg *config.Config, log logging.Logger, users userService, shiftLogs shiftLogService, attachments attachmentService, limiter loginLimiter) *Server {
	return &Server{
		cfg:         cfg,
		log:         log,
		users:       users,
		shiftLogs:   shiftLogs,
		attachments: attachments,
		limiter:     limiter,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/session", s.handleSession)
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/shiftlogs", s.handleListShiftLogs)
			r.Post("/shiftlogs", s.handleCreateShiftLog)
			r.Post("/shiftlogs/{shiftLogID}/attachment", s.handlePresignUpload)
			r.Get("/shiftlogs/{shiftLogID}/attachment", s.handlePresignDownload)
		})
	})

	return r
}

// ---- wire types ----

type userPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	AccountStatus string `json:"accountStatus"`
}

type sessionResponse struct {
	Status    string       `json:"status"`
	User      *userPayload `json:"user,omitempty"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
}

func toUserPayload(u *models.User) *userPayload {
	if u == nil {
		return nil
	}
	return &userPayload{ID: u.ID, Name: u.Name, Role: u.Role, AccountStatus: u.AccountStatus}
}

// ---- helpers ----

func decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) setSessionCookies(w http.ResponseWriter, pair *services.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  pair.AccessExpiresAt,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(s.cfg.RefreshTokenValidityDuration),
	})
}

func clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: accessCookieName, Value: "", Path: "/", HttpOnly: true, MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: refreshCookieName, Value: "", Path: refreshCookiePath, HttpOnly: true, MaxAge: -1})
}

// ---- auth middleware ----

type claimsKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(accessCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(cookie.Value, []byte(s.cfg.SecretKey))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
