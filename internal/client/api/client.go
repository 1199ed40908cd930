// Package api implements the HTTP transport the session manager and CLI talk
// through. Credentials live in an HTTP-only cookie jar owned by the underlying
// http.Client; nothing in this package (or above it) ever reads a token.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/shiftworks/linetrack/internal/client/session"
	"github.com/shiftworks/linetrack/internal/common"
	"github.com/shiftworks/linetrack/internal/logging"
)

// UnauthorizedHandler is consulted when a resource request comes back 401.
// It reports whether the session was recovered (retry) or is gone (fail).
type UnauthorizedHandler func(ctx context.Context) (session.Decision, error)

// Client is a cookie-jar HTTP client for the linetrack API.
type Client struct {
	base           *url.URL
	http           *http.Client
	log            logging.Logger
	onUnauthorized UnauthorizedHandler
}

// NewClient builds a Client for the given base URL (e.g. "http://10.0.0.5:8080").
// A non-positive timeout falls back to 15 seconds.
func NewClient(baseURL string, timeout time.Duration, log logging.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar init error: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base: u,
		http: &http.Client{Jar: jar, Timeout: timeout},
		log:  log,
	}, nil
}

// SetUnauthorizedHandler wires the session manager's recovery hook into the
// request path. Set once at startup, before concurrent use.
func (c *Client) SetUnauthorizedHandler(fn UnauthorizedHandler) {
	c.onUnauthorized = fn
}

// ---- wire types ----

type userPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	AccountStatus string `json:"accountStatus"`
}

func (u *userPayload) toUser() *session.User {
	if u == nil {
		return nil
	}
	return &session.User{ID: u.ID, Name: u.Name, Role: u.Role, AccountStatus: u.AccountStatus}
}

type sessionResponse struct {
	Status    string       `json:"status"`
	User      *userPayload `json:"user,omitempty"`
	ExpiresAt time.Time    `json:"expiresAt,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ShiftLog is a production log entry as returned by the API.
type ShiftLog struct {
	ID        string    `json:"id"`
	Line      string    `json:"line"`
	Shift     string    `json:"shift"`
	BagColor  string    `json:"bagColor"`
	BagSize   string    `json:"bagSize"`
	Quantity  int       `json:"quantity"`
	Note      string    `json:"note,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// ShiftLogInput is the payload for creating a production log entry.
type ShiftLogInput struct {
	Line     string `json:"line"`
	Shift    string `json:"shift"`
	BagColor string `json:"bagColor"`
	BagSize  string `json:"bagSize"`
	Quantity int    `json:"quantity"`
	Note     string `json:"note,omitempty"`
}

// ---- session.API implementation ----

// CheckSession asks the server who the ambient cookie identifies.
// Any HTTP status is a definitive verdict; only transport failures are errors.
func (c *Client) CheckSession(ctx context.Context) (*session.CheckResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/auth/session", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding session response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "authenticated" {
		return &session.CheckResult{Authenticated: false}, nil
	}
	return &session.CheckResult{
		Authenticated: true,
		User:          body.User.toUser(),
		ExpiresAt:     body.ExpiresAt,
	}, nil
}

func (c *Client) Login(ctx context.Context, creds session.Credentials) (*session.LoginResult, error) {
	payload := map[string]string{"username": creds.Username, "password": creds.Password}
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	return &session.LoginResult{User: body.User.toUser(), ExpiresAt: body.ExpiresAt}, nil
}

func (c *Client) Logout(ctx context.Context, allDevices bool) error {
	path := "/api/v1/auth/logout"
	if allDevices {
		path += "?all=1"
	}
	resp, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func (c *Client) Refresh(ctx context.Context) (*session.RefreshResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/v1/auth/refresh", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding refresh response: %w", err)
	}
	return &session.RefreshResult{ExpiresAt: body.ExpiresAt}, nil
}

// ---- resource calls (401-aware) ----

func (c *Client) ListShiftLogs(ctx context.Context) ([]ShiftLog, error) {
	var out []ShiftLog
	if err := c.doAuthed(ctx, http.MethodGet, "/api/v1/shiftlogs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateShiftLog(ctx context.Context, in ShiftLogInput) (*ShiftLog, error) {
	var out ShiftLog
	if err := c.doAuthed(ctx, http.MethodPost, "/api/v1/shiftlogs", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AttachmentUploadURL asks for a presigned PUT URL for a shift-log photo.
func (c *Client) AttachmentUploadURL(ctx context.Context, shiftLogID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	path := "/api/v1/shiftlogs/" + url.PathEscape(shiftLogID) + "/attachment"
	if err := c.doAuthed(ctx, http.MethodPost, path, nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// doAuthed performs a resource request. On a 401 it consults the unauthorized
// handler and retries the original request exactly once if the session was
// recovered; otherwise the handler's error propagates.
func (c *Client) doAuthed(ctx context.Context, method, path string, in, out any) error {
	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, method, path, in)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 && c.onUnauthorized != nil {
			resp.Body.Close()
			decision, herr := c.onUnauthorized(ctx)
			if decision == session.DecisionRetry {
				continue
			}
			if herr != nil {
				return herr
			}
			return session.ErrSessionExpired
		}

		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return apiError(resp)
		}
		if out == nil {
			io.Copy(io.Discard, resp.Body)
			return nil
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}
}

// do builds and executes one request. Transport failures are wrapped in
// session.ErrNetwork so callers can tell them apart from auth verdicts.
func (c *Client) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrNetwork, err)
	}
	return resp, nil
}

func apiError(resp *http.Response) error {
	var body errorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: server returned %d: %s", common.ErrTooManyAttempts, resp.StatusCode, msg)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
}
