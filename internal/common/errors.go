// Package common defines shared constants and sentinel errors used across
// client and server layers of linetrack. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Account state errors.
	ErrAccountDisabled = errors.New("account disabled")

	// Validation errors.
	ErrInvalidInput = errors.New("invalid input")

	// Rate limiting.
	ErrTooManyAttempts = errors.New("too many attempts")
)
