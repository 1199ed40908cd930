// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/shiftworks/linetrack/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh
// tokens. All operations address tokens by their SHA-256 hash; the opaque
// token string never reaches storage.
type Repository interface {
	// Create stores a new refresh token hash for userID with an expiry of now+validity.
	Create(ctx context.Context, userID string, tokenHash string, validity time.Duration) error

	// Find looks up a refresh token by its hash and returns its metadata.
	// Implementations should return a not-found error when the token is absent.
	Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// Delete removes a refresh token by its hash. Deleting a non-existent
	// token should not be considered an error.
	Delete(ctx context.Context, tokenHash string) error

	// DeleteByUser removes every refresh token belonging to userID. Used for
	// the log-out-everywhere flow.
	DeleteByUser(ctx context.Context, userID string) error
}
