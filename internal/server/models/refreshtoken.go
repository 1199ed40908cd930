package models

import "time"

// RefreshToken is the stored form of a refresh credential. Only the SHA-256
// hash of the opaque token ever reaches the database.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	Expires   time.Time
	CreatedAt time.Time
}
