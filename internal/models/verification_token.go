package models

import (
	"time"
)

// VerificationToken is a persisted single-use token for email verification or password reset.
// At most one active token exists per (UserID, Purpose).
type VerificationToken struct {
	ID        string
	UserID    string
	Purpose   TokenPurpose
	TokenHash string // SHA-256 of the signed token, never exposed
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the token has expired at the given instant
func (t *VerificationToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
