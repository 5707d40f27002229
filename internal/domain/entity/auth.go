// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Authentication represents a single method of logging in (a credential).
// A user's email/password is one record, while a linked Google or GitHub
// account is another.
type Authentication struct {
	ID             uuid.UUID    // The unique ID for this specific authentication record itself.
	UserID         uuid.UUID    // Links this authentication method to the User it belongs to.
	Provider       ProviderType // The authentication provider, e.g. "local", "google", "github".
	ProviderUserID string       // The user's unique ID from the provider (the email itself for "local", the provider's subject otherwise).
	PasswordHash   string       // Stores the argon2id digest of the password, only used when the Provider is "local".
	CreatedAt      time.Time    // Timestamp of when this authentication method was linked to the user account.
}

// RefreshToken represents a long-lived, authorized user session.
// It is used to obtain a new Access Token after the old one expires, without requiring credentials.
type RefreshToken struct {
	ID        uuid.UUID // The unique ID for this specific refresh token record.
	UserID    uuid.UUID // Links this session to the User it belongs to.
	TokenHash string    // Stores a SHA-256 hash of the raw refresh token for secure comparison in the database.
	ExpiresAt time.Time // The exact time when this refresh token will expire and become invalid.
	CreatedAt time.Time // Timestamp of when this session was created (i.e., when the user logged in).
}

// IsExpired reports whether the refresh token is past its expiry at the given instant.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
