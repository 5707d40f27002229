// Package entity contains the core business objects of the project.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// TokenPurpose restricts an action token to a single sensitive operation.
// A token issued for one purpose can never be redeemed for another.
type TokenPurpose string

const (
	// PurposeEmailVerify marks tokens that confirm ownership of an email address.
	PurposeEmailVerify TokenPurpose = "email_verify"
	// PurposePasswordReset marks tokens that authorize setting a new password.
	PurposePasswordReset TokenPurpose = "password_reset"
	// PurposeAccountDelete marks tokens that confirm irreversible account deletion.
	PurposeAccountDelete TokenPurpose = "account_delete"
)

// String returns the string representation of the TokenPurpose.
func (p TokenPurpose) String() string {
	return string(p)
}

// IsValid checks if the TokenPurpose is a valid value.
func (p TokenPurpose) IsValid() bool {
	switch p {
	case PurposeEmailVerify, PurposePasswordReset, PurposeAccountDelete:
		return true
	default:
		return false
	}
}

// ActionToken is a single-use, purpose-bound authorization for one sensitive
// operation (email verification, password reset, account deletion). Only the
// SHA-256 hash of the random secret is persisted; the plaintext exists solely
// in the delivery channel (the email link).
type ActionToken struct {
	ID         uuid.UUID    // The unique ID for this token record.
	UserID     uuid.UUID    // The user this token authorizes an action for.
	TokenHash  string       // SHA-256 hash (hex) of the random token secret.
	Purpose    TokenPurpose // The single operation this token may authorize.
	ExpiresAt  time.Time    // The exact time when this token becomes unusable.
	ConsumedAt *time.Time   // Set when the token has been redeemed; nil while still active.
	CreatedAt  time.Time    // Timestamp of when this token was issued.
}

// IsActive reports whether the token can still be redeemed at the given instant.
func (t *ActionToken) IsActive(now time.Time) bool {
	return t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}
