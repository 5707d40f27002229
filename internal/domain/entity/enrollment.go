// Package entity contains the core business objects of the project.
package entity

import "time"

// PendingEnrollment is a signup that has not yet proven email ownership.
// It lives only in the ephemeral store, keyed by the normalized email, and
// is promoted into a durable User exactly once when the signup OTP checks
// out. If the OTP window lapses the entry simply expires and no account
// ever existed.
type PendingEnrollment struct {
	Name         string    `json:"name"`         // The display name supplied at registration.
	PasswordHash string    `json:"passwordHash"` // The argon2id digest of the chosen password. The plaintext is never stored.
	CreatedAt    time.Time `json:"createdAt"`    // When the registration was received.
}
