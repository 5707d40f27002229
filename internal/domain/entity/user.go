// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// User is the core entity in the system, representing a unique "person" or "account".
// It carries identity information only; credential material lives in Authentication.
type User struct {
	ID         uuid.UUID // The Global Unique Identifier (GUID) for the user.
	Email      string    // The user's primary contact email, used as the login identifier.
	Name       string    // The user's display name.
	IsVerified bool      // Whether the user has proven ownership of the email address.
	CreatedAt  time.Time // Timestamp of when this user account was created.
	UpdatedAt  time.Time // Timestamp of the last modification to this user's data.
}

// Principal is the authenticated identity attached to a request context
// after the access token has been verified. It is a read-only projection
// of the User at token-validation time.
type Principal struct {
	ID         uuid.UUID // The authenticated user's ID, taken from the token subject.
	Email      string    // The email claim carried by the access token.
	IsVerified bool      // The verified claim carried by the access token.
}
