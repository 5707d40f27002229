// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"

	"gatekeeper/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrAuthNotFound is returned when an authentication method is not found.
// This allows the application layer to handle specific outcomes without depending on database-specific errors.
var ErrAuthNotFound = errors.New("authentication method not found")

// AuthRepository defines the standard operations for credential persistence.
type AuthRepository interface {
	// CreateAuthentication persists a new authentication method (e.g., email/password, federated login).
	CreateAuthentication(ctx context.Context, auth *entity.Authentication) error

	// FindAuthentication retrieves an authentication method by its provider and provider-specific ID.
	FindAuthentication(ctx context.Context, provider entity.ProviderType, providerUserID string) (*entity.Authentication, error)

	// FindAuthenticationsByUserID retrieves every credential linked to a user.
	FindAuthenticationsByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Authentication, error)

	// UpdatePasswordHash replaces the stored password digest of a local credential.
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error

	// DeleteAuthenticationsByUserID removes every credential belonging to a user.
	DeleteAuthenticationsByUserID(ctx context.Context, userID uuid.UUID) error
}
