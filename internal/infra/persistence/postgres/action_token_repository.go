// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"gatekeeper/internal/domain/entity"
	domainerrors "gatekeeper/internal/domain/errors"
	"gatekeeper/internal/domain/repository"
	"gatekeeper/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// actionTokenRepository implements the domain.ActionTokenRepository interface.
type actionTokenRepository struct {
	db *gorm.DB
}

// NewActionTokenRepository is the constructor for actionTokenRepository.
func NewActionTokenRepository(db *gorm.DB) repository.ActionTokenRepository {
	return &actionTokenRepository{db: db}
}

// CreateActionToken persists a newly issued token record.
func (repo *actionTokenRepository) CreateActionToken(ctx context.Context, token *entity.ActionToken) error {
	tokenM := fromActionTokenDomain(token)

	if err := repo.db.WithContext(ctx).Create(tokenM).Error; err != nil {
		// Convert PostgreSQL errors to domain errors
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrActionTokenInvalid.WrapMessage("action token already exists")
		}
		if isForeignKeyConstraintViolation(err) {
			return domainerrors.ErrUserNotFound.WrapMessage("invalid user reference")
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrActionTokenInvalid.WrapMessage("missing required token information")
		}
		// For other database errors, return a generic database error
		return domainerrors.NewDatabaseExecuteError(err, "failed to create action token")
	}

	// Update the entity with generated values
	token.ID = tokenM.ID
	token.CreatedAt = tokenM.CreatedAt

	return nil
}

// FindActiveByHash retrieves the unconsumed, unexpired token matching the given hash and purpose.
func (repo *actionTokenRepository) FindActiveByHash(ctx context.Context, tokenHash string, purpose entity.TokenPurpose) (*entity.ActionToken, error) {
	var tokenM model.ActionTokenModel
	if err := repo.db.WithContext(ctx).
		Where("token_hash = ? AND purpose = ? AND consumed_at IS NULL AND expires_at > ?",
			tokenHash, purpose.String(), time.Now()).
		First(&tokenM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrActionTokenNotFound
		}

		return nil, errors.WithStack(err)
	}

	return toActionTokenDomain(&tokenM), nil
}

// ConsumeActionToken marks a token as redeemed and reports whether this call won.
// The guard on consumed_at makes the update a compare-and-set, so two concurrent
// redemptions of the same token resolve to exactly one winner.
func (repo *actionTokenRepository) ConsumeActionToken(ctx context.Context, id uuid.UUID) (bool, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.ActionTokenModel{}).
		Where("id = ? AND consumed_at IS NULL", id).
		Update("consumed_at", time.Now())
	if result.Error != nil {
		return false, errors.WithStack(result.Error)
	}

	return result.RowsAffected > 0, nil
}

// InvalidateActiveTokens consumes every still-active token a user holds for the given purpose.
func (repo *actionTokenRepository) InvalidateActiveTokens(ctx context.Context, userID uuid.UUID, purpose entity.TokenPurpose) error {
	if err := repo.db.WithContext(ctx).
		Model(&model.ActionTokenModel{}).
		Where("user_id = ? AND purpose = ? AND consumed_at IS NULL", userID, purpose.String()).
		Update("consumed_at", time.Now()).Error; err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// DeleteActionTokensByUserID removes every token record belonging to a user.
func (repo *actionTokenRepository) DeleteActionTokensByUserID(ctx context.Context, userID uuid.UUID) error {
	if err := repo.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.ActionTokenModel{}).Error; err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// --- Mapper Functions ---

// toActionTokenDomain converts a GORM ActionTokenModel to a domain ActionToken entity.
func toActionTokenDomain(data *model.ActionTokenModel) *entity.ActionToken {
	if data == nil {
		return nil
	}

	return &entity.ActionToken{
		ID:         data.ID,
		UserID:     data.UserID,
		Purpose:    entity.TokenPurpose(data.Purpose),
		TokenHash:  data.TokenHash,
		ExpiresAt:  data.ExpiresAt,
		ConsumedAt: data.ConsumedAt,
		CreatedAt:  data.CreatedAt,
	}
}

// fromActionTokenDomain converts a domain ActionToken entity to a GORM ActionTokenModel.
func fromActionTokenDomain(data *entity.ActionToken) *model.ActionTokenModel {
	if data == nil {
		return nil
	}

	return &model.ActionTokenModel{
		ID:         data.ID,
		UserID:     data.UserID,
		Purpose:    string(data.Purpose),
		TokenHash:  data.TokenHash,
		ExpiresAt:  data.ExpiresAt,
		ConsumedAt: data.ConsumedAt,
	}
}
