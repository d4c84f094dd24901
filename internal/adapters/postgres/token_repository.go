package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mobilauth/activation-service/internal/domain"
	"github.com/mobilauth/activation-service/internal/ports"
)

type tokenRepository struct {
	db *gorm.DB
}

func (r *tokenRepository) Create(ctx context.Context, token *domain.Token) error {
	rec := tokenModel{
		TokenID:       token.TokenID,
		ActivationID:  token.ActivationID,
		Secret:        token.Secret,
		SignatureType: string(token.SignatureType),
		CreatedAt:     token.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *tokenRepository) FindByID(ctx context.Context, tokenID string) (domain.Token, error) {
	var rec tokenModel
	if err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Token{}, domain.Errf(domain.ErrInvalidRequest, "token not found")
		}
		return domain.Token{}, err
	}
	return toDomainToken(rec), nil
}

// Remove deletes a token only when both identifiers match; deleting zero
// rows is reported as invalid rather than silently succeeding.
func (r *tokenRepository) Remove(ctx context.Context, tokenID, activationID string) error {
	res := r.db.WithContext(ctx).
		Where("token_id = ?", tokenID).
		Where("activation_id = ?", activationID).
		Delete(&tokenModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Errf(domain.ErrInvalidRequest, "token not found")
	}
	return nil
}
