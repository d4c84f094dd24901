package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilauth/activation-service/internal/domain"
	"github.com/mobilauth/activation-service/internal/ports"
)

type callbackRepository struct {
	db *gorm.DB
}

func (r *callbackRepository) Create(ctx context.Context, cb *domain.CallbackConfig) error {
	rec := callbackModel{
		CallbackID:    cb.CallbackID,
		ApplicationID: cb.ApplicationID,
		Name:          cb.Name,
		URL:           cb.URL,
		CreatedAt:     cb.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *callbackRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]domain.CallbackConfig, error) {
	var rows []callbackModel
	if err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.CallbackConfig, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainCallback(row))
	}
	return out, nil
}

func (r *callbackRepository) Delete(ctx context.Context, callbackID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("callback_id = ?", callbackID).
		Delete(&callbackModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
