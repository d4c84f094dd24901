package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mobilauth/activation-service/internal/domain"
	"github.com/mobilauth/activation-service/internal/ports"
)

type activationRepository struct {
	db *gorm.DB
}

func (r *activationRepository) Create(ctx context.Context, act *domain.Activation) error {
	rec, err := toActivationModel(*act)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *activationRepository) FindByID(ctx context.Context, activationID string) (domain.Activation, error) {
	var rec activationModel
	if err := r.db.WithContext(ctx).Where("activation_id = ?", activationID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Activation{}, domain.Errf(domain.ErrActivationNotFound, "activation not found")
		}
		return domain.Activation{}, err
	}
	return toDomainActivation(rec)
}

func (r *activationRepository) FindCreatedByCode(ctx context.Context, applicationID uuid.UUID, activationCode string) (domain.Activation, error) {
	var rec activationModel
	err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Where("activation_code = ?", activationCode).
		Where("status = ?", string(domain.ActivationCreated)).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Activation{}, domain.Errf(domain.ErrActivationNotFound, "activation not found")
		}
		return domain.Activation{}, err
	}
	return toDomainActivation(rec)
}

func (r *activationRepository) ListByUser(ctx context.Context, userID string, applicationID *uuid.UUID) ([]domain.Activation, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if applicationID != nil {
		query = query.Where("application_id = ?", *applicationID)
	}
	var rows []activationModel
	if err := query.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Activation, 0, len(rows))
	for _, row := range rows {
		act, err := toDomainActivation(row)
		if err != nil {
			return nil, err
		}
		out = append(out, act)
	}
	return out, nil
}

func (r *activationRepository) Update(ctx context.Context, act *domain.Activation) error {
	rec, err := toActivationModel(*act)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Save(&rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Errf(domain.ErrActivationNotFound, "activation not found")
	}
	return nil
}

// WithLocked serializes all mutations of one activation behind a SELECT ...
// FOR UPDATE row lock. The callback's error decides the transaction fate: a
// rollback-flagged error undoes saved writes, any other error commits them
// and is re-surfaced to the caller afterwards. That split is what lets a
// failed signature attempt keep its counter advance.
func (r *activationRepository) WithLocked(ctx context.Context, activationID string, fn ports.ActivationTxFunc) error {
	var softErr error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec activationModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("activation_id = ?", activationID).
			Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.Errf(domain.ErrActivationNotFound, "activation not found")
			}
			return err
		}
		act, err := toDomainActivation(rec)
		if err != nil {
			return err
		}
		save := func() error {
			row, err := toActivationModel(act)
			if err != nil {
				return err
			}
			return tx.Save(&row).Error
		}
		if err := fn(&act, save); err != nil {
			if domain.RollbackRequired(err) {
				return err
			}
			softErr = err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return softErr
}
