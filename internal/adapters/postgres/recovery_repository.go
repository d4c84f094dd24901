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

type recoveryRepository struct {
	db *gorm.DB
}

func (r *recoveryRepository) Create(ctx context.Context, code *domain.RecoveryCode) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := toRecoveryCodeModel(*code)
		if err := tx.Create(&rec).Error; err != nil {
			if isUniqueViolation(err) {
				return ports.ErrDuplicate
			}
			return err
		}
		for _, puk := range code.Puks {
			row := toRecoveryPukModel(puk)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// recoveryTx carries the in-transaction handle handed to locked callbacks.
type recoveryTx struct {
	tx   *gorm.DB
	code *domain.RecoveryCode
}

func (t *recoveryTx) Save() error {
	rec := toRecoveryCodeModel(*t.code)
	if err := t.tx.Save(&rec).Error; err != nil {
		return err
	}
	for _, puk := range t.code.Puks {
		row := toRecoveryPukModel(puk)
		if err := t.tx.Save(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (t *recoveryTx) CreateActivation(act *domain.Activation) error {
	row, err := toActivationModel(*act)
	if err != nil {
		return err
	}
	if err := t.tx.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *recoveryRepository) WithLockedByID(ctx context.Context, recoveryCodeID uuid.UUID, fn ports.RecoveryTxFunc) error {
	return r.withLocked(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("recovery_code_id = ?", recoveryCodeID)
	}, fn)
}

func (r *recoveryRepository) WithLockedByCode(ctx context.Context, applicationID uuid.UUID, code string, fn ports.RecoveryTxFunc) error {
	return r.withLocked(ctx, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("application_id = ?", applicationID).Where("code = ?", code)
	}, fn)
}

// withLocked mirrors the activation locking discipline: FOR UPDATE on the
// code row, PUKs loaded inside the same transaction, non-rollback errors
// commit and re-surface.
func (r *recoveryRepository) withLocked(ctx context.Context, where func(*gorm.DB) *gorm.DB, fn ports.RecoveryTxFunc) error {
	var softErr error
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec recoveryCodeModel
		if err := where(tx.Clauses(clause.Locking{Strength: "UPDATE"})).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.Errf(domain.ErrRecoveryCodeInvalid, "recovery code cannot be used")
			}
			return err
		}
		var puks []recoveryPukModel
		if err := tx.Where("recovery_code_id = ?", rec.RecoveryCodeID).
			Order("puk_index ASC").
			Find(&puks).Error; err != nil {
			return err
		}
		code := toDomainRecoveryCode(rec, puks)
		if err := fn(&code, &recoveryTx{tx: tx, code: &code}); err != nil {
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

func (r *recoveryRepository) Lookup(ctx context.Context, filter ports.RecoveryLookupFilter) ([]domain.RecoveryCode, error) {
	query := r.db.WithContext(ctx).Model(&recoveryCodeModel{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.ActivationID != "" {
		query = query.Where("activation_id = ?", filter.ActivationID)
	}
	if filter.ApplicationID != nil {
		query = query.Where("application_id = ?", *filter.ApplicationID)
	}
	if filter.CodeStatus != nil {
		query = query.Where("status = ?", string(*filter.CodeStatus))
	}
	var rows []recoveryCodeModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RecoveryCode, 0, len(rows))
	for _, row := range rows {
		pukQuery := r.db.WithContext(ctx).Where("recovery_code_id = ?", row.RecoveryCodeID)
		if filter.PukStatus != nil {
			pukQuery = pukQuery.Where("status = ?", string(*filter.PukStatus))
		}
		var puks []recoveryPukModel
		if err := pukQuery.Order("puk_index ASC").Find(&puks).Error; err != nil {
			return nil, err
		}
		out = append(out, toDomainRecoveryCode(row, puks))
	}
	return out, nil
}

func (r *recoveryRepository) ListByActivation(ctx context.Context, activationID string) ([]domain.RecoveryCode, error) {
	return r.Lookup(ctx, ports.RecoveryLookupFilter{ActivationID: activationID})
}
