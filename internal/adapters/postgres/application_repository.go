package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mobilauth/activation-service/internal/domain"
	"github.com/mobilauth/activation-service/internal/ports"
)

type applicationRepository struct {
	db *gorm.DB
}

func (r *applicationRepository) CreateApplication(ctx context.Context, app *domain.Application) error {
	rec := applicationModel{
		ApplicationID: app.ApplicationID,
		Name:          app.Name,
		CreatedAt:     app.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *applicationRepository) GetApplication(ctx context.Context, applicationID uuid.UUID) (domain.Application, error) {
	var rec applicationModel
	if err := r.db.WithContext(ctx).Where("application_id = ?", applicationID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Application{}, domain.Errf(domain.ErrInvalidApplication, "application not found")
		}
		return domain.Application{}, err
	}
	return toDomainApplication(rec), nil
}

func (r *applicationRepository) ListApplications(ctx context.Context) ([]domain.Application, error) {
	var rows []applicationModel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Application, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainApplication(row))
	}
	return out, nil
}

func (r *applicationRepository) CreateVersion(ctx context.Context, version *domain.ApplicationVersion) error {
	rec := applicationVersionModel{
		VersionID:         version.VersionID,
		ApplicationID:     version.ApplicationID,
		Name:              version.Name,
		ApplicationKey:    version.ApplicationKey,
		ApplicationSecret: version.ApplicationSecret,
		Supported:         version.Supported,
		CreatedAt:         version.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *applicationRepository) ListVersions(ctx context.Context, applicationID uuid.UUID) ([]domain.ApplicationVersion, error) {
	var rows []applicationVersionModel
	if err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ApplicationVersion, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainVersion(row))
	}
	return out, nil
}

func (r *applicationRepository) SetVersionSupported(ctx context.Context, versionID uuid.UUID, supported bool) error {
	res := r.db.WithContext(ctx).
		Model(&applicationVersionModel{}).
		Where("version_id = ?", versionID).
		Update("supported", supported)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Errf(domain.ErrInvalidApplication, "application version not found")
	}
	return nil
}

func (r *applicationRepository) FindVersionByAppKey(ctx context.Context, applicationKey string) (domain.ApplicationVersion, error) {
	var rec applicationVersionModel
	if err := r.db.WithContext(ctx).Where("application_key = ?", applicationKey).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ApplicationVersion{}, domain.Errf(domain.ErrInvalidApplication, "application version not found")
		}
		return domain.ApplicationVersion{}, err
	}
	return toDomainVersion(rec), nil
}

func (r *applicationRepository) CreateMasterKeyPair(ctx context.Context, pair *domain.MasterKeyPair) error {
	rec := masterKeyPairModel{
		KeyPairID:            pair.KeyPairID,
		ApplicationID:        pair.ApplicationID,
		PublicKey:            pair.PublicKey,
		PrivateKey:           pair.PrivateKey,
		PrivateKeyEncryption: string(pair.PrivateKeyEncryption),
		CreatedAt:            pair.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&rec).Error
}

func (r *applicationRepository) LatestMasterKeyPair(ctx context.Context, applicationID uuid.UUID) (domain.MasterKeyPair, error) {
	var rec masterKeyPairModel
	if err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order("created_at DESC").
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MasterKeyPair{}, domain.Errf(domain.ErrInvalidApplication, "master key pair not found")
		}
		return domain.MasterKeyPair{}, err
	}
	return toDomainMasterKeyPair(rec), nil
}
