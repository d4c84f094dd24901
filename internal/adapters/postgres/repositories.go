package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mobilauth/activation-service/internal/ports"
)

// Repositories bundles the Postgres-backed implementations of all storage
// ports.
type Repositories struct {
	Activations  ports.ActivationRepository
	Applications ports.ApplicationRepository
	Recovery     ports.RecoveryRepository
	Tokens       ports.TokenRepository
	Callbacks    ports.CallbackRepository
	Outbox       ports.CallbackOutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Activations:  &activationRepository{db: db},
		Applications: &applicationRepository{db: db},
		Recovery:     &recoveryRepository{db: db},
		Tokens:       &tokenRepository{db: db},
		Callbacks:    &callbackRepository{db: db},
		Outbox:       &outboxRepository{db: db},
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
