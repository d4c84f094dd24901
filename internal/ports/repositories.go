package ports

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mobilauth/activation-service/internal/domain"
)

// ErrDuplicate is returned by create methods on a unique-key violation so
// callers can run collision-retry loops without seeing driver errors.
var ErrDuplicate = errors.New("duplicate key")

// ActivationTxFunc runs while holding the exclusive row lock on one
// activation. The save closure persists the (mutated) record inside the same
// transaction; the lock is released at transaction end. Returning an error
// with the rollback flag set undoes everything, including saved mutations.
// Returning a non-rollback error keeps them, which is how failed signature
// attempts persist their counter advance.
type ActivationTxFunc func(act *domain.Activation, save func() error) error

// ActivationRepository owns the central activation aggregate.
// The activation row is the unit of mutual exclusion: every state-changing
// operation goes through WithLocked, read-only queries take no lock and may
// observe a slightly stale (never decreasing) counter.
type ActivationRepository interface {
	Create(ctx context.Context, act *domain.Activation) error
	FindByID(ctx context.Context, activationID string) (domain.Activation, error)
	FindCreatedByCode(ctx context.Context, applicationID uuid.UUID, activationCode string) (domain.Activation, error)
	ListByUser(ctx context.Context, userID string, applicationID *uuid.UUID) ([]domain.Activation, error)
	Update(ctx context.Context, act *domain.Activation) error
	WithLocked(ctx context.Context, activationID string, fn ActivationTxFunc) error
}

// ApplicationRepository manages applications, versions and master key pairs.
// These rows are read far more than written and are never lock-read.
type ApplicationRepository interface {
	CreateApplication(ctx context.Context, app *domain.Application) error
	GetApplication(ctx context.Context, applicationID uuid.UUID) (domain.Application, error)
	ListApplications(ctx context.Context) ([]domain.Application, error)
	CreateVersion(ctx context.Context, version *domain.ApplicationVersion) error
	ListVersions(ctx context.Context, applicationID uuid.UUID) ([]domain.ApplicationVersion, error)
	SetVersionSupported(ctx context.Context, versionID uuid.UUID, supported bool) error
	FindVersionByAppKey(ctx context.Context, applicationKey string) (domain.ApplicationVersion, error)
	CreateMasterKeyPair(ctx context.Context, pair *domain.MasterKeyPair) error
	LatestMasterKeyPair(ctx context.Context, applicationID uuid.UUID) (domain.MasterKeyPair, error)
}

// RecoveryTx exposes the operations available while holding the row lock on
// a recovery code. CreateActivation exists so consuming a PUK and minting the
// replacement activation commit or roll back together.
type RecoveryTx interface {
	Save() error
	CreateActivation(act *domain.Activation) error
}

// RecoveryTxFunc mirrors ActivationTxFunc for recovery code aggregates;
// the code row and its PUKs are saved together.
type RecoveryTxFunc func(code *domain.RecoveryCode, tx RecoveryTx) error

// RecoveryLookupFilter narrows read-only recovery code queries.
type RecoveryLookupFilter struct {
	UserID        string
	ActivationID  string
	ApplicationID *uuid.UUID
	CodeStatus    *domain.RecoveryCodeStatus
	PukStatus     *domain.RecoveryPukStatus
}

// RecoveryRepository owns recovery codes and their single-use PUKs.
type RecoveryRepository interface {
	Create(ctx context.Context, code *domain.RecoveryCode) error
	WithLockedByID(ctx context.Context, recoveryCodeID uuid.UUID, fn RecoveryTxFunc) error
	WithLockedByCode(ctx context.Context, applicationID uuid.UUID, code string, fn RecoveryTxFunc) error
	Lookup(ctx context.Context, filter RecoveryLookupFilter) ([]domain.RecoveryCode, error)
	ListByActivation(ctx context.Context, activationID string) ([]domain.RecoveryCode, error)
}

// TokenRepository persists bearer tokens bound to activations.
type TokenRepository interface {
	Create(ctx context.Context, token *domain.Token) error
	FindByID(ctx context.Context, tokenID string) (domain.Token, error)
	Remove(ctx context.Context, tokenID, activationID string) error
}

// CallbackRepository stores webhook destinations per application.
type CallbackRepository interface {
	Create(ctx context.Context, cb *domain.CallbackConfig) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]domain.CallbackConfig, error)
	Delete(ctx context.Context, callbackID uuid.UUID) (bool, error)
}
