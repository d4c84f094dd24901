package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecoveryCodeStatus is the lifecycle of a recovery code.
type RecoveryCodeStatus string

const (
	RecoveryCodeCreated RecoveryCodeStatus = "CREATED"
	RecoveryCodeActive  RecoveryCodeStatus = "ACTIVE"
	RecoveryCodeBlocked RecoveryCodeStatus = "BLOCKED"
	RecoveryCodeRevoked RecoveryCodeStatus = "REVOKED"
)

func ParseRecoveryCodeStatus(raw string) (RecoveryCodeStatus, error) {
	switch RecoveryCodeStatus(raw) {
	case RecoveryCodeCreated, RecoveryCodeActive, RecoveryCodeBlocked, RecoveryCodeRevoked:
		return RecoveryCodeStatus(raw), nil
	default:
		return "", Errf(ErrInvalidRequest, "unknown recovery code status %q", raw)
	}
}

// RecoveryPukStatus tracks single-use PUK consumption.
type RecoveryPukStatus string

const (
	PukValid   RecoveryPukStatus = "VALID"
	PukUsed    RecoveryPukStatus = "USED"
	PukInvalid RecoveryPukStatus = "INVALID"
)

func ParseRecoveryPukStatus(raw string) (RecoveryPukStatus, error) {
	switch RecoveryPukStatus(raw) {
	case PukValid, PukUsed, PukInvalid:
		return RecoveryPukStatus(raw), nil
	default:
		return "", Errf(ErrInvalidRequest, "unknown recovery puk status %q", raw)
	}
}

// RecoveryCode is the long-lived alternate re-activation credential for a
// user+application, owning an ordered set of single-use PUKs.
type RecoveryCode struct {
	RecoveryCodeID    uuid.UUID
	ApplicationID     uuid.UUID
	UserID            string
	ActivationID      string
	Code              string
	Status            RecoveryCodeStatus
	FailedAttempts    int64
	MaxFailedAttempts int64
	CreatedAt         time.Time
	Puks              []RecoveryPuk
}

// RecoveryPuk is one indexed PUK. The hash is stored only after passing
// through the at-rest encryption layer keyed per PUK.
type RecoveryPuk struct {
	PukID          uuid.UUID
	RecoveryCodeID uuid.UUID
	Index          int64
	PukHash        string
	HashEncryption EncryptionMode
	Status         RecoveryPukStatus
	UsedAt         *time.Time
}
