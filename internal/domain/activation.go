package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivationStatus is the lifecycle state of an activation record.
type ActivationStatus string

const (
	ActivationCreated       ActivationStatus = "CREATED"
	ActivationPendingCommit ActivationStatus = "PENDING_COMMIT"
	ActivationActive        ActivationStatus = "ACTIVE"
	ActivationBlocked       ActivationStatus = "BLOCKED"
	// ActivationRemoved is terminal; no transition leaves it.
	ActivationRemoved ActivationStatus = "REMOVED"
)

// ParseActivationStatus converts a wire value into a status.
// Unknown values are an InvalidRequest, never a silent default.
func ParseActivationStatus(raw string) (ActivationStatus, error) {
	switch ActivationStatus(raw) {
	case ActivationCreated, ActivationPendingCommit, ActivationActive, ActivationBlocked, ActivationRemoved:
		return ActivationStatus(raw), nil
	default:
		return "", Errf(ErrInvalidRequest, "unknown activation status %q", raw)
	}
}

// OTPValidationMode decides when the activation OTP must be presented.
type OTPValidationMode string

const (
	OTPValidationNone          OTPValidationMode = "NONE"
	OTPValidationOnKeyExchange OTPValidationMode = "ON_KEY_EXCHANGE"
	OTPValidationOnCommit      OTPValidationMode = "ON_COMMIT"
)

func ParseOTPValidationMode(raw string) (OTPValidationMode, error) {
	switch OTPValidationMode(raw) {
	case "":
		return OTPValidationNone, nil
	case OTPValidationNone, OTPValidationOnKeyExchange, OTPValidationOnCommit:
		return OTPValidationMode(raw), nil
	default:
		return "", Errf(ErrInvalidRequest, "unknown otp validation mode %q", raw)
	}
}

// ProtocolVersion selects counter and key-derivation semantics.
// Version divergence is handled by explicit switches at the point of use,
// not by parallel type hierarchies.
type ProtocolVersion int

const (
	ProtocolV2 ProtocolVersion = 2
	ProtocolV3 ProtocolVersion = 3
)

// EncryptionMode tags how a server-held secret was protected at rest.
type EncryptionMode string

const (
	EncryptionNone    EncryptionMode = "NO_ENCRYPTION"
	EncryptionAESHMAC EncryptionMode = "AES_HMAC"
)

// Activation binds one device key pair to one user within one application.
// The signature counter is the replay-protection anchor: it only increases,
// and every verification attempt advances it regardless of outcome.
type Activation struct {
	ActivationID   string
	UserID         string
	ApplicationID  uuid.UUID
	Status         ActivationStatus
	BlockedReason  string
	ActivationCode string

	Counter           uint64
	CtrData           []byte
	OTPUsed           bool
	FailedAttempts    int64
	MaxFailedAttempts int64

	DevicePublicKey     []byte
	ServerPublicKey     []byte
	ServerPrivateKey    string
	ServerKeyEncryption EncryptionMode

	Version           ProtocolVersion
	OTPMode           OTPValidationMode
	OTPHash           string
	Platform          string
	DeviceInfo        string
	Flags             []string
	ExternalID        string

	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastUsedAt *time.Time
}

// CanTransitionTo enforces the lifecycle edges of the state machine.
func (a *Activation) CanTransitionTo(next ActivationStatus) bool {
	switch a.Status {
	case ActivationCreated:
		return next == ActivationPendingCommit || next == ActivationActive || next == ActivationRemoved
	case ActivationPendingCommit:
		return next == ActivationActive || next == ActivationRemoved
	case ActivationActive:
		return next == ActivationBlocked || next == ActivationRemoved
	case ActivationBlocked:
		return next == ActivationActive || next == ActivationRemoved
	case ActivationRemoved:
		return false
	default:
		return false
	}
}

// Expired reports whether a pre-commit activation has outlived its window.
// Only CREATED and PENDING_COMMIT records expire; later states are durable.
func (a *Activation) Expired(now time.Time) bool {
	if a.Status != ActivationCreated && a.Status != ActivationPendingCommit {
		return false
	}
	return now.After(a.ExpiresAt)
}
