package application

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"

	"github.com/mobilauth/activation-service/internal/crypto"
	"github.com/mobilauth/activation-service/internal/domain"
)

// Envelope is the wire form of the encrypted request/response cryptogram.
// All fields are standard Base64.
type Envelope struct {
	EphemeralPublicKey string `json:"ephemeral_public_key"`
	EncryptedData      string `json:"encrypted_data"`
	Mac                string `json:"mac"`
	Nonce              string `json:"nonce"`
}

func (e Envelope) cryptogram() (crypto.Cryptogram, error) {
	ephemeral, err := base64.StdEncoding.DecodeString(e.EphemeralPublicKey)
	if err != nil {
		return crypto.Cryptogram{}, domain.Errf(domain.ErrInvalidRequest, "malformed envelope")
	}
	data, err := base64.StdEncoding.DecodeString(e.EncryptedData)
	if err != nil {
		return crypto.Cryptogram{}, domain.Errf(domain.ErrInvalidRequest, "malformed envelope")
	}
	mac, err := base64.StdEncoding.DecodeString(e.Mac)
	if err != nil {
		return crypto.Cryptogram{}, domain.Errf(domain.ErrInvalidRequest, "malformed envelope")
	}
	nonce, err := base64.StdEncoding.DecodeString(e.Nonce)
	if err != nil {
		return crypto.Cryptogram{}, domain.Errf(domain.ErrInvalidRequest, "malformed envelope")
	}
	return crypto.Cryptogram{
		EphemeralPublicKey: ephemeral,
		EncryptedData:      data,
		Mac:                mac,
		Nonce:              nonce,
	}, nil
}

func envelopeFrom(c crypto.Cryptogram) Envelope {
	return Envelope{
		EphemeralPublicKey: base64.StdEncoding.EncodeToString(c.EphemeralPublicKey),
		EncryptedData:      base64.StdEncoding.EncodeToString(c.EncryptedData),
		Mac:                base64.StdEncoding.EncodeToString(c.Mac),
		Nonce:              base64.StdEncoding.EncodeToString(c.Nonce),
	}
}

type InitActivationRequest struct {
	UserID            string    `json:"user_id"`
	ApplicationID     uuid.UUID `json:"application_id"`
	OTP               string    `json:"otp,omitempty"`
	OTPValidation     string    `json:"otp_validation,omitempty"`
	MaxFailedAttempts int64     `json:"max_failed_attempts,omitempty"`
	ValidForSeconds   int64     `json:"valid_for_seconds,omitempty"`
	Flags             []string  `json:"flags,omitempty"`
	ExternalID        string    `json:"external_id,omitempty"`
}

type InitActivationResponse struct {
	ActivationID        string    `json:"activation_id"`
	ActivationCode      string    `json:"activation_code"`
	ActivationSignature string    `json:"activation_signature"`
	UserID              string    `json:"user_id"`
	ApplicationID       uuid.UUID `json:"application_id"`
	ExpiresAt           time.Time `json:"expires_at"`
}

type PrepareActivationRequest struct {
	ApplicationKey       string   `json:"application_key"`
	ActivationCode       string   `json:"activation_code"`
	ApplicationSignature string   `json:"application_signature"`
	Envelope             Envelope `json:"envelope"`
	Platform             string   `json:"platform,omitempty"`
	DeviceInfo           string   `json:"device_info,omitempty"`
}

type PrepareActivationResponse struct {
	ActivationID string                  `json:"activation_id"`
	Status       domain.ActivationStatus `json:"status"`
	Envelope     Envelope                `json:"envelope"`
}

// devicePayload is the plaintext the device encrypts to the master public key
// during key exchange.
type devicePayload struct {
	DevicePublicKey string `json:"device_public_key"`
	OTP             string `json:"otp,omitempty"`
}

// serverPayload is the plaintext returned to the device, encrypted to its
// freshly registered public key.
type serverPayload struct {
	ActivationID    string `json:"activation_id"`
	ServerPublicKey string `json:"server_public_key"`
	CtrData         string `json:"ctr_data"`
}

type CommitActivationRequest struct {
	ActivationID   string `json:"activation_id"`
	OTP            string `json:"otp,omitempty"`
	ExternalUserID string `json:"external_user_id,omitempty"`
}

type CommitActivationResponse struct {
	ActivationID string `json:"activation_id"`
	Activated    bool   `json:"activated"`
}

type BlockActivationRequest struct {
	ActivationID string `json:"activation_id"`
	Reason       string `json:"reason,omitempty"`
}

type ActivationStatusResponse struct {
	ActivationID      string                  `json:"activation_id"`
	UserID            string                  `json:"user_id"`
	ApplicationID     uuid.UUID               `json:"application_id"`
	Status            domain.ActivationStatus `json:"status"`
	BlockedReason     string                  `json:"blocked_reason,omitempty"`
	Version           domain.ProtocolVersion  `json:"protocol_version"`
	RemainingAttempts int64                   `json:"remaining_attempts"`
	Platform          string                  `json:"platform,omitempty"`
	DeviceInfo        string                  `json:"device_info,omitempty"`
	Flags             []string                `json:"flags,omitempty"`
	ExternalID        string                  `json:"external_id,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
	ExpiresAt         time.Time               `json:"expires_at"`
	LastUsedAt        *time.Time              `json:"last_used_at,omitempty"`
}

type VerifySignatureRequest struct {
	ActivationID   string `json:"activation_id"`
	ApplicationKey string `json:"application_key"`
	SignatureType  string `json:"signature_type"`
	Signature      string `json:"signature"`
	Data           []byte `json:"data"`
	// ForcedVersion overrides the activation's protocol version for upgrade
	// windows; counter advancement always follows the stored version.
	ForcedVersion *domain.ProtocolVersion `json:"forced_signature_version,omitempty"`
}

type VerifySignatureResponse struct {
	Valid             bool                    `json:"valid"`
	Status            domain.ActivationStatus `json:"status"`
	BlockedReason     string                  `json:"blocked_reason,omitempty"`
	RemainingAttempts int64                   `json:"remaining_attempts"`
	SignatureType     domain.SignatureType    `json:"signature_type"`
}

type VaultUnlockRequest struct {
	ActivationID   string `json:"activation_id"`
	ApplicationKey string `json:"application_key"`
	SignatureType  string `json:"signature_type"`
	Signature      string `json:"signature"`
	SignedData     []byte `json:"signed_data"`
	Reason         string `json:"reason,omitempty"`
}

type VaultUnlockResponse struct {
	Unlocked bool                    `json:"unlocked"`
	Status   domain.ActivationStatus `json:"status"`
	Envelope *Envelope               `json:"envelope,omitempty"`
}

type CreateTokenRequest struct {
	ActivationID  string `json:"activation_id"`
	SignatureType string `json:"signature_type"`
}

type CreateTokenResponse struct {
	TokenID  string   `json:"token_id"`
	Envelope Envelope `json:"envelope"`
}

// tokenPayload is the plaintext of the token-issue envelope.
type tokenPayload struct {
	TokenID     string `json:"token_id"`
	TokenSecret string `json:"token_secret"`
}

type ValidateTokenRequest struct {
	TokenID     string `json:"token_id"`
	TokenDigest string `json:"token_digest"`
	Nonce       string `json:"nonce"`
	// Timestamp is Unix milliseconds as sent by the device.
	Timestamp int64 `json:"timestamp"`
}

type ValidateTokenResponse struct {
	Valid         bool                 `json:"valid"`
	ActivationID  string               `json:"activation_id,omitempty"`
	UserID        string               `json:"user_id,omitempty"`
	ApplicationID uuid.UUID            `json:"application_id,omitempty"`
	SignatureType domain.SignatureType `json:"signature_type,omitempty"`
}

type RemoveTokenRequest struct {
	TokenID      string `json:"token_id"`
	ActivationID string `json:"activation_id"`
}

type CreateRecoveryCodeRequest struct {
	ApplicationID uuid.UUID `json:"application_id"`
	UserID        string    `json:"user_id"`
	ActivationID  string    `json:"activation_id,omitempty"`
	PukCount      int       `json:"puk_count"`
}

type CreateRecoveryCodeResponse struct {
	RecoveryCodeID uuid.UUID                 `json:"recovery_code_id"`
	Code           string                    `json:"code"`
	Status         domain.RecoveryCodeStatus `json:"status"`
	// Puks maps PUK index to the plaintext value; shown exactly once.
	Puks map[int64]string `json:"puks"`
}

type RecoveryActivationRequest struct {
	RecoveryCode      string `json:"recovery_code"`
	Puk               string `json:"puk"`
	ApplicationKey    string `json:"application_key"`
	MaxFailedAttempts int64  `json:"max_failed_attempts,omitempty"`
}

type RecoveryActivationResponse struct {
	ActivationID        string    `json:"activation_id"`
	ActivationCode      string    `json:"activation_code"`
	ActivationSignature string    `json:"activation_signature"`
	UserID              string    `json:"user_id"`
	ExpiresAt           time.Time `json:"expires_at"`
}

type ConfirmRecoveryCodeRequest struct {
	RecoveryCodeID uuid.UUID `json:"recovery_code_id"`
}

type ConfirmRecoveryCodeResponse struct {
	AlreadyConfirmed bool `json:"already_confirmed"`
}

type RevokeRecoveryCodesRequest struct {
	RecoveryCodeIDs []uuid.UUID `json:"recovery_code_ids"`
}

type RevokeRecoveryCodesResponse struct {
	Revoked int `json:"revoked"`
}

type LookupRecoveryCodesRequest struct {
	UserID        string                     `json:"user_id,omitempty"`
	ActivationID  string                     `json:"activation_id,omitempty"`
	ApplicationID *uuid.UUID                 `json:"application_id,omitempty"`
	CodeStatus    *domain.RecoveryCodeStatus `json:"code_status,omitempty"`
	PukStatus     *domain.RecoveryPukStatus  `json:"puk_status,omitempty"`
}

// RecoveryCodeView never exposes PUK hashes.
type RecoveryCodeView struct {
	RecoveryCodeID uuid.UUID                 `json:"recovery_code_id"`
	ApplicationID  uuid.UUID                 `json:"application_id"`
	UserID         string                    `json:"user_id"`
	ActivationID   string                    `json:"activation_id,omitempty"`
	Status         domain.RecoveryCodeStatus `json:"status"`
	CreatedAt      time.Time                 `json:"created_at"`
	Puks           []RecoveryPukView         `json:"puks"`
}

type RecoveryPukView struct {
	Index  int64                    `json:"index"`
	Status domain.RecoveryPukStatus `json:"status"`
	UsedAt *time.Time               `json:"used_at,omitempty"`
}

type CreateApplicationRequest struct {
	Name string `json:"name"`
}

type ApplicationView struct {
	ApplicationID uuid.UUID `json:"application_id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
}

type ApplicationDetailResponse struct {
	Application     ApplicationView          `json:"application"`
	MasterPublicKey string                   `json:"master_public_key"`
	Versions        []ApplicationVersionView `json:"versions"`
}

type CreateApplicationVersionRequest struct {
	ApplicationID uuid.UUID `json:"application_id"`
	Name          string    `json:"name"`
}

type ApplicationVersionView struct {
	VersionID         uuid.UUID `json:"version_id"`
	ApplicationID     uuid.UUID `json:"application_id"`
	Name              string    `json:"name"`
	ApplicationKey    string    `json:"application_key"`
	ApplicationSecret string    `json:"application_secret"`
	Supported         bool      `json:"supported"`
	CreatedAt         time.Time `json:"created_at"`
}

type CreateCallbackRequest struct {
	ApplicationID uuid.UUID `json:"application_id"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
}

type CallbackView struct {
	CallbackID    uuid.UUID `json:"callback_id"`
	ApplicationID uuid.UUID `json:"application_id"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	CreatedAt     time.Time `json:"created_at"`
}
