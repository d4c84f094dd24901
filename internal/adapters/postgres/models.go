package postgres

import (
	"time"

	"github.com/google/uuid"
)

type activationModel struct {
	ActivationID        string     `gorm:"column:activation_id;type:uuid;primaryKey"`
	UserID              string     `gorm:"column:user_id"`
	ApplicationID       uuid.UUID  `gorm:"column:application_id;type:uuid"`
	Status              string     `gorm:"column:status"`
	BlockedReason       string     `gorm:"column:blocked_reason"`
	ActivationCode      string     `gorm:"column:activation_code"`
	Counter             int64      `gorm:"column:counter"`
	CtrData             []byte     `gorm:"column:ctr_data"`
	OTPUsed             bool       `gorm:"column:otp_used"`
	FailedAttempts      int64      `gorm:"column:failed_attempts"`
	MaxFailedAttempts   int64      `gorm:"column:max_failed_attempts"`
	DevicePublicKey     []byte     `gorm:"column:device_public_key"`
	ServerPublicKey     []byte     `gorm:"column:server_public_key"`
	ServerPrivateKey    string     `gorm:"column:server_private_key"`
	ServerKeyEncryption string     `gorm:"column:server_key_encryption"`
	Version             int        `gorm:"column:protocol_version"`
	OTPMode             string     `gorm:"column:otp_mode"`
	OTPHash             string     `gorm:"column:otp_hash"`
	Platform            string     `gorm:"column:platform"`
	DeviceInfo          string     `gorm:"column:device_info"`
	Flags               string     `gorm:"column:flags;type:jsonb"`
	ExternalID          string     `gorm:"column:external_id"`
	CreatedAt           time.Time  `gorm:"column:created_at"`
	ExpiresAt           time.Time  `gorm:"column:expires_at"`
	LastUsedAt          *time.Time `gorm:"column:last_used_at"`
}

func (activationModel) TableName() string { return "activations" }

type applicationModel struct {
	ApplicationID uuid.UUID `gorm:"column:application_id;type:uuid;primaryKey"`
	Name          string    `gorm:"column:name"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (applicationModel) TableName() string { return "applications" }

type applicationVersionModel struct {
	VersionID         uuid.UUID `gorm:"column:version_id;type:uuid;primaryKey"`
	ApplicationID     uuid.UUID `gorm:"column:application_id;type:uuid"`
	Name              string    `gorm:"column:name"`
	ApplicationKey    string    `gorm:"column:application_key"`
	ApplicationSecret string    `gorm:"column:application_secret"`
	Supported         bool      `gorm:"column:supported"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

func (applicationVersionModel) TableName() string { return "application_versions" }

type masterKeyPairModel struct {
	KeyPairID            uuid.UUID `gorm:"column:key_pair_id;type:uuid;primaryKey"`
	ApplicationID        uuid.UUID `gorm:"column:application_id;type:uuid"`
	PublicKey            []byte    `gorm:"column:public_key"`
	PrivateKey           string    `gorm:"column:private_key"`
	PrivateKeyEncryption string    `gorm:"column:private_key_encryption"`
	CreatedAt            time.Time `gorm:"column:created_at"`
}

func (masterKeyPairModel) TableName() string { return "master_key_pairs" }

type recoveryCodeModel struct {
	RecoveryCodeID    uuid.UUID `gorm:"column:recovery_code_id;type:uuid;primaryKey"`
	ApplicationID     uuid.UUID `gorm:"column:application_id;type:uuid"`
	UserID            string    `gorm:"column:user_id"`
	ActivationID      string    `gorm:"column:activation_id"`
	Code              string    `gorm:"column:code"`
	Status            string    `gorm:"column:status"`
	FailedAttempts    int64     `gorm:"column:failed_attempts"`
	MaxFailedAttempts int64     `gorm:"column:max_failed_attempts"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

func (recoveryCodeModel) TableName() string { return "recovery_codes" }

type recoveryPukModel struct {
	PukID          uuid.UUID  `gorm:"column:puk_id;type:uuid;primaryKey"`
	RecoveryCodeID uuid.UUID  `gorm:"column:recovery_code_id;type:uuid"`
	PukIndex       int64      `gorm:"column:puk_index"`
	PukHash        string     `gorm:"column:puk_hash"`
	HashEncryption string     `gorm:"column:hash_encryption"`
	Status         string     `gorm:"column:status"`
	UsedAt         *time.Time `gorm:"column:used_at"`
}

func (recoveryPukModel) TableName() string { return "recovery_puks" }

type tokenModel struct {
	TokenID       string    `gorm:"column:token_id;primaryKey"`
	ActivationID  string    `gorm:"column:activation_id;type:uuid"`
	Secret        []byte    `gorm:"column:secret"`
	SignatureType string    `gorm:"column:signature_type"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (tokenModel) TableName() string { return "tokens" }

type callbackModel struct {
	CallbackID    uuid.UUID `gorm:"column:callback_id;type:uuid;primaryKey"`
	ApplicationID uuid.UUID `gorm:"column:application_id;type:uuid"`
	Name          string    `gorm:"column:name"`
	URL           string    `gorm:"column:url"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

func (callbackModel) TableName() string { return "callbacks" }

type callbackOutboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	ApplicationID  uuid.UUID  `gorm:"column:application_id;type:uuid"`
	ActivationID   string     `gorm:"column:activation_id"`
	Status         string     `gorm:"column:status"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (callbackOutboxModel) TableName() string { return "callback_outbox" }
