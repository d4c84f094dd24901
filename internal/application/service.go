// Package application holds the core protocol logic behind the ports
// boundary: activation lifecycle, online signature verification, vault
// unlock, recovery and token issuance. It talks to storage exclusively
// through repository interfaces and performs no transport concerns.
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mobilauth/activation-service/internal/crypto"
	"github.com/mobilauth/activation-service/internal/domain"
	"github.com/mobilauth/activation-service/internal/ports"
)

// Config carries the tunables the core needs at runtime.
type Config struct {
	// ActivationValidity bounds the CREATED/PENDING_COMMIT window.
	ActivationValidity time.Duration
	// DefaultMaxFailedAttempts applies when the integrator does not override it.
	DefaultMaxFailedAttempts int64
	// RecoveryMaxFailedAttempts blocks a recovery code after this many bad PUKs.
	RecoveryMaxFailedAttempts int64
	// MaxPukCount caps PUKs per recovery code.
	MaxPukCount int
	// TokenFreshnessWindow bounds token digest timestamps in both directions.
	TokenFreshnessWindow time.Duration
	// TokenGenerateRetries bounds the token id collision retry loop.
	TokenGenerateRetries int
}

type Service struct {
	cfg          Config
	activations  ports.ActivationRepository
	applications ports.ApplicationRepository
	recovery     ports.RecoveryRepository
	tokens       ports.TokenRepository
	callbacks    ports.CallbackRepository
	outbox       ports.CallbackOutboxRepository
	nonces       ports.NonceStore
	otpHasher    ports.OTPHasher
	provider     *crypto.Provider
	keyVault     *crypto.KeyEncryptor
	logger       *slog.Logger
	nowFn        func() time.Time
}

type Dependencies struct {
	Config       Config
	Activations  ports.ActivationRepository
	Applications ports.ApplicationRepository
	Recovery     ports.RecoveryRepository
	Tokens       ports.TokenRepository
	Callbacks    ports.CallbackRepository
	Outbox       ports.CallbackOutboxRepository
	Nonces       ports.NonceStore
	OTPHasher    ports.OTPHasher
	Provider     *crypto.Provider
	KeyVault     *crypto.KeyEncryptor
	Logger       *slog.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:          deps.Config,
		activations:  deps.Activations,
		applications: deps.Applications,
		recovery:     deps.Recovery,
		tokens:       deps.Tokens,
		callbacks:    deps.Callbacks,
		outbox:       deps.Outbox,
		nonces:       deps.Nonces,
		otpHasher:    deps.OTPHasher,
		provider:     deps.Provider,
		keyVault:     deps.KeyVault,
		logger:       logger.With("module", "activation", "layer", "application"),
		nowFn:        time.Now().UTC,
	}
}

// notifyStatusChange enqueues a callback event for the activation's current
// status. Delivery is best effort and must never fail the calling operation.
func (s *Service) notifyStatusChange(ctx context.Context, act domain.Activation) {
	event := ports.CallbackEvent{
		EventID:       uuid.New(),
		ApplicationID: act.ApplicationID,
		ActivationID:  act.ActivationID,
		Status:        string(act.Status),
		OccurredAt:    s.nowFn(),
	}
	if err := s.outbox.Enqueue(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "callback enqueue failed",
			"operation", "notifyStatusChange",
			"activation_id", act.ActivationID,
			"error", err)
	}
}

// advanceCounter moves the replay counter forward one step. The audit counter
// increments for both protocol versions; the hash chain only exists in v3.
func advanceCounter(act *domain.Activation) {
	act.Counter++
	if act.Version == domain.ProtocolV3 {
		act.CtrData = crypto.AdvanceCtrData(act.CtrData)
	}
}

// supportedVersion resolves an application key to a version barred from use
// when unsupported. Lookup failure and unsupported status are reported the
// same way so the response does not reveal which keys exist.
func (s *Service) supportedVersion(ctx context.Context, applicationKey string) (domain.ApplicationVersion, error) {
	if applicationKey == "" {
		return domain.ApplicationVersion{}, domain.Errf(domain.ErrInvalidRequest, "missing application key")
	}
	version, err := s.applications.FindVersionByAppKey(ctx, applicationKey)
	if err != nil {
		return domain.ApplicationVersion{}, domain.Errf(domain.ErrInvalidApplication, "unknown application key")
	}
	if !version.Supported {
		return domain.ApplicationVersion{}, domain.Errf(domain.ErrInvalidApplication, "unknown application key")
	}
	return version, nil
}

// masterKeyPrivate loads and unwraps the latest master private key (PKCS#8
// DER) for an application.
func (s *Service) masterKeyPrivate(ctx context.Context, applicationID uuid.UUID) (domain.MasterKeyPair, []byte, error) {
	pair, err := s.applications.LatestMasterKeyPair(ctx, applicationID)
	if err != nil {
		return domain.MasterKeyPair{}, nil, domain.WrapErr(domain.ErrInvalidApplication, "no master key pair", err)
	}
	context := crypto.MasterKeyContext(pair.ApplicationID.String(), pair.KeyPairID.String())
	privateDER, err := s.keyVault.FromDBValue(pair.PrivateKey, pair.PrivateKeyEncryption, context)
	if err != nil {
		return domain.MasterKeyPair{}, nil, err
	}
	return pair, privateDER, nil
}

// serverPrivateKey unwraps an activation's handshake private key.
func (s *Service) serverPrivateKey(act *domain.Activation) ([]byte, error) {
	context := crypto.ActivationKeyContext(act.ApplicationID.String(), act.UserID, act.ActivationID)
	return s.keyVault.FromDBValue(act.ServerPrivateKey, act.ServerKeyEncryption, context)
}
