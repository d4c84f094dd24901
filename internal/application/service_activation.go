package application

import (
	"context"
	"crypto/hmac"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mobilauth/activation-service/internal/crypto"
	"github.com/mobilauth/activation-service/internal/domain"
	"github.com/mobilauth/activation-service/internal/ports"
)

// envelopeInfoActivation binds key-exchange envelopes to their purpose so a
// cryptogram recorded in one flow cannot be replayed in another.
var (
	envelopeInfoActivation = []byte("activation")
	envelopeInfoVault      = []byte("vault-unlock")
	envelopeInfoToken      = []byte("token-create")
)

const blockedReasonMaxFailedAttempts = "MAX_FAILED_ATTEMPTS"

// InitActivation registers the server half of a new activation: a fresh
// handshake key pair, the one-time activation code and the counter seed. The
// record starts CREATED and expires unless key exchange and commit follow.
func (s *Service) InitActivation(ctx context.Context, req InitActivationRequest) (InitActivationResponse, error) {
	if req.UserID == "" {
		return InitActivationResponse{}, domain.Errf(domain.ErrInvalidRequest, "missing user id")
	}
	otpMode, err := domain.ParseOTPValidationMode(req.OTPValidation)
	if err != nil {
		return InitActivationResponse{}, err
	}
	if otpMode != domain.OTPValidationNone && req.OTP == "" {
		return InitActivationResponse{}, domain.Errf(domain.ErrInvalidRequest, "otp required for validation mode %s", otpMode)
	}
	if otpMode == domain.OTPValidationNone && req.OTP != "" {
		return InitActivationResponse{}, domain.Errf(domain.ErrInvalidRequest, "otp provided without validation mode")
	}
	app, err := s.applications.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		return InitActivationResponse{}, domain.WrapErr(domain.ErrInvalidApplication, "unknown application", err)
	}

	activationID := uuid.NewString()
	code, err := s.provider.GenerateActivationCode()
	if err != nil {
		return InitActivationResponse{}, err
	}
	serverKey, err := s.provider.GenerateKeyPair()
	if err != nil {
		return InitActivationResponse{}, err
	}
	ctrData, err := s.provider.RandomBytes(crypto.CtrDataLength)
	if err != nil {
		return InitActivationResponse{}, err
	}

	keyContext := crypto.ActivationKeyContext(app.ApplicationID.String(), req.UserID, activationID)
	wrappedKey, keyMode, err := s.keyVault.ToDBValue(serverKey.Bytes(), keyContext)
	if err != nil {
		return InitActivationResponse{}, err
	}

	var otpHash string
	if otpMode != domain.OTPValidationNone {
		otpHash, err = s.otpHasher.Hash(req.OTP)
		if err != nil {
			return InitActivationResponse{}, domain.WrapErr(domain.ErrGenericCryptography, "hash otp", err)
		}
	}

	maxFailed := req.MaxFailedAttempts
	if maxFailed <= 0 {
		maxFailed = s.cfg.DefaultMaxFailedAttempts
	}
	validFor := time.Duration(req.ValidForSeconds) * time.Second
	if validFor <= 0 {
		validFor = s.cfg.ActivationValidity
	}

	now := s.nowFn()
	act := domain.Activation{
		ActivationID:        activationID,
		UserID:              req.UserID,
		ApplicationID:       app.ApplicationID,
		Status:              domain.ActivationCreated,
		ActivationCode:      code,
		Counter:             0,
		CtrData:             ctrData,
		MaxFailedAttempts:   maxFailed,
		ServerPublicKey:     serverKey.PublicKey().Bytes(),
		ServerPrivateKey:    wrappedKey,
		ServerKeyEncryption: keyMode,
		Version:             domain.ProtocolV3,
		OTPMode:             otpMode,
		OTPHash:             otpHash,
		Flags:               req.Flags,
		ExternalID:          req.ExternalID,
		CreatedAt:           now,
		ExpiresAt:           now.Add(validFor),
	}
	if err := s.activations.Create(ctx, &act); err != nil {
		return InitActivationResponse{}, err
	}

	signature, err := s.signActivationCode(ctx, app.ApplicationID, activationID, code)
	if err != nil {
		return InitActivationResponse{}, err
	}
	s.notifyStatusChange(ctx, act)

	return InitActivationResponse{
		ActivationID:        activationID,
		ActivationCode:      code,
		ActivationSignature: signature,
		UserID:              req.UserID,
		ApplicationID:       app.ApplicationID,
		ExpiresAt:           act.ExpiresAt,
	}, nil
}

// signActivationCode signs "activationId&activationCode" with the master
// private key, letting the device verify the code against the key embedded in
// the client application.
func (s *Service) signActivationCode(ctx context.Context, applicationID uuid.UUID, activationID, code string) (string, error) {
	_, privateDER, err := s.masterKeyPrivate(ctx, applicationID)
	if err != nil {
		return "", err
	}
	payload := fmt.Sprintf("%s&%s", activationID, code)
	sig, err := s.provider.SignWithMasterKey(privateDER, []byte(payload))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// PrepareActivation is the device key exchange. Every validation failure
// past the application signature check removes the activation: a handshake
// that went wrong once cannot be retried with the same code.
func (s *Service) PrepareActivation(ctx context.Context, req PrepareActivationRequest) (PrepareActivationResponse, error) {
	if err := crypto.ValidateActivationCode(req.ActivationCode); err != nil {
		return PrepareActivationResponse{}, err
	}
	version, err := s.supportedVersion(ctx, req.ApplicationKey)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidRequest) {
			return PrepareActivationResponse{}, err
		}
		// Unknown application keys and dead codes answer identically.
		return PrepareActivationResponse{}, domain.Errf(domain.ErrActivationExpired, "activation with given code not found")
	}
	found, err := s.activations.FindCreatedByCode(ctx, version.ApplicationID, req.ActivationCode)
	if err != nil {
		return PrepareActivationResponse{}, domain.Errf(domain.ErrActivationExpired, "activation with given code not found")
	}

	var resp PrepareActivationResponse
	err = s.activations.WithLocked(ctx, found.ActivationID, func(act *domain.Activation, save func() error) error {
		if act.Expired(s.nowFn()) {
			act.Status = domain.ActivationRemoved
			if err := save(); err != nil {
				return err
			}
			s.notifyStatusChange(ctx, *act)
			return domain.Errf(domain.ErrActivationExpired, "activation with given code not found")
		}
		if act.Status != domain.ActivationCreated {
			return domain.Errf(domain.ErrActivationIncorrectState, "activation is %s", act.Status)
		}

		failClosed := func(msg string) error {
			act.Status = domain.ActivationRemoved
			if err := save(); err != nil {
				return err
			}
			s.notifyStatusChange(ctx, *act)
			return domain.Errf(domain.ErrActivationExpired, msg)
		}

		expectedSig := crypto.ApplicationSignature(version.ApplicationSecret,
			req.ApplicationKey,
			req.ActivationCode,
			req.Envelope.EphemeralPublicKey,
			req.Envelope.EncryptedData,
			req.Envelope.Mac,
			req.Envelope.Nonce,
		)
		if !hmac.Equal([]byte(expectedSig), []byte(req.ApplicationSignature)) {
			return failClosed("activation with given code not found")
		}

		cryptogram, err := req.Envelope.cryptogram()
		if err != nil {
			return err
		}
		_, masterPrivateDER, err := s.masterKeyPrivate(ctx, act.ApplicationID)
		if err != nil {
			return err
		}
		masterECDH, err := crypto.MasterPrivateECDH(masterPrivateDER)
		if err != nil {
			return err
		}
		plaintext, err := s.provider.DecryptEnvelope(masterECDH, cryptogram, envelopeInfoActivation)
		if err != nil {
			return failClosed("activation with given code not found")
		}
		var payload devicePayload
		if err := json.Unmarshal(plaintext, &payload); err != nil {
			return failClosed("activation with given code not found")
		}
		deviceKeyRaw, err := base64.StdEncoding.DecodeString(payload.DevicePublicKey)
		if err != nil {
			return failClosed("activation with given code not found")
		}
		devicePub, err := s.provider.ParsePublicKey(deviceKeyRaw)
		if err != nil {
			return failClosed("activation with given code not found")
		}

		if act.OTPMode == domain.OTPValidationOnKeyExchange {
			if payload.OTP == "" {
				return failClosed("activation with given code not found")
			}
			// A wrong OTP kills the record just like a bad signature or key
			// would; the handshake is one-shot.
			if err := s.otpHasher.Compare(act.OTPHash, payload.OTP); err != nil {
				return failClosed("activation with given code not found")
			}
			act.OTPUsed = true
		}

		act.DevicePublicKey = devicePub.Bytes()
		act.Platform = req.Platform
		act.DeviceInfo = req.DeviceInfo
		// An OTP proven during key exchange already authenticated the owner;
		// commit adds nothing in that mode.
		if act.OTPMode == domain.OTPValidationOnKeyExchange {
			act.Status = domain.ActivationActive
		} else {
			act.Status = domain.ActivationPendingCommit
		}
		if err := save(); err != nil {
			return err
		}
		s.notifyStatusChange(ctx, *act)

		reply, err := json.Marshal(serverPayload{
			ActivationID:    act.ActivationID,
			ServerPublicKey: base64.StdEncoding.EncodeToString(act.ServerPublicKey),
			CtrData:         base64.StdEncoding.EncodeToString(act.CtrData),
		})
		if err != nil {
			return domain.WrapErr(domain.ErrUnknown, "encode activation reply", err)
		}
		cryptoReply, err := s.provider.EncryptEnvelope(act.DevicePublicKey, reply, envelopeInfoActivation)
		if err != nil {
			return err
		}
		resp = PrepareActivationResponse{
			ActivationID: act.ActivationID,
			Status:       act.Status,
			Envelope:     envelopeFrom(cryptoReply),
		}
		return nil
	})
	if err != nil {
		return PrepareActivationResponse{}, err
	}
	return resp, nil
}

// CommitActivation finishes the lifecycle handshake, moving PENDING_COMMIT to
// ACTIVE once the integrator confirms the user (and the OTP, in ON_COMMIT
// mode).
func (s *Service) CommitActivation(ctx context.Context, req CommitActivationRequest) (CommitActivationResponse, error) {
	err := s.activations.WithLocked(ctx, req.ActivationID, func(act *domain.Activation, save func() error) error {
		if act.Expired(s.nowFn()) {
			act.Status = domain.ActivationRemoved
			if err := save(); err != nil {
				return err
			}
			s.notifyStatusChange(ctx, *act)
			return domain.Errf(domain.ErrActivationExpired, "activation expired")
		}
		if act.Status != domain.ActivationPendingCommit {
			return domain.Errf(domain.ErrActivationIncorrectState, "activation is %s", act.Status)
		}
		if act.OTPMode == domain.OTPValidationOnCommit {
			if req.OTP == "" {
				return domain.Errf(domain.ErrActivationExpired, "activation commit failed")
			}
			if err := s.otpHasher.Compare(act.OTPHash, req.OTP); err != nil {
				act.FailedAttempts++
				if act.FailedAttempts >= act.MaxFailedAttempts {
					act.Status = domain.ActivationRemoved
					if err := save(); err != nil {
						return err
					}
					s.notifyStatusChange(ctx, *act)
					return domain.Errf(domain.ErrActivationExpired, "activation commit failed")
				}
				if err := save(); err != nil {
					return err
				}
				return domain.Errf(domain.ErrActivationExpired, "activation commit failed")
			}
			act.OTPUsed = true
		}
		act.Status = domain.ActivationActive
		act.FailedAttempts = 0
		if req.ExternalUserID != "" {
			act.ExternalID = req.ExternalUserID
		}
		if err := save(); err != nil {
			return err
		}
		s.notifyStatusChange(ctx, *act)
		return nil
	})
	if err != nil {
		return CommitActivationResponse{}, err
	}
	return CommitActivationResponse{ActivationID: req.ActivationID, Activated: true}, nil
}

// BlockActivation suspends an ACTIVE activation, recording why.
func (s *Service) BlockActivation(ctx context.Context, req BlockActivationRequest) (ActivationStatusResponse, error) {
	reason := req.Reason
	if reason == "" {
		reason = "NOT_SPECIFIED"
	}
	return s.transitionActivation(ctx, req.ActivationID, domain.ActivationBlocked, reason)
}

// UnblockActivation lifts a block and resets the failed-attempt count.
func (s *Service) UnblockActivation(ctx context.Context, activationID string) (ActivationStatusResponse, error) {
	return s.transitionActivation(ctx, activationID, domain.ActivationActive, "")
}

// RemoveActivation is terminal. Bound recovery codes are revoked by default
// so they cannot resurrect the activation; integrators that plan a
// recovery-based reactivation can ask to keep them.
func (s *Service) RemoveActivation(ctx context.Context, activationID string, revokeRecoveryCodes bool) (ActivationStatusResponse, error) {
	resp, err := s.transitionActivation(ctx, activationID, domain.ActivationRemoved, "")
	if err != nil {
		return ActivationStatusResponse{}, err
	}
	if revokeRecoveryCodes {
		if err := s.revokeActivationRecoveryCodes(ctx, activationID); err != nil {
			s.logger.WarnContext(ctx, "revoking recovery codes after removal failed",
				"operation", "RemoveActivation",
				"activation_id", activationID,
				"error", err)
		}
	}
	return resp, nil
}

func (s *Service) transitionActivation(ctx context.Context, activationID string, next domain.ActivationStatus, reason string) (ActivationStatusResponse, error) {
	var out domain.Activation
	err := s.activations.WithLocked(ctx, activationID, func(act *domain.Activation, save func() error) error {
		if act.Expired(s.nowFn()) {
			act.Status = domain.ActivationRemoved
			if err := save(); err != nil {
				return err
			}
			s.notifyStatusChange(ctx, *act)
			return domain.Errf(domain.ErrActivationExpired, "activation expired")
		}
		if !act.CanTransitionTo(next) {
			return domain.Errf(domain.ErrActivationIncorrectState, "cannot move %s activation to %s", act.Status, next)
		}
		act.Status = next
		act.BlockedReason = reason
		if next == domain.ActivationActive {
			act.FailedAttempts = 0
		}
		if err := save(); err != nil {
			return err
		}
		s.notifyStatusChange(ctx, *act)
		out = *act
		return nil
	})
	if err != nil {
		return ActivationStatusResponse{}, err
	}
	return statusView(out), nil
}

// GetActivationStatus reads one activation, lazily expiring it first so
// callers never observe a CREATED record that is already dead.
func (s *Service) GetActivationStatus(ctx context.Context, activationID string) (ActivationStatusResponse, error) {
	act, err := s.activations.FindByID(ctx, activationID)
	if err != nil {
		return ActivationStatusResponse{}, err
	}
	if act.Expired(s.nowFn()) {
		act, err = s.expireLocked(ctx, activationID)
		if err != nil {
			return ActivationStatusResponse{}, err
		}
	}
	return statusView(act), nil
}

// ListActivationsForUser returns the user's activations, expiring stale
// pre-commit records along the way.
func (s *Service) ListActivationsForUser(ctx context.Context, userID string, applicationID *uuid.UUID) ([]ActivationStatusResponse, error) {
	if userID == "" {
		return nil, domain.Errf(domain.ErrInvalidRequest, "missing user id")
	}
	acts, err := s.activations.ListByUser(ctx, userID, applicationID)
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	out := make([]ActivationStatusResponse, 0, len(acts))
	for _, act := range acts {
		if act.Expired(now) {
			expired, err := s.expireLocked(ctx, act.ActivationID)
			if err != nil {
				return nil, err
			}
			act = expired
		}
		out = append(out, statusView(act))
	}
	return out, nil
}

// expireLocked re-checks expiry under the row lock and persists the terminal
// transition if it still holds.
func (s *Service) expireLocked(ctx context.Context, activationID string) (domain.Activation, error) {
	var out domain.Activation
	err := s.activations.WithLocked(ctx, activationID, func(act *domain.Activation, save func() error) error {
		if act.Expired(s.nowFn()) {
			act.Status = domain.ActivationRemoved
			if err := save(); err != nil {
				return err
			}
			s.notifyStatusChange(ctx, *act)
		}
		out = *act
		return nil
	})
	if err != nil {
		return domain.Activation{}, err
	}
	return out, nil
}

func statusView(act domain.Activation) ActivationStatusResponse {
	remaining := act.MaxFailedAttempts - act.FailedAttempts
	if remaining < 0 {
		remaining = 0
	}
	return ActivationStatusResponse{
		ActivationID:      act.ActivationID,
		UserID:            act.UserID,
		ApplicationID:     act.ApplicationID,
		Status:            act.Status,
		BlockedReason:     act.BlockedReason,
		Version:           act.Version,
		RemainingAttempts: remaining,
		Platform:          act.Platform,
		DeviceInfo:        act.DeviceInfo,
		Flags:             act.Flags,
		ExternalID:        act.ExternalID,
		CreatedAt:         act.CreatedAt,
		ExpiresAt:         act.ExpiresAt,
		LastUsedAt:        act.LastUsedAt,
	}
}

// revokeActivationRecoveryCodes revokes every non-revoked code bound to the
// activation.
func (s *Service) revokeActivationRecoveryCodes(ctx context.Context, activationID string) error {
	codes, err := s.recovery.ListByActivation(ctx, activationID)
	if err != nil {
		return err
	}
	for _, code := range codes {
		if code.Status == domain.RecoveryCodeRevoked {
			continue
		}
		err := s.recovery.WithLockedByID(ctx, code.RecoveryCodeID, func(rc *domain.RecoveryCode, tx ports.RecoveryTx) error {
			revokeRecoveryCode(rc)
			return tx.Save()
		})
		if err != nil {
			return err
		}
	}
	return nil
}
