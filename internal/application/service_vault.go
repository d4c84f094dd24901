package application

import (
	"context"

	"github.com/mobilauth/activation-service/internal/crypto"
	"github.com/mobilauth/activation-service/internal/domain"
)

// VaultUnlock verifies the accompanying signature and, when it holds, derives
// the vault encryption key from the post-advance counter state and returns it
// enveloped to the device public key. A successful unlock therefore consumes
// two counter steps (one for the signature, one for the key derivation); a
// failed signature consumes one. Calls against a non-ACTIVE activation get a
// fixed REMOVED-status reply and consume nothing.
func (s *Service) VaultUnlock(ctx context.Context, req VaultUnlockRequest) (VaultUnlockResponse, error) {
	if req.Signature == "" || len(req.SignedData) == 0 {
		return VaultUnlockResponse{}, domain.Errf(domain.ErrInvalidRequest, "missing signature or data")
	}
	sigType, recognized := domain.ParseSignatureType(req.SignatureType)
	if !recognized {
		s.logger.WarnContext(ctx, "unrecognized signature type, verifying against strongest composite",
			"operation", "VaultUnlock",
			"activation_id", req.ActivationID,
			"requested_type", req.SignatureType)
	}
	version, err := s.supportedVersion(ctx, req.ApplicationKey)
	if err != nil {
		return VaultUnlockResponse{}, err
	}

	var resp VaultUnlockResponse
	err = s.activations.WithLocked(ctx, req.ActivationID, func(act *domain.Activation, save func() error) error {
		if act.ApplicationID != version.ApplicationID {
			return domain.Errf(domain.ErrInvalidApplication, "application key does not match activation")
		}
		if act.Expired(s.nowFn()) {
			act.Status = domain.ActivationRemoved
			if err := save(); err != nil {
				return err
			}
			s.notifyStatusChange(ctx, *act)
		}
		if act.Status != domain.ActivationActive {
			resp = VaultUnlockResponse{Status: domain.ActivationRemoved}
			return nil
		}

		privRaw, err := s.serverPrivateKey(act)
		if err != nil {
			return err
		}
		priv, err := s.provider.ParsePrivateKey(privRaw)
		if err != nil {
			return err
		}
		shared, err := s.provider.SharedSecret(priv, act.DevicePublicKey)
		if err != nil {
			return err
		}
		baseKey := crypto.DeriveSignatureBaseKey(shared)

		advanceCounter(act)
		ctrBytes, err := crypto.CounterData(act.Version, act.Counter, act.CtrData)
		if err != nil {
			return err
		}
		if !crypto.VerifySignature(baseKey, sigType.Factors(), req.SignedData, ctrBytes, req.Signature) {
			act.FailedAttempts++
			if act.FailedAttempts >= act.MaxFailedAttempts {
				act.Status = domain.ActivationBlocked
				act.BlockedReason = blockedReasonMaxFailedAttempts
			}
			if err := save(); err != nil {
				return err
			}
			if act.Status == domain.ActivationBlocked {
				s.notifyStatusChange(ctx, *act)
			}
			resp = VaultUnlockResponse{Status: act.Status}
			return nil
		}

		// Second counter step scopes the derived vault key to this unlock.
		advanceCounter(act)
		ctrBytes, err = crypto.CounterData(act.Version, act.Counter, act.CtrData)
		if err != nil {
			return err
		}
		vaultKey := crypto.DeriveVaultKey(shared, ctrBytes)
		cryptogram, err := s.provider.EncryptEnvelope(act.DevicePublicKey, vaultKey, envelopeInfoVault)
		if err != nil {
			return err
		}

		now := s.nowFn()
		act.FailedAttempts = 0
		act.LastUsedAt = &now
		if err := save(); err != nil {
			return err
		}
		envelope := envelopeFrom(cryptogram)
		resp = VaultUnlockResponse{Unlocked: true, Status: act.Status, Envelope: &envelope}
		return nil
	})
	if err != nil {
		return VaultUnlockResponse{}, err
	}
	return resp, nil
}
