package application

import (
	"context"

	"github.com/mobilauth/activation-service/internal/crypto"
	"github.com/mobilauth/activation-service/internal/domain"
)

// VerifySignature checks an online signature under the activation row lock.
// The replay counter advances exactly once per attempt against an ACTIVE or
// BLOCKED activation, whatever the outcome; this is what makes a recorded
// request worthless the moment the original has been processed. Counter and
// failed-attempt mutations survive a failed verification because the
// surrounding errors carry no rollback flag.
func (s *Service) VerifySignature(ctx context.Context, req VerifySignatureRequest) (VerifySignatureResponse, error) {
	if req.Signature == "" || len(req.Data) == 0 {
		return VerifySignatureResponse{}, domain.Errf(domain.ErrInvalidRequest, "missing signature or data")
	}
	sigType, recognized := domain.ParseSignatureType(req.SignatureType)
	if !recognized {
		s.logger.WarnContext(ctx, "unrecognized signature type, verifying against strongest composite",
			"operation", "VerifySignature",
			"activation_id", req.ActivationID,
			"requested_type", req.SignatureType)
	}
	version, err := s.supportedVersion(ctx, req.ApplicationKey)
	if err != nil {
		return VerifySignatureResponse{}, err
	}

	var resp VerifySignatureResponse
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
			resp = VerifySignatureResponse{Status: act.Status, SignatureType: sigType}
			return domain.Errf(domain.ErrActivationIncorrectState, "activation is %s", act.Status)
		}

		switch act.Status {
		case domain.ActivationActive:
			// fall through to verification
		case domain.ActivationBlocked:
			// A blocked activation still consumes counter state so that the
			// device and server stay aligned, but no key material is touched.
			advanceCounter(act)
			if err := save(); err != nil {
				return err
			}
			resp = VerifySignatureResponse{
				Status:        act.Status,
				BlockedReason: act.BlockedReason,
				SignatureType: sigType,
			}
			return domain.Errf(domain.ErrActivationIncorrectState, "activation is %s", act.Status)
		default:
			resp = VerifySignatureResponse{Status: act.Status, SignatureType: sigType}
			return domain.Errf(domain.ErrActivationIncorrectState, "activation is %s", act.Status)
		}

		protocol := act.Version
		if req.ForcedVersion != nil {
			protocol = *req.ForcedVersion
		}

		advanceCounter(act)
		ctrBytes, err := crypto.CounterData(protocol, act.Counter, act.CtrData)
		if err != nil {
			return err
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

		now := s.nowFn()
		if crypto.VerifySignature(baseKey, sigType.Factors(), req.Data, ctrBytes, req.Signature) {
			act.FailedAttempts = 0
			act.LastUsedAt = &now
			if err := save(); err != nil {
				return err
			}
			resp = VerifySignatureResponse{
				Valid:             true,
				Status:            act.Status,
				RemainingAttempts: act.MaxFailedAttempts,
				SignatureType:     sigType,
			}
			return nil
		}

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
		remaining := act.MaxFailedAttempts - act.FailedAttempts
		if remaining < 0 {
			remaining = 0
		}
		resp = VerifySignatureResponse{
			Status:            act.Status,
			BlockedReason:     act.BlockedReason,
			RemainingAttempts: remaining,
			SignatureType:     sigType,
		}
		return nil
	})
	if err != nil {
		return resp, err
	}
	return resp, nil
}
