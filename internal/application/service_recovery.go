package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"

	"github.com/google/uuid"

	"github.com/mobilauth/activation-service/internal/crypto"
	"github.com/mobilauth/activation-service/internal/domain"
	"github.com/mobilauth/activation-service/internal/ports"
)

// hashPuk digests a PUK before at-rest wrapping; plaintext PUKs never touch
// storage in any mode.
func hashPuk(puk string) []byte {
	sum := sha256.Sum256([]byte(puk))
	return sum[:]
}

// CreateRecoveryCode issues a recovery code with the requested number of
// single-use PUKs. A code created standalone starts CREATED and must be
// confirmed by the user before it is usable; a code bound to an existing
// activation is ACTIVE immediately. Plaintext PUKs appear only in the
// response.
func (s *Service) CreateRecoveryCode(ctx context.Context, req CreateRecoveryCodeRequest) (CreateRecoveryCodeResponse, error) {
	if req.UserID == "" {
		return CreateRecoveryCodeResponse{}, domain.Errf(domain.ErrInvalidRequest, "missing user id")
	}
	if req.PukCount < 1 || req.PukCount > s.cfg.MaxPukCount {
		return CreateRecoveryCodeResponse{}, domain.Errf(domain.ErrInvalidRequest, "puk count must be between 1 and %d", s.cfg.MaxPukCount)
	}
	app, err := s.applications.GetApplication(ctx, req.ApplicationID)
	if err != nil {
		return CreateRecoveryCodeResponse{}, domain.WrapErr(domain.ErrInvalidApplication, "unknown application", err)
	}

	activeStatus := domain.RecoveryCodeActive
	existing, err := s.recovery.Lookup(ctx, ports.RecoveryLookupFilter{
		UserID:        req.UserID,
		ApplicationID: &app.ApplicationID,
		CodeStatus:    &activeStatus,
	})
	if err != nil {
		return CreateRecoveryCodeResponse{}, err
	}
	if len(existing) > 0 {
		return CreateRecoveryCodeResponse{}, domain.Errf(domain.ErrRecoveryCodeInvalid, "active recovery code already exists")
	}

	codeValue, err := s.provider.GenerateRecoveryCode()
	if err != nil {
		return CreateRecoveryCodeResponse{}, err
	}

	status := domain.RecoveryCodeCreated
	if req.ActivationID != "" {
		status = domain.RecoveryCodeActive
	}
	now := s.nowFn()
	code := domain.RecoveryCode{
		RecoveryCodeID:    uuid.New(),
		ApplicationID:     app.ApplicationID,
		UserID:            req.UserID,
		ActivationID:      req.ActivationID,
		Code:              codeValue,
		Status:            status,
		MaxFailedAttempts: s.cfg.RecoveryMaxFailedAttempts,
		CreatedAt:         now,
		Puks:              make([]domain.RecoveryPuk, 0, req.PukCount),
	}

	plaintext := make(map[int64]string, req.PukCount)
	for i := 0; i < req.PukCount; i++ {
		index := int64(i)
		puk, err := s.provider.GeneratePuk()
		if err != nil {
			return CreateRecoveryCodeResponse{}, err
		}
		context := crypto.PukKeyContext(app.ApplicationID.String(), req.UserID, codeValue, index)
		wrapped, mode, err := s.keyVault.ToDBValue(hashPuk(puk), context)
		if err != nil {
			return CreateRecoveryCodeResponse{}, err
		}
		code.Puks = append(code.Puks, domain.RecoveryPuk{
			PukID:          uuid.New(),
			RecoveryCodeID: code.RecoveryCodeID,
			Index:          index,
			PukHash:        wrapped,
			HashEncryption: mode,
			Status:         domain.PukValid,
		})
		plaintext[index] = puk
	}

	if err := s.recovery.Create(ctx, &code); err != nil {
		return CreateRecoveryCodeResponse{}, err
	}
	return CreateRecoveryCodeResponse{
		RecoveryCodeID: code.RecoveryCodeID,
		Code:           codeValue,
		Status:         code.Status,
		Puks:           plaintext,
	}, nil
}

// CreateActivationUsingRecoveryCode consumes the lowest-index VALID PUK and,
// in the same transaction, mints a replacement CREATED activation the device
// completes with the normal key-exchange flow. A wrong PUK persists the
// failed-attempt increment; everything else about the code stays untouched.
func (s *Service) CreateActivationUsingRecoveryCode(ctx context.Context, req RecoveryActivationRequest) (RecoveryActivationResponse, error) {
	if err := crypto.ValidateActivationCode(req.RecoveryCode); err != nil {
		return RecoveryActivationResponse{}, err
	}
	if err := crypto.ValidatePuk(req.Puk); err != nil {
		return RecoveryActivationResponse{}, err
	}
	version, err := s.supportedVersion(ctx, req.ApplicationKey)
	if err != nil {
		return RecoveryActivationResponse{}, err
	}

	var resp RecoveryActivationResponse
	err = s.recovery.WithLockedByCode(ctx, version.ApplicationID, req.RecoveryCode, func(code *domain.RecoveryCode, tx ports.RecoveryTx) error {
		if code.Status != domain.RecoveryCodeActive {
			return domain.Errf(domain.ErrRecoveryCodeInvalid, "recovery code cannot be used")
		}

		var puk *domain.RecoveryPuk
		for i := range code.Puks {
			if code.Puks[i].Status != domain.PukValid {
				continue
			}
			if puk == nil || code.Puks[i].Index < puk.Index {
				puk = &code.Puks[i]
			}
		}
		if puk == nil {
			return domain.Errf(domain.ErrRecoveryCodeInvalid, "recovery code cannot be used")
		}

		context := crypto.PukKeyContext(code.ApplicationID.String(), code.UserID, code.Code, puk.Index)
		storedHash, err := s.keyVault.FromDBValue(puk.PukHash, puk.HashEncryption, context)
		if err != nil {
			return err
		}
		if !hmac.Equal(storedHash, hashPuk(req.Puk)) {
			code.FailedAttempts++
			if code.FailedAttempts >= code.MaxFailedAttempts {
				code.Status = domain.RecoveryCodeBlocked
			}
			if err := tx.Save(); err != nil {
				return err
			}
			return domain.Errf(domain.ErrRecoveryCodeInvalid, "recovery code cannot be used")
		}

		now := s.nowFn()
		puk.Status = domain.PukUsed
		puk.UsedAt = &now
		code.FailedAttempts = 0
		if err := tx.Save(); err != nil {
			return err
		}

		act, err := s.buildRecoveryActivation(code, req.MaxFailedAttempts)
		if err != nil {
			return err
		}
		if err := tx.CreateActivation(&act); err != nil {
			return err
		}
		signature, err := s.signActivationCode(ctx, code.ApplicationID, act.ActivationID, act.ActivationCode)
		if err != nil {
			// The PUK must not burn when the replacement activation cannot
			// be issued.
			return &domain.Error{Kind: domain.KindOf(err), Message: err.Error(), Rollback: true}
		}
		resp = RecoveryActivationResponse{
			ActivationID:        act.ActivationID,
			ActivationCode:      act.ActivationCode,
			ActivationSignature: signature,
			UserID:              code.UserID,
			ExpiresAt:           act.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return RecoveryActivationResponse{}, err
	}
	return resp, nil
}

// buildRecoveryActivation assembles the CREATED activation record issued in
// exchange for a consumed PUK.
func (s *Service) buildRecoveryActivation(code *domain.RecoveryCode, maxFailed int64) (domain.Activation, error) {
	activationID := uuid.NewString()
	activationCode, err := s.provider.GenerateActivationCode()
	if err != nil {
		return domain.Activation{}, err
	}
	serverKey, err := s.provider.GenerateKeyPair()
	if err != nil {
		return domain.Activation{}, err
	}
	ctrData, err := s.provider.RandomBytes(crypto.CtrDataLength)
	if err != nil {
		return domain.Activation{}, err
	}
	keyContext := crypto.ActivationKeyContext(code.ApplicationID.String(), code.UserID, activationID)
	wrappedKey, keyMode, err := s.keyVault.ToDBValue(serverKey.Bytes(), keyContext)
	if err != nil {
		return domain.Activation{}, err
	}
	if maxFailed <= 0 {
		maxFailed = s.cfg.DefaultMaxFailedAttempts
	}
	now := s.nowFn()
	return domain.Activation{
		ActivationID:        activationID,
		UserID:              code.UserID,
		ApplicationID:       code.ApplicationID,
		Status:              domain.ActivationCreated,
		ActivationCode:      activationCode,
		CtrData:             ctrData,
		MaxFailedAttempts:   maxFailed,
		ServerPublicKey:     serverKey.PublicKey().Bytes(),
		ServerPrivateKey:    wrappedKey,
		ServerKeyEncryption: keyMode,
		Version:             domain.ProtocolV3,
		OTPMode:             domain.OTPValidationNone,
		CreatedAt:           now,
		ExpiresAt:           now.Add(s.cfg.ActivationValidity),
	}, nil
}

// ConfirmRecoveryCode acknowledges that the user has seen and stored a
// standalone recovery code, moving it CREATED → ACTIVE. Confirming twice is
// harmless.
func (s *Service) ConfirmRecoveryCode(ctx context.Context, req ConfirmRecoveryCodeRequest) (ConfirmRecoveryCodeResponse, error) {
	var resp ConfirmRecoveryCodeResponse
	err := s.recovery.WithLockedByID(ctx, req.RecoveryCodeID, func(code *domain.RecoveryCode, tx ports.RecoveryTx) error {
		switch code.Status {
		case domain.RecoveryCodeCreated:
			code.Status = domain.RecoveryCodeActive
			return tx.Save()
		case domain.RecoveryCodeActive:
			resp.AlreadyConfirmed = true
			return nil
		default:
			return domain.Errf(domain.ErrRecoveryCodeInvalid, "recovery code cannot be confirmed")
		}
	})
	if err != nil {
		return ConfirmRecoveryCodeResponse{}, err
	}
	return resp, nil
}

// revokeRecoveryCode marks the code REVOKED and invalidates any unredeemed
// PUKs.
func revokeRecoveryCode(code *domain.RecoveryCode) {
	code.Status = domain.RecoveryCodeRevoked
	for i := range code.Puks {
		if code.Puks[i].Status == domain.PukValid {
			code.Puks[i].Status = domain.PukInvalid
		}
	}
}

// RevokeRecoveryCodes revokes the listed codes; already revoked entries are
// skipped, not errors.
func (s *Service) RevokeRecoveryCodes(ctx context.Context, req RevokeRecoveryCodesRequest) (RevokeRecoveryCodesResponse, error) {
	if len(req.RecoveryCodeIDs) == 0 {
		return RevokeRecoveryCodesResponse{}, domain.Errf(domain.ErrInvalidRequest, "no recovery codes given")
	}
	revoked := 0
	for _, id := range req.RecoveryCodeIDs {
		err := s.recovery.WithLockedByID(ctx, id, func(code *domain.RecoveryCode, tx ports.RecoveryTx) error {
			if code.Status == domain.RecoveryCodeRevoked {
				return nil
			}
			revokeRecoveryCode(code)
			if err := tx.Save(); err != nil {
				return err
			}
			revoked++
			return nil
		})
		if err != nil {
			return RevokeRecoveryCodesResponse{}, err
		}
	}
	return RevokeRecoveryCodesResponse{Revoked: revoked}, nil
}

// LookupRecoveryCodes lists codes matching the filter. PUK hashes never
// leave the core; views carry index and status only.
func (s *Service) LookupRecoveryCodes(ctx context.Context, req LookupRecoveryCodesRequest) ([]RecoveryCodeView, error) {
	if req.UserID == "" && req.ActivationID == "" {
		return nil, domain.Errf(domain.ErrInvalidRequest, "user id or activation id required")
	}
	codes, err := s.recovery.Lookup(ctx, ports.RecoveryLookupFilter{
		UserID:        req.UserID,
		ActivationID:  req.ActivationID,
		ApplicationID: req.ApplicationID,
		CodeStatus:    req.CodeStatus,
		PukStatus:     req.PukStatus,
	})
	if err != nil {
		return nil, err
	}
	out := make([]RecoveryCodeView, 0, len(codes))
	for _, code := range codes {
		view := RecoveryCodeView{
			RecoveryCodeID: code.RecoveryCodeID,
			ApplicationID:  code.ApplicationID,
			UserID:         code.UserID,
			ActivationID:   code.ActivationID,
			Status:         code.Status,
			CreatedAt:      code.CreatedAt,
			Puks:           make([]RecoveryPukView, 0, len(code.Puks)),
		}
		for _, puk := range code.Puks {
			view.Puks = append(view.Puks, RecoveryPukView{
				Index:  puk.Index,
				Status: puk.Status,
				UsedAt: puk.UsedAt,
			})
		}
		out = append(out, view)
	}
	return out, nil
}
