package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mobilauth/activation-service/internal/domain"
	"github.com/mobilauth/activation-service/internal/ports"
)

const tokenSecretLength = 16

// CreateToken issues a bearer token bound to an ACTIVE activation. The token
// id is random and collision-checked against storage; after the configured
// number of duplicate hits the operation gives up rather than looping.
func (s *Service) CreateToken(ctx context.Context, req CreateTokenRequest) (CreateTokenResponse, error) {
	sigType, recognized := domain.ParseSignatureType(req.SignatureType)
	if !recognized {
		s.logger.WarnContext(ctx, "unrecognized signature type, recording strongest composite",
			"operation", "CreateToken",
			"activation_id", req.ActivationID,
			"requested_type", req.SignatureType)
	}
	act, err := s.activations.FindByID(ctx, req.ActivationID)
	if err != nil {
		return CreateTokenResponse{}, err
	}
	if act.Status != domain.ActivationActive {
		return CreateTokenResponse{}, domain.Errf(domain.ErrActivationIncorrectState, "activation is %s", act.Status)
	}

	secret, err := s.provider.RandomBytes(tokenSecretLength)
	if err != nil {
		return CreateTokenResponse{}, err
	}

	var token domain.Token
	created := false
	for attempt := 0; attempt < s.cfg.TokenGenerateRetries; attempt++ {
		token = domain.Token{
			TokenID:       uuid.NewString(),
			ActivationID:  act.ActivationID,
			Secret:        secret,
			SignatureType: sigType,
			CreatedAt:     s.nowFn(),
		}
		err := s.tokens.Create(ctx, &token)
		if err == nil {
			created = true
			break
		}
		if !errors.Is(err, ports.ErrDuplicate) {
			return CreateTokenResponse{}, err
		}
	}
	if !created {
		return CreateTokenResponse{}, domain.Errf(domain.ErrUnableToGenerateToken, "token id space exhausted after %d attempts", s.cfg.TokenGenerateRetries)
	}

	payload, err := json.Marshal(tokenPayload{
		TokenID:     token.TokenID,
		TokenSecret: base64.StdEncoding.EncodeToString(secret),
	})
	if err != nil {
		return CreateTokenResponse{}, domain.WrapErr(domain.ErrUnknown, "encode token reply", err)
	}
	cryptogram, err := s.provider.EncryptEnvelope(act.DevicePublicKey, payload, envelopeInfoToken)
	if err != nil {
		return CreateTokenResponse{}, err
	}
	return CreateTokenResponse{TokenID: token.TokenID, Envelope: envelopeFrom(cryptogram)}, nil
}

// ValidateToken checks a token digest. Stale timestamps and replayed nonces
// are rejected before the token secret is ever loaded; every other failure
// mode produces the same invalid verdict.
func (s *Service) ValidateToken(ctx context.Context, req ValidateTokenRequest) (ValidateTokenResponse, error) {
	if req.TokenID == "" || req.TokenDigest == "" || req.Nonce == "" {
		return ValidateTokenResponse{}, domain.Errf(domain.ErrInvalidRequest, "missing token validation fields")
	}

	now := s.nowFn()
	sent := time.UnixMilli(req.Timestamp)
	drift := now.Sub(sent)
	if drift < 0 {
		drift = -drift
	}
	if drift > s.cfg.TokenFreshnessWindow {
		return ValidateTokenResponse{}, nil
	}

	fresh, err := s.nonces.Remember(ctx, req.TokenID, req.Nonce, 2*s.cfg.TokenFreshnessWindow)
	if err != nil {
		return ValidateTokenResponse{}, err
	}
	if !fresh {
		return ValidateTokenResponse{}, nil
	}

	token, err := s.tokens.FindByID(ctx, req.TokenID)
	if err != nil {
		return ValidateTokenResponse{}, nil
	}

	mac := hmac.New(sha256.New, token.Secret)
	fmt.Fprintf(mac, "%s&%d", req.Nonce, req.Timestamp)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(req.TokenDigest)) {
		return ValidateTokenResponse{}, nil
	}

	act, err := s.activations.FindByID(ctx, token.ActivationID)
	if err != nil {
		return ValidateTokenResponse{}, nil
	}
	if act.Status != domain.ActivationActive {
		return ValidateTokenResponse{}, nil
	}

	return ValidateTokenResponse{
		Valid:         true,
		ActivationID:  act.ActivationID,
		UserID:        act.UserID,
		ApplicationID: act.ApplicationID,
		SignatureType: token.SignatureType,
	}, nil
}

// RemoveToken deletes a token; the activation id must match so one
// activation cannot remove another's tokens.
func (s *Service) RemoveToken(ctx context.Context, req RemoveTokenRequest) error {
	if req.TokenID == "" || req.ActivationID == "" {
		return domain.Errf(domain.ErrInvalidRequest, "missing token or activation id")
	}
	return s.tokens.Remove(ctx, req.TokenID, req.ActivationID)
}
