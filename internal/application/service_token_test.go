package application

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mobilauth/activation-service/internal/domain"
)

func tokenDigest(secret []byte, nonce string, timestamp int64) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%s&%d", nonce, timestamp)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestTokenLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	appID, ver := f.newTenant(t)
	device := f.activeActivation(t, appID, ver, "user-1")

	created, err := f.service.CreateToken(ctx, CreateTokenRequest{
		ActivationID:  device.activationID,
		SignatureType: string(domain.SignaturePossession),
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	cryptogram, err := created.Envelope.cryptogram()
	if err != nil {
		t.Fatalf("decode token envelope: %v", err)
	}
	plaintext, err := f.provider.DecryptEnvelope(device.key, cryptogram, envelopeInfoToken)
	if err != nil {
		t.Fatalf("decrypt token envelope: %v", err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		t.Fatalf("decode token payload: %v", err)
	}
	if payload.TokenID != created.TokenID {
		t.Fatalf("token id mismatch: %s vs %s", payload.TokenID, created.TokenID)
	}
	secret, err := base64.StdEncoding.DecodeString(payload.TokenSecret)
	if err != nil {
		t.Fatalf("decode token secret: %v", err)
	}

	timestamp := f.clock.UnixMilli()
	resp, err := f.service.ValidateToken(ctx, ValidateTokenRequest{
		TokenID:     created.TokenID,
		TokenDigest: tokenDigest(secret, "nonce-1", timestamp),
		Nonce:       "nonce-1",
		Timestamp:   timestamp,
	})
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if !resp.Valid {
		t.Fatalf("valid token rejected: %+v", resp)
	}
	if resp.ActivationID != device.activationID || resp.UserID != "user-1" {
		t.Fatalf("token resolution %+v", resp)
	}
	if resp.SignatureType != domain.SignaturePossession {
		t.Fatalf("signature type = %s", resp.SignatureType)
	}

	// Replaying the same nonce must fail even with a correct digest.
	resp, err = f.service.ValidateToken(ctx, ValidateTokenRequest{
		TokenID:     created.TokenID,
		TokenDigest: tokenDigest(secret, "nonce-1", timestamp),
		Nonce:       "nonce-1",
		Timestamp:   timestamp,
	})
	if err != nil || resp.Valid {
		t.Fatalf("replayed nonce accepted: %+v, %v", resp, err)
	}

	// A timestamp outside the freshness window fails before any lookup.
	stale := f.clock.Add(-10 * time.Minute).UnixMilli()
	resp, err = f.service.ValidateToken(ctx, ValidateTokenRequest{
		TokenID:     created.TokenID,
		TokenDigest: tokenDigest(secret, "nonce-2", stale),
		Nonce:       "nonce-2",
		Timestamp:   stale,
	})
	if err != nil || resp.Valid {
		t.Fatalf("stale timestamp accepted: %+v, %v", resp, err)
	}

	if err := f.service.RemoveToken(ctx, RemoveTokenRequest{TokenID: created.TokenID, ActivationID: "someone-else"}); !domain.IsKind(err, domain.ErrInvalidRequest) {
		t.Fatalf("foreign activation removed token: %v", err)
	}
	if err := f.service.RemoveToken(ctx, RemoveTokenRequest{TokenID: created.TokenID, ActivationID: device.activationID}); err != nil {
		t.Fatalf("remove token: %v", err)
	}

	timestamp = f.clock.UnixMilli()
	resp, err = f.service.ValidateToken(ctx, ValidateTokenRequest{
		TokenID:     created.TokenID,
		TokenDigest: tokenDigest(secret, "nonce-3", timestamp),
		Nonce:       "nonce-3",
		Timestamp:   timestamp,
	})
	if err != nil || resp.Valid {
		t.Fatalf("removed token validated: %+v, %v", resp, err)
	}
}

func TestTokenInvalidWhenActivationNotActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	appID, ver := f.newTenant(t)
	device := f.activeActivation(t, appID, ver, "user-1")

	created, err := f.service.CreateToken(ctx, CreateTokenRequest{
		ActivationID:  device.activationID,
		SignatureType: string(domain.SignaturePossession),
	})
	if err != nil {
		t.Fatalf("create token: %v", err)
	}
	secret := f.tokens.items[created.TokenID].Secret

	if _, err := f.service.BlockActivation(ctx, BlockActivationRequest{ActivationID: device.activationID}); err != nil {
		t.Fatalf("block: %v", err)
	}

	timestamp := f.clock.UnixMilli()
	resp, err := f.service.ValidateToken(ctx, ValidateTokenRequest{
		TokenID:     created.TokenID,
		TokenDigest: tokenDigest(secret, "nonce-1", timestamp),
		Nonce:       "nonce-1",
		Timestamp:   timestamp,
	})
	if err != nil || resp.Valid {
		t.Fatalf("token for blocked activation validated: %+v, %v", resp, err)
	}
}

func TestCreateTokenRequiresActiveActivation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	appID, _ := f.newTenant(t)

	init, err := f.service.InitActivation(ctx, InitActivationRequest{UserID: "user-1", ApplicationID: appID})
	if err != nil {
		t.Fatalf("init activation: %v", err)
	}

	_, err = f.service.CreateToken(ctx, CreateTokenRequest{
		ActivationID:  init.ActivationID,
		SignatureType: string(domain.SignaturePossession),
	})
	if !domain.IsKind(err, domain.ErrActivationIncorrectState) {
		t.Fatalf("token on CREATED activation: got %v, want incorrect state", err)
	}
}
