package application

import (
	"bytes"
	"context"
	"testing"

	"github.com/mobilauth/activation-service/internal/crypto"
	"github.com/mobilauth/activation-service/internal/domain"
)

func TestVaultUnlockDerivesCounterScopedKey(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	appID, ver := f.newTenant(t)
	device := f.activeActivation(t, appID, ver, "user-1")

	data := []byte("POST&/vault/unlock&{\"reason\":\"ADD_BIOMETRY\"}")
	resp, err := f.service.VaultUnlock(ctx, VaultUnlockRequest{
		ActivationID:   device.activationID,
		ApplicationKey: ver.ApplicationKey,
		SignatureType:  string(domain.SignaturePossessionKnowledge),
		Signature:      device.sign(t, domain.SignaturePossessionKnowledge, data),
		SignedData:     data,
		Reason:         "ADD_BIOMETRY",
	})
	if err != nil {
		t.Fatalf("vault unlock: %v", err)
	}
	if !resp.Unlocked || resp.Envelope == nil {
		t.Fatalf("vault not unlocked: %+v", resp)
	}

	// Signature verification consumed one counter step and key derivation a
	// second one.
	if got := f.activations.items[device.activationID].Counter; got != 2 {
		t.Fatalf("counter = %d after unlock, want 2", got)
	}

	cryptogram, err := resp.Envelope.cryptogram()
	if err != nil {
		t.Fatalf("decode vault envelope: %v", err)
	}
	vaultKey, err := f.provider.DecryptEnvelope(device.key, cryptogram, envelopeInfoVault)
	if err != nil {
		t.Fatalf("decrypt vault envelope: %v", err)
	}
	// The device derives the same key from the counter state one step past
	// the one it signed with.
	expected := crypto.DeriveVaultKey(device.shared, crypto.AdvanceCtrData(device.ctrData))
	if !bytes.Equal(vaultKey, expected) {
		t.Fatalf("vault key does not match device-side derivation")
	}
}

func TestVaultUnlockBadSignatureConsumesOneStep(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	appID, ver := f.newTenant(t)
	device := f.activeActivation(t, appID, ver, "user-1")

	resp, err := f.service.VaultUnlock(ctx, VaultUnlockRequest{
		ActivationID:   device.activationID,
		ApplicationKey: ver.ApplicationKey,
		SignatureType:  string(domain.SignaturePossessionKnowledge),
		Signature:      "Zm9yZ2VkIHNpZ25hdHVyZQ==",
		SignedData:     []byte("POST&/vault/unlock&{}"),
	})
	if err != nil {
		t.Fatalf("vault unlock: %v", err)
	}
	if resp.Unlocked || resp.Envelope != nil {
		t.Fatalf("forged signature unlocked the vault")
	}

	stored := f.activations.items[device.activationID]
	if stored.Counter != 1 {
		t.Fatalf("counter = %d after failed unlock, want 1", stored.Counter)
	}
	if stored.FailedAttempts != 1 {
		t.Fatalf("failed attempts = %d, want 1", stored.FailedAttempts)
	}
}

func TestVaultUnlockNonActiveGivesFixedReply(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	appID, ver := f.newTenant(t)
	device := f.activeActivation(t, appID, ver, "user-1")

	if _, err := f.service.BlockActivation(ctx, BlockActivationRequest{ActivationID: device.activationID}); err != nil {
		t.Fatalf("block: %v", err)
	}

	data := []byte("POST&/vault/unlock&{}")
	resp, err := f.service.VaultUnlock(ctx, VaultUnlockRequest{
		ActivationID:   device.activationID,
		ApplicationKey: ver.ApplicationKey,
		SignatureType:  string(domain.SignaturePossession),
		Signature:      device.sign(t, domain.SignaturePossession, data),
		SignedData:     data,
	})
	if err != nil {
		t.Fatalf("vault unlock: %v", err)
	}
	// The reply never distinguishes blocked from removed and consumes no
	// counter state.
	if resp.Unlocked || resp.Status != domain.ActivationRemoved {
		t.Fatalf("non-active unlock reply: %+v", resp)
	}
	if got := f.activations.items[device.activationID].Counter; got != 0 {
		t.Fatalf("counter advanced on non-active unlock: %d", got)
	}
}
