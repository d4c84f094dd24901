package crypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/mobilauth/activation-service/internal/domain"
)

func TestCounterDataVersions(t *testing.T) {
	t.Parallel()

	v2, err := CounterData(domain.ProtocolV2, 259, nil)
	if err != nil {
		t.Fatalf("v2 counter data: %v", err)
	}
	if len(v2) != CtrDataLength {
		t.Fatalf("v2 counter data length %d", len(v2))
	}
	if v2[CtrDataLength-1] != 3 || v2[CtrDataLength-2] != 1 {
		t.Fatalf("v2 counter not big-endian encoded: %x", v2)
	}

	chain := bytes.Repeat([]byte{0xaa}, CtrDataLength)
	v3, err := CounterData(domain.ProtocolV3, 259, chain)
	if err != nil {
		t.Fatalf("v3 counter data: %v", err)
	}
	if !bytes.Equal(v3, chain) {
		t.Fatalf("v3 counter data must be the hash chain state")
	}

	if _, err := CounterData(domain.ProtocolV3, 1, []byte("short")); err == nil {
		t.Fatalf("expected error for malformed v3 counter state")
	}
	if _, err := CounterData(domain.ProtocolVersion(9), 1, chain); err == nil {
		t.Fatalf("expected error for unsupported protocol version")
	}
}

func TestAdvanceCtrDataChain(t *testing.T) {
	t.Parallel()

	seed := bytes.Repeat([]byte{1}, CtrDataLength)
	next := AdvanceCtrData(seed)
	if len(next) != CtrDataLength {
		t.Fatalf("advanced counter length %d", len(next))
	}
	if bytes.Equal(next, seed) {
		t.Fatalf("advance must change the counter state")
	}
	if !bytes.Equal(next, AdvanceCtrData(seed)) {
		t.Fatalf("advance must be deterministic")
	}
}

func TestComputeSignatureFactorsDiffer(t *testing.T) {
	t.Parallel()

	baseKey := bytes.Repeat([]byte{5}, 32)
	data := []byte("POST&/pa/signature/verify&payload")
	ctr := bytes.Repeat([]byte{2}, CtrDataLength)

	possession, err := ComputeSignature(baseKey, domain.SignaturePossession.Factors(), data, ctr)
	if err != nil {
		t.Fatalf("compute possession: %v", err)
	}
	composite, err := ComputeSignature(baseKey, domain.SignaturePossessionKnowledge.Factors(), data, ctr)
	if err != nil {
		t.Fatalf("compute composite: %v", err)
	}
	if possession == composite {
		t.Fatalf("factor sets must produce distinct signatures")
	}

	if !VerifySignature(baseKey, domain.SignaturePossession.Factors(), data, ctr, possession) {
		t.Fatalf("valid signature rejected")
	}
	if VerifySignature(baseKey, domain.SignaturePossession.Factors(), []byte("other data"), ctr, possession) {
		t.Fatalf("signature accepted for different data")
	}
	if VerifySignature(baseKey, domain.SignaturePossession.Factors(), data, AdvanceCtrData(ctr), possession) {
		t.Fatalf("signature accepted for different counter state")
	}

	if _, err := ComputeSignature(baseKey, nil, data, ctr); err == nil {
		t.Fatalf("expected error with no factors")
	}
}

func TestDeriveVaultKeyScopedToCounter(t *testing.T) {
	t.Parallel()

	shared := bytes.Repeat([]byte{8}, 32)
	ctrA := bytes.Repeat([]byte{1}, CtrDataLength)
	ctrB := AdvanceCtrData(ctrA)

	keyA := DeriveVaultKey(shared, ctrA)
	keyB := DeriveVaultKey(shared, ctrB)
	if len(keyA) != TransportKeyLength {
		t.Fatalf("vault key length %d", len(keyA))
	}
	if bytes.Equal(keyA, keyB) {
		t.Fatalf("vault key must change with counter state")
	}
}

func TestApplicationSignature(t *testing.T) {
	t.Parallel()

	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("key&code&data"))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if got := ApplicationSignature("secret", "key", "code", "data"); got != expected {
		t.Fatalf("application signature mismatch: got %s", got)
	}
	if ApplicationSignature("secret", "key") == ApplicationSignature("other", "key") {
		t.Fatalf("different secrets must not collide")
	}
}
