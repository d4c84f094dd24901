package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"

	"github.com/mobilauth/activation-service/internal/domain"
)

// CtrDataLength is the size of the hash-chain counter state (protocol v3).
const CtrDataLength = 16

// CounterData resolves the per-attempt counter bytes for either protocol
// version. This switch is the single point of version divergence for
// signature semantics.
func CounterData(version domain.ProtocolVersion, counter uint64, ctrData []byte) ([]byte, error) {
	switch version {
	case domain.ProtocolV2:
		buf := make([]byte, CtrDataLength)
		binary.BigEndian.PutUint64(buf[CtrDataLength-8:], counter)
		return buf, nil
	case domain.ProtocolV3:
		if len(ctrData) != CtrDataLength {
			return nil, domain.Errf(domain.ErrGenericCryptography, "invalid counter data")
		}
		return ctrData, nil
	default:
		return nil, domain.Errf(domain.ErrGenericCryptography, "unsupported protocol version %d", version)
	}
}

// AdvanceCtrData moves the v3 hash chain forward one step.
func AdvanceCtrData(ctrData []byte) []byte {
	sum := sha256.Sum256(ctrData)
	next := make([]byte, CtrDataLength)
	copy(next, sum[:CtrDataLength])
	return next
}

// ComputeSignature produces the online signature over normalized request
// data. Per-factor keys are HMAC-derived from the base key; composite types
// combine key material by XOR folding, never by concatenating signatures.
func ComputeSignature(baseKey []byte, factors []domain.SignatureFactor, data, ctrData []byte) (string, error) {
	if len(factors) == 0 {
		return "", domain.Errf(domain.ErrGenericCryptography, "no signature factors")
	}
	composite := make([]byte, sha256.Size)
	for _, factor := range factors {
		factorKey := DeriveFactorKey(baseKey, factor)
		mac := hmac.New(sha256.New, factorKey)
		mac.Write(ctrData)
		component := mac.Sum(nil)
		for i := range composite {
			composite[i] ^= component[i]
		}
	}

	mac := hmac.New(sha256.New, composite)
	mac.Write(data)
	mac.Write(ctrData)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// VerifySignature recomputes and compares in constant time.
func VerifySignature(baseKey []byte, factors []domain.SignatureFactor, data, ctrData []byte, signature string) bool {
	expected, err := ComputeSignature(baseKey, factors, data, ctrData)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}

// DeriveSignatureBaseKey turns the device/server ECDH shared secret into the
// base signature key all factor keys hang off.
func DeriveSignatureBaseKey(sharedSecret []byte) []byte {
	mac := hmac.New(sha256.New, sharedSecret)
	mac.Write([]byte("signature-base"))
	return mac.Sum(nil)
}

// DeriveVaultKey derives the vault encryption key from the device/server
// shared secret and a counter-derived nonce, so each unlock is scoped to the
// counter state that paid for it.
func DeriveVaultKey(sharedSecret, ctrData []byte) []byte {
	mac := hmac.New(sha256.New, sharedSecret)
	mac.Write([]byte("vault-unlock"))
	mac.Write(ctrData)
	return mac.Sum(nil)[:TransportKeyLength]
}
