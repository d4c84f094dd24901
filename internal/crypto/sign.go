package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"strings"

	"github.com/mobilauth/activation-service/internal/domain"
)

// SignWithMasterKey produces the ECDSA activation-handshake signature using
// an application's master private key (PKCS#8 DER).
func (p *Provider) SignWithMasterKey(privateDER, payload []byte) ([]byte, error) {
	keyAny, err := x509.ParsePKCS8PrivateKey(privateDER)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidKeyFormat, "invalid master private key", err)
	}
	key, ok := keyAny.(*ecdsa.PrivateKey)
	if !ok {
		return nil, domain.Errf(domain.ErrInvalidKeyFormat, "invalid master private key")
	}
	digest := sha256.Sum256(payload)
	sig, err := ecdsa.SignASN1(p.rand, key, digest[:])
	if err != nil {
		return nil, domain.WrapErr(domain.ErrGenericCryptography, "sign payload", err)
	}
	return sig, nil
}

// VerifyMasterKeySignature checks an ECDSA signature against an
// application's master public key (PKIX DER). Malformed keys and wrong
// signatures are externally indistinguishable.
func VerifyMasterKeySignature(publicDER, payload, signature []byte) bool {
	keyAny, err := x509.ParsePKIXPublicKey(publicDER)
	if err != nil {
		return false
	}
	key, ok := keyAny.(*ecdsa.PublicKey)
	if !ok {
		return false
	}
	digest := sha256.Sum256(payload)
	return ecdsa.VerifyASN1(key, digest[:], signature)
}

// MasterPrivateECDH reinterprets the master ECDSA private key (PKCS#8 DER) as
// an ECDH key. The same P-256 key pair signs handshake payloads and anchors
// envelope decryption for devices that only hold the master public key.
func MasterPrivateECDH(privateDER []byte) (*ecdh.PrivateKey, error) {
	keyAny, err := x509.ParsePKCS8PrivateKey(privateDER)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidKeyFormat, "invalid master private key", err)
	}
	key, ok := keyAny.(*ecdsa.PrivateKey)
	if !ok {
		return nil, domain.Errf(domain.ErrInvalidKeyFormat, "invalid master private key")
	}
	ecdhKey, err := key.ECDH()
	if err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidKeyFormat, "invalid master private key", err)
	}
	return ecdhKey, nil
}

// MasterPublicECDHBytes converts the master public key (PKIX DER) into the
// uncompressed-point encoding the envelope layer expects.
func MasterPublicECDHBytes(publicDER []byte) ([]byte, error) {
	keyAny, err := x509.ParsePKIXPublicKey(publicDER)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidKeyFormat, "invalid master public key", err)
	}
	key, ok := keyAny.(*ecdsa.PublicKey)
	if !ok {
		return nil, domain.Errf(domain.ErrInvalidKeyFormat, "invalid master public key")
	}
	ecdhKey, err := key.ECDH()
	if err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidKeyFormat, "invalid master public key", err)
	}
	return ecdhKey.Bytes(), nil
}

// ApplicationSignature authenticates a handshake payload with an application
// version secret. Parts are joined with '&' in wire order.
func ApplicationSignature(applicationSecret string, parts ...string) string {
	mac := hmac.New(sha256.New, []byte(applicationSecret))
	mac.Write([]byte(strings.Join(parts, "&")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
