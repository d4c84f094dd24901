package crypto

import (
	"crypto/aes"
	"crypto/hmac"
	cryptorand "crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/mobilauth/activation-service/internal/domain"
)

// KeyEncryptor protects server-held secrets (server private keys, PUK
// hashes) before they touch storage. With no master key configured it stores
// plaintext tagged NO_ENCRYPTION, an explicit opt-out rather than a silent
// one.
type KeyEncryptor struct {
	masterKey []byte
	rand      io.Reader
}

// NewKeyEncryptor parses the optional Base64 master database-encryption key.
func NewKeyEncryptor(masterKeyBase64 string) (*KeyEncryptor, error) {
	if masterKeyBase64 == "" {
		return &KeyEncryptor{rand: cryptorand.Reader}, nil
	}
	key, err := base64.StdEncoding.DecodeString(masterKeyBase64)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidKeyFormat, "invalid master encryption key", err)
	}
	if len(key) != TransportKeyLength && len(key) != 32 {
		return nil, domain.Errf(domain.ErrInvalidKeyFormat, "master encryption key must be 16 or 32 bytes")
	}
	return &KeyEncryptor{masterKey: key, rand: cryptorand.Reader}, nil
}

// Mode reports how new values will be tagged.
func (e *KeyEncryptor) Mode() domain.EncryptionMode {
	if len(e.masterKey) == 0 {
		return domain.EncryptionNone
	}
	return domain.EncryptionAESHMAC
}

// ToDBValue wraps a secret for storage. The context string scopes the
// derived key to the exact record the value belongs to, so ciphertext cannot
// be replayed against an unrelated row.
func (e *KeyEncryptor) ToDBValue(plaintext, context []byte) (string, domain.EncryptionMode, error) {
	if len(e.masterKey) == 0 {
		return base64.StdEncoding.EncodeToString(plaintext), domain.EncryptionNone, nil
	}
	key := e.deriveContextKey(context)
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(e.rand, iv); err != nil {
		return "", "", domain.WrapErr(domain.ErrGenericCryptography, "generate iv", err)
	}
	ciphertext, err := aesCBCEncrypt(key, iv, plaintext)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...)), domain.EncryptionAESHMAC, nil
}

// FromDBValue unwraps a stored secret according to its recorded mode.
// A ciphertext shorter than its IV means data corruption: fatal, not retryable.
func (e *KeyEncryptor) FromDBValue(stored string, mode domain.EncryptionMode, context []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrGenericCryptography, "decode stored value", err)
	}
	switch mode {
	case domain.EncryptionNone:
		return raw, nil
	case domain.EncryptionAESHMAC:
		if len(e.masterKey) == 0 {
			return nil, domain.Errf(domain.ErrMissingMasterKey, "record requires master encryption key")
		}
		if len(raw) <= aes.BlockSize {
			return nil, domain.Errf(domain.ErrGenericCryptography, "stored value shorter than iv")
		}
		key := e.deriveContextKey(context)
		plaintext, err := aesCBCDecrypt(key, raw[:aes.BlockSize], raw[aes.BlockSize:])
		if err != nil {
			return nil, domain.Errf(domain.ErrGenericCryptography, "at-rest decryption failed")
		}
		return plaintext, nil
	default:
		return nil, domain.Errf(domain.ErrUnsupportedEncryption, "unsupported encryption mode %q", mode)
	}
}

// deriveContextKey derives the per-record secret key from the master key and
// the record's context identifiers: HMAC-SHA256 then truncate to AES-128.
func (e *KeyEncryptor) deriveContextKey(context []byte) []byte {
	mac := hmac.New(sha256.New, e.masterKey)
	mac.Write(context)
	return mac.Sum(nil)[:TransportKeyLength]
}

// ActivationKeyContext scopes a server private key to its activation.
func ActivationKeyContext(applicationID, userID, activationID string) []byte {
	return []byte(fmt.Sprintf("%s&%s&%s", applicationID, userID, activationID))
}

// MasterKeyContext scopes an application master private key to its key pair.
func MasterKeyContext(applicationID, keyPairID string) []byte {
	return []byte(fmt.Sprintf("%s&master-key&%s", applicationID, keyPairID))
}

// PukKeyContext scopes a PUK hash to its recovery code and index, giving
// every PUK a distinct derived key under the shared master key.
func PukKeyContext(applicationID, userID, recoveryCode string, pukIndex int64) []byte {
	return []byte(fmt.Sprintf("%s&%s&%s&%d", applicationID, userID, recoveryCode, pukIndex))
}
