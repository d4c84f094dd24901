package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/mobilauth/activation-service/internal/domain"
)

const (
	// TransportKeyLength is the AES-128 key size used for derived session keys.
	TransportKeyLength = 16
	// KeyIndexLength is the random index mixed into transport key derivation.
	KeyIndexLength = 16

	macKeyLength = 32
)

// deriveEnvelopeKeys splits a shared secret into AES encryption and HMAC
// authentication sub-keys via HKDF-SHA256 salted with the envelope nonce.
func deriveEnvelopeKeys(sharedSecret, nonce, info []byte) (encKey, macKey []byte, err error) {
	r := hkdf.New(sha256.New, sharedSecret, nonce, info)
	material := make([]byte, TransportKeyLength+macKeyLength)
	if _, err := io.ReadFull(r, material); err != nil {
		return nil, nil, domain.WrapErr(domain.ErrGenericCryptography, "derive envelope keys", err)
	}
	return material[:TransportKeyLength], material[TransportKeyLength:], nil
}

// DeriveTransportKey derives a short-lived symmetric key from a longer-lived
// shared master secret and a 16-byte index: HMAC-SHA256 then truncate 32→16.
// The index must be exactly 16 bytes; callers pass a random one per session.
func DeriveTransportKey(masterSecret, index []byte) ([]byte, error) {
	if len(index) != KeyIndexLength {
		return nil, domain.Errf(domain.ErrGenericCryptography, "transport key index must be %d bytes", KeyIndexLength)
	}
	mac := hmac.New(sha256.New, masterSecret)
	mac.Write(index)
	return mac.Sum(nil)[:TransportKeyLength], nil
}

// DeriveFactorKey derives the per-factor signature key from the activation's
// base signature key by HMAC index derivation.
func DeriveFactorKey(baseKey []byte, factor domain.SignatureFactor) []byte {
	index := make([]byte, KeyIndexLength)
	index[KeyIndexLength-1] = byte(factor)
	mac := hmac.New(sha256.New, baseKey)
	mac.Write(index)
	return mac.Sum(nil)[:TransportKeyLength]
}

// aesCBCEncrypt encrypts with AES-CBC and PKCS#7 padding under the given IV.
func aesCBCEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrGenericCryptography, "init cipher", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

// aesCBCDecrypt reverses aesCBCEncrypt. All failure modes collapse into one
// error kind so ciphertext tampering is indistinguishable from a wrong key.
func aesCBCDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrGenericCryptography, "init cipher", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, domain.Errf(domain.ErrGenericCryptography, "invalid ciphertext")
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+pad)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(pad)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, domain.Errf(domain.ErrGenericCryptography, "invalid ciphertext")
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize {
		return nil, domain.Errf(domain.ErrGenericCryptography, "invalid ciphertext")
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, domain.Errf(domain.ErrGenericCryptography, "invalid ciphertext")
		}
	}
	return data[:len(data)-pad], nil
}
