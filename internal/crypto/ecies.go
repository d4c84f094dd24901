package crypto

import (
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/sha256"

	"github.com/mobilauth/activation-service/internal/domain"
)

// Cryptogram is the common envelope shape protecting every protocol payload:
// a single-use ephemeral public key, AES ciphertext, an HMAC over
// ephemeralPublicKey ∥ ciphertext, and the KDF nonce.
type Cryptogram struct {
	EphemeralPublicKey []byte
	EncryptedData      []byte
	Mac                []byte
	Nonce              []byte
}

// EncryptEnvelope encrypts plaintext to a recipient's static public key.
// A fresh ephemeral key pair makes the scheme asymmetric per message.
func (p *Provider) EncryptEnvelope(recipientPublic, plaintext, info []byte) (Cryptogram, error) {
	ephemeral, err := p.GenerateKeyPair()
	if err != nil {
		return Cryptogram{}, err
	}
	shared, err := p.SharedSecret(ephemeral, recipientPublic)
	if err != nil {
		return Cryptogram{}, err
	}
	nonce, err := p.RandomBytes(KeyIndexLength)
	if err != nil {
		return Cryptogram{}, err
	}
	encKey, macKey, err := deriveEnvelopeKeys(shared, nonce, info)
	if err != nil {
		return Cryptogram{}, err
	}

	iv := nonce
	ciphertext, err := aesCBCEncrypt(encKey, iv, plaintext)
	if err != nil {
		return Cryptogram{}, err
	}

	ephPub := ephemeral.PublicKey().Bytes()
	return Cryptogram{
		EphemeralPublicKey: ephPub,
		EncryptedData:      ciphertext,
		Mac:                envelopeMac(macKey, ephPub, ciphertext),
		Nonce:              nonce,
	}, nil
}

// DecryptEnvelope recomputes the shared secret from the recipient's static
// private key and the sender's ephemeral public key, verifies the MAC first
// and only then decrypts. Every failure surfaces as the same error kind.
func (p *Provider) DecryptEnvelope(recipientPrivate *ecdh.PrivateKey, c Cryptogram, info []byte) ([]byte, error) {
	shared, err := p.SharedSecret(recipientPrivate, c.EphemeralPublicKey)
	if err != nil {
		return nil, domain.Errf(domain.ErrGenericCryptography, "envelope decryption failed")
	}
	encKey, macKey, err := deriveEnvelopeKeys(shared, c.Nonce, info)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(c.Mac, envelopeMac(macKey, c.EphemeralPublicKey, c.EncryptedData)) {
		return nil, domain.Errf(domain.ErrGenericCryptography, "envelope decryption failed")
	}
	plaintext, err := aesCBCDecrypt(encKey, c.Nonce, c.EncryptedData)
	if err != nil {
		return nil, domain.Errf(domain.ErrGenericCryptography, "envelope decryption failed")
	}
	return plaintext, nil
}

func envelopeMac(macKey, ephemeralPublic, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write(ephemeralPublic)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}
