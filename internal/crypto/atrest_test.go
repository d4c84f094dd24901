package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/mobilauth/activation-service/internal/domain"
)

func TestKeyEncryptorNoEncryption(t *testing.T) {
	t.Parallel()

	e, err := NewKeyEncryptor("")
	if err != nil {
		t.Fatalf("new key encryptor: %v", err)
	}
	if e.Mode() != domain.EncryptionNone {
		t.Fatalf("expected NO_ENCRYPTION mode, got %s", e.Mode())
	}

	secret := []byte("server private key bytes")
	stored, mode, err := e.ToDBValue(secret, ActivationKeyContext("app", "user", "act"))
	if err != nil {
		t.Fatalf("to db value: %v", err)
	}
	if mode != domain.EncryptionNone {
		t.Fatalf("expected NO_ENCRYPTION tag, got %s", mode)
	}
	if stored != base64.StdEncoding.EncodeToString(secret) {
		t.Fatalf("plaintext mode must store base64 of the raw value")
	}

	out, err := e.FromDBValue(stored, mode, ActivationKeyContext("app", "user", "act"))
	if err != nil {
		t.Fatalf("from db value: %v", err)
	}
	if !bytes.Equal(out, secret) {
		t.Fatalf("round trip mismatch")
	}
}

func TestKeyEncryptorAESRoundTrip(t *testing.T) {
	t.Parallel()

	masterKey := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	e, err := NewKeyEncryptor(masterKey)
	if err != nil {
		t.Fatalf("new key encryptor: %v", err)
	}
	if e.Mode() != domain.EncryptionAESHMAC {
		t.Fatalf("expected AES_HMAC mode, got %s", e.Mode())
	}

	secret := []byte("server private key bytes")
	context := ActivationKeyContext("app", "user", "act")
	stored, mode, err := e.ToDBValue(secret, context)
	if err != nil {
		t.Fatalf("to db value: %v", err)
	}
	if mode != domain.EncryptionAESHMAC {
		t.Fatalf("expected AES_HMAC tag, got %s", mode)
	}

	out, err := e.FromDBValue(stored, mode, context)
	if err != nil {
		t.Fatalf("from db value: %v", err)
	}
	if !bytes.Equal(out, secret) {
		t.Fatalf("round trip mismatch")
	}

	// The context scopes the derived key; a different record must not be able
	// to decrypt the same ciphertext into valid plaintext.
	wrong, err := e.FromDBValue(stored, mode, ActivationKeyContext("app", "user", "other"))
	if err == nil && bytes.Equal(wrong, secret) {
		t.Fatalf("ciphertext decrypted under foreign context")
	}
}

func TestKeyEncryptorMissingMasterKey(t *testing.T) {
	t.Parallel()

	masterKey := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{9}, 16))
	withKey, err := NewKeyEncryptor(masterKey)
	if err != nil {
		t.Fatalf("new key encryptor: %v", err)
	}
	stored, mode, err := withKey.ToDBValue([]byte("secret"), MasterKeyContext("app", "kid"))
	if err != nil {
		t.Fatalf("to db value: %v", err)
	}

	withoutKey, err := NewKeyEncryptor("")
	if err != nil {
		t.Fatalf("new key encryptor: %v", err)
	}
	if _, err := withoutKey.FromDBValue(stored, mode, MasterKeyContext("app", "kid")); !domain.IsKind(err, domain.ErrMissingMasterKey) {
		t.Fatalf("expected MISSING_MASTER_ENCRYPTION_KEY, got %v", err)
	}

	if _, err := withKey.FromDBValue(stored, "CUSTOM", MasterKeyContext("app", "kid")); !domain.IsKind(err, domain.ErrUnsupportedEncryption) {
		t.Fatalf("expected UNSUPPORTED_ENCRYPTION_MODE, got %v", err)
	}
}

func TestKeyEncryptorRejectsBadMasterKey(t *testing.T) {
	t.Parallel()

	if _, err := NewKeyEncryptor("not-base64!!"); err == nil {
		t.Fatalf("expected error for invalid base64 master key")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := NewKeyEncryptor(short); err == nil {
		t.Fatalf("expected error for wrong-length master key")
	}
}
