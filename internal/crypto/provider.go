// Package crypto implements the key derivation and envelope encryption layer
// of the activation protocol: elliptic-curve key agreement, KDF chains, the
// ECIES-style request/response envelope, the HMAC-chain online signature and
// the at-rest protection of server-held key material. Everything here is a
// pure function of its inputs; no storage side effects.
package crypto

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	cryptorand "crypto/rand"
	"crypto/x509"
	"io"

	"github.com/mobilauth/activation-service/internal/domain"
)

// Provider is the explicit crypto context shared by all primitives: curve
// parameters and the RNG handle. Constructed once at startup and passed by
// reference; there is no ambient global state.
type Provider struct {
	rand  io.Reader
	curve ecdh.Curve
}

// NewProvider builds the production P-256 provider.
func NewProvider() *Provider {
	return &Provider{rand: cryptorand.Reader, curve: ecdh.P256()}
}

// NewProviderWithRand injects a deterministic RNG for tests.
func NewProviderWithRand(r io.Reader) *Provider {
	return &Provider{rand: r, curve: ecdh.P256()}
}

// GenerateKeyPair mints a fresh ECDH key pair on the provider curve.
func (p *Provider) GenerateKeyPair() (*ecdh.PrivateKey, error) {
	key, err := p.curve.GenerateKey(p.rand)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidCryptoProvider, "generate key pair", err)
	}
	return key, nil
}

// ParsePublicKey decodes an uncompressed-point public key.
// The error kind never distinguishes malformed from wrong key material.
func (p *Provider) ParsePublicKey(raw []byte) (*ecdh.PublicKey, error) {
	pub, err := p.curve.NewPublicKey(raw)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidKeyFormat, "invalid public key", err)
	}
	return pub, nil
}

// ParsePrivateKey decodes a raw scalar private key.
func (p *Provider) ParsePrivateKey(raw []byte) (*ecdh.PrivateKey, error) {
	priv, err := p.curve.NewPrivateKey(raw)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidKeyFormat, "invalid private key", err)
	}
	return priv, nil
}

// SharedSecret runs ECDH between a private key and an encoded public key.
func (p *Provider) SharedSecret(priv *ecdh.PrivateKey, peerPublic []byte) ([]byte, error) {
	pub, err := p.ParsePublicKey(peerPublic)
	if err != nil {
		return nil, err
	}
	secret, err := priv.ECDH(pub)
	if err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidKeyFormat, "invalid public key", err)
	}
	return secret, nil
}

// RandomBytes fills a new slice from the provider RNG.
func (p *Provider) RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.rand, buf); err != nil {
		return nil, domain.WrapErr(domain.ErrInvalidCryptoProvider, "read random bytes", err)
	}
	return buf, nil
}

// GenerateSigningKeyPair mints an ECDSA P-256 master key pair, returned as
// PKCS#8 private and PKIX public encodings ready for at-rest wrapping.
func (p *Provider) GenerateSigningKeyPair() (privateDER, publicDER []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), p.rand)
	if err != nil {
		return nil, nil, domain.WrapErr(domain.ErrInvalidCryptoProvider, "generate signing key pair", err)
	}
	privateDER, err = x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, domain.WrapErr(domain.ErrInvalidCryptoProvider, "encode signing key", err)
	}
	publicDER, err = x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, domain.WrapErr(domain.ErrInvalidCryptoProvider, "encode signing key", err)
	}
	return privateDER, publicDER, nil
}
