package ports

import (
	"context"
	"time"
)

// OTPHasher hides the hashing scheme for activation OTPs from the core.
type OTPHasher interface {
	Hash(otp string) (string, error)
	Compare(hash, otp string) error
}

// AdminClaims identify an authenticated backend integrator on the admin API.
type AdminClaims struct {
	Subject   string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	KeyID     string
}

// AdminTokenSigner signs and validates admin API bearer tokens.
type AdminTokenSigner interface {
	Sign(claims AdminClaims) (string, error)
	ParseAndValidate(raw string) (AdminClaims, error)
}

// NonceStore remembers token-validation nonces for replay rejection.
// Remember returns true only the first time a (tokenID, nonce) pair is seen
// within the freshness window.
type NonceStore interface {
	Remember(ctx context.Context, tokenID, nonce string, ttl time.Duration) (bool, error)
}
