package domain

import "time"

// Token is an opaque bearer credential bound to exactly one activation,
// created with a record of which signature type authorized it.
type Token struct {
	TokenID       string
	ActivationID  string
	Secret        []byte
	SignatureType SignatureType
	CreatedAt     time.Time
}
