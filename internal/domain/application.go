package domain

import (
	"time"

	"github.com/google/uuid"
)

// Application is a backend integrator tenant. Each application owns versions
// with their own key/secret pairs and at least one master key pair.
type Application struct {
	ApplicationID uuid.UUID
	Name          string
	Roles         []string
	CreatedAt     time.Time
}

// ApplicationVersion carries the key/secret pair that authenticates which
// client software is calling. Unsupported versions keep working for already
// established activations but are barred from new cryptographic exchanges.
type ApplicationVersion struct {
	VersionID         uuid.UUID
	ApplicationID     uuid.UUID
	Name              string
	ApplicationKey    string
	ApplicationSecret string
	Supported         bool
	CreatedAt         time.Time
}

// MasterKeyPair is the server's long-term identity for one application.
// The private part signs activation handshake payloads and anchors
// non-personalized envelope encryption. Latest-wins on lookup.
type MasterKeyPair struct {
	KeyPairID            uuid.UUID
	ApplicationID        uuid.UUID
	PublicKey            []byte
	PrivateKey           string
	PrivateKeyEncryption EncryptionMode
	CreatedAt            time.Time
}
