package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallbackConfig is a webhook destination notified after every
// status-changing activation mutation for its application.
type CallbackConfig struct {
	CallbackID    uuid.UUID
	ApplicationID uuid.UUID
	Name          string
	URL           string
	CreatedAt     time.Time
}
