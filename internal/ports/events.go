package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CallbackEvent is the status-change notification enqueued after every
// activation mutation. The core fires it and never inspects the result.
type CallbackEvent struct {
	EventID       uuid.UUID
	ApplicationID uuid.UUID
	ActivationID  string
	Status        string
	OccurredAt    time.Time
}

// CallbackRecord is the durable outbox state including retry metadata.
type CallbackRecord struct {
	OutboxID      uuid.UUID
	ApplicationID uuid.UUID
	ActivationID  string
	Status        string
	RetryCount    int
	LastError     *string
	CreatedAt     time.Time
	PublishedAt   *time.Time
	ClaimToken    *string
	ClaimUntil    *time.Time
	DeadLetteredAt *time.Time
}

// CallbackOutboxRepository controls the claim/retry workflow for callback
// delivery, decoupling transactional writes from webhook delivery.
type CallbackOutboxRepository interface {
	Enqueue(ctx context.Context, event CallbackEvent) error
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]CallbackRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}

// CallbackPublisher delivers one event to one webhook destination.
type CallbackPublisher interface {
	Publish(ctx context.Context, url string, event CallbackEvent) error
}
