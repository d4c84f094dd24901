package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mobilauth/activation-service/internal/ports"
)

// CallbackWorker pulls unpublished status-change events from the outbox and
// delivers them to every webhook registered for the owning application.
// This separates transactional activation writes from webhook delivery.
type CallbackWorker struct {
	logger     *slog.Logger
	outbox     ports.CallbackOutboxRepository
	callbacks  ports.CallbackRepository
	publisher  ports.CallbackPublisher
	interval   time.Duration
	batchSize  int
	claimTTL   time.Duration
	maxRetries int
}

// NewCallbackWorker constructs the delivery loop with sane defaults.
func NewCallbackWorker(
	logger *slog.Logger,
	outbox ports.CallbackOutboxRepository,
	callbacks ports.CallbackRepository,
	publisher ports.CallbackPublisher,
	interval time.Duration,
	batchSize int,
	claimTTL time.Duration,
	maxRetries int,
) *CallbackWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if claimTTL <= 0 {
		claimTTL = 30 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &CallbackWorker{
		logger:     logger,
		outbox:     outbox,
		callbacks:  callbacks,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		claimTTL:   claimTTL,
		maxRetries: maxRetries,
	}
}

// Run executes the periodic delivery loop until context cancellation.
func (w *CallbackWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "callback iteration failed",
				"module", "events.callback_worker",
				"layer", "adapter",
				"operation", "callback_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *CallbackWorker) processOnce(ctx context.Context) error {
	claimToken := uuid.NewString()
	records, err := w.outbox.ClaimUnpublished(ctx, w.batchSize, claimToken, time.Now().UTC().Add(w.claimTTL))
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	published := 0
	failed := 0
	deadLettered := 0
	for _, rec := range records {
		if rec.RetryCount >= w.maxRetries {
			deadLettered++
			_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, "retry threshold reached before publish", now)
			continue
		}

		if err := w.deliver(ctx, rec); err != nil {
			failed++
			retriesAfterFailure := rec.RetryCount + 1
			if retriesAfterFailure >= w.maxRetries {
				deadLettered++
				w.logger.ErrorContext(ctx, "callback moved to dlq",
					"module", "events.callback_worker",
					"layer", "adapter",
					"operation", "deliver_callback",
					"outcome", "failure",
					"outbox_id", rec.OutboxID,
					"activation_id", rec.ActivationID,
					"retry_count", retriesAfterFailure,
					"error", err,
				)
				_ = w.outbox.MarkDeadLettered(ctx, rec.OutboxID, claimToken, err.Error(), now)
				continue
			}

			w.logger.WarnContext(ctx, "callback delivery failed; retry scheduled",
				"module", "events.callback_worker",
				"layer", "adapter",
				"operation", "deliver_callback",
				"outcome", "failure",
				"outbox_id", rec.OutboxID,
				"activation_id", rec.ActivationID,
				"retry_count", retriesAfterFailure,
				"error", err,
			)
			_ = w.outbox.MarkFailed(ctx, rec.OutboxID, claimToken, err.Error(), now)
			continue
		}
		published++
		_ = w.outbox.MarkPublished(ctx, rec.OutboxID, claimToken, now)
	}
	if len(records) > 0 {
		w.logger.InfoContext(ctx, "callback batch processed",
			"module", "events.callback_worker",
			"layer", "adapter",
			"operation", "callback_process_once",
			"outcome", "success",
			"batch_size", len(records),
			"published_count", published,
			"failed_count", failed,
			"dead_lettered_count", deadLettered,
		)
	}
	return nil
}

// deliver fans one event out to every webhook of the owning application.
// An application with no webhooks counts as delivered; a single failing
// destination fails the whole record so it is retried as a unit.
func (w *CallbackWorker) deliver(ctx context.Context, rec ports.CallbackRecord) error {
	destinations, err := w.callbacks.ListByApplication(ctx, rec.ApplicationID)
	if err != nil {
		return fmt.Errorf("resolve callbacks: %w", err)
	}
	if len(destinations) == 0 {
		return nil
	}
	event := ports.CallbackEvent{
		EventID:       rec.OutboxID,
		ApplicationID: rec.ApplicationID,
		ActivationID:  rec.ActivationID,
		Status:        rec.Status,
		OccurredAt:    rec.CreatedAt,
	}
	for _, dest := range destinations {
		if err := w.publisher.Publish(ctx, dest.URL, event); err != nil {
			return fmt.Errorf("deliver to %s: %w", dest.Name, err)
		}
	}
	return nil
}
