package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mobilauth/activation-service/internal/ports"
)

// WebhookPublisher delivers callback events as JSON POSTs to integrator
// endpoints.
type WebhookPublisher struct {
	client *http.Client
	logger *slog.Logger
}

// NewWebhookPublisher builds the HTTP publisher with a bounded per-request
// timeout; a stuck integrator endpoint must not stall the worker loop.
func NewWebhookPublisher(logger *slog.Logger, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookPublisher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type callbackBody struct {
	EventID      string `json:"eventId"`
	ActivationID string `json:"activationId"`
	Status       string `json:"status"`
	OccurredAt   string `json:"occurredAt"`
}

func (p *WebhookPublisher) Publish(ctx context.Context, url string, event ports.CallbackEvent) error {
	payload, err := json.Marshal(callbackBody{
		EventID:      event.EventID.String(),
		ActivationID: event.ActivationID,
		Status:       event.Status,
		OccurredAt:   event.OccurredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode callback: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver callback: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("callback endpoint returned %d", res.StatusCode)
	}
	p.logger.DebugContext(ctx, "callback delivered",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish_callback",
		"outcome", "success",
		"event_id", event.EventID,
		"status_code", res.StatusCode,
	)
	return nil
}
