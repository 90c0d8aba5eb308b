package notification

import (
	"context"
	"net/http"
	"time"

	"PostOpTriage/pkg/errors"
)

const DefaultWebhookTimeout = 8 * time.Second

type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// Webhook POSTs arbitrary JSON payloads to a single endpoint. It backs the
// clinician alert channel and the CRM save-response forward.
type Webhook struct {
	cfg    WebhookConfig
	client HTTPDoer
}

// NewWebhook validates cfg.URL. A nil client uses a plain *http.Client; the
// per-call timeout is applied through the request context.
func NewWebhook(cfg WebhookConfig, client HTTPDoer) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, errors.Wrap(errors.ErrChannelNotConfigured, "webhook URL is required")
	}
	if err := validateURL(cfg.URL); err != nil {
		return nil, errors.WithCode(errors.CodeNotConfigured, "webhook: "+err.Error())
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWebhookTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Webhook{cfg: cfg, client: client}, nil
}

// Notify delivers payload; nil means the endpoint answered 2xx.
func (w *Webhook) Notify(ctx context.Context, payload any) error {
	return postJSON(ctx, w.client, w.cfg.URL, w.cfg.Timeout, payload)
}

func (w *Webhook) Endpoint() string { return RedactURL(w.cfg.URL) }
