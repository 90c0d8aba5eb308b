package notification

import (
	"context"
	"net/http"
	"time"

	"PostOpTriage/pkg/errors"
)

const DefaultSMSTimeout = 10 * time.Second

type SMSGatewayConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Configured reports whether both the gateway URL and the API key are set.
func (c SMSGatewayConfig) Configured() bool {
	return c.URL != "" && c.APIKey != ""
}

type smsRequest struct {
	APIKey  string `json:"api_key"`
	To      string `json:"to"`
	Message string `json:"message"`
}

// SMSGateway sends short texts through an HTTP SMS gateway.
type SMSGateway struct {
	cfg    SMSGatewayConfig
	client HTTPDoer
}

func NewSMSGateway(cfg SMSGatewayConfig, client HTTPDoer) *SMSGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMSTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &SMSGateway{cfg: cfg, client: client}
}

func (s *SMSGateway) Configured() bool { return s.cfg.Configured() }

// Send delivers text to phone. An unconfigured gateway fails with
// errors.ErrChannelNotConfigured without touching the network.
func (s *SMSGateway) Send(ctx context.Context, phone, text string) error {
	if !s.cfg.Configured() {
		return errors.ErrChannelNotConfigured
	}
	if phone == "" {
		return errors.WithCode(errors.CodeInvalidInput, "sms: destination phone is empty")
	}
	return postJSON(ctx, s.client, s.cfg.URL, s.cfg.Timeout, smsRequest{
		APIKey:  s.cfg.APIKey,
		To:      phone,
		Message: text,
	})
}
