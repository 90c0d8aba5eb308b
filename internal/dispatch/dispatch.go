// Package dispatch routes a classified check-in to the clinician and patient
// notification channels.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"PostOpTriage/internal/models"
	"PostOpTriage/internal/triage"
	"PostOpTriage/pkg/i18n"
	"PostOpTriage/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ClinicianChannel delivers the alert payload to the on-call clinician endpoint.
type ClinicianChannel interface {
	Notify(ctx context.Context, payload any) error
}

type SMSChannel interface {
	Send(ctx context.Context, phone, text string) error
}

type EmailChannel interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Translator renders localized message texts.
type Translator interface {
	T(lang, key string, data map[string]interface{}) string
}

// Channels bundles the transports. A nil channel is never attempted.
type Channels struct {
	Clinician ClinicianChannel
	SMS       SMSChannel
	Email     EmailChannel
}

// Per-call defaults, applied when Config leaves a timeout at zero.
const (
	DefaultClinicianTimeout = 8 * time.Second
	DefaultSMSTimeout       = 10 * time.Second
	DefaultEmailTimeout     = 10 * time.Second
)

// Config is the static configuration the dispatcher needs. An empty option
// disables the channel it gates.
type Config struct {
	ClinicianEndpoint string
	SMSGatewayURL     string
	SMSAPIKey         string
	ClinicianPhone    string
	ClinicianEmail    string

	ClinicianTimeout time.Duration
	SMSTimeout       time.Duration
	EmailTimeout     time.Duration
}

func (c Config) smsConfigured() bool {
	return c.SMSGatewayURL != "" && c.SMSAPIKey != ""
}

type Options struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Messages Translator
}

// Dispatcher applies the per-tier channel policy. It holds no per-request
// state and is safe for concurrent use.
type Dispatcher struct {
	cfg      Config
	ch       Channels
	logger   *zap.Logger
	metrics  *metrics.Metrics
	messages Translator
}

// NewDispatcher fills in default timeouts. Without opts.Messages the embedded
// Vietnamese texts are used.
func NewDispatcher(cfg Config, ch Channels, opts Options) (*Dispatcher, error) {
	if cfg.ClinicianTimeout <= 0 {
		cfg.ClinicianTimeout = DefaultClinicianTimeout
	}
	if cfg.SMSTimeout <= 0 {
		cfg.SMSTimeout = DefaultSMSTimeout
	}
	if cfg.EmailTimeout <= 0 {
		cfg.EmailTimeout = DefaultEmailTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	messages := opts.Messages
	if messages == nil {
		support, err := i18n.NewI18nSupport("vi", logger)
		if err != nil {
			return nil, fmt.Errorf("loading message texts: %w", err)
		}
		messages = support
	}
	return &Dispatcher{
		cfg:      cfg,
		ch:       ch,
		logger:   logger.Named("dispatcher"),
		metrics:  opts.Metrics,
		messages: messages,
	}, nil
}

// Dispatch runs every action the tier calls for and waits for all of them.
// Channel failures are recorded in the outcome and never returned. The
// request's cancellation does not reach the channels; its values do.
func (d *Dispatcher) Dispatch(ctx context.Context, record models.IntakeRecord, tier triage.Tier) Outcome {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	lang := i18n.LanguageFromContext(ctx)

	out := newOutcome(tier)
	var g errgroup.Group

	switch tier {
	case triage.Red:
		if d.ch.Clinician != nil && d.cfg.ClinicianEndpoint != "" {
			payload := ClinicianPayload(record, tier)
			g.Go(func() error {
				out.Clinician = d.attempt(ctx, ChannelClinician, d.cfg.ClinicianTimeout, func(ctx context.Context) error {
					return d.ch.Clinician.Notify(ctx, payload)
				})
				return nil
			})
		}
		if phone := record.Phone(); d.ch.SMS != nil && d.cfg.smsConfigured() && phone != "" {
			text := d.messages.T(lang, "sms.red.patient", nil)
			g.Go(func() error {
				out.SMS = d.attempt(ctx, ChannelSMS, d.cfg.SMSTimeout, func(ctx context.Context) error {
					return d.ch.SMS.Send(ctx, phone, text)
				})
				return nil
			})
		}
		d.goEmail(ctx, &g, &out, record.Email(),
			d.messages.T(lang, "email.red.subject", nil),
			d.messages.T(lang, "email.red.body", map[string]interface{}{
				"Summary": html.EscapeString(triage.Summarize(record)),
			}))

	case triage.Yellow:
		d.goEmail(ctx, &g, &out, record.Email(),
			d.messages.T(lang, "email.yellow.subject", nil),
			d.messages.T(lang, "email.yellow.body", nil))

	case triage.Green:
		d.goEmail(ctx, &g, &out, record.Email(),
			d.messages.T(lang, "email.green.subject", nil),
			d.messages.T(lang, "email.green.body", nil))

	default:
		d.logger.Warn("unknown tier, nothing dispatched", zap.String("tier", string(tier)))
	}

	_ = g.Wait()

	out.finish(time.Since(start))
	d.record(out)
	return out
}

// NotifyClinician emails the payload to the on-call clinician and texts the
// clinician phone. Either leg is skipped when its configuration is missing.
func (d *Dispatcher) NotifyClinician(ctx context.Context, payload models.IntakeRecord) Outcome {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	lang := i18n.LanguageFromContext(ctx)

	out := newOutcome(triage.Red)
	var g errgroup.Group

	if d.cfg.ClinicianEmail != "" {
		pretty := prettyJSON(payload)
		d.goEmail(ctx, &g, &out, d.cfg.ClinicianEmail,
			d.messages.T(lang, "clinician.email.subject", nil),
			d.messages.T(lang, "clinician.email.body", map[string]interface{}{
				"Payload": html.EscapeString(pretty),
			}))
	}
	if d.ch.SMS != nil && d.cfg.ClinicianPhone != "" && d.cfg.smsConfigured() {
		text := d.messages.T(lang, "clinician.sms", map[string]interface{}{
			"Name":  payload.Name(),
			"Phone": payload.Phone(),
		})
		g.Go(func() error {
			out.SMS = d.attempt(ctx, ChannelSMS, d.cfg.SMSTimeout, func(ctx context.Context) error {
				return d.ch.SMS.Send(ctx, d.cfg.ClinicianPhone, text)
			})
			return nil
		})
	}

	_ = g.Wait()

	out.finish(time.Since(start))
	d.record(out)
	return out
}

// SendEmail is a single email attempt outside of any tier policy.
func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, htmlBody string) ChannelResult {
	if d.ch.Email == nil || to == "" {
		d.metrics.RecordChannel(string(ChannelEmail), metrics.ResultSkipped, 0)
		return ChannelResult{Channel: ChannelEmail}
	}
	return d.attempt(context.WithoutCancel(ctx), ChannelEmail, d.cfg.EmailTimeout, func(ctx context.Context) error {
		return d.ch.Email.Send(ctx, to, subject, htmlBody)
	})
}

// SendSMS is a single SMS attempt outside of any tier policy.
func (d *Dispatcher) SendSMS(ctx context.Context, phone, text string) ChannelResult {
	if d.ch.SMS == nil || !d.cfg.smsConfigured() || phone == "" {
		d.metrics.RecordChannel(string(ChannelSMS), metrics.ResultSkipped, 0)
		return ChannelResult{Channel: ChannelSMS}
	}
	return d.attempt(context.WithoutCancel(ctx), ChannelSMS, d.cfg.SMSTimeout, func(ctx context.Context) error {
		return d.ch.SMS.Send(ctx, phone, text)
	})
}

// Translate exposes the dispatcher's message texts to other senders.
func (d *Dispatcher) Translate(ctx context.Context, key string, data map[string]interface{}) string {
	return d.messages.T(i18n.LanguageFromContext(ctx), key, data)
}

func (d *Dispatcher) goEmail(ctx context.Context, g *errgroup.Group, out *Outcome, to, subject, body string) {
	if d.ch.Email == nil || to == "" {
		return
	}
	g.Go(func() error {
		out.Email = d.attempt(ctx, ChannelEmail, d.cfg.EmailTimeout, func(ctx context.Context) error {
			return d.ch.Email.Send(ctx, to, subject, body)
		})
		return nil
	})
}

// attempt makes one call bounded by timeout. Errors, timeouts and panics all
// end up as a failed result.
func (d *Dispatcher) attempt(ctx context.Context, ch Channel, timeout time.Duration, fn func(context.Context) error) ChannelResult {
	res := ChannelResult{Channel: ch, Attempted: true}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	begin := time.Now()
	done := make(chan error, 1)
	go func() { done <- safeCall(callCtx, fn) }()

	var err error
	select {
	case err = <-done:
	case <-callCtx.Done():
		err = fmt.Errorf("%s: no response within %s: %w", ch, timeout, callCtx.Err())
	}
	elapsed := time.Since(begin)

	if err != nil {
		res.Error = err.Error()
		d.logger.Warn("channel delivery failed",
			zap.String("channel", string(ch)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		d.metrics.RecordChannel(string(ch), metrics.ResultFailure, elapsed)
		return res
	}

	res.Succeeded = true
	d.logger.Debug("channel delivered", zap.String("channel", string(ch)), zap.Duration("elapsed", elapsed))
	d.metrics.RecordChannel(string(ch), metrics.ResultSuccess, elapsed)
	return res
}

func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (d *Dispatcher) record(out Outcome) {
	for _, r := range out.Results() {
		if !r.Attempted {
			d.metrics.RecordChannel(string(r.Channel), metrics.ResultSkipped, 0)
		}
	}
	d.metrics.RecordDispatch(string(out.Tier), out.Duration)
	d.logger.Info("dispatch finished",
		zap.String("tier", string(out.Tier)),
		zap.Int("attempted", out.Attempts()),
		zap.Int("succeeded", out.Successes()),
		zap.Duration("duration", out.Duration))
}

// prettyJSON indents v with two spaces and leaves HTML characters unescaped;
// the caller escapes the result for the mail body.
func prettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// ClinicianPayload is the record plus its lower-case classification and the
// one-line summary, as posted to the clinician endpoint.
func ClinicianPayload(record models.IntakeRecord, tier triage.Tier) map[string]any {
	payload := record.Clone()
	payload["classification"] = tier.Lower()
	payload["summary"] = triage.Summarize(record)
	return payload
}
