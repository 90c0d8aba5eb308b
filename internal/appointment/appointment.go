// Package appointment books follow-up visits and confirms them by email.
package appointment

import (
	"context"
	"fmt"
	"html"
	"time"

	"PostOpTriage/internal/dispatch"
	"PostOpTriage/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request is the booking form. Field names follow the original form.
type Request struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	PreferredDate string `json:"preferred_date"`
	Procedure     string `json:"procedure"`
}

type Store interface {
	CreateAppointment(ctx context.Context, appt *models.Appointment) error
}

// Mailer sends the confirmation. *dispatch.Dispatcher satisfies it.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) dispatch.ChannelResult
	Translate(ctx context.Context, key string, data map[string]interface{}) string
}

// Runner runs background work that must finish before shutdown.
type Runner interface {
	Go(ctx context.Context, fn func(ctx context.Context))
}

type Service struct {
	store  Store
	mailer Mailer
	runner Runner
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, mailer Mailer, runner Runner, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, mailer: mailer, runner: runner, logger: logger.Named("appointment"), now: time.Now}
}

// Create stores the appointment and, when an email is given, sends the
// confirmation in the background. The caller does not wait for the mail.
func (s *Service) Create(ctx context.Context, req Request) (models.Appointment, error) {
	now := s.now()
	appt := models.Appointment{
		Key:       uuid.NewString(),
		ID:        fmt.Sprintf("APPT-%d", now.UnixMilli()),
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		Date:      req.PreferredDate,
		Procedure: req.Procedure,
		CreatedAt: now.UTC(),
	}
	if err := s.store.CreateAppointment(ctx, &appt); err != nil {
		return models.Appointment{}, err
	}

	if req.Email != "" && s.mailer != nil {
		s.confirm(ctx, appt)
	}
	return appt, nil
}

func (s *Service) confirm(ctx context.Context, appt models.Appointment) {
	send := func(ctx context.Context) {
		subject := s.mailer.Translate(ctx, "appointment.email.subject", nil)
		body := s.mailer.Translate(ctx, "appointment.email.body", map[string]interface{}{
			"Date":      html.EscapeString(appt.Date),
			"Procedure": html.EscapeString(appt.Procedure),
		})
		res := s.mailer.SendEmail(ctx, appt.Email, subject, body)
		if !res.Succeeded {
			s.logger.Warn("appointment confirmation not delivered",
				zap.String("appointment_id", appt.ID),
				zap.String("appointment_key", appt.Key),
				zap.String("error", res.Error))
		}
	}
	if s.runner == nil {
		go send(context.WithoutCancel(ctx))
		return
	}
	s.runner.Go(ctx, send)
}
