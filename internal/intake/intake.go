// Package intake handles a patient check-in from capture to notification.
package intake

import (
	"context"
	"sync"
	"time"

	"PostOpTriage/internal/dispatch"
	"PostOpTriage/internal/models"
	"PostOpTriage/internal/triage"
	"PostOpTriage/pkg/metrics"

	"go.uber.org/zap"
)

// TimestampLayout matches the millisecond ISO-8601 form form tooling emits.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// EventRedAlert is the live feed event name for RED check-ins.
const EventRedAlert = "red_alert"

type Store interface {
	Append(ctx context.Context, record models.IntakeRecord, source string) (models.Submission, error)
	RecordTriage(ctx context.Context, log *models.TriageLog) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, record models.IntakeRecord, tier triage.Tier) dispatch.Outcome
	NotifyClinician(ctx context.Context, payload models.IntakeRecord) dispatch.Outcome
}

// Forwarder receives a copy of every captured record (the CRM save hook).
type Forwarder interface {
	Notify(ctx context.Context, payload any) error
}

type Publisher interface {
	Publish(event string, v interface{}) (uint64, error)
}

type Options struct {
	Store      Store
	Dispatcher Dispatcher
	// optional
	CRM     Forwarder
	Feed    Publisher
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Service is safe for concurrent use. Background forwards are tracked and
// drained by Shutdown.
type Service struct {
	store      Store
	dispatcher Dispatcher
	crm        Forwarder
	feed       Publisher
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time

	wg sync.WaitGroup
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		crm:        opts.CRM,
		feed:       opts.Feed,
		logger:     logger.Named("intake"),
		metrics:    opts.Metrics,
		now:        now,
	}
}

// Result is returned to the submitting form.
type Result struct {
	OK             bool             `json:"ok"`
	Classification string           `json:"classification"`
	SubmissionID   string           `json:"submission_id,omitempty"`
	Outcome        dispatch.Outcome `json:"outcome"`
	Tier           triage.Tier      `json:"-"`
}

// AlertEvent is published on the live feed for RED check-ins.
type AlertEvent struct {
	SubmissionID string           `json:"submission_id,omitempty"`
	Name         string           `json:"name"`
	Phone        string           `json:"phone"`
	Summary      string           `json:"summary"`
	Timestamp    string           `json:"timestamp"`
	Outcome      dispatch.Outcome `json:"outcome"`
}

// OnSubmission timestamps, captures, classifies and dispatches one check-in.
// Capture and channel failures are logged; the result is always OK. Once
// started it runs to completion even if the caller goes away.
func (s *Service) OnSubmission(ctx context.Context, record models.IntakeRecord) Result {
	ctx = context.WithoutCancel(ctx)
	rec := s.stamp(record)

	sub, err := s.store.Append(ctx, rec, models.SourceForm)
	if err != nil {
		s.logger.Error("capturing submission failed", zap.Error(err))
	}

	s.forward(ctx, rec)

	tier := triage.Classify(rec)
	s.metrics.RecordSubmission(string(tier))

	outcome := s.dispatcher.Dispatch(ctx, rec, tier)

	if sub.ID != "" {
		s.audit(ctx, sub.ID, outcome)
	}

	if tier == triage.Red && s.feed != nil {
		ev := AlertEvent{
			SubmissionID: sub.ID,
			Name:         rec.Name(),
			Phone:        rec.Phone(),
			Summary:      triage.Summarize(rec),
			Timestamp:    rec.Str(models.FieldTimestamp),
			Outcome:      outcome,
		}
		if _, err := s.feed.Publish(EventRedAlert, ev); err != nil {
			s.logger.Warn("publishing alert failed", zap.Error(err))
		}
	}

	s.logger.Info("submission triaged",
		zap.String("submission_id", sub.ID),
		zap.String("tier", string(tier)),
		zap.Int("attempted", outcome.Attempts()),
		zap.Int("succeeded", outcome.Successes()))

	return Result{
		OK:             true,
		Classification: tier.Lower(),
		SubmissionID:   sub.ID,
		Outcome:        outcome,
		Tier:           tier,
	}
}

// SaveResponse only timestamps and captures the record.
func (s *Service) SaveResponse(ctx context.Context, record models.IntakeRecord) (models.Submission, error) {
	return s.store.Append(ctx, s.stamp(record), models.SourceAPI)
}

func (s *Service) NotifyClinician(ctx context.Context, payload models.IntakeRecord) dispatch.Outcome {
	return s.dispatcher.NotifyClinician(ctx, payload)
}

// Go runs fn in the background under the service's shutdown tracking. fn
// gets ctx without its cancellation.
func (s *Service) Go(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx)
	}()
}

// Shutdown waits for background work until ctx expires.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) stamp(record models.IntakeRecord) models.IntakeRecord {
	rec := record.Clone()
	rec[models.FieldTimestamp] = s.now().UTC().Format(TimestampLayout)
	return rec
}

func (s *Service) forward(ctx context.Context, rec models.IntakeRecord) {
	if s.crm == nil {
		return
	}
	s.Go(ctx, func(ctx context.Context) {
		if err := s.crm.Notify(ctx, rec); err != nil {
			s.logger.Warn("forwarding to CRM failed", zap.Error(err))
		}
	})
}

func (s *Service) audit(ctx context.Context, submissionID string, out dispatch.Outcome) {
	log := &models.TriageLog{
		SubmissionID:       submissionID,
		Tier:               string(out.Tier),
		ClinicianAttempted: out.Clinician.Attempted,
		ClinicianSucceeded: out.Clinician.Succeeded,
		SMSAttempted:       out.SMS.Attempted,
		SMSSucceeded:       out.SMS.Succeeded,
		EmailAttempted:     out.Email.Attempted,
		EmailSucceeded:     out.Email.Succeeded,
		DurationMs:         out.DurationMs,
	}
	if err := s.store.RecordTriage(ctx, log); err != nil {
		s.logger.Warn("recording triage log failed", zap.String("submission_id", submissionID), zap.Error(err))
	}
}
