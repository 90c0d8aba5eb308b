package scheduler

import (
	"context"
	"fmt"
	"time"

	"PostOpTriage/pkg/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cron runs named jobs on cron expressions. Jobs receive a context that is
// cancelled by Stop.
type Cron struct {
	c       *cron.Cron
	loc     *time.Location
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewCron(loc *time.Location, logger *zap.Logger, m *metrics.Metrics) *Cron {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("cron")
	cl := cronLogger{logger.Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Cron{c: c, loc: loc, ctx: ctx, cancel: cancel, logger: logger, metrics: m}
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop cancels running jobs and waits for them to return.
func (cr *Cron) Stop() {
	cr.cancel()
	<-cr.c.Stop().Done()
}

// Add schedules job under name. Each run is logged and counted.
func (cr *Cron) Add(name, expr string, job Job) (cron.EntryID, error) {
	id, err := cr.c.AddFunc(expr, func() { cr.run(name, job) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s (%q): %w", name, expr, err)
	}
	return id, nil
}

func (cr *Cron) run(name string, job Job) {
	start := time.Now()
	if err := job.Run(cr.ctx); err != nil {
		cr.logger.Warn("job failed", zap.String("job", name), zap.Error(err))
		cr.metrics.RecordJobRun(name, "failure")
		return
	}
	cr.logger.Info("job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	cr.metrics.RecordJobRun(name, "success")
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
