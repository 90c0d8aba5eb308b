package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type purger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionJob deletes submissions older than Days. It is scheduled by cron.
type RetentionJob struct {
	repo   purger
	days   int
	logger *zap.Logger
	now    func() time.Time
}

func NewRetentionJob(repo purger, days int, logger *zap.Logger) *RetentionJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionJob{repo: repo, days: days, logger: logger.Named("retention"), now: time.Now}
}

// Run is a no-op when retention is disabled (Days <= 0).
func (j *RetentionJob) Run(ctx context.Context) error {
	if j.days <= 0 {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -j.days)
	n, err := j.repo.PurgeBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	j.logger.Info("purged old submissions", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	return nil
}
