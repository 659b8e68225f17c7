package cron

import (
	"context"
	"time"

	"go.uber.org/zap"

	"backuphub/internal/metrics"
)

func (s *Scheduler) runRetention() {
	defer s.recoverFromPanic("retentionSweep")
	s.SweepRetention(context.Background(), s.now())
}

// SweepRetention deletes job records started more than RetentionDays before now.
func (s *Scheduler) SweepRetention(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.AddDate(0, 0, -s.cfg.RetentionDays)

	n, err := s.store.DeleteJobsOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("Retention sweep failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}

	metrics.RetentionDeleted.Add(float64(n))
	s.logger.Info("Retention sweep finished", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}
