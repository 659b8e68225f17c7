package cron

import (
	"context"

	"go.uber.org/zap"

	"backuphub/internal/metrics"
	"backuphub/internal/models"
)

// DrainQueued sends every queued job of computerID's active tasks, oldest
// first. A delivered job moves to running; the drain stops at the first
// command that cannot be delivered.
func (s *Scheduler) DrainQueued(ctx context.Context, computerID uint64) {
	defer s.recoverFromPanic("drainQueued")

	jobs, err := s.store.FindQueuedJobsForComputer(ctx, computerID)
	if err != nil {
		s.logger.Error("Failed to load queued jobs", zap.Uint64("computer_id", computerID), zap.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	s.logger.Info("Draining queued jobs", zap.Uint64("computer_id", computerID), zap.Int("count", len(jobs)))

	for i := range jobs {
		job := &jobs[i]
		if job.Task == nil {
			continue
		}

		if !s.sender.Send(agentID(computerID), BuildCommand(job.Task, job.ID)) {
			metrics.Dispatch.WithLabelValues("queue", "undelivered").Inc()
			s.logger.Warn("Queued job not delivered, stopping drain",
				zap.Uint64("computer_id", computerID),
				zap.Uint64("job_id", job.ID),
			)
			return
		}
		metrics.Dispatch.WithLabelValues("queue", "sent").Inc()

		ok, err := s.store.TransitionJob(ctx, job.ID, models.JobQueued, models.JobRunning)
		if err != nil {
			s.logger.Error("Failed to mark queued job running", zap.Uint64("job_id", job.ID), zap.Error(err))
			continue
		}
		if !ok {
			s.logger.Info("Queued job changed state during drain", zap.Uint64("job_id", job.ID))
		}
	}
}
