package cron

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"backuphub/internal/metrics"
	"backuphub/internal/models"
)

// StartNow dispatches taskID immediately, bypassing its schedule. The job is
// created running; when delivery fails it is failed at once and
// ErrAgentOffline is returned together with the job id.
func (s *Scheduler) StartNow(ctx context.Context, taskID uint64) (uint64, error) {
	task, err := s.store.FindTaskWithComputer(ctx, taskID)
	if err != nil {
		return 0, fmt.Errorf("find task %d: %w", taskID, err)
	}
	if task == nil {
		return 0, ErrTaskNotFound
	}

	job, err := s.store.CreateJob(ctx, task.ID, models.JobRunning)
	if err != nil {
		return 0, fmt.Errorf("create job: %w", err)
	}

	if s.sender.Send(agentID(task.ComputerID), BuildCommand(task, job.ID)) {
		metrics.Dispatch.WithLabelValues("manual", "sent").Inc()
		s.logger.Info("Manual backup started", zap.Uint64("task_id", task.ID), zap.Uint64("job_id", job.ID))
		return job.ID, nil
	}

	metrics.Dispatch.WithLabelValues("manual", "undelivered").Inc()
	if _, err := s.store.UpdateJob(ctx, job.ID, map[string]interface{}{
		"status":       models.JobFailed,
		"details":      ErrAgentOffline.Error(),
		"completed_at": s.now(),
	}); err != nil {
		s.logger.Error("Failed to mark undelivered job failed", zap.Uint64("job_id", job.ID), zap.Error(err))
	}
	return job.ID, ErrAgentOffline
}
