package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"backuphub/internal/config"
	"backuphub/internal/dedupe"
	"backuphub/internal/metrics"
	"backuphub/internal/models"
)

const supersededDetails = "agent remained offline, superseded"

// Store is the persistence surface used by the scheduler and dispatch paths.
type Store interface {
	FindActiveTasksWithComputer(ctx context.Context) ([]models.Task, error)
	FindTaskWithComputer(ctx context.Context, taskID uint64) (*models.Task, error)
	CreateJob(ctx context.Context, taskID uint64, status string) (*models.BackupJob, error)
	UpdateJob(ctx context.Context, jobID uint64, fields map[string]interface{}) (bool, error)
	TransitionJob(ctx context.Context, jobID uint64, from, to string) (bool, error)
	FindQueuedJob(ctx context.Context, taskID uint64) (*models.BackupJob, error)
	FindQueuedJobsForComputer(ctx context.Context, computerID uint64) ([]models.BackupJob, error)
	DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	FailStaleRunningJobs(ctx context.Context, cutoff time.Time, details string, at time.Time) (int64, error)
}

// Sender delivers a command to a connected agent.
type Sender interface {
	Send(agentID string, message interface{}) bool
}

// Scheduler manages the periodic jobs: the per-minute dispatch tick and the
// daily retention sweep.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.SchedulerConfig
	logger   *zap.Logger
	store    Store
	sender   Sender
	deduper  dedupe.Deduper
	location *time.Location
	now      func() time.Time
}

// New creates a new cron scheduler. deduper may be nil.
func New(cfg config.SchedulerConfig, store Store, sender Sender, deduper dedupe.Deduper, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}

	return &Scheduler{
		cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		cfg:      cfg,
		logger:   logger,
		store:    store,
		sender:   sender,
		deduper:  deduper,
		location: loc,
		now:      time.Now,
	}, nil
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting cron scheduler...",
		zap.String("tick", s.cfg.TickSpec),
		zap.String("retention", s.cfg.RetentionSpec),
		zap.String("timezone", s.location.String()),
	)

	if _, err := s.cron.AddFunc(s.cfg.TickSpec, func() {
		s.logger.Debug("Running: dispatch tick")
		s.runTick()
	}); err != nil {
		return fmt.Errorf("register dispatch tick: %w", err)
	}

	if _, err := s.cron.AddFunc(s.cfg.RetentionSpec, func() {
		s.logger.Debug("Running: retention sweep")
		s.runRetention()
	}); err != nil {
		return fmt.Errorf("register retention sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runTick() {
	defer s.recoverFromPanic("dispatchTick")
	s.Tick(context.Background(), s.now())
}

// Tick evaluates every active task against now and dispatches the due ones.
// A failure on one task never stops the others.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	metrics.SchedulerTicks.Inc()

	if s.cfg.StaleJobAfter > 0 {
		s.failStaleJobs(ctx, now)
	}

	tasks, err := s.store.FindActiveTasksWithComputer(ctx)
	if err != nil {
		s.logger.Error("Failed to load active tasks", zap.Error(err))
		return
	}
	if len(tasks) == 0 {
		s.logger.Debug("No active tasks to check")
		return
	}

	for i := range tasks {
		if err := s.evaluateTask(ctx, &tasks[i], now); err != nil {
			s.logger.Error("Task evaluation failed",
				zap.Uint64("task_id", tasks[i].ID),
				zap.Error(err),
			)
		}
	}
}

func (s *Scheduler) evaluateTask(ctx context.Context, task *models.Task, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	firing, due, err := IsDue(task.ID, task.Schedule, s.location, now)
	if err != nil {
		var parseErr *ScheduleParseError
		if errors.As(err, &parseErr) {
			s.logger.Error("Skipping task with invalid schedule",
				zap.Uint64("task_id", task.ID),
				zap.String("schedule", task.Schedule),
				zap.Error(parseErr.Err),
			)
			return nil
		}
		return err
	}
	if !due {
		return nil
	}

	if s.deduper != nil {
		seen, derr := s.deduper.Seen(ctx, fireKey(task.ID, firing))
		if derr != nil {
			s.logger.Warn("Fire dedupe unavailable, continuing", zap.Uint64("task_id", task.ID), zap.Error(derr))
		} else if seen {
			s.logger.Debug("Firing already handled",
				zap.Uint64("task_id", task.ID),
				zap.Time("firing", firing),
			)
			return nil
		}
	}

	online := task.Computer.Online()
	s.logger.Info("Task is due",
		zap.Uint64("task_id", task.ID),
		zap.String("task", task.Name),
		zap.Time("firing", firing),
		zap.Bool("agent_online", online),
	)

	queued, err := s.store.FindQueuedJob(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("find queued job: %w", err)
	}

	if queued != nil {
		if online {
			s.logger.Info("Queued job pending delivery, skipping this firing",
				zap.Uint64("task_id", task.ID),
				zap.Uint64("job_id", queued.ID),
			)
			return nil
		}

		applied, err := s.store.UpdateJob(ctx, queued.ID, map[string]interface{}{
			"status":       models.JobFailed,
			"details":      supersededDetails,
			"completed_at": now,
		})
		if err != nil {
			return fmt.Errorf("supersede queued job %d: %w", queued.ID, err)
		}
		if applied {
			metrics.JobsSuperseded.Inc()
			s.logger.Warn("Queued job superseded, agent still offline",
				zap.Uint64("task_id", task.ID),
				zap.Uint64("job_id", queued.ID),
			)
		}
		return nil
	}

	status := models.JobQueued
	if online {
		status = models.JobRunning
	}
	job, err := s.store.CreateJob(ctx, task.ID, status)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	if !online {
		metrics.Dispatch.WithLabelValues("schedule", "queued").Inc()
		s.logger.Info("Agent offline, job queued",
			zap.Uint64("task_id", task.ID),
			zap.Uint64("job_id", job.ID),
		)
		return nil
	}

	if s.sender.Send(agentID(task.ComputerID), BuildCommand(task, job.ID)) {
		metrics.Dispatch.WithLabelValues("schedule", "sent").Inc()
		s.logger.Info("Backup command sent",
			zap.Uint64("task_id", task.ID),
			zap.Uint64("job_id", job.ID),
		)
	} else {
		// The job stays running until the agent reports or the stale policy fails it.
		metrics.Dispatch.WithLabelValues("schedule", "undelivered").Inc()
		s.logger.Warn("Backup command not delivered",
			zap.Uint64("task_id", task.ID),
			zap.Uint64("job_id", job.ID),
			zap.Uint64("computer_id", task.ComputerID),
		)
	}
	return nil
}

func (s *Scheduler) failStaleJobs(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.cfg.StaleJobAfter)
	details := fmt.Sprintf("no status reported by agent within %s", s.cfg.StaleJobAfter)

	n, err := s.store.FailStaleRunningJobs(ctx, cutoff, details, now)
	if err != nil {
		s.logger.Error("Failed to expire stale running jobs", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Warn("Expired stale running jobs", zap.Int64("count", n), zap.Duration("older_than", s.cfg.StaleJobAfter))
	}
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
