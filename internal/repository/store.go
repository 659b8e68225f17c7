package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"backuphub/internal/models"
)

// Store bundles the repositories behind the persistence operations the
// scheduler, the agent sessions and the REST handlers consume.
type Store struct {
	Computers *ComputerRepository
	Tasks     *TaskRepository
	Jobs      *BackupJobRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		Computers: NewComputerRepository(db),
		Tasks:     NewTaskRepository(db),
		Jobs:      NewBackupJobRepository(db),
	}
}

func (s *Store) FindActiveTasksWithComputer(ctx context.Context) ([]models.Task, error) {
	return s.Tasks.FindActiveWithComputer(ctx)
}

func (s *Store) FindTaskWithComputer(ctx context.Context, taskID uint64) (*models.Task, error) {
	return s.Tasks.FindWithComputer(ctx, taskID)
}

func (s *Store) CreateJob(ctx context.Context, taskID uint64, status string) (*models.BackupJob, error) {
	return s.Jobs.Create(ctx, taskID, status)
}

func (s *Store) UpdateJob(ctx context.Context, jobID uint64, fields map[string]interface{}) (bool, error) {
	return s.Jobs.Update(ctx, jobID, fields)
}

func (s *Store) TransitionJob(ctx context.Context, jobID uint64, from, to string) (bool, error) {
	return s.Jobs.Transition(ctx, jobID, from, to)
}

func (s *Store) CompleteJob(ctx context.Context, computerID, jobID uint64, status, details string, at time.Time) (bool, error) {
	return s.Jobs.Complete(ctx, computerID, jobID, status, details, at)
}

func (s *Store) FindQueuedJob(ctx context.Context, taskID uint64) (*models.BackupJob, error) {
	return s.Jobs.FindQueuedByTask(ctx, taskID)
}

func (s *Store) FindQueuedJobsForComputer(ctx context.Context, computerID uint64) ([]models.BackupJob, error) {
	return s.Jobs.FindQueuedForComputer(ctx, computerID)
}

func (s *Store) ListJobsForTask(ctx context.Context, taskID uint64, limit int) ([]models.BackupJob, error) {
	return s.Jobs.ListByTask(ctx, taskID, limit)
}

func (s *Store) DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.Jobs.DeleteOlderThan(ctx, cutoff)
}

func (s *Store) FailStaleRunningJobs(ctx context.Context, cutoff time.Time, details string, at time.Time) (int64, error) {
	return s.Jobs.FailStaleRunning(ctx, cutoff, details, at)
}

// FindAgentByCredential returns the computer id bound to token.
func (s *Store) FindAgentByCredential(ctx context.Context, token string) (uint64, bool, error) {
	c, err := s.Computers.FindByAuthToken(ctx, token)
	if err != nil || c == nil {
		return 0, false, err
	}
	return c.ID, true, nil
}

func (s *Store) UpdateComputerStatus(ctx context.Context, computerID uint64, status string, lastSeen time.Time) error {
	return s.Computers.UpdateStatus(ctx, computerID, status, lastSeen)
}

func (s *Store) TouchComputer(ctx context.Context, computerID uint64, lastSeen time.Time) error {
	return s.Computers.Touch(ctx, computerID, lastSeen)
}

func (s *Store) FindTaskNotificationConfig(ctx context.Context, jobID uint64) (*models.NotificationConfig, error) {
	return s.Tasks.FindNotificationConfigByJob(ctx, jobID)
}
