package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"backuphub/internal/models"
)

// BackupJobRepository handles the backup job lifecycle rows.
type BackupJobRepository struct {
	db *gorm.DB
}

func NewBackupJobRepository(db *gorm.DB) *BackupJobRepository {
	return &BackupJobRepository{db: db}
}

// Create inserts a job for taskID with the given initial status.
func (r *BackupJobRepository) Create(ctx context.Context, taskID uint64, status string) (*models.BackupJob, error) {
	job := &models.BackupJob{
		TaskID: taskID,
		Status: status,
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// FindByID finds a job by primary key.
func (r *BackupJobRepository) FindByID(ctx context.Context, id uint64) (*models.BackupJob, error) {
	var job models.BackupJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Update writes arbitrary columns of a job that has not reached a terminal state.
// It reports whether a row was changed.
func (r *BackupJobRepository) Update(ctx context.Context, id uint64, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.BackupJob{}).
		Where("id = ? AND status IN ?", id, models.ActiveJobStatuses).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// Transition moves a job from one exact status to another.
func (r *BackupJobRepository) Transition(ctx context.Context, id uint64, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.BackupJob{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

// Complete records an agent-reported outcome. Only non-terminal jobs of tasks
// owned by computerID are touched, so late or foreign reports are no-ops.
func (r *BackupJobRepository) Complete(ctx context.Context, computerID, jobID uint64, status, details string, at time.Time) (bool, error) {
	owned := r.db.Model(&models.Task{}).Select("id").Where("computer_id = ?", computerID)

	updates := map[string]interface{}{
		"status":       status,
		"completed_at": at,
		"details":      nil,
	}
	if details != "" {
		updates["details"] = details
	}

	res := r.db.WithContext(ctx).Model(&models.BackupJob{}).
		Where("id = ? AND status IN ? AND task_id IN (?)", jobID, models.ActiveJobStatuses, owned).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// FindQueuedByTask returns the newest queued job for a task, or nil.
func (r *BackupJobRepository) FindQueuedByTask(ctx context.Context, taskID uint64) (*models.BackupJob, error) {
	var job models.BackupJob
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND status = ?", taskID, models.JobQueued).
		Order("id DESC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindQueuedForComputer lists queued jobs of active tasks on computerID, oldest first,
// with Task and Task.Computer loaded.
func (r *BackupJobRepository) FindQueuedForComputer(ctx context.Context, computerID uint64) ([]models.BackupJob, error) {
	var jobs []models.BackupJob
	err := r.db.WithContext(ctx).
		Joins("JOIN tasks ON tasks.id = backup_jobs.task_id").
		Where("tasks.computer_id = ? AND tasks.is_active = ? AND backup_jobs.status = ?", computerID, true, models.JobQueued).
		Preload("Task.Computer").
		Order("backup_jobs.id ASC").
		Find(&jobs).Error
	return jobs, err
}

// ListByTask returns the latest jobs of a task, newest first.
func (r *BackupJobRepository) ListByTask(ctx context.Context, taskID uint64, limit int) ([]models.BackupJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []models.BackupJob
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// DeleteOlderThan removes every job started before cutoff, whatever its status.
func (r *BackupJobRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&models.BackupJob{})
	return res.RowsAffected, res.Error
}

// FailStaleRunning fails running jobs started before cutoff.
func (r *BackupJobRepository) FailStaleRunning(ctx context.Context, cutoff time.Time, details string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.BackupJob{}).
		Where("status = ? AND started_at < ?", models.JobRunning, cutoff).
		Updates(map[string]interface{}{
			"status":       models.JobFailed,
			"completed_at": at,
			"details":      details,
		})
	return res.RowsAffected, res.Error
}
