package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"backuphub/internal/models"
)

// TaskRepository reads backup task definitions.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// FindActiveWithComputer returns every active task joined with its computer.
func (r *TaskRepository) FindActiveWithComputer(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	err := r.db.WithContext(ctx).
		Joins("Computer").
		Where("tasks.is_active = ?", true).
		Order("tasks.id ASC").
		Find(&tasks).Error
	return tasks, err
}

// FindWithComputer loads one task and its computer. Returns nil when absent.
func (r *TaskRepository) FindWithComputer(ctx context.Context, id uint64) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Joins("Computer").
		Where("tasks.id = ?", id).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// FindNotificationConfigByJob resolves the webhook settings of the task owning jobID.
func (r *TaskRepository) FindNotificationConfigByJob(ctx context.Context, jobID uint64) (*models.NotificationConfig, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Joins("JOIN backup_jobs ON backup_jobs.task_id = tasks.id").
		Where("backup_jobs.id = ?", jobID).
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &models.NotificationConfig{
		TaskID:          task.ID,
		TaskName:        task.Name,
		WebhookURL:      deref(task.DiscordWebhookURL),
		SuccessTemplate: deref(task.NotificationOnSuccess),
		FailureTemplate: deref(task.NotificationOnFailure),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
