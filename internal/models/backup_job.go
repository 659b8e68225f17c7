package models

import "time"

const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobSuccess = "success"
	JobFailed  = "failed"
)

// BackupJob stores one execution of a task, from dispatch to terminal state.
type BackupJob struct {
	ID          uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id,string"`
	TaskID      uint64     `gorm:"column:task_id;index:idx_backup_jobs_task_status,priority:1" json:"task_id,string"`
	Status      string     `gorm:"column:status;size:20;index:idx_backup_jobs_task_status,priority:2" json:"status"`
	StartedAt   time.Time  `gorm:"column:started_at;autoCreateTime;index" json:"started_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at"`
	Details     *string    `gorm:"column:details;type:text" json:"details"`

	Task *Task `gorm:"foreignKey:TaskID" json:"-"`
}

func (BackupJob) TableName() string {
	return "backup_jobs"
}

// Terminal reports whether the job can no longer change status.
func (j *BackupJob) Terminal() bool {
	return IsTerminalJobStatus(j.Status)
}

// IsTerminalJobStatus reports whether status is success or failed.
func IsTerminalJobStatus(status string) bool {
	return status == JobSuccess || status == JobFailed
}

// ActiveJobStatuses lists the statuses a job may leave.
var ActiveJobStatuses = []string{JobQueued, JobRunning}
