package models

import "time"

// Task maps to the `tasks` table: one backup definition bound to a computer.
// Rows are owned by the CRUD surface; the scheduler only reads them.
type Task struct {
	ID                    uint64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ComputerID            uint64    `gorm:"column:computer_id;index" json:"computer_id"`
	Name                  string    `gorm:"column:name;size:255" json:"name"`
	SourcePath            string    `gorm:"column:source_path;size:1024" json:"source_path"`
	DestinationPath       string    `gorm:"column:destination_path;size:1024" json:"destination_path"`
	Schedule              string    `gorm:"column:schedule;size:100" json:"schedule"`
	IsActive              bool      `gorm:"column:is_active;index;default:true" json:"is_active"`
	BackupKeepCount       *int      `gorm:"column:backup_keep_count" json:"backup_keep_count"`
	RetryAttempts         *int      `gorm:"column:retry_attempts" json:"retry_attempts"`
	RetryDelaySeconds     *int      `gorm:"column:retry_delay_seconds" json:"retry_delay_seconds"`
	FolderPrefix          *string   `gorm:"column:folder_prefix;size:100" json:"folder_prefix"`
	TimestampFormat       *string   `gorm:"column:timestamp_format;size:100" json:"timestamp_format"`
	DiscordWebhookURL     *string   `gorm:"column:discord_webhook_url;size:1024" json:"discord_webhook_url"`
	NotificationOnSuccess *string   `gorm:"column:notification_on_success;type:text" json:"notification_on_success"`
	NotificationOnFailure *string   `gorm:"column:notification_on_failure;type:text" json:"notification_on_failure"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Computer Computer `gorm:"foreignKey:ComputerID" json:"computer,omitempty"`
}

func (Task) TableName() string {
	return "tasks"
}

// NotificationConfig is the per-task webhook setup used when a job finishes.
type NotificationConfig struct {
	TaskID          uint64
	TaskName        string
	WebhookURL      string
	SuccessTemplate string
	FailureTemplate string
}
