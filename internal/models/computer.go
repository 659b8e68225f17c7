package models

import "time"

const (
	ComputerOnline  = "online"
	ComputerOffline = "offline"
)

// Computer maps to the `computers` table. Each row is one backup agent.
type Computer struct {
	ID                       uint64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID                   uint64     `gorm:"column:user_id;index" json:"user_id"`
	Name                     string     `gorm:"column:name;size:255" json:"name"`
	AuthToken                string     `gorm:"column:auth_token;size:255;uniqueIndex" json:"-"`
	Status                   string     `gorm:"column:status;size:20;default:offline" json:"status"`
	LastSeenAt               *time.Time `gorm:"column:last_seen_at" json:"last_seen_at"`
	DefaultBackupKeepCount   *int       `gorm:"column:default_backup_keep_count" json:"default_backup_keep_count"`
	DefaultRetryAttempts     *int       `gorm:"column:default_retry_attempts" json:"default_retry_attempts"`
	DefaultRetryDelaySeconds *int       `gorm:"column:default_retry_delay_seconds" json:"default_retry_delay_seconds"`
	CreatedAt                time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Computer) TableName() string {
	return "computers"
}

// Online reports whether the stored status is online.
func (c *Computer) Online() bool {
	return c.Status == ComputerOnline
}
