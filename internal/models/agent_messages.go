package models

const (
	ActionHeartbeat       = "heartbeat"
	ActionUpdateJobStatus = "update-job-status"
	ActionStartBackup     = "start-backup"
)

// AgentMessage is any frame an agent sends over its channel.
// Fields beyond Action are only meaningful for update-job-status.
type AgentMessage struct {
	Action  string `json:"action"`
	JobID   string `json:"jobId,omitempty"`
	Status  string `json:"status,omitempty"`
	Details string `json:"details,omitempty"`
}

// StartBackupCommand is pushed to an agent to run one backup job.
type StartBackupCommand struct {
	Action                string `json:"action"`
	JobID                 string `json:"jobId"`
	TaskID                string `json:"taskId,omitempty"`
	SourceFile            string `json:"sourceFile"`
	DestinationBaseFolder string `json:"destinationBaseFolder"`
	KeepCount             int    `json:"keepCount"`
	RetryAttempts         int    `json:"retryAttempts"`
	RetryDelay            int    `json:"retryDelay"`
	FolderPrefix          string `json:"folderPrefix"`
	TimestampFormat       string `json:"timestampFormat"`
	DiscordWebhookURL     string `json:"discordWebhookUrl,omitempty"`
	NotificationOnSuccess string `json:"notificationOnSuccess,omitempty"`
	NotificationOnFailure string `json:"notificationOnFailure,omitempty"`
}
