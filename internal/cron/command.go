package cron

import (
	"strconv"

	"backuphub/internal/models"
)

const (
	defaultKeepCount       = 3
	defaultRetryAttempts   = 3
	defaultRetryDelay      = 5
	defaultFolderPrefix    = "backup_"
	defaultTimestampFormat = "%Y%m%d_%H%M%S"
)

// BuildCommand assembles the start-backup payload for job. Numeric settings
// fall back from the task to its computer and then to fixed defaults.
func BuildCommand(task *models.Task, jobID uint64) models.StartBackupCommand {
	return models.StartBackupCommand{
		Action:                models.ActionStartBackup,
		JobID:                 strconv.FormatUint(jobID, 10),
		TaskID:                strconv.FormatUint(task.ID, 10),
		SourceFile:            task.SourcePath,
		DestinationBaseFolder: task.DestinationPath,
		KeepCount:             firstInt(defaultKeepCount, task.BackupKeepCount, task.Computer.DefaultBackupKeepCount),
		RetryAttempts:         firstInt(defaultRetryAttempts, task.RetryAttempts, task.Computer.DefaultRetryAttempts),
		RetryDelay:            firstInt(defaultRetryDelay, task.RetryDelaySeconds, task.Computer.DefaultRetryDelaySeconds),
		FolderPrefix:          stringOr(task.FolderPrefix, defaultFolderPrefix),
		TimestampFormat:       stringOr(task.TimestampFormat, defaultTimestampFormat),
		DiscordWebhookURL:     stringOr(task.DiscordWebhookURL, ""),
		NotificationOnSuccess: stringOr(task.NotificationOnSuccess, ""),
		NotificationOnFailure: stringOr(task.NotificationOnFailure, ""),
	}
}

func firstInt(fallback int, candidates ...*int) int {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return fallback
}

func stringOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

func agentID(computerID uint64) string {
	return strconv.FormatUint(computerID, 10)
}
