// Package notify posts job outcome messages to Discord-style webhooks.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"backuphub/internal/models"
	"backuphub/internal/pkg/httpclient"
)

type discordPayload struct {
	Content string `json:"content"`
}

// Discord sends notifications to Discord webhooks.
type Discord struct {
	client *httpclient.Client
	logger *zap.Logger
}

func NewDiscord(client *httpclient.Client, logger *zap.Logger) *Discord {
	return &Discord{client: client, logger: logger}
}

// Notify posts message to webhookURL. Errors are logged and swallowed.
func (d *Discord) Notify(ctx context.Context, webhookURL, message string) {
	if webhookURL == "" {
		return
	}
	if _, err := d.client.PostJSON(ctx, webhookURL, discordPayload{Content: message}); err != nil {
		d.logger.Warn("Webhook notification failed", zap.Error(err))
		return
	}
	d.logger.Debug("Webhook notification sent")
}

// NotifyJobResult builds the outcome message for cfg's task and sends it.
func (d *Discord) NotifyJobResult(ctx context.Context, cfg models.NotificationConfig, status, details string) {
	d.logger.Info("Sending job notification",
		zap.Uint64("task_id", cfg.TaskID),
		zap.String("status", status),
	)
	d.Notify(ctx, cfg.WebhookURL, Message(cfg, status, details))
}

// Message renders the notification text for a finished job. Failure
// details are appended to whichever failure text is used.
func Message(cfg models.NotificationConfig, status, details string) string {
	if status == models.JobSuccess {
		if cfg.SuccessTemplate != "" {
			return cfg.SuccessTemplate
		}
		return fmt.Sprintf("✅ Backup task \"%s\" completed successfully.", cfg.TaskName)
	}

	msg := cfg.FailureTemplate
	if msg == "" {
		msg = fmt.Sprintf("❌ Backup task \"%s\" failed.", cfg.TaskName)
	}
	if details != "" {
		msg += "\nError: " + details
	}
	return msg
}
