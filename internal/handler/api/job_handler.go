package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"backuphub/internal/cron"
	"backuphub/internal/models"
)

const jobListLimit = 50

// Trigger starts a task outside its schedule.
type Trigger interface {
	StartNow(ctx context.Context, taskID uint64) (uint64, error)
}

// JobLister reads job history.
type JobLister interface {
	ListJobsForTask(ctx context.Context, taskID uint64, limit int) ([]models.BackupJob, error)
}

// JobHandler serves the on-demand trigger and job history.
type JobHandler struct {
	trigger Trigger
	jobs    JobLister
	logger  *zap.Logger
}

func NewJobHandler(trigger Trigger, jobs JobLister, logger *zap.Logger) *JobHandler {
	return &JobHandler{trigger: trigger, jobs: jobs, logger: logger}
}

// RunTask dispatches a task immediately.
// POST /api/v1/tasks/:taskId/run
func (h *JobHandler) RunTask(c echo.Context) error {
	taskID, ok := parseIDParam(c, "taskId")
	if !ok {
		return errorResponse(c, http.StatusBadRequest, "Invalid task id")
	}

	jobID, err := h.trigger.StartNow(c.Request().Context(), taskID)
	switch {
	case errors.Is(err, cron.ErrTaskNotFound):
		return errorResponse(c, http.StatusNotFound, "Task not found")
	case errors.Is(err, cron.ErrAgentOffline):
		return c.JSON(http.StatusServiceUnavailable, models.APIResponse{
			Status: false,
			Msg:    "Agent is offline or not connected",
			Obj:    models.RunTaskResult{JobID: strconv.FormatUint(jobID, 10)},
		})
	case err != nil:
		h.logger.Error("Manual backup failed", zap.Uint64("task_id", taskID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Could not start backup")
	}

	return successResponse(c, "Backup started", models.RunTaskResult{JobID: strconv.FormatUint(jobID, 10)})
}

// ListForTask returns the latest jobs of a task, newest first.
// GET /api/v1/jobs/task/:taskId
func (h *JobHandler) ListForTask(c echo.Context) error {
	taskID, ok := parseIDParam(c, "taskId")
	if !ok {
		return errorResponse(c, http.StatusBadRequest, "Invalid task id")
	}

	jobs, err := h.jobs.ListJobsForTask(c.Request().Context(), taskID, jobListLimit)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Uint64("task_id", taskID), zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Could not load jobs")
	}
	if jobs == nil {
		jobs = []models.BackupJob{}
	}
	return successResponse(c, "", jobs)
}
