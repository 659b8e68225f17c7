package cron

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned by StartNow for an unknown task id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrAgentOffline is returned by StartNow when the command could not be delivered.
	ErrAgentOffline = errors.New("agent is offline or not connected")
)

// ScheduleParseError reports a task whose schedule cannot be evaluated.
type ScheduleParseError struct {
	TaskID   uint64
	Schedule string
	Err      error
}

func (e *ScheduleParseError) Error() string {
	return fmt.Sprintf("invalid cron expression for task %d: %q: %v", e.TaskID, e.Schedule, e.Err)
}

func (e *ScheduleParseError) Unwrap() error {
	return e.Err
}
