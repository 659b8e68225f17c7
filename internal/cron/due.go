package cron

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
)

// DueWindow is how far back a tick looks for a scheduled firing.
const DueWindow = 60 * time.Second

var (
	scheduleCharset = regexp.MustCompile(`^[0-9*/,\-\s]+$`)

	errScheduleCharset = errors.New("schedule contains characters outside [0-9*/,- ]")

	// Task schedules use the classic five-field layout.
	taskParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
)

// ParseSchedule validates expr and parses it in loc.
func ParseSchedule(taskID uint64, expr string, loc *time.Location) (cron.Schedule, error) {
	if !scheduleCharset.MatchString(expr) {
		return nil, &ScheduleParseError{TaskID: taskID, Schedule: expr, Err: errScheduleCharset}
	}
	sched, err := taskParser.Parse(expr)
	if err != nil {
		return nil, &ScheduleParseError{TaskID: taskID, Schedule: expr, Err: err}
	}
	if spec, ok := sched.(*cron.SpecSchedule); ok && loc != nil {
		spec.Location = loc
	}
	return sched, nil
}

// LastFiring returns the latest firing of sched in [now-window, now], or
// false when the schedule did not fire in that range.
func LastFiring(sched cron.Schedule, now time.Time, window time.Duration) (time.Time, bool) {
	t := sched.Next(now.Add(-window).Add(-time.Nanosecond))
	if t.IsZero() || t.After(now) {
		return time.Time{}, false
	}
	for {
		next := sched.Next(t)
		if next.IsZero() || next.After(now) {
			return t, true
		}
		t = next
	}
}

// IsDue parses expr and reports the firing that makes it due at now.
func IsDue(taskID uint64, expr string, loc *time.Location, now time.Time) (time.Time, bool, error) {
	sched, err := ParseSchedule(taskID, expr, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	firing, due := LastFiring(sched, now, DueWindow)
	return firing, due, nil
}

func fireKey(taskID uint64, firing time.Time) string {
	return fmt.Sprintf("%d:%d", taskID, firing.Unix())
}
