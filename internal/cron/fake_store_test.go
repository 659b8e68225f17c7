package cron

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"backuphub/internal/models"
)

// fakeStore keeps tasks and jobs in memory with the same conditional-update
// rules as the SQL repositories.
type fakeStore struct {
	mu        sync.Mutex
	tasks     map[uint64]*models.Task
	jobs      map[uint64]*models.BackupJob
	nextJobID uint64
	now       time.Time

	failLoad bool
}

func newFakeStore(now time.Time) *fakeStore {
	return &fakeStore{
		tasks: make(map[uint64]*models.Task),
		jobs:  make(map[uint64]*models.BackupJob),
		now:   now,
	}
}

func (f *fakeStore) addTask(t models.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = &t
}

func (f *fakeStore) addJob(taskID uint64, status string, startedAt time.Time) *models.BackupJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextJobID++
	j := &models.BackupJob{ID: f.nextJobID, TaskID: taskID, Status: status, StartedAt: startedAt}
	f.jobs[j.ID] = j
	return j
}

func (f *fakeStore) job(id uint64) models.BackupJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[id]
}

func (f *fakeStore) jobsFor(taskID uint64) []models.BackupJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BackupJob
	for _, j := range f.jobs {
		if j.TaskID == taskID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

func (f *fakeStore) FindActiveTasksWithComputer(_ context.Context) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad {
		return nil, errors.New("database unavailable")
	}
	var out []models.Task
	for _, t := range f.tasks {
		if t.IsActive {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (f *fakeStore) FindTaskWithComputer(_ context.Context, taskID uint64) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) CreateJob(_ context.Context, taskID uint64, status string) (*models.BackupJob, error) {
	j := f.addJob(taskID, status, f.now)
	cp := *j
	return &cp, nil
}

func (f *fakeStore) UpdateJob(_ context.Context, jobID uint64, fields map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok || j.Terminal() {
		return false, nil
	}
	if v, ok := fields["status"].(string); ok {
		j.Status = v
	}
	if v, ok := fields["details"].(string); ok {
		j.Details = &v
	}
	if v, ok := fields["completed_at"].(time.Time); ok {
		j.CompletedAt = &v
	}
	return true, nil
}

func (f *fakeStore) TransitionJob(_ context.Context, jobID uint64, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[jobID]
	if !ok || j.Status != from {
		return false, nil
	}
	j.Status = to
	return true, nil
}

func (f *fakeStore) FindQueuedJob(_ context.Context, taskID uint64) (*models.BackupJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *models.BackupJob
	for _, j := range f.jobs {
		if j.TaskID == taskID && j.Status == models.JobQueued && (found == nil || j.ID > found.ID) {
			found = j
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (f *fakeStore) FindQueuedJobsForComputer(_ context.Context, computerID uint64) ([]models.BackupJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BackupJob
	for _, j := range f.jobs {
		t, ok := f.tasks[j.TaskID]
		if !ok || !t.IsActive || t.ComputerID != computerID || j.Status != models.JobQueued {
			continue
		}
		cp := *j
		task := *t
		cp.Task = &task
		out = append(out, cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (f *fakeStore) DeleteJobsOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, j := range f.jobs {
		if j.StartedAt.Before(cutoff) {
			delete(f.jobs, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) FailStaleRunningJobs(_ context.Context, cutoff time.Time, details string, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, j := range f.jobs {
		if j.Status == models.JobRunning && j.StartedAt.Before(cutoff) {
			j.Status = models.JobFailed
			d := details
			j.Details = &d
			ts := at
			j.CompletedAt = &ts
			n++
		}
	}
	return n, nil
}

type sentCommand struct {
	agentID string
	command models.StartBackupCommand
}

// fakeSender records commands and delivers only to connected agents.
type fakeSender struct {
	mu        sync.Mutex
	connected map[string]bool
	sent      []sentCommand
}

func newFakeSender(connected ...string) *fakeSender {
	s := &fakeSender{connected: make(map[string]bool)}
	for _, id := range connected {
		s.connected[id] = true
	}
	return s
}

func (s *fakeSender) Send(agentID string, message interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected[agentID] {
		return false
	}
	s.sent = append(s.sent, sentCommand{agentID: agentID, command: message.(models.StartBackupCommand)})
	return true
}

func (s *fakeSender) Sent() []sentCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentCommand(nil), s.sent...)
}
