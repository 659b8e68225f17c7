package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"backuphub/internal/models"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindAgentByCredential(ctx context.Context, token string) (uint64, bool, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(uint64), args.Bool(1), args.Error(2)
}

func (m *mockStore) UpdateComputerStatus(ctx context.Context, computerID uint64, status string, lastSeen time.Time) error {
	args := m.Called(ctx, computerID, status, lastSeen)
	return args.Error(0)
}

func (m *mockStore) TouchComputer(ctx context.Context, computerID uint64, lastSeen time.Time) error {
	args := m.Called(ctx, computerID, lastSeen)
	return args.Error(0)
}

func (m *mockStore) CompleteJob(ctx context.Context, computerID, jobID uint64, status, details string, at time.Time) (bool, error) {
	args := m.Called(ctx, computerID, jobID, status, details, at)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) FindTaskNotificationConfig(ctx context.Context, jobID uint64) (*models.NotificationConfig, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NotificationConfig), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyJobResult(ctx context.Context, cfg models.NotificationConfig, status, details string) {
	m.Called(ctx, cfg, status, details)
}

type mockDrainer struct {
	mock.Mock
}

func (m *mockDrainer) DrainQueued(ctx context.Context, computerID uint64) {
	m.Called(ctx, computerID)
}

// fakeChannel records written frames.
type fakeChannel struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	writeErr error
}

func (c *fakeChannel) Write(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.frames = append(c.frames, payload)
	return nil
}

func (c *fakeChannel) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeChannel) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

// fakeConn feeds queued frames to Read and then reports EOF.
type fakeConn struct {
	fakeChannel
	inbound chan []byte
}

var errConnClosed = errors.New("connection closed")

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{inbound: make(chan []byte, len(frames))}
	for _, f := range frames {
		c.inbound <- []byte(f)
	}
	close(c.inbound)
	return c
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case raw, ok := <-c.inbound:
		if !ok {
			c.mu.Lock()
			c.closed = true
			c.mu.Unlock()
			return nil, errConnClosed
		}
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newTestRegistry() *Registry {
	return NewRegistry(time.Second, zap.NewNop())
}
