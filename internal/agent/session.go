package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"backuphub/internal/metrics"
	"backuphub/internal/models"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Store is the persistence surface a session needs.
type Store interface {
	FindAgentByCredential(ctx context.Context, token string) (uint64, bool, error)
	UpdateComputerStatus(ctx context.Context, computerID uint64, status string, lastSeen time.Time) error
	TouchComputer(ctx context.Context, computerID uint64, lastSeen time.Time) error
	CompleteJob(ctx context.Context, computerID, jobID uint64, status, details string, at time.Time) (bool, error)
	FindTaskNotificationConfig(ctx context.Context, jobID uint64) (*models.NotificationConfig, error)
}

// Notifier delivers the outcome of a finished job. Failures stay inside it.
type Notifier interface {
	NotifyJobResult(ctx context.Context, cfg models.NotificationConfig, status, details string)
}

// QueueDrainer dispatches jobs that were queued while an agent was away.
type QueueDrainer interface {
	DrainQueued(ctx context.Context, computerID uint64)
}

// Session is one authenticated (or authenticating) agent connection.
type Session struct {
	ID         string
	ComputerID uint64
	AgentID    string

	mu        sync.Mutex
	state     State
	channel   Channel
	closeOnce sync.Once
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Handler runs agent sessions against the store and the registry.
type Handler struct {
	store    Store
	registry *Registry
	notifier Notifier
	drainer  QueueDrainer
	logger   *zap.Logger
	now      func() time.Time
}

// NewHandler creates a session Handler. notifier and drainer may be nil.
func NewHandler(store Store, registry *Registry, notifier Notifier, drainer QueueDrainer, logger *zap.Logger) *Handler {
	return &Handler{
		store:    store,
		registry: registry,
		notifier: notifier,
		drainer:  drainer,
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate resolves token to a computer and returns a Session in the
// Connecting state. An empty or unknown token yields ErrAuthentication.
func (h *Handler) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrAuthentication
	}

	computerID, ok, err := h.store.FindAgentByCredential(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("resolve agent credential: %w", err)
	}
	if !ok {
		return nil, ErrAuthentication
	}

	return &Session{
		ID:         uuid.NewString(),
		ComputerID: computerID,
		AgentID:    strconv.FormatUint(computerID, 10),
		state:      StateConnecting,
	}, nil
}

// Open registers the session's channel, marks the computer online and hands
// any queued jobs to the drainer.
func (h *Handler) Open(ctx context.Context, sess *Session, ch Channel) {
	sess.mu.Lock()
	sess.channel = ch
	sess.state = StateAuthenticated
	sess.mu.Unlock()

	h.registry.Register(sess.AgentID, ch)

	if err := h.store.UpdateComputerStatus(ctx, sess.ComputerID, models.ComputerOnline, h.now()); err != nil {
		h.logger.Error("Failed to mark computer online",
			zap.Uint64("computer_id", sess.ComputerID),
			zap.Error(err),
		)
	}

	h.logger.Info("Agent connected",
		zap.String("agent_id", sess.AgentID),
		zap.String("session_id", sess.ID),
	)

	if h.drainer != nil {
		h.drainer.DrainQueued(ctx, sess.ComputerID)
	}
}

// HandleMessage processes one inbound frame. Only undecodable frames return
// an error; everything else is handled or ignored in place.
func (h *Handler) HandleMessage(ctx context.Context, sess *Session, raw []byte) error {
	if sess.State() != StateAuthenticated {
		return nil
	}

	var msg models.AgentMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return &MalformedMessageError{Raw: raw, Err: err}
	}

	switch msg.Action {
	case models.ActionHeartbeat:
		metrics.AgentMessages.WithLabelValues(msg.Action).Inc()
		h.handleHeartbeat(ctx, sess)
	case models.ActionUpdateJobStatus:
		metrics.AgentMessages.WithLabelValues(msg.Action).Inc()
		h.handleJobStatus(ctx, sess, msg)
	default:
		metrics.AgentMessages.WithLabelValues("unknown").Inc()
		h.logger.Debug("Ignoring unknown agent action",
			zap.String("agent_id", sess.AgentID),
			zap.String("action", msg.Action),
		)
	}
	return nil
}

func (h *Handler) handleHeartbeat(ctx context.Context, sess *Session) {
	if err := h.store.TouchComputer(ctx, sess.ComputerID, h.now()); err != nil {
		h.logger.Error("Failed to record heartbeat",
			zap.Uint64("computer_id", sess.ComputerID),
			zap.Error(err),
		)
	}
}

func (h *Handler) handleJobStatus(ctx context.Context, sess *Session, msg models.AgentMessage) {
	if msg.Status != models.JobSuccess && msg.Status != models.JobFailed {
		h.logger.Warn("Ignoring job update with invalid status",
			zap.String("agent_id", sess.AgentID),
			zap.String("job_id", msg.JobID),
			zap.String("status", msg.Status),
		)
		return
	}

	jobID, err := strconv.ParseUint(msg.JobID, 10, 64)
	if err != nil || jobID == 0 {
		h.logger.Warn("Ignoring job update with invalid job id",
			zap.String("agent_id", sess.AgentID),
			zap.String("job_id", msg.JobID),
		)
		return
	}

	applied, err := h.store.CompleteJob(ctx, sess.ComputerID, jobID, msg.Status, msg.Details, h.now())
	if err != nil {
		h.logger.Error("Failed to update job status",
			zap.Uint64("job_id", jobID),
			zap.Error(err),
		)
		return
	}
	if !applied {
		h.logger.Info("Job update not applied",
			zap.String("agent_id", sess.AgentID),
			zap.Uint64("job_id", jobID),
			zap.String("status", msg.Status),
		)
		return
	}

	h.logger.Info("Job finished",
		zap.String("agent_id", sess.AgentID),
		zap.Uint64("job_id", jobID),
		zap.String("status", msg.Status),
	)

	if h.notifier == nil {
		return
	}

	cfg, err := h.store.FindTaskNotificationConfig(ctx, jobID)
	if err != nil {
		h.logger.Error("Failed to load notification config",
			zap.Uint64("job_id", jobID),
			zap.Error(err),
		)
		return
	}
	if cfg == nil || cfg.WebhookURL == "" {
		return
	}
	h.notifier.NotifyJobResult(ctx, *cfg, msg.Status, msg.Details)
}

// Close tears the session down. Only the first call has any effect, and the
// computer is marked offline only if no newer session replaced this one.
func (h *Handler) Close(ctx context.Context, sess *Session) {
	sess.closeOnce.Do(func() {
		sess.mu.Lock()
		ch := sess.channel
		wasOpen := sess.state == StateAuthenticated
		sess.state = StateClosed
		sess.mu.Unlock()

		if !wasOpen {
			return
		}

		if !h.registry.Release(sess.AgentID, ch) {
			h.logger.Info("Agent session superseded by a newer connection",
				zap.String("agent_id", sess.AgentID),
				zap.String("session_id", sess.ID),
			)
			return
		}

		if err := h.store.UpdateComputerStatus(ctx, sess.ComputerID, models.ComputerOffline, h.now()); err != nil {
			h.logger.Error("Failed to mark computer offline",
				zap.Uint64("computer_id", sess.ComputerID),
				zap.Error(err),
			)
		}

		h.logger.Info("Agent disconnected",
			zap.String("agent_id", sess.AgentID),
			zap.String("session_id", sess.ID),
		)
	})
}

// Conn is a full-duplex agent connection.
type Conn interface {
	Channel
	Read(ctx context.Context) ([]byte, error)
}

// Serve opens sess on conn and reads frames until the connection ends.
func (h *Handler) Serve(ctx context.Context, sess *Session, conn Conn) {
	h.Open(ctx, sess, conn)
	defer h.Close(context.WithoutCancel(ctx), sess)

	for {
		raw, err := conn.Read(ctx)
		if err != nil {
			h.logger.Debug("Agent read loop ended",
				zap.String("agent_id", sess.AgentID),
				zap.Error(err),
			)
			return
		}
		if err := h.HandleMessage(ctx, sess, raw); err != nil {
			h.logger.Warn("Dropping agent message",
				zap.String("agent_id", sess.AgentID),
				zap.Error(err),
			)
		}
	}
}
