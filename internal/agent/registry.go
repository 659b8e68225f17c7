package agent

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"backuphub/internal/metrics"
)

// Channel is the outbound half of an agent connection.
type Channel interface {
	Write(ctx context.Context, payload []byte) error
	Ready() bool
}

// Registry coordinates the live channels of all connected agents.
type Registry struct {
	channels     map[string]Channel
	mu           sync.RWMutex
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewRegistry creates an empty Registry. writeTimeout bounds a single frame write.
func NewRegistry(writeTimeout time.Duration, logger *zap.Logger) *Registry {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Registry{
		channels:     make(map[string]Channel),
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Register binds agentID to ch, replacing any previous channel.
func (r *Registry) Register(agentID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.channels[agentID]
	r.channels[agentID] = ch
	metrics.AgentsConnected.Set(float64(len(r.channels)))

	r.logger.Info("Agent registered",
		zap.String("agent_id", agentID),
		zap.Bool("replaced", replaced),
		zap.Int("total_agents", len(r.channels)),
	)
}

// Unregister removes agentID whatever channel it holds.
func (r *Registry) Unregister(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[agentID]; ok {
		delete(r.channels, agentID)
		metrics.AgentsConnected.Set(float64(len(r.channels)))
		r.logger.Info("Agent unregistered",
			zap.String("agent_id", agentID),
			zap.Int("total_agents", len(r.channels)),
		)
	}
}

// Release removes agentID only while it is still bound to ch. It reports false
// when a newer connection has already taken the slot.
func (r *Registry) Release(agentID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.channels[agentID]
	if !ok || current != ch {
		return false
	}
	delete(r.channels, agentID)
	metrics.AgentsConnected.Set(float64(len(r.channels)))
	r.logger.Info("Agent unregistered",
		zap.String("agent_id", agentID),
		zap.Int("total_agents", len(r.channels)),
	)
	return true
}

// Get returns the channel bound to agentID.
func (r *Registry) Get(agentID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[agentID]
	return ch, ok
}

// Agents returns the ids of all registered agents, sorted.
func (r *Registry) Agents() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Send encodes message as JSON and writes it to agentID's channel.
// It returns false when the agent is absent, not ready, or the write fails.
func (r *Registry) Send(agentID string, message interface{}) bool {
	ch, ok := r.Get(agentID)
	if !ok || !ch.Ready() {
		r.logger.Warn("Could not send command: agent is not connected", zap.String("agent_id", agentID))
		return false
	}

	payload, err := json.Marshal(message)
	if err != nil {
		r.logger.Error("Failed to encode agent command", zap.String("agent_id", agentID), zap.Error(err))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()
	if err := ch.Write(ctx, payload); err != nil {
		r.logger.Warn("Failed to write agent command", zap.String("agent_id", agentID), zap.Error(err))
		return false
	}

	r.logger.Debug("Command sent to agent", zap.String("agent_id", agentID), zap.ByteString("payload", payload))
	return true
}
