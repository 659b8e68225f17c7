package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"backuphub/internal/agent"
	"backuphub/internal/middleware"
	"backuphub/internal/models"
)

// AgentSocketHandler upgrades authenticated agents to a websocket session.
type AgentSocketHandler struct {
	sessions *agent.Handler
	logger   *zap.Logger

	// base is cancelled on shutdown and ends every open session.
	base context.Context
	wg   sync.WaitGroup
}

func NewAgentSocketHandler(base context.Context, sessions *agent.Handler, logger *zap.Logger) *AgentSocketHandler {
	return &AgentSocketHandler{
		sessions: sessions,
		logger:   logger,
		base:     base,
	}
}

// Handle authenticates the credential before accepting the upgrade, then
// serves the session until the connection ends.
func (h *AgentSocketHandler) Handle(c echo.Context) error {
	req := c.Request()

	sess, err := h.sessions.Authenticate(req.Context(), middleware.BearerToken(req))
	if errors.Is(err, agent.ErrAuthentication) {
		h.logger.Warn("Agent connection refused: invalid credential", zap.String("ip", c.RealIP()))
		return c.JSON(http.StatusUnauthorized, models.APIResponse{Status: false, Msg: "Invalid agent token"})
	}
	if err != nil {
		h.logger.Error("Agent credential lookup failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, models.APIResponse{Status: false, Msg: "Agent authentication unavailable"})
	}

	ws, err := websocket.Accept(c.Response(), req, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.String("agent_id", sess.AgentID), zap.Error(err))
		return nil
	}

	h.wg.Add(1)
	defer h.wg.Done()

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	stop := context.AfterFunc(h.base, cancel)
	defer stop()

	conn := agent.NewWebsocketConn(ws)
	h.sessions.Serve(ctx, sess, conn)
	_ = conn.Close("session closed")
	return nil
}

// Wait blocks until every served session has finished its cleanup.
func (h *AgentSocketHandler) Wait() {
	h.wg.Wait()
}
