package api

import (
	"github.com/labstack/echo/v4"

	"backuphub/internal/models"
)

// AgentLister reports the currently connected agents.
type AgentLister interface {
	Agents() []string
}

type AgentHandler struct {
	agents AgentLister
}

func NewAgentHandler(agents AgentLister) *AgentHandler {
	return &AgentHandler{agents: agents}
}

// List returns the ids of connected agents.
// GET /api/v1/agents
func (h *AgentHandler) List(c echo.Context) error {
	ids := h.agents.Agents()
	return successResponse(c, "", models.AgentList{Agents: ids, Total: len(ids)})
}
