package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"backuphub/internal/handler"
	"backuphub/internal/handler/api"
	"backuphub/internal/middleware"
)

// Deps carries the handlers and settings the routes are built from.
type Deps struct {
	Logger         *zap.Logger
	APIKey         string
	AllowedOrigins []string
	AgentPath      string

	Jobs        *api.JobHandler
	Agents      *api.AgentHandler
	AgentSocket *handler.AgentSocketHandler
}

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, d Deps) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(d.Logger))

	// Agent channel: authenticated by the agent token, not the API key.
	agentPath := d.AgentPath
	if agentPath == "" {
		agentPath = "/ws"
	}
	e.GET(agentPath, d.AgentSocket.Handle)
	if agentPath != "/" {
		e.GET("/", d.AgentSocket.Handle)
	}

	// REST API
	apiGroup := e.Group("/api/v1")
	apiGroup.Use(middleware.CORS(d.AllowedOrigins))
	apiGroup.Use(middleware.APIAuth(d.APIKey))

	apiGroup.POST("/tasks/:taskId/run", d.Jobs.RunTask)
	apiGroup.GET("/jobs/task/:taskId", d.Jobs.ListForTask)
	apiGroup.GET("/agents", d.Agents.List)

	// Metrics
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
