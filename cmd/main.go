package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"backuphub/internal/agent"
	"backuphub/internal/bootstrap"
	"backuphub/internal/config"
	cronpkg "backuphub/internal/cron"
	"backuphub/internal/dedupe"
	"backuphub/internal/handler"
	"backuphub/internal/handler/api"
	"backuphub/internal/notify"
	"backuphub/internal/pkg/httpclient"
	"backuphub/internal/repository"
	"backuphub/internal/router"
)

func main() {
	if hasArg("--bootstrap-db") {
		logger := newLogger("production", "info")
		defer logger.Sync()

		if err := runDBBootstrap(logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := newLogger(cfg.Server.Env, cfg.Log.Level)
	defer logger.Sync()

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}
	store := repository.NewStore(db)

	// --- Fire dedupe (Redis with in-memory fallback) ---
	deduper, dedupeErr := dedupe.New(cfg.Redis.Addr, cfg.Redis.Pass, cfg.Redis.DB, 2*time.Minute)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for fire dedupe, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Agents ---
	registry := agent.NewRegistry(cfg.Agent.WriteTimeout, logger)
	notifier := notify.NewDiscord(httpclient.New().WithTimeout(cfg.Notify.Timeout), logger)

	scheduler, err := cronpkg.New(cfg.Scheduler, store, registry, deduper, logger)
	if err != nil {
		logger.Fatal("Failed to create scheduler", zap.Error(err))
	}
	sessions := agent.NewHandler(store, registry, notifier, scheduler, logger)

	baseCtx, cancelSessions := context.WithCancel(context.Background())
	defer cancelSessions()
	agentSocket := handler.NewAgentSocketHandler(baseCtx, sessions, logger)

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true
	router.Setup(e, router.Deps{
		Logger:         logger,
		APIKey:         cfg.API.Key,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AgentPath:      cfg.Agent.Path,
		Jobs:           api.NewJobHandler(scheduler, store, logger),
		Agents:         api.NewAgentHandler(registry),
		AgentSocket:    agentSocket,
	})
	if cfg.API.Key == "" {
		logger.Warn("API_KEY is empty, REST endpoints will reject every request")
	}

	// --- Cron Scheduler ---
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting backuphub server", zap.String("addr", addr), zap.String("agent_path", cfg.Agent.Path))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Close agent sessions; each marks its computer offline.
	cancelSessions()
	agentSocket.Wait()

	logger.Info("Server exited")
}

func newLogger(env, level string) *zap.Logger {
	var zcfg zap.Config
	if env == "development" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(logger *zap.Logger) error {
	dbCfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return err
	}
	db, err := config.NewDatabase(dbCfg)
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db); err != nil {
		return err
	}
	logger.Info("Schema migration completed", zap.String("driver", dbCfg.Driver))
	return nil
}
