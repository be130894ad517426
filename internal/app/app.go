// Package app provides the main application struct for centralized dependency
// management and lifecycle control.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/mrnjifanda/jifijs-sub000/config"
	"github.com/mrnjifanda/jifijs-sub000/internal/audit"
	"github.com/mrnjifanda/jifijs-sub000/internal/server"
)

// App wires the audit pipeline into the HTTP server and owns the shutdown
// order of both.
type App struct {
	config *config.Config
	audit  *audit.Result
	server *server.Server

	stopCleanup chan struct{}

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates an App with all dependencies initialized. The caller must call
// Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	auditResult, err := audit.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit pipeline: %w", err)
	}

	app := &App{
		config:      cfg,
		audit:       auditResult,
		stopCleanup: make(chan struct{}),
	}

	serverCfg := &server.Config{
		MasterKey:       cfg.Server.MasterKey,
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
	}
	app.server = server.New(auditResult.Pipeline, serverCfg)

	app.logStartupInfo()
	return app, nil
}

// Pipeline returns the audit pipeline.
func (a *App) Pipeline() *audit.Pipeline {
	return a.audit.Pipeline
}

// Start launches the pipeline scheduler, the retention loop and the HTTP
// server. Blocks until the server stops.
func (a *App) Start(addr string) error {
	a.audit.Pipeline.Start()

	if a.config.Audit.RetentionDays > 0 {
		go a.audit.Pipeline.RunCleanupLoop(a.stopCleanup)
	}

	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown tears down components in dependency order: the HTTP server stops
// accepting requests, the pipeline stops ticking and drains its queue, then
// storage resources close. Idempotent; aggregates failures into one error.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	close(a.stopCleanup)

	if a.audit != nil {
		if err := a.audit.Pipeline.Stop(ctx); err != nil {
			slog.Error("pipeline drain error", "error", err)
			errs = append(errs, fmt.Errorf("pipeline stop: %w", err))
		}
		if err := a.audit.Close(); err != nil {
			slog.Error("audit close error", "error", err)
			errs = append(errs, fmt.Errorf("audit close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the effective configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	if cfg.Server.MasterKey == "" {
		slog.Warn("MASTER_KEY not set - admin endpoints are unauthenticated")
	} else {
		slog.Info("admin authentication enabled", "mode", "master_key")
	}

	slog.Info("audit pipeline configured",
		"queue_capacity", cfg.Audit.QueueCapacity,
		"batch_size", cfg.Audit.BatchSize,
		"flush_interval", cfg.Audit.FlushInterval,
		"logs_dir", cfg.Audit.LogsDir,
		"retention_days", cfg.Audit.RetentionDays,
		"db_enabled", cfg.Audit.DBEnabled,
	)

	if cfg.Audit.DBEnabled {
		slog.Info("record store configured", "type", cfg.Storage.Type)
	} else {
		slog.Info("record store disabled, file sink only")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	}
}
