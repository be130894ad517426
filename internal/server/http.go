// Package server provides the HTTP server hosting the capture middleware and
// the operator endpoints of the audit pipeline.
package server

import (
	"context"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrnjifanda/jifijs-sub000/internal/audit"
)

// Server wraps the Echo server.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options.
type Config struct {
	// MasterKey guards the admin endpoints when non-empty.
	MasterKey string
	// MetricsEnabled exposes the Prometheus endpoint.
	MetricsEnabled bool
	// MetricsEndpoint is the metrics path (default: /metrics).
	MetricsEndpoint string
}

// New creates the HTTP server around an audit pipeline.
func New(pipeline *audit.Pipeline, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true

	handler := NewHandler(pipeline)

	// Global middleware stack (order matters): recovery first, then the
	// upstream identity headers, then audit capture around every route.
	e.Use(middleware.Recover())
	e.Use(IdentityMiddleware())
	e.Use(audit.Middleware(pipeline))

	// Public routes
	e.GET("/health", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize to prevent traversal tricks in configured paths.
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	// Admin API (master-key guarded when configured)
	admin := e.Group("/admin/api/v1")
	if cfg != nil && cfg.MasterKey != "" {
		admin.Use(AuthMiddleware(cfg.MasterKey))
	}
	admin.GET("/audit/stats", handler.Stats)
	admin.POST("/audit/cleanup", handler.Cleanup)
	admin.GET("/audit/logs", handler.Logs)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address. Blocks until the server
// stops.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler so the server works with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
