package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mrnjifanda/jifijs-sub000/internal/audit"
	"github.com/mrnjifanda/jifijs-sub000/internal/version"
)

// Handler holds the HTTP handlers.
type Handler struct {
	pipeline *audit.Pipeline
}

// NewHandler creates a handler around the audit pipeline.
func NewHandler(pipeline *audit.Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// Stats handles GET /admin/api/v1/audit/stats.
func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.pipeline.Stats(c.Request().Context()))
}

// Cleanup handles POST /admin/api/v1/audit/cleanup?days=N. days defaults to
// the configured retention threshold.
func (h *Handler) Cleanup(c echo.Context) error {
	days := h.pipeline.Config().RetentionDays
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "days must be a non-negative integer",
			})
		}
		days = parsed
	}

	deleted, err := h.pipeline.Cleanup(c.Request().Context(), days)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, map[string]int{"deleted_files": deleted})
}

// Logs handles GET /admin/api/v1/audit/logs with limit/offset pagination and
// optional action, entity and status_code filters.
func (h *Handler) Logs(c echo.Context) error {
	store := h.pipeline.Store()
	if store == nil {
		return c.JSON(http.StatusNotImplemented, map[string]string{
			"error": "record store is disabled",
		})
	}

	params := audit.ListParams{
		Action: c.QueryParam("action"),
		Entity: c.QueryParam("entity"),
	}
	if raw := c.QueryParam("status_code"); raw != "" {
		code, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "status_code must be an integer",
			})
		}
		params.StatusCode = &code
	}
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			params.Limit = limit
		}
	}
	if raw := c.QueryParam("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			params.Offset = offset
		}
	}

	result, err := store.List(c.Request().Context(), params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, result)
}
