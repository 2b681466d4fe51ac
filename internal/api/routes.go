package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/websocket"
	"github.com/satriahrh/arunika/voiceclient/usecase"
)

// VoiceClient is the facade surface the control API drives.
type VoiceClient interface {
	Connect(ctx context.Context, rawURL, language string) error
	Disconnect(ctx context.Context) error
	StartSession(ctx context.Context) error
	SetSessionID(ctx context.Context, id string) error
	Synthesize(ctx context.Context, req usecase.SynthesisRequest) error
	ToggleRecording(ctx context.Context) (bool, error)
	SetRateLimit(ctx context.Context, cfg entities.RateLimitConfig) (entities.RateLimitConfig, error)
	ClearLog(ctx context.Context) error
	ExportLog(ctx context.Context) (string, error)
	ClearAudio(ctx context.Context) error
	Snapshot(ctx context.Context) (entities.Snapshot, error)
	Log(ctx context.Context) ([]entities.LogEntry, error)
}

const (
	defaultExportsLimit = 20
	maxExportsLimit     = 100
)

// Defaults fill in connect requests that omit fields.
type Defaults struct {
	URL      string
	Language string
}

type handler struct {
	client   VoiceClient
	history  repositories.LogHistory
	hub      *websocket.Hub
	defaults Defaults
	logger   *zap.Logger
}

// InitRoutes initializes all API routes. history may be nil when exports are
// not archived.
func InitRoutes(e *echo.Echo, client VoiceClient, history repositories.LogHistory, hub *websocket.Hub, defaults Defaults, logger *zap.Logger) {
	h := &handler{client: client, history: history, hub: hub, defaults: defaults, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voiceclient",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/status", h.status)
	v1.POST("/connect", h.connect)
	v1.POST("/disconnect", h.disconnect)

	v1.POST("/session/start", h.startSession)
	v1.PUT("/session/id", h.setSessionID)

	v1.POST("/synthesize", h.synthesize)
	v1.POST("/recording/toggle", h.toggleRecording)
	v1.PUT("/rate-limit", h.setRateLimit)

	v1.GET("/log", h.log)
	v1.POST("/log/clear", h.clearLog)
	v1.POST("/log/export", h.exportLog)
	v1.GET("/log/exports", h.listExports)
	v1.POST("/audio/clear", h.clearAudio)

	// Snapshot stream for UIs
	e.GET("/ws/state", h.observe)
}

func (h *handler) status(c echo.Context) error {
	snapshot, err := h.client.Snapshot(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (h *handler) connect(c echo.Context) error {
	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, err)
	}
	if req.URL == "" {
		req.URL = h.defaults.URL
	}
	if req.Language == "" {
		req.Language = h.defaults.Language
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "url is required",
		})
	}

	if err := h.client.Connect(c.Request().Context(), req.URL, req.Language); err != nil {
		return h.fail(c, err)
	}
	return h.status(c)
}

func (h *handler) disconnect(c echo.Context) error {
	if err := h.client.Disconnect(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return h.status(c)
}

func (h *handler) startSession(c echo.Context) error {
	if err := h.client.StartSession(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return h.status(c)
}

func (h *handler) setSessionID(c echo.Context) error {
	var req SessionIDRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, err)
	}
	if err := h.client.SetSessionID(c.Request().Context(), req.SessionID); err != nil {
		return h.fail(c, err)
	}
	return h.status(c)
}

func (h *handler) synthesize(c echo.Context) error {
	var req SynthesizeRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, err)
	}
	err := h.client.Synthesize(c.Request().Context(), usecase.SynthesisRequest{
		Text:  req.Text,
		Voice: req.Voice,
		Speed: req.Speed,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *handler) toggleRecording(c echo.Context) error {
	recording, err := h.client.ToggleRecording(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, RecordingResponse{Recording: recording})
}

func (h *handler) setRateLimit(c echo.Context) error {
	var req RateLimitRequest
	if err := c.Bind(&req); err != nil {
		return h.badRequest(c, err)
	}
	applied, err := h.client.SetRateLimit(c.Request().Context(), entities.RateLimitConfig{
		CaptureIntervalMs: req.CaptureIntervalMs,
		ChunkDurationMs:   req.ChunkDurationMs,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, applied)
}

func (h *handler) log(c echo.Context) error {
	entries, err := h.client.Log(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	if entries == nil {
		entries = []entities.LogEntry{}
	}
	return c.JSON(http.StatusOK, LogResponse{Entries: entries})
}

func (h *handler) clearLog(c echo.Context) error {
	if err := h.client.ClearLog(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) exportLog(c echo.Context) error {
	filename, err := h.client.ExportLog(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ExportResponse{Filename: filename})
}

func (h *handler) listExports(c echo.Context) error {
	if h.history == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "archive_disabled",
			Message: "Log exports are not archived",
		})
	}

	limit := int64(defaultExportsLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
			})
		}
		limit = min(n, maxExportsLimit)
	}

	exports, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return h.fail(c, err)
	}
	if exports == nil {
		exports = []entities.LogExport{}
	}
	return c.JSON(http.StatusOK, ExportsResponse{Exports: exports})
}

func (h *handler) clearAudio(c echo.Context) error {
	if err := h.client.ClearAudio(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// observe streams snapshots over a websocket, starting with the current one.
func (h *handler) observe(c echo.Context) error {
	snapshot, err := h.client.Snapshot(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return websocket.HandleObserver(h.hub, c, snapshot, h.logger)
}

func (h *handler) badRequest(c echo.Context, err error) error {
	h.logger.Warn("Failed to bind request", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: "Invalid request format",
	})
}

// fail maps facade errors onto HTTP statuses.
func (h *handler) fail(c echo.Context, err error) error {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		status, code = http.StatusConflict, "not_connected"
	case errors.Is(err, domain.ErrInvalidURL):
		status, code = http.StatusBadRequest, "invalid_url"
	case errors.Is(err, domain.ErrEmptyText):
		status, code = http.StatusBadRequest, "empty_text"
	case errors.Is(err, domain.ErrClientClosed):
		status, code = http.StatusServiceUnavailable, "client_closed"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		h.logger.Info("Request rejected", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}
