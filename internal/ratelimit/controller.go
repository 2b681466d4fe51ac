// Package ratelimit keeps outbound audio inside server-enforced bounds.
//
// The Controller is the only writer of the timing parameters. The capture
// loop reads them at every slice boundary, so a backoff takes effect on the
// very next slice.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

// Backoff step sizes, in milliseconds.
const (
	CaptureIntervalStepMs = 200
	ChunkDurationStepMs   = 100
)

// Controller holds the current capture interval and chunk duration.
type Controller struct {
	mu     sync.RWMutex
	config entities.RateLimitConfig
	logger *zap.Logger
}

// NewController creates a controller starting at initial, clamped into bounds.
func NewController(initial entities.RateLimitConfig, logger *zap.Logger) *Controller {
	return &Controller{
		config: initial.Clamp(),
		logger: logger,
	}
}

// Current returns the current timing parameters.
func (c *Controller) Current() entities.RateLimitConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

// ChunkDuration is read by the capture loop when a slice starts.
func (c *Controller) ChunkDuration() time.Duration {
	return c.Current().ChunkDuration()
}

// CaptureInterval is the minimum spacing between slice starts.
func (c *Controller) CaptureInterval() time.Duration {
	return c.Current().CaptureInterval()
}

// Backoff widens both parameters by one saturating step. It reports whether
// anything changed; once both values sit at the ceiling further signals are
// absorbed.
func (c *Controller) Backoff() (entities.RateLimitConfig, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.config
	if prev.AtCeiling() {
		c.logger.Debug("Rate limit backoff absorbed at ceiling",
			zap.Int("captureIntervalMs", prev.CaptureIntervalMs),
			zap.Int("chunkDurationMs", prev.ChunkDurationMs))
		return prev, false
	}

	next := entities.RateLimitConfig{
		CaptureIntervalMs: min(prev.CaptureIntervalMs+CaptureIntervalStepMs, entities.MaxCaptureIntervalMs),
		ChunkDurationMs:   min(prev.ChunkDurationMs+ChunkDurationStepMs, entities.MaxChunkDurationMs),
	}
	c.config = next

	c.logger.Info("Rate limit backoff applied",
		zap.Int("captureIntervalMs", next.CaptureIntervalMs),
		zap.Int("chunkDurationMs", next.ChunkDurationMs))
	return next, true
}

// Reset is the explicit operator override and the only way to lower the
// parameters. Values are clamped into bounds.
func (c *Controller) Reset(cfg entities.RateLimitConfig) entities.RateLimitConfig {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.config = cfg.Clamp()
	c.logger.Info("Rate limit reset by operator",
		zap.Int("captureIntervalMs", c.config.CaptureIntervalMs),
		zap.Int("chunkDurationMs", c.config.ChunkDurationMs))
	return c.config
}
