package entities

import (
	"fmt"
	"time"
)

// Rate limit bounds, in milliseconds.
const (
	MinCaptureIntervalMs = 200
	MaxCaptureIntervalMs = 2000
	MinChunkDurationMs   = 100
	MaxChunkDurationMs   = 1000

	DefaultCaptureIntervalMs = 500
	DefaultChunkDurationMs   = 250
)

// RateLimitConfig holds the outbound audio timing parameters.
type RateLimitConfig struct {
	CaptureIntervalMs int `json:"capture_interval_ms"`
	ChunkDurationMs   int `json:"chunk_duration_ms"`
}

// DefaultRateLimitConfig returns the starting timing parameters.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		CaptureIntervalMs: DefaultCaptureIntervalMs,
		ChunkDurationMs:   DefaultChunkDurationMs,
	}
}

// Clamp returns a copy with both values forced into their bounds.
func (c RateLimitConfig) Clamp() RateLimitConfig {
	return RateLimitConfig{
		CaptureIntervalMs: clamp(c.CaptureIntervalMs, MinCaptureIntervalMs, MaxCaptureIntervalMs),
		ChunkDurationMs:   clamp(c.ChunkDurationMs, MinChunkDurationMs, MaxChunkDurationMs),
	}
}

// AtCeiling reports whether both values are at their maximum.
func (c RateLimitConfig) AtCeiling() bool {
	return c.CaptureIntervalMs >= MaxCaptureIntervalMs && c.ChunkDurationMs >= MaxChunkDurationMs
}

// CaptureInterval returns the capture interval as a duration.
func (c RateLimitConfig) CaptureInterval() time.Duration {
	return time.Duration(c.CaptureIntervalMs) * time.Millisecond
}

// ChunkDuration returns the chunk duration as a duration.
func (c RateLimitConfig) ChunkDuration() time.Duration {
	return time.Duration(c.ChunkDurationMs) * time.Millisecond
}

func (c RateLimitConfig) String() string {
	return fmt.Sprintf("Interval=%dms, ChunkSize=%dms", c.CaptureIntervalMs, c.ChunkDurationMs)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Counters are monotonically increasing for the lifetime of a client and are
// reset only by an explicit clear.
type Counters struct {
	MessagesSent     int `json:"messages_sent"`
	MessagesReceived int `json:"messages_received"`
	AudioChunksSent  int `json:"audio_chunks_sent"`
	ResponseCount    int `json:"response_count"`
}

// Severity tags a log entry.
type Severity string

const (
	SeverityDebug      Severity = "debug"
	SeveritySent       Severity = "sent"
	SeverityReceived   Severity = "received"
	SeverityTranscript Severity = "transcript"
	SeverityError      Severity = "error"
)

// LogEntry is one line of the protocol message log.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}

// Line renders the entry the way exported logs present it.
func (e LogEntry) Line() string {
	return fmt.Sprintf("[%s] %s", e.Timestamp.Format("15:04:05"), e.Message)
}

// LogExport is an archived message log export.
type LogExport struct {
	ID         string    `json:"id" bson:"-"`
	Filename   string    `json:"filename" bson:"filename"`
	DeviceID   string    `json:"device_id,omitempty" bson:"device_id,omitempty"`
	Content    string    `json:"content" bson:"content"`
	LineCount  int       `json:"line_count" bson:"line_count"`
	ExportedAt time.Time `json:"exported_at" bson:"exported_at"`
}
