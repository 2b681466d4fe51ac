package api

import "github.com/satriahrh/arunika/voiceclient/domain/entities"

// ConnectRequest represents the request payload for opening a connection.
// Empty fields fall back to the configured defaults.
type ConnectRequest struct {
	URL      string `json:"url"`
	Language string `json:"language"`
}

// SessionIDRequest overwrites the session id used by the next start.
type SessionIDRequest struct {
	SessionID string `json:"session_id"`
}

// SynthesizeRequest represents the request payload for a synthesis.
type SynthesizeRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// RateLimitRequest resets the outbound audio timing.
type RateLimitRequest struct {
	CaptureIntervalMs int `json:"capture_interval_ms"`
	ChunkDurationMs   int `json:"chunk_duration_ms"`
}

// RecordingResponse reports the capture state after a toggle.
type RecordingResponse struct {
	Recording bool `json:"recording"`
}

// ExportResponse names the exported log file.
type ExportResponse struct {
	Filename string `json:"filename"`
}

// ExportsResponse lists archived log exports, newest first.
type ExportsResponse struct {
	Exports []entities.LogExport `json:"exports"`
}

// LogResponse carries the message log.
type LogResponse struct {
	Entries []entities.LogEntry `json:"entries"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
