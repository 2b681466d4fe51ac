package domain

import "errors"

// Error taxonomy of the voice client. Every failure is caught at the boundary
// where it occurs and surfaced to the log sink; callers match with errors.Is.
var (
	ErrNotConnected      = errors.New("websocket not connected")
	ErrInvalidURL        = errors.New("invalid websocket url")
	ErrMalformedFrame    = errors.New("malformed frame")
	ErrBadEncoding       = errors.New("bad base64 encoding")
	ErrMediaAccessDenied = errors.New("media access denied")
	ErrRateLimited       = errors.New("rate limited by server")
	ErrTransport         = errors.New("transport error")

	ErrEmptyText    = errors.New("text to synthesize is empty")
	ErrClientClosed = errors.New("voice client is not running")
)
