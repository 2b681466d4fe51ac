package websocket

import "encoding/json"

// EventKind enumerates the closed set of inbound event variants.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindConnected
	KindTranscript
	KindAudioChunk
	KindError
	KindSessionStarted
	KindSynthesisStarted
)

func (k EventKind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindTranscript:
		return "transcript"
	case KindAudioChunk:
		return "audio_chunk"
	case KindError:
		return "error"
	case KindSessionStarted:
		return "session_started"
	case KindSynthesisStarted:
		return "synthesis_started"
	default:
		return "unknown"
	}
}

// Event is one classified inbound frame.
type Event interface {
	Kind() EventKind
}

// ConnectedEvent confirms the connection and lists the server's services.
// RateLimiting is nil when the server did not announce a rate limit policy.
type ConnectedEvent struct {
	Services     []string
	RateLimiting json.RawMessage
}

// HasRateLimiting reports whether the server acknowledged rate limiting.
func (e *ConnectedEvent) HasRateLimiting() bool { return e.RateLimiting != nil }

// TranscriptEvent carries recognized speech.
type TranscriptEvent struct {
	Text string
}

// AudioChunkEvent carries one synthesized audio response. Payload keeps the
// raw `data` object so its shape can be validated field by field.
type AudioChunkEvent struct {
	SessionID   string
	Sequence    int
	AudioBase64 string
	SampleRate  int
	Channels    int
	SampleWidth int
	Payload     map[string]json.RawMessage
}

// ErrorEvent is a server-reported error. RateLimited marks throttling signals.
type ErrorEvent struct {
	Message     string
	RateLimited bool
}

// SessionStartedEvent acknowledges a start message.
type SessionStartedEvent struct {
	SessionID string
}

// SynthesisStartedEvent acknowledges a synthesize message.
type SynthesisStartedEvent struct {
	Text string
}

// UnknownEvent is any frame this client does not understand. It is kept for
// forward compatibility and otherwise ignored.
type UnknownEvent struct {
	Type string
}

func (*ConnectedEvent) Kind() EventKind        { return KindConnected }
func (*TranscriptEvent) Kind() EventKind       { return KindTranscript }
func (*AudioChunkEvent) Kind() EventKind       { return KindAudioChunk }
func (*ErrorEvent) Kind() EventKind            { return KindError }
func (*SessionStartedEvent) Kind() EventKind   { return KindSessionStarted }
func (*SynthesisStartedEvent) Kind() EventKind { return KindSynthesisStarted }
func (*UnknownEvent) Kind() EventKind          { return KindUnknown }
