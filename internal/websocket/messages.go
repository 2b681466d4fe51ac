package websocket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/satriahrh/arunika/voiceclient/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeStart            MessageType = "start"
	MessageTypeSynthesize       MessageType = "synthesize"
	MessageTypeConnected        MessageType = "connected"
	MessageTypeTranscript       MessageType = "transcript"
	MessageTypeError            MessageType = "error"
	MessageTypeSessionStarted   MessageType = "session_started"
	MessageTypeSynthesisStarted MessageType = "synthesis_started"
)

// Envelope and audio payload field names.
const (
	fieldType         = "type"
	fieldData         = "data"
	fieldError        = "error"
	fieldServices     = "services"
	fieldRateLimiting = "rate_limiting"
	fieldText         = "text"

	FieldSessionID        = "session_id"
	FieldCount            = "count"
	FieldAudioBytesToPlay = "audio_bytes_to_play"
	FieldSampleRate       = "sample_rate"
	FieldChannels         = "channels"
	FieldSampleWidth      = "sample_width"
)

// rateLimitMarker identifies server errors that signal throttling.
const rateLimitMarker = "Rate limit"

// CreateStartMessage creates the control message that opens a session
func CreateStartMessage(sessionID, language string) *domain.StartMessage {
	return &domain.StartMessage{
		Type:     string(MessageTypeStart),
		UUID:     sessionID,
		Language: language,
	}
}

// CreateSynthesizeMessage creates a synthesis request
func CreateSynthesizeMessage(text, voice, language string, speed float64) *domain.SynthesizeMessage {
	return &domain.SynthesizeMessage{
		Type:     string(MessageTypeSynthesize),
		Text:     text,
		Voice:    voice,
		Language: language,
		Speed:    speed,
	}
}

// EncodeControl serializes a control message into a text frame payload.
func EncodeControl(message interface{}) ([]byte, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("encode control message: %w", err)
	}
	return payload, nil
}

// DecodeAudio converts a base64 audio payload into raw bytes using the
// standard alphabet. Whitespace is ignored and padding is optional; any other
// character outside the alphabet fails with domain.ErrBadEncoding.
func DecodeAudio(encoded string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			return -1
		}
		return r
	}, encoded)

	enc := base64.StdEncoding
	if !strings.HasSuffix(cleaned, "=") && len(cleaned)%4 != 0 {
		enc = base64.RawStdEncoding
	}

	audio, err := enc.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadEncoding, err)
	}
	return audio, nil
}
