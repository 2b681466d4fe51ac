package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/satriahrh/arunika/voiceclient/domain"
)

// Classify parses one inbound frame and maps it onto the closed event set.
// The first matching rule wins:
//
//  1. type "connected" with a rate_limiting field
//  2. a data object holding both session_id and audio_bytes_to_play,
//     regardless of type
//  3. type "transcript"
//  4. type "error" whose text contains "Rate limit"
//  5. everything else by type, falling back to UnknownEvent
//
// A frame that is not valid JSON fails with domain.ErrMalformedFrame.
func Classify(frame []byte) (Event, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(frame, &envelope); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// Valid JSON, but not an object.
			return &UnknownEvent{}, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedFrame, err)
	}
	if envelope == nil {
		return &UnknownEvent{}, nil
	}

	msgType, _ := stringField(envelope, fieldType)

	if MessageType(msgType) == MessageTypeConnected && truthy(envelope[fieldRateLimiting]) {
		return connectedEvent(envelope), nil
	}

	if data, ok := objectField(envelope, fieldData); ok &&
		truthy(data[FieldSessionID]) && truthy(data[FieldAudioBytesToPlay]) {
		return audioChunkEvent(data), nil
	}

	switch MessageType(msgType) {
	case MessageTypeTranscript:
		return &TranscriptEvent{Text: textField(envelope, fieldData)}, nil
	case MessageTypeError:
		message, _ := stringField(envelope, fieldError)
		return &ErrorEvent{
			Message:     message,
			RateLimited: strings.Contains(message, rateLimitMarker),
		}, nil
	case MessageTypeConnected:
		return connectedEvent(envelope), nil
	case MessageTypeSessionStarted:
		id, _ := stringField(envelope, FieldSessionID)
		return &SessionStartedEvent{SessionID: id}, nil
	case MessageTypeSynthesisStarted:
		text, _ := stringField(envelope, fieldText)
		return &SynthesisStartedEvent{Text: text}, nil
	default:
		return &UnknownEvent{Type: msgType}, nil
	}
}

func connectedEvent(envelope map[string]json.RawMessage) *ConnectedEvent {
	event := &ConnectedEvent{}
	if raw, ok := envelope[fieldServices]; ok {
		_ = json.Unmarshal(raw, &event.Services)
	}
	if truthy(envelope[fieldRateLimiting]) {
		event.RateLimiting = envelope[fieldRateLimiting]
	}
	return event
}

func audioChunkEvent(data map[string]json.RawMessage) *AudioChunkEvent {
	event := &AudioChunkEvent{Payload: data}
	event.SessionID, _ = stringField(data, FieldSessionID)
	event.AudioBase64, _ = stringField(data, FieldAudioBytesToPlay)
	if v, ok := numberField(data, FieldCount); ok {
		event.Sequence = int(v)
	}
	if v, ok := numberField(data, FieldSampleRate); ok {
		event.SampleRate = int(v)
	}
	if v, ok := numberField(data, FieldChannels); ok {
		event.Channels = int(v)
	}
	if v, ok := numberField(data, FieldSampleWidth); ok {
		event.SampleWidth = int(v)
	}
	return event
}

// truthy mirrors the loose presence test used by the protocol: a field counts
// only if it exists and is not null, false, zero or the empty string.
func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	switch string(v) {
	case "null", "false", `""`:
		return false
	}
	if isJSONNumber(v) {
		f, err := strconv.ParseFloat(string(v), 64)
		return err == nil && f != 0
	}
	return true
}

func stringField(m map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := m[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// textField returns a string field as-is and any other JSON value verbatim.
func textField(m map[string]json.RawMessage, key string) string {
	if s, ok := stringField(m, key); ok {
		return s
	}
	raw := bytes.TrimSpace(m[key])
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	return string(raw)
}

func numberField(m map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := m[key]
	if !ok || !isJSONNumber(bytes.TrimSpace(raw)) {
		return 0, false
	}
	f, err := strconv.ParseFloat(string(bytes.TrimSpace(raw)), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func objectField(m map[string]json.RawMessage, key string) (map[string]json.RawMessage, bool) {
	raw, ok := m[key]
	if !ok {
		return nil, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func isJSONNumber(v []byte) bool {
	if len(v) == 0 {
		return false
	}
	c := v[0]
	return c == '-' || (c >= '0' && c <= '9')
}

func isJSONString(v []byte) bool {
	return len(v) > 0 && v[0] == '"'
}
