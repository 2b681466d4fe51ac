package websocket

import (
	"bytes"
	"encoding/json"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

type jsonKind int

const (
	kindString jsonKind = iota
	kindNumber
)

// requiredAudioFields lists the audio payload fields in reporting order.
var requiredAudioFields = []struct {
	name string
	kind jsonKind
}{
	{FieldSessionID, kindString},
	{FieldCount, kindNumber},
	{FieldAudioBytesToPlay, kindString},
	{FieldSampleRate, kindNumber},
	{FieldChannels, kindNumber},
	{FieldSampleWidth, kindNumber},
}

// ResponseValidator checks inbound audio payloads against the shape and the
// audio format this client requires.
type ResponseValidator struct{}

// NewResponseValidator creates a new response validator
func NewResponseValidator() *ResponseValidator {
	return &ResponseValidator{}
}

// Validate reports missing fields and, per field, whether the JSON type
// matches. Format compliance is a separate check, see CheckFormat.
func (v *ResponseValidator) Validate(payload map[string]json.RawMessage) entities.ValidationResult {
	result := entities.ValidationResult{
		MissingFields: []string{},
		TypeMatches:   make(map[string]bool, len(requiredAudioFields)),
	}

	for _, field := range requiredAudioFields {
		raw, ok := payload[field.name]
		if !ok {
			result.MissingFields = append(result.MissingFields, field.name)
		}
		result.TypeMatches[field.name] = ok && matchesKind(raw, field.kind)
	}

	result.IsValid = len(result.MissingFields) == 0
	return result
}

// CheckFormat compares the payload against 8000 Hz, mono, 16-bit. The three
// comparisons are independent so a complete payload can still be non-compliant.
func (v *ResponseValidator) CheckFormat(payload map[string]json.RawMessage) entities.FormatCompliance {
	return entities.FormatCompliance{
		SampleRate:  numberEquals(payload, FieldSampleRate, domain.RequiredSampleRate),
		Channels:    numberEquals(payload, FieldChannels, domain.RequiredChannels),
		SampleWidth: numberEquals(payload, FieldSampleWidth, domain.RequiredSampleWidth),
	}
}

// HasBase64Audio reports whether audio_bytes_to_play is a non-empty string.
func (v *ResponseValidator) HasBase64Audio(payload map[string]json.RawMessage) bool {
	s, ok := stringField(payload, FieldAudioBytesToPlay)
	return ok && s != ""
}

func matchesKind(raw json.RawMessage, kind jsonKind) bool {
	v := bytes.TrimSpace(raw)
	switch kind {
	case kindString:
		return isJSONString(v)
	case kindNumber:
		return isJSONNumber(v)
	}
	return false
}

func numberEquals(payload map[string]json.RawMessage, key string, want float64) bool {
	got, ok := numberField(payload, key)
	return ok && got == want
}
