package entities

import (
	"strings"

	"github.com/google/uuid"
)

// SessionStatus represents the status of a session
type SessionStatus string

const (
	SessionStatusNone   SessionStatus = "none"
	SessionStatusActive SessionStatus = "active"
)

// DefaultLanguage is used when no locale has been selected.
const DefaultLanguage = "en"

// Session is the client-side view of a voice interaction scope. It is created
// when the client is built, before any socket exists, and is never destroyed;
// an operator-supplied id simply overwrites the generated one.
type Session struct {
	ID       string        `json:"id"`
	Status   SessionStatus `json:"status"`
	Language string        `json:"language"`
}

// NewSessionID returns a random RFC 4122 version 4 identifier in canonical
// 8-4-4-4-12 form.
func NewSessionID() string {
	return uuid.NewString()
}

// NewSession creates an inactive session with a freshly generated id.
func NewSession(language string) *Session {
	if language == "" {
		language = DefaultLanguage
	}
	return &Session{
		ID:       NewSessionID(),
		Status:   SessionStatusNone,
		Language: language,
	}
}

// SetID overwrites the session id with an operator-supplied value.
func (s *Session) SetID(id string) {
	s.ID = strings.TrimSpace(id)
}

// EnsureID returns the current id, generating one first if it is blank.
func (s *Session) EnsureID() string {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		s.ID = NewSessionID()
	}
	return s.ID
}

// Activate marks the session as active under its current id.
func (s *Session) Activate() {
	s.Status = SessionStatusActive
}

// Deactivate drops the active flag; the id is kept.
func (s *Session) Deactivate() {
	s.Status = SessionStatusNone
}

// IsActive reports whether a start message has been sent for this session.
func (s Session) IsActive() bool {
	return s.Status == SessionStatusActive
}
