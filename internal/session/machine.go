// Package session tracks the connection and session lifecycle of the client.
package session

import (
	"errors"
	"fmt"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

// ErrInvalidTransition is returned when an event does not apply to the
// current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is the lifecycle state of the client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateSessionActive
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSessionActive:
		return "session_active"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// IsOpen reports whether frames may be sent in this state.
func (s State) IsOpen() bool {
	return s == StateConnected || s == StateSessionActive
}

var transitions = map[State][]State{
	StateDisconnected:  {StateConnecting},
	StateConnecting:    {StateConnected, StateDisconnected, StateError},
	StateConnected:     {StateSessionActive, StateDisconnected, StateError},
	StateSessionActive: {StateSessionActive, StateDisconnected, StateError},
	StateError:         {StateConnecting, StateDisconnected},
}

// Machine owns the lifecycle state and the session identity. It is not safe
// for concurrent use; the client's dispatch loop is its only caller.
type Machine struct {
	state   State
	session *entities.Session
}

// NewMachine creates a disconnected machine holding a freshly generated session.
func NewMachine(language string) *Machine {
	return &Machine{
		state:   StateDisconnected,
		session: entities.NewSession(language),
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Session returns a copy of the session.
func (m *Machine) Session() entities.Session {
	return *m.session
}

// SetLanguage selects the locale used by subsequent start messages.
func (m *Machine) SetLanguage(language string) {
	if language != "" {
		m.session.Language = language
	}
}

// SetSessionID overwrites the session id with an operator-supplied value.
func (m *Machine) SetSessionID(id string) {
	m.session.SetID(id)
}

// BeginConnect moves to Connecting.
func (m *Machine) BeginConnect() error {
	return m.transition(StateConnecting)
}

// Opened records a successful handshake.
func (m *Machine) Opened() error {
	return m.transition(StateConnected)
}

// Closed records socket closure. It applies from any state.
func (m *Machine) Closed() {
	m.state = StateDisconnected
	m.session.Deactivate()
}

// Failed records a transport error. It applies from any state.
func (m *Machine) Failed() {
	m.state = StateError
	m.session.Deactivate()
}

// StartSession activates the session, generating an id if none is set, and
// returns the id to announce. It fails with domain.ErrNotConnected unless the
// socket is open.
func (m *Machine) StartSession() (string, error) {
	if !m.state.IsOpen() {
		return "", fmt.Errorf("start session in state %s: %w", m.state, domain.ErrNotConnected)
	}
	id := m.session.EnsureID()
	m.session.Activate()
	m.state = StateSessionActive
	return id, nil
}

func (m *Machine) transition(to State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == to {
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.state, to)
}
