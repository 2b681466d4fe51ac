package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

type sentFrame struct {
	frameType repositories.FrameType
	payload   []byte
}

type fakeSocket struct {
	handler repositories.TransportHandler

	mu     sync.Mutex
	frames []sentFrame
	closes int
}

func (s *fakeSocket) Send(frameType repositories.FrameType, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, sentFrame{frameType: frameType, payload: payload})
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSocket) sent() []sentFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentFrame(nil), s.frames...)
}

func (s *fakeSocket) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *fakeSocket) framesOf(frameType repositories.FrameType) []sentFrame {
	var out []sentFrame
	for _, f := range s.sent() {
		if f.frameType == frameType {
			out = append(out, f)
		}
	}
	return out
}

type fakeTransport struct {
	mu        sync.Mutex
	endpoints []string
	sockets   []*fakeSocket
}

func (t *fakeTransport) Open(ctx context.Context, endpoint string, handler repositories.TransportHandler) (repositories.Socket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	socket := &fakeSocket{handler: handler}
	t.endpoints = append(t.endpoints, endpoint)
	t.sockets = append(t.sockets, socket)
	return socket, nil
}

func (t *fakeTransport) opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sockets)
}

func (t *fakeTransport) last() *fakeSocket {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sockets) == 0 {
		return nil
	}
	return t.sockets[len(t.sockets)-1]
}

// fakeStream hands out whatever the test pushes into chunks.
type fakeStream struct {
	chunks chan []byte

	mu      sync.Mutex
	stopped int
}

func (s *fakeStream) ReadSlice(ctx context.Context, d time.Duration) ([]byte, error) {
	select {
	case chunk, ok := <-s.chunks:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return nil
}

func (s *fakeStream) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeMedia struct {
	stream *fakeStream
	deny   bool

	mu       sync.Mutex
	acquired int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{stream: &fakeStream{chunks: make(chan []byte, 8)}}
}

func (m *fakeMedia) Acquire(ctx context.Context, c repositories.MediaConstraints) (repositories.MediaStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquired++
	if m.deny {
		return nil, errors.New("permission denied by user")
	}
	return m.stream, nil
}

func (m *fakeMedia) acquisitions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired
}

type recordingSink struct {
	mu      sync.Mutex
	entries []entities.LogEntry
}

func (s *recordingSink) Log(entry entities.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type fakeExporter struct {
	filename string
	content  string
}

func (e *fakeExporter) Export(ctx context.Context, filename, content string) error {
	e.filename = filename
	e.content = content
	return nil
}

type fakeAudioSink struct {
	mu     sync.Mutex
	played [][]byte
	format repositories.AudioFormat
}

func (s *fakeAudioSink) Play(ctx context.Context, audio []byte, format repositories.AudioFormat) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, audio)
	s.format = format
	return "/tmp/response.wav", nil
}

func (s *fakeAudioSink) plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.played)
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func hasLog(entries []entities.LogEntry, substr string, severity entities.Severity) bool {
	for _, e := range entries {
		if e.Severity == severity && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
