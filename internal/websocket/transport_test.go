package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

type received struct {
	frameType repositories.FrameType
	payload   []byte
}

// recordingHandler captures transport callbacks on channels.
type recordingHandler struct {
	opened   chan struct{}
	messages chan received
	closed   chan int
	errs     chan error

	mu       sync.Mutex
	finished int
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		opened:   make(chan struct{}, 1),
		messages: make(chan received, 16),
		closed:   make(chan int, 2),
		errs:     make(chan error, 2),
	}
}

func (h *recordingHandler) OnOpen() { h.opened <- struct{}{} }

func (h *recordingHandler) OnMessage(frameType repositories.FrameType, payload []byte) {
	h.messages <- received{frameType: frameType, payload: payload}
}

func (h *recordingHandler) OnClose(code int, reason string) {
	h.mu.Lock()
	h.finished++
	h.mu.Unlock()
	h.closed <- code
}

func (h *recordingHandler) OnError(err error) {
	h.mu.Lock()
	h.finished++
	h.mu.Unlock()
	h.errs <- err
}

// fakeVoiceServer echoes text frames back and answers binary frames with
// their length as a text frame.
func fakeVoiceServer(t *testing.T, onConnect func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if onConnect != nil {
			onConnect(conn)
		}
		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"binary","size":`+strconv.Itoa(len(payload))+`}`))
				continue
			}
			conn.WriteMessage(mt, payload)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func TestTransport_OpenSendReceive(t *testing.T) {
	srv := fakeVoiceServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected","services":["stt","tts"]}`))
	})
	transport := NewTransport(nil, zap.NewNop())
	handler := newRecordingHandler()

	socket, err := transport.Open(context.Background(), wsURL(srv), handler)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer socket.Close()

	waitFor(t, handler.opened, "open")
	greeting := waitFor(t, handler.messages, "greeting")
	if greeting.frameType != repositories.TextFrame {
		t.Errorf("Expected text frame, got %v", greeting.frameType)
	}

	if err := socket.Send(repositories.TextFrame, []byte(`{"type":"start"}`)); err != nil {
		t.Fatalf("Send(text) error = %v", err)
	}
	echo := waitFor(t, handler.messages, "echo")
	if string(echo.payload) != `{"type":"start"}` {
		t.Errorf("Unexpected echo: %s", echo.payload)
	}

	if err := socket.Send(repositories.BinaryFrame, make([]byte, 320)); err != nil {
		t.Fatalf("Send(binary) error = %v", err)
	}
	ack := waitFor(t, handler.messages, "binary ack")
	if string(ack.payload) != `{"type":"binary","size":320}` {
		t.Errorf("Expected binary frame to arrive unwrapped, got %s", ack.payload)
	}
}

func TestTransport_CloseReportsOnce(t *testing.T) {
	srv := fakeVoiceServer(t, nil)
	transport := NewTransport(nil, zap.NewNop())
	handler := newRecordingHandler()

	socket, _ := transport.Open(context.Background(), wsURL(srv), handler)
	waitFor(t, handler.opened, "open")

	socket.Close()
	socket.Close()

	code := waitFor(t, handler.closed, "close")
	if code != websocket.CloseNormalClosure {
		t.Errorf("Expected normal closure, got %d", code)
	}

	if err := socket.Send(repositories.TextFrame, []byte("late")); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected after close, got %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.finished != 1 {
		t.Errorf("Expected exactly one terminal callback, got %d", handler.finished)
	}
}

func TestTransport_ServerClose(t *testing.T) {
	srv := fakeVoiceServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server restart"))
	})
	handler := newRecordingHandler()

	NewTransport(nil, zap.NewNop()).Open(context.Background(), wsURL(srv), handler)

	code := waitFor(t, handler.closed, "server close")
	if code != websocket.CloseGoingAway {
		t.Errorf("Expected close code %d, got %d", websocket.CloseGoingAway, code)
	}
}

func TestTransport_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	handler := newRecordingHandler()

	socket, err := NewTransport(nil, zap.NewNop()).Open(context.Background(), wsURL(srv), handler)
	if err != nil {
		t.Fatalf("Open() should defer dial failures to OnError, got %v", err)
	}

	got := waitFor(t, handler.errs, "dial error")
	if !errors.Is(got, domain.ErrTransport) {
		t.Errorf("Expected ErrTransport, got %v", got)
	}
	if err := socket.Send(repositories.TextFrame, []byte("x")); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected after failed dial, got %v", err)
	}
}

func TestTransport_SendsHeader(t *testing.T) {
	gotAuth := make(chan string, 1)
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer token-1")
	NewTransport(header, zap.NewNop()).Open(context.Background(), wsURL(srv), newRecordingHandler())

	if auth := waitFor(t, gotAuth, "handshake"); auth != "Bearer token-1" {
		t.Errorf("Expected Authorization header, got %q", auth)
	}
}
