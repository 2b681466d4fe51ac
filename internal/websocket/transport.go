package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio responses

	// Time allowed for the peer to answer our close frame.
	closeGrace = time.Second

	sendBufferSize = 256
)

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Transport dials voice servers with gorilla/websocket.
type Transport struct {
	dialer *websocket.Dialer
	header http.Header
	logger *zap.Logger
}

var _ repositories.Transport = (*Transport)(nil)

// NewTransport creates a transport. header is sent with every handshake and
// may be nil.
func NewTransport(header http.Header, logger *zap.Logger) *Transport {
	return &Transport{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 45 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
		header: header,
		logger: logger,
	}
}

// Open starts dialing endpoint in the background and returns the socket
// handle immediately. ctx bounds the handshake only.
func (t *Transport) Open(ctx context.Context, endpoint string, handler repositories.TransportHandler) (repositories.Socket, error) {
	if handler == nil {
		return nil, errors.New("transport handler is required")
	}

	s := &Socket{
		send:       make(chan WriteData, sendBufferSize),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
		handler:    handler,
		logger:     t.logger.With(zap.String("endpoint", endpoint)),
	}
	go s.run(ctx, t.dialer, endpoint, t.header)

	return s, nil
}

// Socket is a single client connection with a dedicated write pump.
type Socket struct {
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	done       chan struct{}
	readerDone chan struct{}
	closeOnce  sync.Once
	finishOnce sync.Once

	handler repositories.TransportHandler
	logger  *zap.Logger
}

// Send queues a frame for the write pump. It fails instead of blocking when
// the socket is closed or the queue is full.
func (s *Socket) Send(frameType repositories.FrameType, payload []byte) error {
	var messageType int
	switch frameType {
	case repositories.TextFrame:
		messageType = websocket.TextMessage
	case repositories.BinaryFrame:
		messageType = websocket.BinaryMessage
	default:
		return fmt.Errorf("unsupported frame type %s", frameType.String())
	}

	select {
	case <-s.done:
		return domain.ErrNotConnected
	default:
	}

	select {
	case s.send <- WriteData{Type: messageType, Payload: payload}:
		return nil
	case <-s.done:
		return domain.ErrNotConnected
	default:
		return fmt.Errorf("%w: send buffer full", domain.ErrTransport)
	}
}

// Close starts an immediate close. It is safe to call more than once.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

func (s *Socket) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// finish reports the end of the socket's life exactly once.
func (s *Socket) finish(report func()) {
	s.finishOnce.Do(func() {
		s.Close()
		report()
	})
}

func (s *Socket) run(ctx context.Context, dialer *websocket.Dialer, endpoint string, header http.Header) {
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w: dial failed with status %d: %v", domain.ErrTransport, resp.StatusCode, err)
		} else {
			err = fmt.Errorf("%w: dial: %v", domain.ErrTransport, err)
		}
		s.logger.Error("WebSocket dial failed", zap.Error(err))
		s.finish(func() { s.handler.OnError(err) })
		return
	}

	if s.closing() {
		// Closed while the handshake was in flight.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
		s.finish(func() { s.handler.OnClose(websocket.CloseNormalClosure, "closed before open") })
		return
	}

	s.conn = conn
	s.logger.Info("WebSocket connected")
	s.handler.OnOpen()

	go s.writePump()
	s.readPump()
}

// readPump pumps messages from the websocket connection to the handler.
func (s *Socket) readPump() {
	defer func() {
		close(s.readerDone)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			switch {
			case errors.As(err, &closeErr):
				s.finish(func() { s.handler.OnClose(closeErr.Code, closeErr.Text) })
			case s.closing():
				s.finish(func() { s.handler.OnClose(websocket.CloseNormalClosure, "") })
			default:
				s.logger.Error("WebSocket error", zap.Error(err))
				wrapped := fmt.Errorf("%w: %v", domain.ErrTransport, err)
				s.finish(func() { s.handler.OnError(wrapped) })
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			s.handler.OnMessage(repositories.TextFrame, message)
		case websocket.BinaryMessage:
			s.handler.OnMessage(repositories.BinaryFrame, message)
		default:
			s.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps queued frames to the websocket connection.
func (s *Socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(message.Type, message.Payload); err != nil {
				s.logger.Error("Failed to write message", zap.Error(err))
				s.conn.Close()
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}

		case <-s.done:
			// Immediate close: queued frames are dropped.
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			s.conn.SetReadDeadline(time.Now().Add(closeGrace))
			return

		case <-s.readerDone:
			return
		}
	}
}
