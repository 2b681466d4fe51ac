package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
)

var upgrader = websocket.Upgrader{
	// The state stream is served on the operator's own control port.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of state observers and broadcasts client snapshots to them.
type Hub struct {
	// Registered observers.
	observers map[*Observer]struct{}

	// Register requests from the observers.
	register chan *Observer

	// Unregister requests from observers.
	unregister chan *Observer

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to observers map
	mu sync.RWMutex

	logger *zap.Logger
}

// NewHub creates a new observer hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		observers:  make(map[*Observer]struct{}),
		register:   make(chan *Observer),
		unregister: make(chan *Observer),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case observer := <-h.register:
			h.mu.Lock()
			h.observers[observer] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Observer registered", zap.String("remoteAddr", observer.remoteAddr))

		case observer := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.observers[observer]; ok {
				delete(h.observers, observer)
				close(observer.send)
			}
			h.mu.Unlock()
			h.logger.Info("Observer unregistered", zap.String("remoteAddr", observer.remoteAddr))

		case <-ctx.Done():
			h.mu.Lock()
			for observer := range h.observers {
				delete(h.observers, observer)
				close(observer.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast pushes a snapshot to every observer. Slow observers miss updates
// instead of stalling the caller.
func (h *Hub) Broadcast(snapshot entities.Snapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Error("Failed to marshal snapshot", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for observer := range h.observers {
		select {
		case observer.send <- payload:
		default:
			h.logger.Debug("Dropping snapshot for slow observer", zap.String("remoteAddr", observer.remoteAddr))
		}
	}
}

// ObserverCount returns the number of registered observers.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Observer is a middleman between an observer's websocket connection and the hub.
type Observer struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	logger     *zap.Logger
}

// HandleObserver upgrades the request and streams snapshots to it. initial
// is written first so a new observer never starts blank.
func HandleObserver(hub *Hub, c echo.Context, initial entities.Snapshot, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	observer := &Observer{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 16),
		remoteAddr: c.RealIP(),
		logger:     logger,
	}

	if payload, err := json.Marshal(initial); err == nil {
		observer.send <- payload
	}

	select {
	case hub.register <- observer:
	case <-hub.done:
		conn.Close()
		return nil
	}

	go observer.writePump()
	go observer.readPump()

	return nil
}

// readPump only drains control frames so closes and pongs are noticed.
func (o *Observer) readPump() {
	defer func() {
		select {
		case o.hub.unregister <- o:
		case <-o.hub.done:
		}
		o.conn.Close()
	}()

	o.conn.SetReadLimit(1024)
	o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		o.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				o.logger.Error("Observer connection error", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps snapshots from the hub to the websocket connection.
func (o *Observer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()

	for {
		select {
		case message, ok := <-o.send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				o.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := o.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				o.logger.Error("Failed to write snapshot", zap.Error(err))
				return
			}

		case <-ticker.C:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
