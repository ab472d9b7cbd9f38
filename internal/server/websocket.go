package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shademap/shademap/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Map clients are on other origins during development; tighten when
	// the deployment origin is known.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans completed computations out to WebSocket subscribers. It
// implements the orchestrator's result and status callbacks.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	closed  bool
	logger  *zap.SugaredLogger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

type wsMessage struct {
	Type    string         `json:"type"`
	Result  *engine.Result `json:"result,omitempty"`
	Message string         `json:"message,omitempty"`
}

// HandleWebSocket upgrades the connection and registers the client. The
// read loop exists only to observe disconnects; clients send nothing.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// BroadcastResult pushes a completed computation to every subscriber.
func (h *Hub) BroadcastResult(r engine.Result) {
	h.send(wsMessage{Type: "result", Result: &r})
}

// BroadcastStatus pushes a progress or error notice to every subscriber.
func (h *Hub) BroadcastStatus(msg string) {
	h.send(wsMessage{Type: "status", Message: msg})
}

// Subscribers returns the current client count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients and rejects future subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) send(msg wsMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("encoding websocket message: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debugf("dropping websocket client: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
