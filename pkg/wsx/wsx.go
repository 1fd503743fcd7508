// Package wsx implements the WebSocket adapter of spec §6: a `/ws` endpoint
// speaking JSON frames, with service broadcasts relayed to every connected
// client and disconnected clients pruned on the first failed send. No
// teacher websocket code existed to adapt; the gorilla/websocket dependency
// and hub/upgrader shape are adopted fresh from the pack (named in multiple
// other_examples/manifests/*/go.mod files), wired in the style of
// pkg/httpx/server.go's chi-based adapter construction.
package wsx

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ghuser/relay/pkg/correlation"
	"github.com/ghuser/relay/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checking is delegated to the CORS middleware already in front
	// of the HTTP adapter; the handshake itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks every connected client for one service and relays broadcasts
// to all of them.
type Hub struct {
	log logger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub returns an empty Hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{log: log, clients: make(map[*client]struct{})}
}

// Handler upgrades r to a WebSocket connection and registers it with the
// hub. The correlation ID carried on the request (header or query param,
// per spec §4.7) is attached to every log line for this connection.
func (h *Hub) Handler(w http.ResponseWriter, r *http.Request) {
	ctx, correlationID := correlation.FromRequest(r)
	log := h.log.With("correlation_id", correlationID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(ctx, "wsx: upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c, log)
	h.readLoop(c, log)
}

func (h *Hub) readLoop(c *client, log logger.Logger) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client, log logger.Logger) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Warn("wsx: write failed, pruning client", "error", err)
			h.remove(c)
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
	h.mu.Unlock()
}

// Broadcast relays payload, already JSON-encoded, to every connected
// client. A client whose send buffer is full or whose connection has
// failed is pruned rather than allowed to block the broadcast.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.log.Warn("wsx: client send buffer full, pruning")
			delete(h.clients, c)
			close(c.send)
			_ = c.conn.Close()
		}
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
