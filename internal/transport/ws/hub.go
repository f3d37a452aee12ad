// Package ws exposes race notifications over WebSocket. Clients connect as
// observers and receive every published event as a JSON frame; delivery is
// best effort, matching the fire-and-forget publish contract.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coderace/coderace/internal/platform/timeouts"
	"github.com/coderace/coderace/internal/race/events"
)

const (
	clientBuffer = 256
	pingInterval = 54 * time.Second
	pongWait     = 60 * time.Second
)

// Hub fans bus events out to connected WebSocket clients.
type Hub struct {
	bus    *events.Bus
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	stop    func()
	stopped chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

// NewHub creates a hub and starts relaying events from the bus.
func NewHub(bus *events.Bus, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	hub := &Hub{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
		stopped: make(chan struct{}),
	}

	ch, cancel := bus.Subscribe(clientBuffer)
	hub.stop = cancel
	go hub.relay(ch)

	return hub
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

// Stop detaches the hub from the bus and closes every client.
func (h *Hub) Stop() {
	h.stop()
	<-h.stopped

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
	h.clients = make(map[*client]struct{})
}

// ClientCount reports the number of connected observers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// relay drains the bus subscription and broadcasts each event as JSON.
func (h *Hub) relay(ch <-chan events.Event) {
	defer close(h.stopped)
	for evt := range ch {
		frame, err := json.Marshal(evt)
		if err != nil {
			h.logger.Error("encode event", "topic", evt.Topic, "error", err)
			continue
		}
		h.broadcast(frame)
	}
}

func (h *Hub) broadcast(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Saturated client; it misses this frame rather than stalling
			// everyone else.
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// readPump discards client frames; observers only listen. It exists to react
// to close frames and pong replies.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeouts.WSWrite))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeouts.WSWrite))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
