package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tierwatch/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans market updates out to websocket clients. A client that cannot keep
// up or fails a write is dropped without affecting the others.
type Hub struct {
	logger   *slog.Logger
	build    func(ctx context.Context) (MarketUpdate, error)
	interval time.Duration

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates a Hub that pushes build's output every interval.
func NewHub(logger *slog.Logger, build func(ctx context.Context) (MarketUpdate, error), interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Hub{
		logger:   logger,
		build:    build,
		interval: interval,
		clients:  make(map[string]*client),
	}
}

// Run pushes a fresh update to every client each interval until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub: context cancelled, closing clients")
			h.closeAll()
			return
		case <-ticker.C:
			if h.Len() == 0 {
				continue
			}
			update, err := h.build(ctx)
			if err != nil {
				h.logger.Error("Hub: failed to build market update", "error", err)
				continue
			}
			h.Broadcast(update)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues update for every connected client.
func (h *Hub) Broadcast(update MarketUpdate) {
	msg, err := json.Marshal(update)
	if err != nil {
		h.logger.Error("Hub: failed to encode market update", "error", err)
		return
	}

	h.mu.RLock()
	var slow []*client
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Hub: dropping slow client", "client", c.id)
		h.unregister(c)
	}
}

// ServeWS upgrades the request, sends the current snapshot and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Hub: websocket upgrade failed", "error", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, clientSendSize)}
	if update, err := h.build(r.Context()); err != nil {
		h.logger.Error("Hub: failed to build initial update", "error", err)
	} else if msg, err := json.Marshal(update); err == nil {
		c.send <- msg
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	metrics.WebsocketClients.Inc()
	h.logger.Info("Hub: client connected", "client", c.id)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()

	if ok {
		metrics.WebsocketClients.Dec()
		c.close()
		h.logger.Info("Hub: client disconnected", "client", c.id)
	}
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.unregister(c)
	}
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Warn("Hub: write failed", "client", c.id, "error", err)
			h.unregister(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
