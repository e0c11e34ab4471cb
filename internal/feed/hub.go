// Package feed pushes audit events to WebSocket subscribers.
package feed

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/polymarket-mirror/internal/audit"
)

// ErrClosed is returned when upgrading after the hub was closed.
var ErrClosed = errors.New("feed hub closed")

// Config holds hub settings.
type Config struct {
	QueueSize    int           // Outbound messages buffered per client
	PingInterval time.Duration // Keepalive ping period
	WriteTimeout time.Duration // Deadline for each write
	PongTimeout  time.Duration // Read deadline extended by each pong
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize:    64,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		PongTimeout:  60 * time.Second,
	}
}

// Hub broadcasts events to every connected client. Slow clients lose
// messages rather than slowing the publisher.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	dropped atomic.Int64
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewHub creates a hub.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Publish sends ev to every client without blocking.
func (h *Hub) Publish(ev audit.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal feed event", "event_id", ev.ID, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns the number of messages dropped for slow clients.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "err", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.cfg.QueueSize),
		done: make(chan struct{}),
	}
	if err := h.register(c); err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	h.logger.Debug("feed client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	h.readLoop(c)

	h.unregister(c)
	h.logger.Debug("feed client disconnected", "remote", r.RemoteAddr)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		c.close()
	}
}

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.clients[c] = struct{}{}
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// readLoop discards client messages and tracks pongs. It returns when the
// connection fails or goes quiet past PongTimeout.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("feed write failed", "err", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				h.logger.Debug("failed to send ping", "err", err)
				return
			}
		}
	}
}
