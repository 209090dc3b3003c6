// Package ws streams bot events to websocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/limitlessbot/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API is read-only and gated by Auth.
	CheckOrigin: func(*http.Request) bool { return true },
}

// client is one websocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	all      bool
	include  map[domain.EventType]bool // used when !all
	excluded map[domain.EventType]bool // used when all
}

// subscribeMsg changes a client's event filter.
//
//	{"action":"subscribe","types":["position_opened","position_closed"]}
type subscribeMsg struct {
	Action string   `json:"action"`
	Types  []string `json:"types"`
}

type broadcastMsg struct {
	typ  domain.EventType
	data []byte
}

// Hub fans journal events out to connected clients. A client that cannot
// keep up loses messages rather than slowing the hub.
type Hub struct {
	session string

	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}

	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHub creates a hub for the given session.
func NewHub(session string, logger *slog.Logger) *Hub {
	return &Hub{
		session:    session,
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "ws_hub")),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("total_clients", n))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.wants(msg.typ) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					h.logger.Warn("ws: dropping message for slow client")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues evt for every subscribed client. It never blocks.
func (h *Hub) Broadcast(evt domain.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Warn("ws: marshal event", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- broadcastMsg{typ: evt.Type, data: data}:
	default:
		h.logger.Warn("ws: broadcast queue full, dropping event", slog.String("type", string(evt.Type)))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades the request and registers the client. The optional
// "types" query parameter is a comma-separated event filter.
// GET /ws/events
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn)
	c.setTypes(strings.Split(r.URL.Query().Get("types"), ","))
	// Queued before registering: once registered, Run may close c.send.
	c.sendHello()

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		all:      true,
		include:  make(map[domain.EventType]bool),
		excluded: make(map[domain.EventType]bool),
	}
}

func (c *client) wants(t domain.EventType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.all {
		return !c.excluded[t]
	}
	return c.include[t]
}

// setTypes replaces the filter. No types means every type.
func (c *client) setTypes(types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.include)
	clear(c.excluded)
	for _, t := range types {
		if t = strings.TrimSpace(t); t != "" {
			c.include[domain.EventType(t)] = true
		}
	}
	c.all = len(c.include) == 0
}

// removeTypes stops delivery of types. Removing the last included type
// leaves the client subscribed to nothing.
func (c *client) removeTypes(types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range types {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		if c.all {
			c.excluded[domain.EventType(t)] = true
		} else {
			delete(c.include, domain.EventType(t))
		}
	}
}

func (c *client) sendHello() {
	msg, err := json.Marshal(map[string]any{
		"type":    "hello",
		"session": c.hub.session,
	})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// readPump handles filter changes and detects disconnects.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}

		var sub subscribeMsg
		if json.Unmarshal(message, &sub) != nil {
			continue
		}
		switch sub.Action {
		case "subscribe":
			c.setTypes(sub.Types)
		case "unsubscribe":
			c.removeTypes(sub.Types)
		}
	}
}

// writePump sends queued events as text frames and keeps the peer alive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
