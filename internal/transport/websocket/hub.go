package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer      = 256
	broadcastBuffer = 1024

	// AllEnvironments subscribes a client to every environment
	AllEnvironments = "*"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the JSON frame sent to clients
type Message struct {
	EnvID string       `json:"env_id"`
	Event string       `json:"event"`
	Data  events.Event `json:"data"`
}

// Client is one websocket connection watching an environment
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	envID string
}

// Hub fans episode events out to websocket clients. It implements
// events.Subscriber so it can be attached to the shared event bus.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client

	logger zerolog.Logger
}

var _ events.Subscriber = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With().Str("component", "websocket_hub").Logger(),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// ID implements events.Subscriber
func (h *Hub) ID() string { return "websocket_hub" }

// InterestedIn implements events.Subscriber
func (h *Hub) InterestedIn(string) bool { return true }

// HandleEvent queues an event for broadcast. It never blocks the
// publisher; events are dropped when the queue is full.
func (h *Hub) HandleEvent(event events.Event) {
	msg := &Message{EnvID: event.EnvID(), Event: event.Type(), Data: event}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn().
			Str("env_id", event.EnvID()).
			Str("event_type", event.Type()).
			Msg("Broadcast queue full, dropping event")
	}
}

// ServeHTTP upgrades GET /ws?env_id=<id>. Omitting env_id watches every
// environment.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	envID := r.URL.Query().Get("env_id")
	if envID == "" {
		envID = AllEnvironments
	}
	h.ServeWS(w, r, envID)
}

// ServeWS handles WebSocket requests from clients
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, envID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		envID: envID,
	}

	select {
	case h.register <- client:
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of clients watching envID, or all
// clients when envID is empty
func (h *Hub) ClientCount(envID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if envID != "" {
		return len(h.clients[envID])
	}
	total := 0
	for _, set := range h.clients {
		total += len(set)
	}
	return total
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.envID] == nil {
		h.clients[client.envID] = make(map[*Client]bool)
	}
	h.clients[client.envID][client] = true

	h.logger.Debug().
		Str("env_id", client.envID).
		Int("clients", len(h.clients[client.envID])).
		Msg("Client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(client)
}

func (h *Hub) unregisterLocked(client *Client) {
	set, ok := h.clients[client.envID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.envID)
	}

	h.logger.Debug().
		Str("env_id", client.envID).
		Int("remaining", len(set)).
		Msg("Client unregistered")
}

func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", message.Event).Msg("Failed to marshal broadcast message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, key := range []string{message.EnvID, AllEnvironments} {
		for client := range h.clients[key] {
			select {
			case client.send <- data:
			default:
				// slow consumer
				h.unregisterLocked(client)
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for client := range set {
			h.unregisterLocked(client)
		}
	}
}

// readPump drains the connection so pongs and close frames are processed
func (c *Client) readPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Str("env_id", c.envID).Msg("WebSocket read error")
			}
			return
		}
	}
}

// writePump sends one JSON message per websocket frame
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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
