package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/board"
	"github.com/ayusman/mudra/internal/store"
)

const (
	clientQueue = 32
	writeWait   = 2 * time.Second
)

// Message types sent on /api/events.
const (
	MessageEvent  = "event"
	MessageStatus = "status"
	MessageSaved  = "saved"
)

// Message is one JSON frame of the event feed.
type Message struct {
	Type    string         `json:"type"`
	Event   *board.Event   `json:"event,omitempty"`
	Status  *board.Status  `json:"status,omitempty"`
	Drawing *store.Drawing `json:"drawing,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans board messages out to WebSocket clients. Slow clients drop
// messages rather than stall the frame loop.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	closed  bool

	// Hello, when set, builds the first message a new client receives.
	Hello func() any
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]bool)}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueue)}
	if h.Hello != nil {
		if msg := h.Hello(); msg != nil {
			if data, err := json.Marshal(msg); err == nil {
				c.send <- data
			}
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = true
	h.mu.Unlock()
	log.WithField("clients", h.Clients()).Debug("event client connected")

	go c.writeLoop()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

func (c *client) writeLoop() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Broadcast sends msg as JSON to every client.
func (h *Hub) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Error("event marshal failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// BroadcastEvent sends a board event.
func (h *Hub) BroadcastEvent(e board.Event) {
	h.Broadcast(Message{Type: MessageEvent, Event: &e})
}

// BroadcastStatus sends a status snapshot.
func (h *Hub) BroadcastStatus(s board.Status) {
	h.Broadcast(Message{Type: MessageStatus, Status: &s})
}

// BroadcastSaved announces a saved drawing.
func (h *Hub) BroadcastSaved(d *store.Drawing) {
	h.Broadcast(Message{Type: MessageSaved, Drawing: d})
}

// Close disconnects all clients and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
