package api

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub manages WebSocket dashboard clients and fans out DashboardEvents to
// them. Unlike a plain broadcast, each client may narrow its subscription to
// a subset of the event taxonomy declared in events.go (opportunity_detected,
// execution_completed, risk_rejected, ...) so an operator watching the
// executor doesn't also pay for every book-driven opportunity notice.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan DashboardEvent
	mu         sync.RWMutex
	logger     *slog.Logger
}

// Client represents a connected WebSocket client. interest is the set of
// DashboardEvent.Type values this client wants; an empty set means all
// events.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	interest map[string]bool
}

// wants reports whether the client subscribed to eventType (or to
// everything, if it registered no filter).
func (c *Client) wants(eventType string) bool {
	if len(c.interest) == 0 {
		return true
	}
	return c.interest[eventType]
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan DashboardEvent, 256),
		logger:     logger.With("component", "ws-hub"),
	}
}

// Run starts the hub's main loop (should be called in a goroutine)
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			wsClientsConnected.Set(float64(count))
			h.logger.Info("client connected", "count", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			wsClientsConnected.Set(float64(count))
			h.logger.Info("client disconnected", "count", count)

		case evt := <-h.broadcast:
			data, err := json.Marshal(evt)
			if err != nil {
				h.logger.Error("failed to marshal event", "error", err, "type", evt.Type)
				continue
			}

			var dead []*Client
			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(evt.Type) {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Client can't keep up, close it
					wsBroadcastsDropped.Inc()
					dead = append(dead, client)
				}
			}
			h.mu.RUnlock()

			if len(dead) > 0 {
				h.mu.Lock()
				for _, client := range dead {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				count := len(h.clients)
				h.mu.Unlock()
				wsClientsConnected.Set(float64(count))
			}
		}
	}
}

// BroadcastEvent sends an event to every subscribed client.
func (h *Hub) BroadcastEvent(evt DashboardEvent) {
	select {
	case h.broadcast <- evt:
	default:
		wsBroadcastsDropped.Inc()
		h.logger.Warn("broadcast channel full, dropping event", "type", evt.Type)
	}
}

// BroadcastSnapshot sends a snapshot to all connected clients
func (h *Hub) BroadcastSnapshot(snapshot DashboardSnapshot) {
	h.BroadcastEvent(DashboardEvent{
		Type:      EventSnapshot,
		Timestamp: time.Now(),
		Data:      snapshot,
	})
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			break
		}
		// Dashboard is read-only, ignore any client messages
	}
}

// NewClient registers a new WebSocket client scoped to events, and starts
// its read/write pumps. An empty events set subscribes to everything.
func NewClient(hub *Hub, conn *websocket.Conn, events []string) *Client {
	var interest map[string]bool
	if len(events) > 0 {
		interest = make(map[string]bool, len(events))
		for _, e := range events {
			interest[e] = true
		}
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		interest: interest,
	}

	client.hub.register <- client

	// Start pumps
	go client.writePump()
	go client.readPump()

	return client
}
