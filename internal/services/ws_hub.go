package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Live feed message types
const (
	MsgHello          = "hello"
	MsgUploadVerified = "upload_verified"
	MsgStatsUpdated   = "stats_updated"
)

const (
	writeWait = 5 * time.Second
	// queued messages per connection before it is treated as stalled
	sendBuffer = 32
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Broadcaster fans live feed events out to subscribers
type Broadcaster interface {
	Broadcast(message WSMessage)
}

type wsClient struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.Mutex // guards closed and send
	closed bool
}

func newWSClient(userID string, conn *websocket.Conn) *wsClient {
	return &wsClient{userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
}

// enqueue never blocks; false means the client is closed or its queue is full
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	c.conn.Close()
}

// writePump is the only writer of conn
func (c *wsClient) writePump(onError func(error)) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			onError(err)
			return
		}
	}
}

// WSHub manages live feed WebSocket connections
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[string]*wsClient)}
}

// Register adds a connection under connID. A previous connection with the same ID is closed.
func (h *WSHub) Register(connID, userID string, conn *websocket.Conn) {
	c := newWSClient(userID, conn)

	h.mu.Lock()
	if existing, ok := h.connections[connID]; ok {
		existing.close()
	}
	h.connections[connID] = c
	h.mu.Unlock()

	go c.writePump(func(err error) {
		log.Warn().Err(err).Str("conn_id", connID).Msg("Dropping WebSocket connection")
		h.drop(connID, c)
	})

	log.Info().Str("conn_id", connID).Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes and closes a connection
func (h *WSHub) Unregister(connID string) {
	h.mu.Lock()
	c, ok := h.connections[connID]
	if ok {
		delete(h.connections, connID)
	}
	h.mu.Unlock()

	if ok {
		c.close()
		log.Info().Str("conn_id", connID).Str("user_id", c.userID).Msg("WebSocket connection unregistered")
	}
}

// drop unregisters c unless connID was already taken over by a newer connection
func (h *WSHub) drop(connID string, c *wsClient) {
	h.mu.Lock()
	if h.connections[connID] == c {
		delete(h.connections, connID)
	}
	h.mu.Unlock()
	c.close()
}

// Send queues a message for one connection
func (h *WSHub) Send(connID string, message WSMessage) error {
	h.mu.RLock()
	c, ok := h.connections[connID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("connection %s is not registered", connID)
	}

	data, err := encodeMessage(message)
	if err != nil {
		return err
	}
	if !c.enqueue(data) {
		h.drop(connID, c)
		return fmt.Errorf("connection %s is not accepting messages", connID)
	}
	return nil
}

// Broadcast queues a message for every connection and drops the ones that are stalled.
// It does not wait for any write.
func (h *WSHub) Broadcast(message WSMessage) {
	data, err := encodeMessage(message)
	if err != nil {
		log.Error().Err(err).Str("type", message.Type).Msg("Failed to encode broadcast")
		return
	}

	h.mu.RLock()
	targets := make(map[string]*wsClient, len(h.connections))
	for id, c := range h.connections {
		targets[id] = c
	}
	h.mu.RUnlock()

	for id, c := range targets {
		if !c.enqueue(data) {
			log.Warn().Str("conn_id", id).Msg("Dropping stalled WebSocket connection")
			h.drop(id, c)
		}
	}
}

// Count returns the number of live connections
func (h *WSHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Close closes every connection
func (h *WSHub) Close() {
	h.mu.Lock()
	clients := h.connections
	h.connections = make(map[string]*wsClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func encodeMessage(message WSMessage) ([]byte, error) {
	if message.Timestamp == 0 {
		message.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	return data, nil
}
