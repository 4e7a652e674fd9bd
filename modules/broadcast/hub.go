package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// sendBufferSize bounds the per-client outbound queue. When the buffer is
// full the payload is dropped for that client; persisted history is the
// recovery path.
const sendBufferSize = 256

// Conn is the subset of *websocket.Conn the hub writes to. It exists so
// tests can substitute a recording connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a live authenticated connection. The identity is bound once at
// connection time and never changes.
type Client struct {
	ID     string
	UserID string
	Handle string
	Conn   Conn

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewClient creates a client for an authenticated connection.
func NewClient(id, userID, handle string, conn Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Handle: handle,
		Conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
}

// SendJSON marshals v and enqueues it for the writer goroutine. All outbound
// traffic goes through the queue so there is a single writer per connection.
func (c *Client) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.enqueue(data)
	return nil
}

func (c *Client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("dropping payload for slow client", "clientID", c.ID)
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains the send queue onto the connection. Runs until the queue
// is closed or a write fails.
func (c *Client) writePump() {
	for data := range c.send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("write failed", "clientID", c.ID, "error", err)
			return
		}
	}
}

// Hub is the in-memory session registry and room broadcaster: it maps live
// connections to identities and room subscriptions, and fans payloads out to
// every connection subscribed to a room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client         // clientID -> client
	rooms   map[string]map[string]bool // roomID -> set of clientIDs
	subs    map[string]map[string]bool // clientID -> set of roomIDs
	logger  *slog.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]bool),
		subs:    make(map[string]map[string]bool),
		logger:  slog.Default(),
	}
}

// Register admits an authenticated client and starts its writer.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.subs[client.ID] = make(map[string]bool)
	h.mu.Unlock()

	go client.writePump()
	h.logger.Info("client registered", "clientID", client.ID, "userID", client.UserID)
}

// Unregister removes the client from every room's broadcast target set and
// releases its writer.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		for roomID := range h.subs[client.ID] {
			h.removeFromRoom(roomID, client.ID)
		}
		delete(h.subs, client.ID)
		delete(h.clients, client.ID)
		client.closeSend()
	}
	h.mu.Unlock()

	if ok {
		h.logger.Info("client unregistered", "clientID", client.ID)
	}
}

// Subscribe makes the connection a broadcast target for the room. Idempotent.
// Callers must have already authorized the subscription against room
// membership.
func (h *Hub) Subscribe(clientID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[clientID]; !ok {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]bool)
	}
	h.rooms[roomID][clientID] = true
	h.subs[clientID][roomID] = true
}

// UnsubscribeAll removes the connection from every room it subscribes to.
func (h *Hub) UnsubscribeAll(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range h.subs[clientID] {
		h.removeFromRoom(roomID, clientID)
	}
	if _, ok := h.clients[clientID]; ok {
		h.subs[clientID] = make(map[string]bool)
	}
}

// IsSubscribed reports whether the connection currently subscribes to the
// room.
func (h *Hub) IsSubscribed(clientID, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subs[clientID][roomID]
}

// Publish delivers the payload to every connection subscribed to the room at
// this instant. Best-effort: a stalled connection's delivery is dropped
// without blocking the caller or other recipients.
func (h *Hub) Publish(roomID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast payload", "roomID", roomID, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for clientID := range h.rooms[roomID] {
		if client, ok := h.clients[clientID]; ok {
			client.enqueue(data)
		}
	}
}

// DropRoom removes the room from every connection's subscription set. Used
// when a room is deleted so the live topology matches the store.
func (h *Hub) DropRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for clientID := range h.rooms[roomID] {
		delete(h.subs[clientID], roomID)
	}
	delete(h.rooms, roomID)
}

// DropUserRoom unsubscribes every connection of the given user from the
// room. Used when a user leaves a room through the membership endpoints.
func (h *Hub) DropUserRoom(userID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for clientID := range h.rooms[roomID] {
		if client, ok := h.clients[clientID]; ok && client.UserID == userID {
			h.removeFromRoom(roomID, clientID)
		}
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of connections subscribed to a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// CloseAll closes every connection. Called at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.closeSend()
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
	h.subs = make(map[string]map[string]bool)
}

// removeFromRoom must be called with the write lock held.
func (h *Hub) removeFromRoom(roomID, clientID string) {
	if h.rooms[roomID] != nil {
		delete(h.rooms[roomID], clientID)
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if h.subs[clientID] != nil {
		delete(h.subs[clientID], roomID)
	}
}
