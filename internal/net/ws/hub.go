package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/questkeeper/internal/replication"
)

const sendBuffer = 64

// client is one live websocket connection. send is drained by the
// connection's write loop.
type client struct {
	playerID uuid.UUID
	send     chan []byte
}

// Hub tracks connected players and implements replication.Transport.
// Sends never block; a client whose buffer is full misses the message.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	logger  *slog.Logger
}

var _ replication.Transport = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[uuid.UUID]*client),
		logger:  logger,
	}
}

// register replaces any previous connection of the same player.
func (h *Hub) register(playerID uuid.UUID) *client {
	c := &client{playerID: playerID, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	old := h.clients[playerID]
	h.clients[playerID] = c
	h.mu.Unlock()
	if old != nil {
		close(old.send)
	}
	return c
}

// unregister removes c if it is still the player's current connection.
// It reports whether c was current.
func (h *Hub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.playerID] != c {
		return false
	}
	delete(h.clients, c.playerID)
	close(c.send)
	return true
}

// CloseAll closes every connection. Their handlers then leave the game.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
}

// Connected reports whether playerID has a live connection.
func (h *Hub) Connected(playerID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}

// Len returns the number of connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SendTo(playerID uuid.UUID, msg replication.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", "type", msg.Type, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[playerID]; ok {
		h.deliver(c, data, msg.Type)
	}
}

func (h *Hub) Broadcast(msg replication.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal message", "type", msg.Type, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.deliver(c, data, msg.Type)
	}
}

// deliver must be called with h.mu held so c.send is not closed under it.
func (h *Hub) deliver(c *client, data []byte, t replication.MessageType) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("Client send buffer full, dropping message", "player_id", c.playerID, "type", t)
	}
}
