package sse

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Event represents a Server-Sent Event.
type Event struct {
	EventType string `json:"event"`
	Data      string `json:"data"`
}

// Client represents a connected SSE client.
type Client struct {
	ID     string
	UserID string
	Events chan Event
}

// Hub manages all SSE client connections.
type Hub struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new SSE Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[string]*Client),
	}
}

// Register adds a new client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	h.logger.Debug("SSE client registered",
		zap.String("client_id", client.ID),
		zap.String("user_id", client.UserID),
		zap.Int("total", len(h.clients)))
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[clientID]; ok {
		close(client.Events)
		delete(h.clients, clientID)
		h.logger.Debug("SSE client unregistered",
			zap.String("client_id", clientID),
			zap.Int("total", len(h.clients)))
	}
}

// Broadcast sends an event to all connected clients. Slow clients with a
// full buffer skip the event; they catch up on the next one.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Events <- event:
		default:
			h.logger.Debug("SSE client buffer full, skipping event",
				zap.String("client_id", client.ID))
		}
	}
}

// PublishInventoryUpdate tells clients the inventory changed so they can
// re-fetch their view.
func (h *Hub) PublishInventoryUpdate(action, code string) {
	h.Broadcast(Event{
		EventType: "inventory_update",
		Data:      fmt.Sprintf(`{"action":%q,"jig":%q}`, action, code),
	})
}
