package hub

import (
	"log/slog"
	"sync"
)

// Hub tracks connected browser clients.
type Hub struct {
	clients map[*Client]bool
	mu      sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("Browser connected", "client_id", c.ID, "total_connections", count)
	h.Broadcast(Message{Type: TypeClients, Clients: count})
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.Close()
	slog.Info("Browser disconnected", "client_id", c.ID, "total_connections", count)
	h.Broadcast(Message{Type: TypeClients, Clients: count})
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues msg on every client's loop. Clients whose loop has
// stopped are dropped.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if err := c.Post(msg); err != nil {
			slog.Warn("Broadcast failed", "client_id", c.ID, "error", err)
			delete(h.clients, c)
		}
	}
}
