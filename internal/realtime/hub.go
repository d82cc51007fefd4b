// Package realtime pushes queue projections to connected viewers over sockjs.
package realtime

import (
	"log/slog"
	"sync"

	"queuedesk/internal/metrics"
	"queuedesk/internal/models"
)

// Client is one connected viewer. Send is closed by the hub on Unregister.
type Client struct {
	ID   string
	Send chan []byte

	mu       sync.RWMutex
	identity *models.Identity
}

func NewClient(id string, buffer int) *Client {
	return &Client{ID: id, Send: make(chan []byte, buffer)}
}

// SetIdentity records who the viewer claims to be. Advisory only: every
// viewer receives every broadcast.
func (c *Client) SetIdentity(identity *models.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

func (c *Client) Identity() *models.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Hub is the registry of connected viewers. Several hubs may share the
// process-wide viewer gauge, so each only adds and removes its own clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

// Register adds client. A different client already holding the same ID is
// replaced and its Send channel closed.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous, ok := h.clients[client.ID]
	if ok && previous == client {
		return
	}
	h.clients[client.ID] = client
	if ok {
		close(previous.Send)
		return
	}
	metrics.ConnectedViewers.Inc()
}

// Unregister removes the client and closes its Send channel. Safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[client.ID]; !ok || current != client {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
	metrics.ConnectedViewers.Dec()
}

// Broadcast queues payload for every viewer without blocking. A viewer whose
// buffer is full misses this message.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.deliver(client, payload)
	}
}

// SendTo queues payload for one registered viewer.
func (h *Hub) SendTo(client *Client, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[client.ID] != client {
		return false
	}
	return h.deliver(client, payload)
}

// deliver must run under h.mu so Send is not closed underneath it.
func (h *Hub) deliver(client *Client, payload []byte) bool {
	select {
	case client.Send <- payload:
		return true
	default:
		metrics.DroppedMessages.Inc()
		h.logger.Warn("Dropped realtime message", "client_id", client.ID)
		return false
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	metrics.ConnectedViewers.Sub(float64(len(h.clients)))
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
}
