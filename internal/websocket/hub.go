// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one realtime push frame.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub tracks connected clients per identity and fans events out to them. It
// implements notification.EventPublisher; engines never see the socket
// registry directly.
type Hub struct {
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *targetedEvent

	logger *zap.Logger
}

type targetedEvent struct {
	identityID int64
	event      *Event
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *targetedEvent, 256),
		logger:     logger,
	}
}

// Publish pushes an event to every connection of one identity. Non-blocking:
// a full broadcast queue drops the event, realtime push is best effort.
func (h *Hub) Publish(identityID int64, event string, payload interface{}) {
	te := &targetedEvent{
		identityID: identityID,
		event: &Event{
			Type:      event,
			Payload:   payload,
			Timestamp: time.Now(),
		},
	}
	select {
	case h.broadcast <- te:
	default:
		h.logger.Warn("event dropped, broadcast queue full",
			zap.Int64("identity_id", identityID),
			zap.String("event", event))
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case te := <-h.broadcast:
			h.deliver(te)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.identityID] == nil {
		h.clients[client.identityID] = make(map[*Client]bool)
	}
	h.clients[client.identityID][client] = true

	h.logger.Info("websocket client connected",
		zap.Int64("identity_id", client.identityID),
		zap.Int("total", h.totalClients()))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.identityID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.identityID)
			}

			h.logger.Info("websocket client disconnected",
				zap.Int64("identity_id", client.identityID),
				zap.Int("total", h.totalClients()))
		}
	}
}

func (h *Hub) deliver(te *targetedEvent) {
	raw, err := json.Marshal(te.event)
	if err != nil {
		h.logger.Error("event marshal failed", zap.String("event", te.event.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[te.identityID] {
		client.Send(raw)
	}
}

// ConnectedClients returns the number of live connections for an identity.
func (h *Hub) ConnectedClients(identityID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[identityID])
}

// TotalClients returns the number of live connections across all identities.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[int64]map[*Client]bool)
}
