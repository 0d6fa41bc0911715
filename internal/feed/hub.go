// internal/feed/hub.go

package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is the envelope every feed subscriber receives.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans engine change events out to connected dashboard clients.
type Hub struct {
	// Registered clients
	clients    map[*Client]bool
	clientsMux sync.RWMutex

	// Event broadcast channel
	broadcast chan Event

	// Register/unregister clients
	register   chan *Client
	unregister chan *Client

	logger *zap.Logger

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Publish queues an event for all subscribers. It never blocks: the
// services call it while holding their own locks, so a full queue drops
// the event instead of stalling a mutation.
func (h *Hub) Publish(event string, payload interface{}) {
	e := Event{
		Type:      event,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- e:
	default:
		h.logger.Warn("feed queue full, dropping event", zap.String("type", event))
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	defer h.cleanup()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	h.clients[client] = true
	h.logger.Info("feed client connected", zap.Int("total", len(h.clients)))
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	if _, exists := h.clients[client]; exists {
		client.close()
		delete(h.clients, client)
		h.logger.Info("feed client disconnected", zap.Int("total", len(h.clients)))
	}
}

func (h *Hub) broadcastEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal feed event",
			zap.String("type", event.Type),
			zap.Error(err))
		return
	}

	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer, drop the connection
			go h.queueUnregister(client)
		}
	}
}

func (h *Hub) queueUnregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) cleanup() {
	h.clientsMux.Lock()
	defer h.clientsMux.Unlock()

	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]bool)
}

// Shutdown stops the hub and waits for the run loop to exit
func (h *Hub) Shutdown() {
	h.cancel()
	<-h.done
}

func (h *Hub) ActiveConnections() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}
