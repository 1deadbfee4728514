package socketserver

import (
	"context"
	"sync"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/logger"
)

// Hub maintains the set of active WebSocket clients and fans frames out to
// all of them. Slow clients are dropped rather than allowed to stall a turn.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	broadcast  chan *Frame
	register   chan *Client
	unregister chan *Client

	// done unblocks client pumps that try to unregister after the hub has
	// already exited.
	done chan struct{}
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Frame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	logger.Info("WebSocket hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case frame := <-h.broadcast:
			h.broadcastFrame(frame)
		}
	}
}

// Broadcast queues a frame for every connected client. It never blocks the
// caller; when the hub queue is full the frame is dropped.
func (h *Hub) Broadcast(frame *Frame) {
	select {
	case h.broadcast <- frame:
	default:
		logger.Warn("hub broadcast queue full, dropping %s frame", frame.Type)
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	logger.Info("WebSocket client connected: %s (total: %d)", client.ID, len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		logger.Info("WebSocket client disconnected: %s (total: %d)", client.ID, len(h.clients))
	}
}

func (h *Hub) broadcastFrame(frame *Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- frame:
		default:
			// The client's send buffer is full; it is beyond saving.
			go func(c *Client) {
				select {
				case h.unregister <- c:
				case <-h.done:
				}
			}(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}
