// Package hub manages the gateway's websocket clients: operator dashboards
// and the operator console agent. Every client receives the broadcast event
// stream; inbound command envelopes go through the Dispatcher.
package hub

import (
	"context"
	"log"
	"sync"

	"github.com/botdeck/botdeck/internal/protocol"
)

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	// OnConnect, when set, runs after a client registers. The gateway uses
	// it to greet new clients with connection status and the profile list.
	OnConnect func(c *Client)
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a named event to every connected client. Slow clients are
// disconnected rather than allowed to stall the stream.
func (h *Hub) Broadcast(id string, value any) {
	data, err := protocol.EncodeEvent(id, value)
	if err != nil {
		log.Printf("hub: cannot encode %q event: %v", id, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			go func(c *Client) {
				h.unregister <- c
			}(client)
		}
	}
}

// Run services registrations until the context is cancelled. Should be run in
// a goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("hub: client %s connected (total: %d)", client.ID, total)
			if h.OnConnect != nil {
				h.OnConnect(client)
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("hub: client %s disconnected (total: %d)", client.ID, total)
		}
	}
}
