package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Message is the envelope of everything pushed to clients
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients: ClientID -> Client
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	quit       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		quit:       make(chan struct{}),
	}
}

// Run starts the hub's main loop; it returns after Stop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// A reconnecting client replaces its old connection
			if old, ok := h.clients[client.ClientID]; ok {
				close(old.send)
			}
			h.clients[client.ClientID] = client
			h.mu.Unlock()
			log.Printf("📱 Client connected: %s", client.ClientID)

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.ClientID]; ok && cur == client {
				delete(h.clients, client.ClientID)
				close(client.send)
				log.Printf("📴 Client disconnected: %s", client.ClientID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, skip this message
				}
			}
			h.mu.RUnlock()

		case <-h.quit:
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop ends Run and disconnects every client
func (h *Hub) Stop() {
	close(h.quit)
}

// Broadcast sends a message to every connected client without blocking
func (h *Hub) Broadcast(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return false
	}
	select {
	case h.broadcast <- data:
		return true
	default:
		return false
	}
}

// SendToClient sends a message to one client
func (h *Hub) SendToClient(clientID string, msg Message) bool {
	h.mu.RLock()
	client, ok := h.clients[clientID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return false
	}
	select {
	case client.send <- data:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
