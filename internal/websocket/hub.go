package websocket

import (
	"sync"
)

// Hub maintains the set of active clients and broadcasts task messages
// to them.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Broadcast channel for task updates
	broadcast chan *TaskMessage

	mu sync.RWMutex
}

// TaskMessage represents a download task update pushed to clients.
type TaskMessage struct {
	Type     string  `json:"type"`
	TaskID   string  `json:"task_id"`
	Title    string  `json:"title,omitempty"`
	Artist   string  `json:"artist,omitempty"`
	Filename string  `json:"filename,omitempty"`
	Quality  string  `json:"quality,omitempty"`
	Storage  string  `json:"storage,omitempty"`
	Phase    string  `json:"phase,omitempty"`
	Fraction float64 `json:"fraction,omitempty"`
	Overall  float64 `json:"overall,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *TaskMessage, 64),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full, close the connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a task update to all connected clients.
func (h *Hub) Broadcast(msg *TaskMessage) {
	h.broadcast <- msg
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
