package server

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks the connected panel clients and fans messages out to them.
// Writes happen on the hub goroutine only; gorilla connections do not allow
// concurrent writers.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool

	broadcast  chan envelope
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan envelope),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run services the hub channels until the process exits. A client whose
// write fails is dropped on the spot.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			log.Println("WebSocket client connected.")
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
				log.Println("WebSocket client disconnected.")
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("broadcast error: %v", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast hands one message to the hub goroutine for delivery to every
// connected client.
func (h *Hub) Broadcast(msg envelope) {
	h.broadcast <- msg
}
