// Package ws carries the room event protocol over gorilla websockets.
package ws

import (
	"sync"
)

// envelope frames every message in both directions.
type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type client struct {
	id    string
	send  chan envelope
	rooms map[string]struct{}
}

// Hub tracks connections and their room subscriptions and implements
// app.Publisher. Delivery is push-only: when a client's send buffer is full
// the oldest frame is dropped so one slow reader never stalls a room.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for code := range c.rooms {
		if members, ok := h.rooms[code]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, code)
			}
		}
	}
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
}

func (h *Hub) subscribe(c *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// Broadcast sends an event to every connection subscribed to room.
func (h *Hub) Broadcast(room, event string, payload any) {
	msg := envelope{Type: event, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		push(c.send, msg)
	}
}

// Send delivers an event to one connection.
func (h *Hub) Send(connID, event string, payload any) {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	push(c.send, envelope{Type: event, Payload: payload})
}

// push enqueues without blocking, dropping the oldest pending frame when the
// buffer is full.
func push(send chan envelope, msg envelope) {
	select {
	case send <- msg:
	default:
		select {
		case <-send:
		default:
		}
		select {
		case send <- msg:
		default:
		}
	}
}
