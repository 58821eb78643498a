package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"arena-platform/tournament"
)

// Hub fans tournament events out to every socket subscribed to a session
// room. Delivery is fire-and-forget: each client has a buffered send channel
// and a full or dead client is skipped, never waited on, so a slow consumer
// cannot stall a session's command loop.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	mu     sync.RWMutex
	rooms  map[string]map[*Client]bool
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			// client.room is guarded by the mutex; capture it for the log.
			room := client.room
			h.mu.Unlock()
			h.logger.Debug("client registered",
				slog.String("socket_id", client.ID), slog.String("room", room))

		case client := <-h.Unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, known := clients[client]; known {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			room := client.room
			h.mu.Unlock()
			h.logger.Debug("client unregistered",
				slog.String("socket_id", client.ID), slog.String("room", room))
		}
	}
}

// MoveToRoom reassigns a client to a session room after it joins or creates a
// tournament.
func (h *Hub) MoveToRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[client.room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, client.room)
		}
	}
	client.room = room
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
}

// Publish implements tournament.Sink: events are broadcast to the room named
// after the owning tournament.
func (h *Hub) Publish(event tournament.Event) {
	h.BroadcastToRoom(event.TournamentID, envelope{
		Type:    string(event.Type),
		Payload: event.Payload,
	})
}

// BroadcastToRoom sends a message to every client in the room.
func (h *Hub) BroadcastToRoom(room string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[room] {
		client.trySend(data)
	}
}

// envelope is the wire form of every outbound message.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}
