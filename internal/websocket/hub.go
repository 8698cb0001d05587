package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message types pushed to clients.
const (
	TypeItems    = "items"
	TypeUIState  = "ui_state"
	TypeActivity = "activity"
	TypeBackup   = "backup_status"
)

// Message is a full snapshot of one kind of state. Clients replace their copy
// on every message rather than applying deltas.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewMessage wraps a snapshot for broadcast.
func NewMessage(typ string, data any) Message {
	return Message{Type: typ, Data: data}
}

// Hub maintains the set of active WebSocket clients and broadcasts snapshots.
// The latest snapshot of each type is replayed to clients as they connect.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  map[string][]byte // by message type
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		latest:  make(map[string][]byte),
		logger:  logger,
	}
}

// Register adds a client and queues the latest snapshot of every type it
// subscribes to.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	for typ, data := range h.latest {
		if !c.wants(typ) {
			continue
		}
		select {
		case c.send <- data:
		default:
		}
	}
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients and remembers it for
// clients that connect later.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "type", msg.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest[msg.Type] = data

	for c := range h.clients {
		if !c.wants(msg.Type) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// A slow client misses this snapshot; the next one supersedes it.
			h.logger.Debug("dropped snapshot", "type", msg.Type, "client_id", c.id)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
