package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/famille/internal/ledger"
)

// Message is a real-time notification pushed to connected clients.
// MemberID scopes the message to one member's subscribers; zero reaches all.
type Message struct {
	Type     string `json:"type"`
	Entity   string `json:"entity"`
	Action   string `json:"action"`
	ID       int64  `json:"id,omitempty"`
	MemberID int64  `json:"member_id,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, data any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Data:   data,
	}
}

// ForMember scopes the message to one member's subscribers.
func (m Message) ForMember(memberID int64) Message {
	m.MemberID = memberID
	return m
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "websocket"),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
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

// Broadcast sends a message to every client whose filter accepts it.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.accepts(msg) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop rather than block the ledger.
			h.logger.Warn("dropping message for slow client", "type", msg.Type)
		}
	}
}

// Notify implements ledger.Notifier by forwarding ledger events as
// "ledger_<kind>" messages scoped to the affected member. Reset events
// reach everyone.
func (h *Hub) Notify(_ context.Context, ev ledger.Event) {
	msg := NewMessage("ledger", string(ev.Kind), ev.MemberID, ev)
	if ev.Kind != ledger.EventReset {
		msg = msg.ForMember(ev.MemberID)
	}
	h.Broadcast(msg)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
