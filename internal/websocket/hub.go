package websocket

import (
	"errors"
	"log/slog"
	"sync"
)

var ErrClientDisconnected = errors.New("client disconnected")

// Sender is one live client transport session from the hub's point of view.
// *Client implements it; tests substitute fakes.
type Sender interface {
	SendEvent(evt *Event) error
}

// Hub fans engine-originated events out to a user's live connections. It
// owns the registry and the conn-id to transport mapping; delivery is
// best-effort, at-most-once, and stale handles are pruned as a side effect
// (push is a convenience channel, never the system of record).
type Hub struct {
	registry *Registry

	mu    sync.RWMutex
	conns map[string]Sender
}

func NewHub() *Hub {
	return &Hub{
		registry: NewRegistry(),
		conns:    make(map[string]Sender),
	}
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register indexes a connection under its user.
func (h *Hub) Register(userID, connID string, sender Sender) {
	h.mu.Lock()
	h.conns[connID] = sender
	h.mu.Unlock()

	h.registry.Add(userID, connID)
	slog.Info("Client registered", "connID", connID, "userID", userID)
}

// Unregister removes a connection. Safe to call multiple times.
func (h *Hub) Unregister(userID, connID string) {
	h.registry.Remove(userID, connID)

	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()

	slog.Info("Client unregistered", "connID", connID, "userID", userID)
}

// Broadcast delivers the event to every live connection of the user.
// Broadcasting to a user with no connections is a no-op. Delivery failures
// never propagate to the caller: the dead connection is dropped from the
// registry and logged.
func (h *Hub) Broadcast(userID string, evt *Event) {
	connIDs := h.registry.ConnectionsFor(userID)
	if len(connIDs) == 0 {
		return
	}

	for _, connID := range connIDs {
		h.mu.RLock()
		sender, ok := h.conns[connID]
		h.mu.RUnlock()

		if !ok {
			// Registry entry without a transport handle: already closing.
			h.registry.Remove(userID, connID)
			continue
		}

		if err := sender.SendEvent(evt); err != nil {
			slog.Warn("Dropping stale connection", "connID", connID, "userID", userID, "event", evt.Type, "error", err)
			h.Unregister(userID, connID)
		}
	}
}
