package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"notify-service/internal/engine"
	"notify-service/internal/models"
)

// EventSource is the service-side surface the bridge wires into the hub:
// the local "just happened" emitter plus access to the engine's own change
// subscriptions once it is ready.
type EventSource interface {
	OnNotificationSent(fn func(*models.Notification)) engine.Unsubscribe
	OnUnreadCountChanged(fn func(userID string, count int64)) engine.Unsubscribe
	AwaitEngine(ctx context.Context) (engine.Engine, error)
}

// Bridge connects both engine event sources to the broadcast dispatcher
// using a single global subscription per source. Subscribing once for all
// users avoids per-connection subscription churn and the missed window
// between connect and subscription registration; both sources converge on
// the same hub so clients never see divergent behavior depending on which
// path produced an event.
type Bridge struct {
	hub    *Hub
	source EventSource

	mu     sync.Mutex
	unsubs []engine.Unsubscribe
}

func NewBridge(hub *Hub, source EventSource) *Bridge {
	return &Bridge{hub: hub, source: source}
}

// Run wires the local emitter immediately, then waits for engine readiness
// and wires the asynchronous change feed. Local wiring first means an event
// produced by this process can never slip between connect and subscription.
func (b *Bridge) Run(ctx context.Context) error {
	b.retain(b.source.OnNotificationSent(func(n *models.Notification) {
		b.hub.Broadcast(n.UserID, NewNotificationEvent(uuid.New().String(), n))
	}))
	b.retain(b.source.OnUnreadCountChanged(func(userID string, count int64) {
		b.hub.Broadcast(userID, NewUnreadCountEvent(uuid.New().String(), count))
	}))

	eng, err := b.source.AwaitEngine(ctx)
	if err != nil {
		// Local wiring stays in place; orderly commands will surface the
		// unavailability themselves.
		slog.Error("Bridge: engine subscriptions not established", "error", err)
		return err
	}

	b.retain(eng.Subscribe(engine.ScopeAll(), func(n *models.Notification) {
		b.hub.Broadcast(n.UserID, NewNotificationEvent(uuid.New().String(), n))
	}))
	b.retain(eng.OnUnreadCountChange(engine.ScopeAll(), func(userID string, count int64) {
		b.hub.Broadcast(userID, NewUnreadCountEvent(uuid.New().String(), count))
	}))

	slog.Info("Bridge wired to engine change feed")
	return nil
}

// Close releases every subscription the bridge holds.
func (b *Bridge) Close() {
	b.mu.Lock()
	unsubs := b.unsubs
	b.unsubs = nil
	b.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

func (b *Bridge) retain(unsub engine.Unsubscribe) {
	b.mu.Lock()
	b.unsubs = append(b.unsubs, unsub)
	b.mu.Unlock()
}
