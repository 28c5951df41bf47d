package service

import (
	"sync"

	"notify-service/internal/engine"
	"notify-service/internal/models"
)

// emitter carries the local "just happened" events the websocket bridge
// relays: a successful send, and an unread-count recomputation after a
// state-changing command. These fire synchronously in-process so a connected
// client sees the result of its own action with minimal latency, independent
// of the engine's asynchronous change feed.
type emitter struct {
	mu     sync.RWMutex
	seq    uint64
	sent   map[uint64]func(*models.Notification)
	unread map[uint64]func(userID string, count int64)
}

func newEmitter() *emitter {
	return &emitter{
		sent:   make(map[uint64]func(*models.Notification)),
		unread: make(map[uint64]func(string, int64)),
	}
}

func (e *emitter) onSent(fn func(*models.Notification)) engine.Unsubscribe {
	e.mu.Lock()
	e.seq++
	id := e.seq
	e.sent[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.sent, id)
		e.mu.Unlock()
	}
}

func (e *emitter) onUnread(fn func(userID string, count int64)) engine.Unsubscribe {
	e.mu.Lock()
	e.seq++
	id := e.seq
	e.unread[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.unread, id)
		e.mu.Unlock()
	}
}

func (e *emitter) emitSent(n *models.Notification) {
	e.mu.RLock()
	fns := make([]func(*models.Notification), 0, len(e.sent))
	for _, fn := range e.sent {
		fns = append(fns, fn)
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(n)
	}
}

func (e *emitter) emitUnread(userID string, count int64) {
	e.mu.RLock()
	fns := make([]func(string, int64), 0, len(e.unread))
	for _, fn := range e.unread {
		fns = append(fns, fn)
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		fn(userID, count)
	}
}
