package engine

import (
	"sync"

	"notify-service/internal/models"
)

type notificationSub struct {
	scope Scope
	fn    func(*models.Notification)
}

type countSub struct {
	scope Scope
	fn    func(userID string, count int64)
}

// subscribers is the in-process registry of scoped callbacks. Dispatch walks
// a snapshot taken under the read lock so a callback may unsubscribe itself
// without deadlocking.
type subscribers struct {
	mu            sync.RWMutex
	seq           uint64
	notifications map[uint64]notificationSub
	counts        map[uint64]countSub
}

func newSubscribers() *subscribers {
	return &subscribers{
		notifications: make(map[uint64]notificationSub),
		counts:        make(map[uint64]countSub),
	}
}

func (s *subscribers) addNotification(scope Scope, fn func(*models.Notification)) Unsubscribe {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.notifications[id] = notificationSub{scope: scope, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.notifications, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) addCount(scope Scope, fn func(userID string, count int64)) Unsubscribe {
	s.mu.Lock()
	s.seq++
	id := s.seq
	s.counts[id] = countSub{scope: scope, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.counts, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) dispatchNotification(n *models.Notification) {
	s.mu.RLock()
	matched := make([]func(*models.Notification), 0, len(s.notifications))
	for _, sub := range s.notifications {
		if sub.scope.Matches(n.UserID) {
			matched = append(matched, sub.fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range matched {
		fn(n)
	}
}

func (s *subscribers) dispatchCount(userID string, count int64) {
	s.mu.RLock()
	matched := make([]func(string, int64), 0, len(s.counts))
	for _, sub := range s.counts {
		if sub.scope.Matches(userID) {
			matched = append(matched, sub.fn)
		}
	}
	s.mu.RUnlock()

	for _, fn := range matched {
		fn(userID, count)
	}
}
