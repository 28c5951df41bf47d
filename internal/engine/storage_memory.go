package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"notify-service/internal/models"
)

// MemoryStorage keeps everything in process. Used by tests and by
// deployments that only need the realtime layer without durability.
type MemoryStorage struct {
	mu            sync.RWMutex
	notifications map[string]*models.Notification
	preferences   map[string]*models.Preference
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		notifications: make(map[string]*models.Notification),
		preferences:   make(map[string]*models.Preference),
	}
}

func (s *MemoryStorage) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStorage) Ping(ctx context.Context) error    { return nil }

func (s *MemoryStorage) Insert(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, id string) (*models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *MemoryStorage) ListForUser(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error) {
	s.mu.RLock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if filters.Status != nil && n.Status != *filters.Status {
			continue
		}
		if filters.Type != "" && n.Type != filters.Type {
			continue
		}
		if filters.Category != "" && n.Category != filters.Category {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			return nil, nil
		}
		out = out[filters.Offset:]
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (s *MemoryStorage) CountUnread(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, n := range s.notifications {
		if n.UserID == userID && n.Status == models.StatusUnread {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) Stats(ctx context.Context, userID string) (*models.NotificationStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.NotificationStats{
		ByType:     make(map[string]int64),
		ByCategory: make(map[string]int64),
	}
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		stats.Total++
		if n.Status == models.StatusUnread {
			stats.Unread++
		}
		stats.ByType[n.Type]++
		if n.Category != "" {
			stats.ByCategory[n.Category]++
		}
	}
	stats.Read = stats.Total - stats.Unread
	return stats, nil
}

func (s *MemoryStorage) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	if n.Status != models.StatusRead {
		now := time.Now().UTC()
		n.Status = models.StatusRead
		n.ReadAt = &now
	}
	cp := *n
	return &cp, nil
}

func (s *MemoryStorage) MarkAllRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	for _, n := range s.notifications {
		if n.UserID == userID && n.Status == models.StatusUnread {
			n.Status = models.StatusRead
			n.ReadAt = &now
		}
	}
	return nil
}

func (s *MemoryStorage) Delete(ctx context.Context, id string) (*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.notifications, id)
	return n, nil
}

func (s *MemoryStorage) DeleteAll(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, n := range s.notifications {
		if n.UserID == userID {
			delete(s.notifications, id)
		}
	}
	return nil
}

func (s *MemoryStorage) GetPreference(ctx context.Context, userID string) (*models.Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pref, ok := s.preferences[userID]
	if !ok {
		return &models.Preference{UserID: userID, Enabled: true}, nil
	}
	cp := *pref
	return &cp, nil
}

func (s *MemoryStorage) SavePreference(ctx context.Context, pref *models.Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *pref
	s.preferences[pref.UserID] = &cp
	return nil
}
