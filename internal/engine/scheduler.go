package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"notify-service/internal/models"
)

type scheduledSend struct {
	id    string
	input models.NotificationInput
	due   time.Time
}

// scheduler holds pending sends in memory and hands them to the send
// function when due. Entries do not survive a restart.
type scheduler struct {
	mu      sync.Mutex
	pending map[string]scheduledSend
	send    func(ctx context.Context, input models.NotificationInput) (*models.Notification, error)
	tick    time.Duration
	wg      sync.WaitGroup
}

func newScheduler(send func(ctx context.Context, input models.NotificationInput) (*models.Notification, error)) *scheduler {
	return &scheduler{
		pending: make(map[string]scheduledSend),
		send:    send,
		tick:    time.Second,
	}
}

func (s *scheduler) add(input models.NotificationInput, when time.Time) string {
	id := uuid.New().String()
	s.mu.Lock()
	s.pending[id] = scheduledSend{id: id, input: input, due: when}
	s.mu.Unlock()
	return id
}

func (s *scheduler) run(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.flush(ctx, now)
			}
		}
	}()
}

func (s *scheduler) flush(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var due []scheduledSend
	for id, entry := range s.pending {
		if !entry.due.After(now) {
			due = append(due, entry)
			delete(s.pending, id)
		}
	}
	s.mu.Unlock()

	for _, entry := range due {
		if _, err := s.send(ctx, entry.input); err != nil {
			slog.Error("Scheduled send failed", "scheduleID", entry.id, "userID", entry.input.UserID, "error", err)
		}
	}
}

func (s *scheduler) wait() {
	s.wg.Wait()
}
