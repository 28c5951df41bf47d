package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"notify-service/internal/engine"
	"notify-service/internal/gate"
	"notify-service/internal/models"
)

// NotificationService is the command/query surface over the engine. Every
// operation first waits on the readiness gate, so callers constructed before
// the engine finished starting neither race a half-initialized engine nor
// hang once startup has failed. State-changing operations additionally emit
// local events for the realtime layer.
type NotificationService struct {
	gate    *gate.Gate
	emitter *emitter
}

func New(g *gate.Gate) *NotificationService {
	return &NotificationService{
		gate:    g,
		emitter: newEmitter(),
	}
}

// ========== Local events (websocket bridge wiring) ==========

func (s *NotificationService) OnNotificationSent(fn func(*models.Notification)) engine.Unsubscribe {
	return s.emitter.onSent(fn)
}

func (s *NotificationService) OnUnreadCountChanged(fn func(userID string, count int64)) engine.Unsubscribe {
	return s.emitter.onUnread(fn)
}

// AwaitEngine exposes the gate for components that need engine-level
// subscriptions (the websocket bridge's change-feed leg).
func (s *NotificationService) AwaitEngine(ctx context.Context) (engine.Engine, error) {
	return s.gate.AwaitReady(ctx)
}

// ========== Send operations ==========

func (s *NotificationService) Send(ctx context.Context, input models.NotificationInput) (*models.Notification, error) {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return nil, err
	}

	n, err := eng.Send(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("send notification: %w", err)
	}

	s.emitter.emitSent(n)
	s.emitUnreadCountFor(ctx, eng, n.UserID)
	return n, nil
}

func (s *NotificationService) SendBatch(ctx context.Context, inputs []models.NotificationInput) ([]*models.Notification, error) {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return nil, err
	}

	notifications, err := eng.SendBatch(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("send batch: %w", err)
	}

	users := make(map[string]struct{}, len(notifications))
	for _, n := range notifications {
		s.emitter.emitSent(n)
		users[n.UserID] = struct{}{}
	}
	for userID := range users {
		s.emitUnreadCountFor(ctx, eng, userID)
	}
	return notifications, nil
}

func (s *NotificationService) Schedule(ctx context.Context, input models.NotificationInput, when time.Time) (string, error) {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return "", err
	}
	return eng.Schedule(ctx, input, when)
}

// ========== Query operations ==========

func (s *NotificationService) GetForUser(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error) {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return nil, err
	}
	return eng.GetForUser(ctx, userID, filters)
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return nil, err
	}
	return eng.GetByID(ctx, id)
}

func (s *NotificationService) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return 0, err
	}
	return eng.GetUnreadCount(ctx, userID)
}

func (s *NotificationService) GetStats(ctx context.Context, userID string) (*models.NotificationStats, error) {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return nil, err
	}
	return eng.GetStats(ctx, userID)
}

// ========== State operations ==========

// MarkAsRead marks one notification read and derives the owner's new unread
// count locally. The engine's own change event may deliver the same count
// again later; clients treat that as an idempotent duplicate.
func (s *NotificationService) MarkAsRead(ctx context.Context, id string) error {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return err
	}

	n, err := eng.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := eng.MarkAsRead(ctx, id); err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}

	s.emitUnreadCountFor(ctx, eng, n.UserID)
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return err
	}
	if err := eng.MarkAllAsRead(ctx, userID); err != nil {
		return fmt.Errorf("mark all as read: %w", err)
	}

	s.emitter.emitUnread(userID, 0)
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, id string) error {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return err
	}

	n, err := eng.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := eng.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	if n.Status == models.StatusUnread {
		s.emitUnreadCountFor(ctx, eng, n.UserID)
	}
	return nil
}

func (s *NotificationService) DeleteAll(ctx context.Context, userID string) error {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return err
	}
	if err := eng.DeleteAll(ctx, userID); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}

	s.emitter.emitUnread(userID, 0)
	return nil
}

// ========== Preferences ==========

func (s *NotificationService) GetPreferences(ctx context.Context, userID string) (*models.Preference, error) {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return nil, err
	}
	return eng.GetPreferences(ctx, userID)
}

func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, update models.PreferenceUpdate) error {
	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return err
	}
	return eng.UpdatePreferences(ctx, userID, update)
}

// ========== Templates ==========

// RegisterTemplate defers registration until the engine is ready without
// blocking the caller.
func (s *NotificationService) RegisterTemplate(tmpl models.Template) {
	go func() {
		eng, err := s.gate.AwaitReady(context.Background())
		if err != nil {
			slog.Error("Template registration dropped", "type", tmpl.Type, "error", err)
			return
		}
		eng.RegisterTemplate(tmpl)
	}()
}

// ========== Health ==========

// HealthCheck reports the gate state and, when ready, the engine's own
// component health. It never waits on an unfinished initialization.
func (s *NotificationService) HealthCheck(ctx context.Context) (gate.State, map[string]bool) {
	state := s.gate.State()
	if state != gate.StateReady {
		return state, nil
	}

	eng, err := s.gate.AwaitReady(ctx)
	if err != nil {
		return s.gate.State(), nil
	}
	return state, eng.HealthCheck(ctx)
}

func (s *NotificationService) emitUnreadCountFor(ctx context.Context, eng engine.Engine, userID string) {
	count, err := eng.GetUnreadCount(ctx, userID)
	if err != nil {
		slog.Error("Failed to derive unread count", "userID", userID, "error", err)
		return
	}
	s.emitter.emitUnread(userID, count)
}
