package engine

import (
	"context"
	"errors"
	"time"

	"notify-service/internal/models"
)

var (
	ErrNotFound   = errors.New("notification not found")
	ErrNotStarted = errors.New("engine not started")
)

// Unsubscribe removes a previously registered callback. Safe to call more
// than once.
type Unsubscribe func()

// Engine is the capability set the realtime layer consumes. The shipped
// implementation is Center, but the realtime layer only ever sees this
// interface, which keeps it testable against fakes.
type Engine interface {
	// Lifecycle. Start performs the slow, failable setup (migrations,
	// connection checks, background workers) and is expected to be driven
	// through the readiness gate rather than called directly by consumers.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// Send operations.
	Send(ctx context.Context, input models.NotificationInput) (*models.Notification, error)
	SendBatch(ctx context.Context, inputs []models.NotificationInput) ([]*models.Notification, error)
	Schedule(ctx context.Context, input models.NotificationInput, when time.Time) (string, error)

	// Query operations.
	GetForUser(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
	GetStats(ctx context.Context, userID string) (*models.NotificationStats, error)

	// State operations.
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context, userID string) error

	// Preferences.
	GetPreferences(ctx context.Context, userID string) (*models.Preference, error)
	UpdatePreferences(ctx context.Context, userID string, update models.PreferenceUpdate) error

	// Templates.
	RegisterTemplate(tmpl models.Template)

	// Subscriptions deliver engine-originated changes (including changes
	// made by other processes sharing the same storage) to callbacks.
	Subscribe(scope Scope, fn func(*models.Notification)) Unsubscribe
	OnUnreadCountChange(scope Scope, fn func(userID string, count int64)) Unsubscribe

	// Health.
	HealthCheck(ctx context.Context) map[string]bool
}

// Scope selects which users a subscription observes. It replaces the magic
// "*" wildcard string with an explicit variant.
type Scope struct {
	all    bool
	userID string
}

func ScopeAll() Scope {
	return Scope{all: true}
}

func ScopeUser(userID string) Scope {
	return Scope{userID: userID}
}

// Matches reports whether an event for userID falls inside the scope.
func (s Scope) Matches(userID string) bool {
	return s.all || s.userID == userID
}

func (s Scope) String() string {
	if s.all {
		return "all"
	}
	return "user:" + s.userID
}
