package engine

import (
	"context"

	"notify-service/internal/models"
)

// Storage is the persistence boundary of the engine. The production
// implementation is GormStorage; MemoryStorage backs tests and small
// deployments without a database.
type Storage interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error

	Insert(ctx context.Context, n *models.Notification) error
	Get(ctx context.Context, id string) (*models.Notification, error)
	ListForUser(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context, userID string) (*models.NotificationStats, error)

	// MarkRead returns the updated notification so callers can learn the
	// owning user without a second lookup.
	MarkRead(ctx context.Context, id string) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) (*models.Notification, error)
	DeleteAll(ctx context.Context, userID string) error

	GetPreference(ctx context.Context, userID string) (*models.Preference, error)
	SavePreference(ctx context.Context, pref *models.Preference) error
}
