package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"notify-service/internal/adapters/kafka"
	"notify-service/internal/models"
)

const unreadCacheTTL = time.Hour

// Options configures a Center. Storage is required; Redis enables the
// cross-process change feed and the unread-count cache; Producer enables
// publishing sent notifications for downstream delivery workers.
type Options struct {
	Storage  Storage
	Redis    *redis.Client
	Producer *kafka.Producer
}

// Center is the notification engine. Construction is cheap; Start performs
// the slow, failable setup and is expected to run behind the readiness gate.
type Center struct {
	storage   Storage
	rdb       *redis.Client
	producer  *kafka.Producer
	subs      *subscribers
	templates *templateRegistry
	sched     *scheduler
	feed      *changeFeed
	origin    string

	started atomic.Bool
	cancel  context.CancelFunc
}

func NewCenter(opts Options) *Center {
	c := &Center{
		storage:   opts.Storage,
		rdb:       opts.Redis,
		producer:  opts.Producer,
		subs:      newSubscribers(),
		templates: newTemplateRegistry(),
		origin:    uuid.New().String(),
	}
	c.sched = newScheduler(c.sendScheduled)
	if c.rdb != nil {
		c.feed = newChangeFeed(c.rdb, c.origin, c.subs)
	}
	return c
}

func (c *Center) Start(ctx context.Context) error {
	if err := c.storage.Migrate(ctx); err != nil {
		return fmt.Errorf("storage migration: %w", err)
	}
	if c.rdb != nil {
		if err := c.rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	if c.feed != nil {
		c.feed.start(runCtx)
	}
	c.sched.run(runCtx)

	c.started.Store(true)
	slog.Info("Notification engine started", "origin", c.origin)
	return nil
}

func (c *Center) Stop(ctx context.Context) error {
	if !c.started.CompareAndSwap(true, false) {
		return nil
	}
	c.cancel()
	if c.feed != nil {
		c.feed.stop()
	}
	c.sched.wait()
	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			slog.Error("Failed to close kafka producer", "error", err)
		}
	}
	slog.Info("Notification engine stopped")
	return nil
}

// ========== Send operations ==========

func (c *Center) Send(ctx context.Context, input models.NotificationInput) (*models.Notification, error) {
	if !c.started.Load() {
		return nil, ErrNotStarted
	}

	input = c.templates.apply(input)

	n := &models.Notification{
		ID:        uuid.New().String(),
		UserID:    input.UserID,
		Type:      input.Type,
		Category:  input.Category,
		Title:     input.Title,
		Body:      input.Body,
		Data:      input.Data,
		Status:    models.StatusUnread,
		CreatedAt: time.Now().UTC(),
	}

	if err := c.storage.Insert(ctx, n); err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}

	count := c.refreshUnreadCount(ctx, n.UserID)
	if c.feed != nil {
		c.feed.publishNotification(ctx, n)
		c.feed.publishUnreadCount(ctx, n.UserID, count)
	}

	if c.producer != nil && c.deliverable(ctx, n) {
		if err := c.producer.Publish(n); err != nil {
			// Delivery channels are downstream consumers; a broker outage
			// must not fail the in-app send.
			slog.Error("Failed to publish notification to kafka", "notificationID", n.ID, "error", err)
		}
	}

	return n, nil
}

func (c *Center) SendBatch(ctx context.Context, inputs []models.NotificationInput) ([]*models.Notification, error) {
	out := make([]*models.Notification, 0, len(inputs))
	for _, input := range inputs {
		n, err := c.Send(ctx, input)
		if err != nil {
			return out, err
		}
		out = append(out, n)
	}
	return out, nil
}

// sendScheduled delivers a due scheduled notification. No service-layer call
// surrounds these sends, so local subscribers are dispatched here directly;
// without this the scheduling process's own connections would never see the
// notification (the change feed skips its own origin).
func (c *Center) sendScheduled(ctx context.Context, input models.NotificationInput) (*models.Notification, error) {
	n, err := c.Send(ctx, input)
	if err != nil {
		return nil, err
	}

	c.subs.dispatchNotification(n)
	if count, err := c.GetUnreadCount(ctx, n.UserID); err == nil {
		c.subs.dispatchCount(n.UserID, count)
	}
	return n, nil
}

func (c *Center) Schedule(ctx context.Context, input models.NotificationInput, when time.Time) (string, error) {
	if !c.started.Load() {
		return "", ErrNotStarted
	}
	return c.sched.add(input, when), nil
}

// ========== Query operations ==========

func (c *Center) GetForUser(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error) {
	return c.storage.ListForUser(ctx, userID, filters)
}

func (c *Center) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	return c.storage.Get(ctx, id)
}

func (c *Center) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	if c.rdb != nil {
		if cached, err := c.rdb.Get(ctx, unreadCacheKey(userID)).Result(); err == nil {
			if count, convErr := strconv.ParseInt(cached, 10, 64); convErr == nil {
				return count, nil
			}
		}
	}

	count, err := c.storage.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	c.cacheUnreadCount(ctx, userID, count)
	return count, nil
}

func (c *Center) GetStats(ctx context.Context, userID string) (*models.NotificationStats, error) {
	return c.storage.Stats(ctx, userID)
}

// ========== State operations ==========

func (c *Center) MarkAsRead(ctx context.Context, id string) error {
	n, err := c.storage.MarkRead(ctx, id)
	if err != nil {
		return err
	}

	count := c.refreshUnreadCount(ctx, n.UserID)
	if c.feed != nil {
		c.feed.publishUnreadCount(ctx, n.UserID, count)
	}
	return nil
}

func (c *Center) MarkAllAsRead(ctx context.Context, userID string) error {
	if err := c.storage.MarkAllRead(ctx, userID); err != nil {
		return err
	}
	c.cacheUnreadCount(ctx, userID, 0)
	if c.feed != nil {
		c.feed.publishUnreadCount(ctx, userID, 0)
	}
	return nil
}

func (c *Center) Delete(ctx context.Context, id string) error {
	n, err := c.storage.Delete(ctx, id)
	if err != nil {
		return err
	}

	if n.Status == models.StatusUnread {
		count := c.refreshUnreadCount(ctx, n.UserID)
		if c.feed != nil {
			c.feed.publishUnreadCount(ctx, n.UserID, count)
		}
	}
	return nil
}

func (c *Center) DeleteAll(ctx context.Context, userID string) error {
	if err := c.storage.DeleteAll(ctx, userID); err != nil {
		return err
	}
	c.cacheUnreadCount(ctx, userID, 0)
	if c.feed != nil {
		c.feed.publishUnreadCount(ctx, userID, 0)
	}
	return nil
}

// ========== Preferences ==========

func (c *Center) GetPreferences(ctx context.Context, userID string) (*models.Preference, error) {
	return c.storage.GetPreference(ctx, userID)
}

func (c *Center) UpdatePreferences(ctx context.Context, userID string, update models.PreferenceUpdate) error {
	pref, err := c.storage.GetPreference(ctx, userID)
	if err != nil {
		return err
	}
	if update.Enabled != nil {
		pref.Enabled = *update.Enabled
	}
	if update.MutedCategories != nil {
		pref.MutedCategories = *update.MutedCategories
	}
	if update.Channels != nil {
		pref.Channels = *update.Channels
	}
	pref.UserID = userID
	pref.UpdatedAt = time.Now().UTC()
	return c.storage.SavePreference(ctx, pref)
}

// ========== Templates ==========

func (c *Center) RegisterTemplate(tmpl models.Template) {
	c.templates.register(tmpl)
	slog.Info("Notification template registered", "type", tmpl.Type)
}

// ========== Subscriptions ==========

// Subscribe observes notification changes arriving through the change feed
// (changes made by other processes sharing the same storage) and due scheduled
// sends, which have no service-layer call to announce them. API-origin changes
// made through this process surface via the service layer's emitter instead.
func (c *Center) Subscribe(scope Scope, fn func(*models.Notification)) Unsubscribe {
	return c.subs.addNotification(scope, fn)
}

func (c *Center) OnUnreadCountChange(scope Scope, fn func(userID string, count int64)) Unsubscribe {
	return c.subs.addCount(scope, fn)
}

// ========== Health ==========

func (c *Center) HealthCheck(ctx context.Context) map[string]bool {
	health := map[string]bool{
		"started": c.started.Load(),
		"storage": c.storage.Ping(ctx) == nil,
	}
	if c.rdb != nil {
		health["redis"] = c.rdb.Ping(ctx).Err() == nil
	}
	return health
}

// ========== Internals ==========

// refreshUnreadCount recomputes the user's unread count from storage and
// refreshes the cache. Returns 0 on error; the count event is advisory and
// clients can always re-query.
func (c *Center) refreshUnreadCount(ctx context.Context, userID string) int64 {
	count, err := c.storage.CountUnread(ctx, userID)
	if err != nil {
		slog.Error("Failed to count unread notifications", "userID", userID, "error", err)
		return 0
	}
	c.cacheUnreadCount(ctx, userID, count)
	return count
}

func (c *Center) cacheUnreadCount(ctx context.Context, userID string, count int64) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, unreadCacheKey(userID), count, unreadCacheTTL).Err(); err != nil {
		slog.Error("Failed to cache unread count", "userID", userID, "error", err)
	}
}

// deliverable checks the user's preferences before handing a notification to
// delivery channels. The in-app record is stored regardless.
func (c *Center) deliverable(ctx context.Context, n *models.Notification) bool {
	pref, err := c.storage.GetPreference(ctx, n.UserID)
	if err != nil {
		slog.Error("Failed to load preferences", "userID", n.UserID, "error", err)
		return true
	}
	if !pref.Enabled {
		return false
	}
	for _, muted := range pref.MutedCategories {
		if muted == n.Category {
			return false
		}
	}
	return true
}

func unreadCacheKey(userID string) string {
	return "notify:unread:" + userID
}
