package engine

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"notify-service/internal/models"
)

// GormStorage persists notifications in Postgres through GORM.
type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.Notification{},
		&models.Preference{},
	)
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStorage) Insert(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *GormStorage) Get(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *GormStorage) ListForUser(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)

	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.Type != "" {
		q = q.Where("type = ?", filters.Type)
	}
	if filters.Category != "" {
		q = q.Where("category = ?", filters.Category)
	}
	if filters.Limit > 0 {
		q = q.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		q = q.Offset(filters.Offset)
	}

	var out []*models.Notification
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStorage) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.StatusUnread).
		Count(&count).Error
	return count, err
}

func (s *GormStorage) Stats(ctx context.Context, userID string) (*models.NotificationStats, error) {
	stats := &models.NotificationStats{
		ByType:     make(map[string]int64),
		ByCategory: make(map[string]int64),
	}

	base := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("status = ?", models.StatusUnread).Count(&stats.Unread).Error; err != nil {
		return nil, err
	}
	stats.Read = stats.Total - stats.Unread

	type bucket struct {
		Key   string
		Count int64
	}

	var byType []bucket
	err := base.Session(&gorm.Session{}).
		Select("type AS key, COUNT(*) AS count").Group("type").Scan(&byType).Error
	if err != nil {
		return nil, err
	}
	for _, b := range byType {
		stats.ByType[b.Key] = b.Count
	}

	var byCategory []bucket
	err = base.Session(&gorm.Session{}).
		Select("category AS key, COUNT(*) AS count").Group("category").Scan(&byCategory).Error
	if err != nil {
		return nil, err
	}
	for _, b := range byCategory {
		stats.ByCategory[b.Key] = b.Count
	}

	return stats, nil
}

func (s *GormStorage) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status == models.StatusRead {
		return n, nil
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Model(n).
		Updates(map[string]interface{}{"status": models.StatusRead, "read_at": now}).Error
	if err != nil {
		return nil, err
	}
	n.Status = models.StatusRead
	n.ReadAt = &now
	return n, nil
}

func (s *GormStorage) MarkAllRead(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.StatusUnread).
		Updates(map[string]interface{}{"status": models.StatusRead, "read_at": now}).Error
}

func (s *GormStorage) Delete(ctx context.Context, id string) (*models.Notification, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Notification{}, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return n, nil
}

func (s *GormStorage) DeleteAll(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Delete(&models.Notification{}, "user_id = ?", userID).Error
}

func (s *GormStorage) GetPreference(ctx context.Context, userID string) (*models.Preference, error) {
	var pref models.Preference
	err := s.db.WithContext(ctx).First(&pref, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Unknown users get the defaults rather than an error.
		return &models.Preference{UserID: userID, Enabled: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func (s *GormStorage) SavePreference(ctx context.Context, pref *models.Preference) error {
	return s.db.WithContext(ctx).Save(pref).Error
}
