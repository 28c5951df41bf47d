package models

import (
	"time"
)

// NotificationStatus represents the read state of a notification using a
// custom enum type for better type safety
type NotificationStatus string

const (
	StatusUnread NotificationStatus = "unread"
	StatusRead   NotificationStatus = "read"
)

// String returns the string representation of the NotificationStatus
func (s NotificationStatus) String() string {
	return string(s)
}

// IsValid checks if the NotificationStatus is a valid enum value
func (s NotificationStatus) IsValid() bool {
	return s == StatusUnread || s == StatusRead
}

// Notification is the engine-owned record. The realtime layer never mutates
// it directly; state transitions go through the engine.
type Notification struct {
	ID        string                 `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string                 `gorm:"index:idx_notifications_user;not null" json:"userId"`
	Type      string                 `gorm:"index" json:"type"`
	Category  string                 `gorm:"index" json:"category"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `gorm:"serializer:json" json:"data,omitempty"`
	Status    NotificationStatus     `gorm:"index:idx_notifications_user;default:unread" json:"status"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// NotificationInput is the payload accepted by the send operations. Title and
// Body may be left empty when Type matches a registered template.
type NotificationInput struct {
	UserID   string                 `json:"userId" binding:"required"`
	Type     string                 `json:"type" binding:"required"`
	Category string                 `json:"category"`
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// NotificationFilters narrows query results for a user's notifications.
type NotificationFilters struct {
	Status   *NotificationStatus `json:"status,omitempty" form:"status"`
	Type     string              `json:"type,omitempty" form:"type"`
	Category string              `json:"category,omitempty" form:"category"`
	Limit    int                 `json:"limit,omitempty" form:"limit"`
	Offset   int                 `json:"offset,omitempty" form:"offset"`
}

// NotificationStats summarizes a user's notification state.
type NotificationStats struct {
	Total      int64            `json:"total"`
	Unread     int64            `json:"unread"`
	Read       int64            `json:"read"`
	ByType     map[string]int64 `json:"byType"`
	ByCategory map[string]int64 `json:"byCategory"`
}

// Preference holds a user's delivery preferences.
type Preference struct {
	UserID          string          `gorm:"primaryKey" json:"userId"`
	Enabled         bool            `gorm:"default:true" json:"enabled"`
	MutedCategories []string        `gorm:"serializer:json" json:"mutedCategories,omitempty"`
	Channels        map[string]bool `gorm:"serializer:json" json:"channels,omitempty"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// PreferenceUpdate is a partial update; nil fields are left unchanged.
type PreferenceUpdate struct {
	Enabled         *bool            `json:"enabled,omitempty"`
	MutedCategories *[]string        `json:"mutedCategories,omitempty"`
	Channels        *map[string]bool `json:"channels,omitempty"`
}

// Template renders Title/Body for notifications of a given type. Placeholders
// use {{key}} syntax resolved against the input's Data map.
type Template struct {
	Type            string `json:"type" binding:"required"`
	Title           string `json:"title" binding:"required"`
	Body            string `json:"body"`
	DefaultCategory string `json:"defaultCategory"`
}
