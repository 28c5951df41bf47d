package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"notify-service/internal/models"
)

// EventType identifies an outbound realtime event using a custom enum type
// for better type safety.
type EventType string

const (
	// Sent once after connect: recent notifications plus unread count.
	EventTypeInitialData EventType = "initial-data"

	// A notification was created for this user.
	EventTypeNotification EventType = "notification"

	// The user's unread count changed.
	EventTypeUnreadCount EventType = "unread-count"

	// Acknowledgement for an inbound command.
	EventTypeAck EventType = "ack"

	// Error events
	EventTypeError EventType = "error"
)

// String returns the string representation of the EventType
func (et EventType) String() string {
	return string(et)
}

// CommandType identifies an inbound client command.
type CommandType string

const (
	CommandMarkAsRead  CommandType = "mark-as-read"
	CommandMarkAllRead CommandType = "mark-all-read"
	CommandDelete      CommandType = "delete"
)

// IsValid checks if the CommandType is a valid enum value
func (ct CommandType) IsValid() bool {
	switch ct {
	case CommandMarkAsRead, CommandMarkAllRead, CommandDelete:
		return true
	default:
		return false
	}
}

// Event is the outbound envelope pushed to clients.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// Command is the inbound envelope read from clients.
type Command struct {
	ID   string      `json:"id"`
	Type CommandType `json:"type"`
	Data CommandData `json:"data"`
}

type CommandData struct {
	NotificationID string `json:"notificationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
}

// Validate validates the command structure and type
func (c *Command) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid command type: %s", c.Type)
	}
	switch c.Type {
	case CommandMarkAsRead, CommandDelete:
		if c.Data.NotificationID == "" {
			return fmt.Errorf("notificationId is required for %s", c.Type)
		}
	case CommandMarkAllRead:
		if c.Data.UserID == "" {
			return fmt.Errorf("userId is required for %s", c.Type)
		}
	}
	return nil
}

// Event constructors for type safety and consistency

func NewEvent(id string, eventType EventType, data map[string]interface{}) *Event {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &Event{
		ID:        id,
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
}

// NewInitialDataEvent carries the post-connect snapshot.
func NewInitialDataEvent(id string, notifications []*models.Notification, unreadCount int64) *Event {
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	return NewEvent(id, EventTypeInitialData, map[string]interface{}{
		"notifications": toJSONValue(notifications),
		"unreadCount":   unreadCount,
	})
}

func NewNotificationEvent(id string, n *models.Notification) *Event {
	return NewEvent(id, EventTypeNotification, map[string]interface{}{
		"notification": toJSONValue(n),
	})
}

func NewUnreadCountEvent(id string, count int64) *Event {
	return NewEvent(id, EventTypeUnreadCount, map[string]interface{}{
		"count": count,
	})
}

// NewAckEvent acknowledges the command with the given id. A non-empty code
// marks failure.
func NewAckEvent(commandID string, code, message string) *Event {
	data := map[string]interface{}{
		"success": code == "",
	}
	if code != "" {
		data["code"] = code
		data["message"] = message
	}
	return NewEvent(commandID, EventTypeAck, data)
}

func NewErrorEvent(id, code, message string) *Event {
	return NewEvent(id, EventTypeError, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}

// toJSONValue converts a struct to its generic JSON form so the envelope's
// Data map serializes uniformly.
func toJSONValue(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
