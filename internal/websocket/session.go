package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"notify-service/internal/engine"
	"notify-service/internal/gate"
	"notify-service/internal/models"
)

// Ack failure codes.
const (
	codeUnauthorized      = "UNAUTHORIZED"
	codeEngineUnavailable = "ENGINE_UNAVAILABLE"
	codeNotFound          = "NOT_FOUND"
	codeOperationFailed   = "OPERATION_FAILED"
	codeInvalidMessage    = "INVALID_MESSAGE"
)

// NotificationCommands is the slice of the service the session handler
// needs. Kept narrow so tests can count calls.
type NotificationCommands interface {
	GetForUser(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error)
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
}

// Session drives the per-connection lifecycle: register and snapshot on
// connect, command dispatch while connected, registry cleanup on disconnect.
type Session struct {
	hub *Hub
	svc NotificationCommands

	snapshotLimit  int
	commandTimeout time.Duration
}

func NewSession(hub *Hub, svc NotificationCommands) *Session {
	return &Session{
		hub:            hub,
		svc:            svc,
		snapshotLimit:  20,
		commandTimeout: 10 * time.Second,
	}
}

// HandleConnect registers the client and pushes the initial snapshot in the
// background. Snapshot failure is logged but never closes the connection;
// the client falls back to subsequent pushes and queries.
func (s *Session) HandleConnect(c *Client) {
	s.hub.Register(c.userID, c.id, c)
	go s.pushInitialData(c)
}

func (s *Session) HandleDisconnect(c *Client) {
	s.hub.Unregister(c.userID, c.id)
}

// HandleCommand executes one inbound command and returns its
// acknowledgement. Errors are returned to the issuing connection only;
// resulting unread-count changes reach all of the user's connections through
// the broadcast path.
func (s *Session) HandleCommand(c *Client, cmd *Command) *Event {
	if err := cmd.Validate(); err != nil {
		return NewAckEvent(cmd.ID, codeInvalidMessage, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.ctx, s.commandTimeout)
	defer cancel()

	var err error
	switch cmd.Type {
	case CommandMarkAsRead:
		err = s.svc.MarkAsRead(ctx, cmd.Data.NotificationID)

	case CommandMarkAllRead:
		// A connection may only clear its own user's notifications.
		if cmd.Data.UserID != c.userID {
			slog.Warn("Cross-user mark-all-read rejected", "connID", c.id, "userID", c.userID, "target", cmd.Data.UserID)
			return NewAckEvent(cmd.ID, codeUnauthorized, "cannot modify another user's notifications")
		}
		err = s.svc.MarkAllAsRead(ctx, cmd.Data.UserID)

	case CommandDelete:
		err = s.svc.Delete(ctx, cmd.Data.NotificationID)
	}

	if err != nil {
		slog.Error("Command failed", "connID", c.id, "userID", c.userID, "command", cmd.Type, "error", err)
		return NewAckEvent(cmd.ID, ackCode(err), err.Error())
	}
	return NewAckEvent(cmd.ID, "", "")
}

func (s *Session) pushInitialData(c *Client) {
	ctx, cancel := context.WithTimeout(c.ctx, s.commandTimeout)
	defer cancel()

	notifications, err := s.svc.GetForUser(ctx, c.userID, models.NotificationFilters{Limit: s.snapshotLimit})
	if err != nil {
		slog.Error("Failed to fetch initial notifications", "connID", c.id, "userID", c.userID, "error", err)
		return
	}
	unreadCount, err := s.svc.GetUnreadCount(ctx, c.userID)
	if err != nil {
		slog.Error("Failed to fetch unread count", "connID", c.id, "userID", c.userID, "error", err)
		return
	}

	evt := NewInitialDataEvent(uuid.New().String(), notifications, unreadCount)
	if err := c.SendEvent(evt); err != nil {
		slog.Debug("Initial data not delivered", "connID", c.id, "userID", c.userID, "error", err)
	}
}

func ackCode(err error) string {
	switch {
	case errors.Is(err, gate.ErrUnavailable):
		return codeEngineUnavailable
	case errors.Is(err, engine.ErrNotFound):
		return codeNotFound
	default:
		return codeOperationFailed
	}
}
