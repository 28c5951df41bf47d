package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-service/internal/engine"
	"notify-service/internal/gate"
	"notify-service/internal/models"
)

// fakeCommands counts service calls and returns canned results.
type fakeCommands struct {
	mu sync.Mutex

	notifications []*models.Notification
	unreadCount   int64
	err           error

	getForUserCalls    int
	unreadCountCalls   int
	markAsReadCalls    int
	markAllAsReadCalls int
	deleteCalls        int
}

func (f *fakeCommands) GetForUser(ctx context.Context, userID string, filters models.NotificationFilters) ([]*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getForUserCalls++
	return f.notifications, f.err
}

func (f *fakeCommands) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreadCountCalls++
	return f.unreadCount, f.err
}

func (f *fakeCommands) MarkAsRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAsReadCalls++
	return f.err
}

func (f *fakeCommands) MarkAllAsRead(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markAllAsReadCalls++
	return f.err
}

func (f *fakeCommands) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.err
}

func (f *fakeCommands) calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch name {
	case "GetForUser":
		return f.getForUserCalls
	case "GetUnreadCount":
		return f.unreadCountCalls
	case "MarkAsRead":
		return f.markAsReadCalls
	case "MarkAllAsRead":
		return f.markAllAsReadCalls
	case "Delete":
		return f.deleteCalls
	}
	return 0
}

// newTestClient builds a client without a network connection. SendEvent only
// touches the send channel, which is all these tests exercise.
func newTestClient(userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     uuid.New().String(),
		userID: userID,
		send:   make(chan []byte, 16),
		ctx:    ctx,
		cancel: cancel,
	}
}

// nextEvent waits for the client's next queued event.
func nextEvent(t *testing.T, c *Client) *Event {
	t.Helper()
	select {
	case data := <-c.send:
		var evt Event
		require.NoError(t, json.Unmarshal(data, &evt))
		return &evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHandleConnectRegistersAndPushesSnapshot(t *testing.T) {
	svc := &fakeCommands{
		notifications: []*models.Notification{
			{ID: "n1", UserID: "alice", Title: "first", Status: models.StatusUnread},
			{ID: "n2", UserID: "alice", Title: "second", Status: models.StatusRead},
		},
		unreadCount: 1,
	}
	session := NewSession(NewHub(), svc)
	c := newTestClient("alice")

	session.HandleConnect(c)

	assert.ElementsMatch(t, []string{c.id}, session.hub.Registry().ConnectionsFor("alice"))

	evt := nextEvent(t, c)
	assert.Equal(t, EventTypeInitialData, evt.Type)
	assert.Equal(t, float64(1), evt.Data["unreadCount"])
	notifications, ok := evt.Data["notifications"].([]interface{})
	require.True(t, ok)
	assert.Len(t, notifications, 2)
}

func TestHandleConnectSnapshotFailureKeepsConnection(t *testing.T) {
	svc := &fakeCommands{err: fmt.Errorf("%w: init failed", gate.ErrUnavailable)}
	session := NewSession(NewHub(), svc)
	c := newTestClient("alice")

	session.HandleConnect(c)

	// The client stays registered even though the snapshot failed.
	require.Eventually(t, func() bool {
		return svc.calls("GetForUser") == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{c.id}, session.hub.Registry().ConnectionsFor("alice"))
	assert.Empty(t, c.send)
}

func TestHandleDisconnectCleansRegistry(t *testing.T) {
	session := NewSession(NewHub(), &fakeCommands{})
	c := newTestClient("alice")

	session.HandleConnect(c)
	session.HandleDisconnect(c)

	assert.Empty(t, session.hub.Registry().ConnectionsFor("alice"))
}

func TestHandleCommandMarkAsRead(t *testing.T) {
	svc := &fakeCommands{}
	session := NewSession(NewHub(), svc)
	c := newTestClient("alice")

	ack := session.HandleCommand(c, &Command{
		ID:   "cmd-1",
		Type: CommandMarkAsRead,
		Data: CommandData{NotificationID: "n1"},
	})

	assert.Equal(t, EventTypeAck, ack.Type)
	assert.Equal(t, "cmd-1", ack.ID)
	assert.Equal(t, true, ack.Data["success"])
	assert.Equal(t, 1, svc.calls("MarkAsRead"))
}

func TestHandleCommandCrossUserMarkAllReadRejected(t *testing.T) {
	svc := &fakeCommands{}
	session := NewSession(NewHub(), svc)
	c := newTestClient("alice")

	ack := session.HandleCommand(c, &Command{
		ID:   "cmd-1",
		Type: CommandMarkAllRead,
		Data: CommandData{UserID: "bob"},
	})

	assert.Equal(t, false, ack.Data["success"])
	assert.Equal(t, codeUnauthorized, ack.Data["code"])
	// The engine is never consulted for a rejected command.
	assert.Equal(t, 0, svc.calls("MarkAllAsRead"))
}

func TestHandleCommandOwnUserMarkAllRead(t *testing.T) {
	svc := &fakeCommands{}
	session := NewSession(NewHub(), svc)
	c := newTestClient("alice")

	ack := session.HandleCommand(c, &Command{
		ID:   "cmd-1",
		Type: CommandMarkAllRead,
		Data: CommandData{UserID: "alice"},
	})

	assert.Equal(t, true, ack.Data["success"])
	assert.Equal(t, 1, svc.calls("MarkAllAsRead"))
}

func TestHandleCommandDelete(t *testing.T) {
	svc := &fakeCommands{}
	session := NewSession(NewHub(), svc)
	c := newTestClient("alice")

	ack := session.HandleCommand(c, &Command{
		ID:   "cmd-1",
		Type: CommandDelete,
		Data: CommandData{NotificationID: "n1"},
	})

	assert.Equal(t, true, ack.Data["success"])
	assert.Equal(t, 1, svc.calls("Delete"))
}

func TestHandleCommandEngineUnavailable(t *testing.T) {
	svc := &fakeCommands{err: fmt.Errorf("%w: startup failed", gate.ErrUnavailable)}
	session := NewSession(NewHub(), svc)
	c := newTestClient("alice")

	ack := session.HandleCommand(c, &Command{
		ID:   "cmd-1",
		Type: CommandMarkAsRead,
		Data: CommandData{NotificationID: "n1"},
	})

	assert.Equal(t, false, ack.Data["success"])
	assert.Equal(t, codeEngineUnavailable, ack.Data["code"])
}

func TestHandleCommandNotFound(t *testing.T) {
	svc := &fakeCommands{err: engine.ErrNotFound}
	session := NewSession(NewHub(), svc)
	c := newTestClient("alice")

	ack := session.HandleCommand(c, &Command{
		ID:   "cmd-1",
		Type: CommandDelete,
		Data: CommandData{NotificationID: "missing"},
	})

	assert.Equal(t, false, ack.Data["success"])
	assert.Equal(t, codeNotFound, ack.Data["code"])
}

func TestHandleCommandInvalidMessage(t *testing.T) {
	svc := &fakeCommands{}
	session := NewSession(NewHub(), svc)
	c := newTestClient("alice")

	ack := session.HandleCommand(c, &Command{ID: "cmd-1", Type: "shout"})

	assert.Equal(t, false, ack.Data["success"])
	assert.Equal(t, codeInvalidMessage, ack.Data["code"])
	assert.Equal(t, 0, svc.calls("MarkAsRead"))
	assert.Equal(t, 0, svc.calls("Delete"))
}

func TestHandleCommandFailureIsScopedToIssuer(t *testing.T) {
	svc := &fakeCommands{err: engine.ErrNotFound}
	session := NewSession(NewHub(), svc)

	issuer := newTestClient("alice")
	other := newTestClient("alice")
	session.hub.Register(other.userID, other.id, other)

	ack := session.HandleCommand(issuer, &Command{
		ID:   "cmd-1",
		Type: CommandMarkAsRead,
		Data: CommandData{NotificationID: "missing"},
	})

	// The failure is confined to the returned ack; nothing is broadcast.
	assert.Equal(t, false, ack.Data["success"])
	assert.Empty(t, other.send)
}
