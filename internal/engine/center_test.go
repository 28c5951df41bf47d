package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-service/internal/models"
)

func newStartedCenter(t *testing.T) *Center {
	t.Helper()
	c := NewCenter(Options{Storage: NewMemoryStorage()})
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Stop(context.Background()) })
	return c
}

func sendTestNotification(t *testing.T, c *Center, userID, title string) *models.Notification {
	t.Helper()
	n, err := c.Send(context.Background(), models.NotificationInput{
		UserID: userID,
		Type:   "message",
		Title:  title,
		Body:   "body",
	})
	require.NoError(t, err)
	return n
}

func TestSendBeforeStart(t *testing.T) {
	c := NewCenter(Options{Storage: NewMemoryStorage()})

	_, err := c.Send(context.Background(), models.NotificationInput{UserID: "alice", Type: "message"})
	assert.ErrorIs(t, err, ErrNotStarted)

	_, err = c.Schedule(context.Background(), models.NotificationInput{UserID: "alice", Type: "message"}, time.Now())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewCenter(Options{Storage: NewMemoryStorage()})
	require.NoError(t, c.Start(context.Background()))

	assert.NoError(t, c.Stop(context.Background()))
	assert.NoError(t, c.Stop(context.Background()))
}

func TestSendPersistsNotification(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	n := sendTestNotification(t, c, "alice", "hello")

	assert.NotEmpty(t, n.ID)
	assert.Equal(t, models.StatusUnread, n.Status)
	assert.False(t, n.CreatedAt.IsZero())

	got, err := c.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Title)

	count, err := c.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSendBatchStopsAtFirstFailure(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	out, err := c.SendBatch(ctx, []models.NotificationInput{
		{UserID: "alice", Type: "message", Title: "one"},
		{UserID: "bob", Type: "message", Title: "two"},
	})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestGetByIDUnknown(t *testing.T) {
	c := newStartedCenter(t)

	_, err := c.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkAsReadDecrementsUnreadCount(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	n1 := sendTestNotification(t, c, "alice", "one")
	sendTestNotification(t, c, "alice", "two")

	require.NoError(t, c.MarkAsRead(ctx, n1.ID))

	got, err := c.GetByID(ctx, n1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, got.Status)
	require.NotNil(t, got.ReadAt)

	count, err := c.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	n := sendTestNotification(t, c, "alice", "one")

	require.NoError(t, c.MarkAsRead(ctx, n.ID))
	first, err := c.GetByID(ctx, n.ID)
	require.NoError(t, err)

	require.NoError(t, c.MarkAsRead(ctx, n.ID))
	second, err := c.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ReadAt, second.ReadAt)
}

func TestMarkAllAsRead(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	sendTestNotification(t, c, "alice", "one")
	sendTestNotification(t, c, "alice", "two")
	sendTestNotification(t, c, "bob", "three")

	require.NoError(t, c.MarkAllAsRead(ctx, "alice"))

	count, err := c.GetUnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Other users are untouched.
	count, err = c.GetUnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteNotification(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	n := sendTestNotification(t, c, "alice", "one")
	require.NoError(t, c.Delete(ctx, n.ID))

	_, err := c.GetByID(ctx, n.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, c.Delete(ctx, n.ID), ErrNotFound)
}

func TestDeleteAll(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	sendTestNotification(t, c, "alice", "one")
	sendTestNotification(t, c, "alice", "two")
	sendTestNotification(t, c, "bob", "three")

	require.NoError(t, c.DeleteAll(ctx, "alice"))

	out, err := c.GetForUser(ctx, "alice", models.NotificationFilters{})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = c.GetForUser(ctx, "bob", models.NotificationFilters{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestGetForUserFiltersAndPagination(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.Send(ctx, models.NotificationInput{
			UserID:   "alice",
			Type:     "message",
			Category: "social",
			Title:    "n",
		})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}
	alert, err := c.Send(ctx, models.NotificationInput{
		UserID:   "alice",
		Type:     "alert",
		Category: "system",
		Title:    "alert",
	})
	require.NoError(t, err)
	require.NoError(t, c.MarkAsRead(ctx, alert.ID))

	byType, err := c.GetForUser(ctx, "alice", models.NotificationFilters{Type: "alert"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, alert.ID, byType[0].ID)

	byCategory, err := c.GetForUser(ctx, "alice", models.NotificationFilters{Category: "social"})
	require.NoError(t, err)
	assert.Len(t, byCategory, 5)

	unread := models.StatusUnread
	byStatus, err := c.GetForUser(ctx, "alice", models.NotificationFilters{Status: &unread})
	require.NoError(t, err)
	assert.Len(t, byStatus, 5)

	page, err := c.GetForUser(ctx, "alice", models.NotificationFilters{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	// Newest first.
	all, err := c.GetForUser(ctx, "alice", models.NotificationFilters{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i-1].CreatedAt.Before(all[i].CreatedAt))
	}
}

func TestGetStats(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	_, err := c.Send(ctx, models.NotificationInput{UserID: "alice", Type: "message", Category: "social", Title: "a"})
	require.NoError(t, err)
	n, err := c.Send(ctx, models.NotificationInput{UserID: "alice", Type: "alert", Category: "system", Title: "b"})
	require.NoError(t, err)
	require.NoError(t, c.MarkAsRead(ctx, n.ID))

	stats, err := c.GetStats(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Unread)
	assert.Equal(t, int64(1), stats.Read)
	assert.Equal(t, int64(1), stats.ByType["message"])
	assert.Equal(t, int64(1), stats.ByType["alert"])
	assert.Equal(t, int64(1), stats.ByCategory["system"])
}

func TestPreferencesDefaultToEnabled(t *testing.T) {
	c := newStartedCenter(t)

	pref, err := c.GetPreferences(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, pref.Enabled)
	assert.Empty(t, pref.MutedCategories)
}

func TestUpdatePreferencesIsPartial(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	muted := []string{"marketing"}
	require.NoError(t, c.UpdatePreferences(ctx, "alice", models.PreferenceUpdate{MutedCategories: &muted}))

	pref, err := c.GetPreferences(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, pref.Enabled)
	assert.Equal(t, []string{"marketing"}, pref.MutedCategories)

	disabled := false
	require.NoError(t, c.UpdatePreferences(ctx, "alice", models.PreferenceUpdate{Enabled: &disabled}))

	pref, err = c.GetPreferences(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, pref.Enabled)
	// The earlier update survives.
	assert.Equal(t, []string{"marketing"}, pref.MutedCategories)
}

func TestRegisterTemplateFillsEmptyFields(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	c.RegisterTemplate(models.Template{
		Type:            "friend-request",
		Title:           "New friend request",
		Body:            "{{from}} wants to connect",
		DefaultCategory: "social",
	})

	n, err := c.Send(ctx, models.NotificationInput{
		UserID: "alice",
		Type:   "friend-request",
		Data:   map[string]interface{}{"from": "bob"},
	})
	require.NoError(t, err)
	assert.Equal(t, "New friend request", n.Title)
	assert.Equal(t, "bob wants to connect", n.Body)
	assert.Equal(t, "social", n.Category)

	// Explicit values win over the template.
	n, err = c.Send(ctx, models.NotificationInput{
		UserID: "alice",
		Type:   "friend-request",
		Title:  "custom title",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom title", n.Title)
}

func TestScheduleFiresWhenDue(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	id, err := c.Schedule(ctx, models.NotificationInput{
		UserID: "alice",
		Type:   "reminder",
		Title:  "due",
	}, time.Now().Add(-time.Second))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		out, err := c.GetForUser(ctx, "alice", models.NotificationFilters{})
		return err == nil && len(out) == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestScheduledSendNotifiesLocalSubscribers(t *testing.T) {
	c := newStartedCenter(t)
	ctx := context.Background()

	notifications := make(chan *models.Notification, 1)
	counts := make(chan int64, 1)
	c.Subscribe(ScopeAll(), func(n *models.Notification) {
		notifications <- n
	})
	c.OnUnreadCountChange(ScopeAll(), func(userID string, count int64) {
		counts <- count
	})

	_, err := c.Schedule(ctx, models.NotificationInput{
		UserID: "alice",
		Type:   "reminder",
		Title:  "due",
	}, time.Now().Add(-time.Second))
	require.NoError(t, err)

	select {
	case n := <-notifications:
		assert.Equal(t, "alice", n.UserID)
		assert.Equal(t, "due", n.Title)
	case <-time.After(5 * time.Second):
		t.Fatal("subscribers never saw the scheduled notification")
	}

	select {
	case count := <-counts:
		assert.Equal(t, int64(1), count)
	case <-time.After(5 * time.Second):
		t.Fatal("subscribers never saw the unread count change")
	}
}

func TestHealthCheck(t *testing.T) {
	c := newStartedCenter(t)

	health := c.HealthCheck(context.Background())
	assert.True(t, health["started"])
	assert.True(t, health["storage"])
	assert.NotContains(t, health, "redis")
}
