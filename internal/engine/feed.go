package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"notify-service/internal/models"
)

const feedChannel = "notify:changes"

const (
	feedKindNotification = "notification"
	feedKindUnreadCount  = "unread-count"
)

// feedEvent is the wire format on the redis change channel. Origin carries
// the publishing instance id so a process can skip its own echoes; local
// changes are already dispatched synchronously.
type feedEvent struct {
	Origin       string               `json:"origin"`
	Kind         string               `json:"kind"`
	UserID       string               `json:"userId"`
	Count        int64                `json:"count,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
}

// changeFeed bridges state changes across processes sharing the same
// storage through redis pub/sub.
type changeFeed struct {
	rdb      *redis.Client
	origin   string
	subs     *subscribers
	pubsub   *redis.PubSub
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func newChangeFeed(rdb *redis.Client, origin string, subs *subscribers) *changeFeed {
	return &changeFeed{rdb: rdb, origin: origin, subs: subs}
}

func (f *changeFeed) start(ctx context.Context) {
	f.pubsub = f.rdb.Subscribe(ctx, feedChannel)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ch := f.pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				f.handle(msg.Payload)
			}
		}
	}()
}

func (f *changeFeed) handle(payload string) {
	var evt feedEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		slog.Error("Malformed change feed event", "error", err)
		return
	}
	if evt.Origin == f.origin {
		return
	}

	switch evt.Kind {
	case feedKindNotification:
		if evt.Notification != nil {
			f.subs.dispatchNotification(evt.Notification)
		}
	case feedKindUnreadCount:
		f.subs.dispatchCount(evt.UserID, evt.Count)
	default:
		slog.Warn("Unknown change feed event kind", "kind", evt.Kind)
	}
}

func (f *changeFeed) publishNotification(ctx context.Context, n *models.Notification) {
	f.publish(ctx, feedEvent{
		Origin:       f.origin,
		Kind:         feedKindNotification,
		UserID:       n.UserID,
		Notification: n,
	})
}

func (f *changeFeed) publishUnreadCount(ctx context.Context, userID string, count int64) {
	f.publish(ctx, feedEvent{
		Origin: f.origin,
		Kind:   feedKindUnreadCount,
		UserID: userID,
		Count:  count,
	})
}

func (f *changeFeed) publish(ctx context.Context, evt feedEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("Failed to marshal change feed event", "error", err)
		return
	}
	if err := f.rdb.Publish(ctx, feedChannel, data).Err(); err != nil {
		slog.Error("Failed to publish change feed event", "kind", evt.Kind, "userID", evt.UserID, "error", err)
	}
}

func (f *changeFeed) stop() {
	f.stopOnce.Do(func() {
		if f.pubsub != nil {
			f.pubsub.Close()
		}
		f.wg.Wait()
	})
}
