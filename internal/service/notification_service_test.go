package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/souqhub/auction-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChannel struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (c *stubChannel) Name() string { return "stub" }

func (c *stubChannel) Send(_ context.Context, userUID, _, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, userUID)
	return c.err
}

func (c *stubChannel) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestNotifyPersistsWhenDeliveryFails(t *testing.T) {
	repo := newFakeNotificationRepo()
	ch := &stubChannel{err: errors.New("push backend down")}
	svc := NewNotificationService(repo, newFakeWatchlistRepo(), ch)
	ctx := context.Background()

	auctionID := uint64(7)
	svc.Notify(ctx, "alice", model.NotificationOutbid, "Outbid", "Raise your bid.",
		&auctionID, nil, map[string]interface{}{"amount": int64(85_000)})

	// The row is written before any delivery attempt.
	rows := repo.byType("alice", model.NotificationOutbid)
	require.Len(t, rows, 1)
	assert.Equal(t, "Outbid", rows[0].Title)
	assert.Contains(t, rows[0].Payload, "amount")
	require.NotNil(t, rows[0].AuctionID)
	assert.Equal(t, auctionID, *rows[0].AuctionID)

	// Delivery still ran, it just failed quietly.
	require.Eventually(t, func() bool { return ch.sendCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestNotifySkipsBlankTargets(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, newFakeWatchlistRepo())
	ctx := context.Background()

	svc.Notify(ctx, "", model.NotificationOutbid, "t", "b", nil, nil, nil)
	svc.Notify(ctx, "alice", "", "t", "b", nil, nil, nil)

	cnt, err := svc.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func TestNotifyWatchersHonorsFlagsAndActor(t *testing.T) {
	repo := newFakeNotificationRepo()
	watches := newFakeWatchlistRepo()
	svc := NewNotificationService(repo, watches)
	ctx := context.Background()

	require.NoError(t, watches.Add(ctx, &model.WatchlistEntry{UserUID: "alice", AuctionID: 7, NotifyPriceChange: true}))
	require.NoError(t, watches.Add(ctx, &model.WatchlistEntry{UserUID: "bob", AuctionID: 7, NotifyPriceChange: false}))
	require.NoError(t, watches.Add(ctx, &model.WatchlistEntry{UserUID: "carol", AuctionID: 7, NotifyPriceChange: true}))
	require.NoError(t, watches.Add(ctx, &model.WatchlistEntry{UserUID: "dave", AuctionID: 8, NotifyPriceChange: true}))

	svc.NotifyWatchers(ctx, 7, model.WatchEventPriceChange, "Price changed", "Now 85000.", "carol")

	assert.Len(t, repo.byType("alice", model.NotificationWatchlistUpdate), 1)
	assert.Empty(t, repo.byType("bob", model.NotificationWatchlistUpdate))
	// carol caused the event, dave watches a different auction.
	assert.Empty(t, repo.byType("carol", model.NotificationWatchlistUpdate))
	assert.Empty(t, repo.byType("dave", model.NotificationWatchlistUpdate))
}

func TestNotificationReadLifecycle(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, newFakeWatchlistRepo())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		svc.Notify(ctx, "alice", model.NotificationNewBid, "New bid", "b", nil, nil, nil)
	}
	svc.Notify(ctx, "bob", model.NotificationNewBid, "New bid", "b", nil, nil, nil)

	list, unread, err := svc.List(ctx, "alice", false, 20, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, int64(3), unread)

	require.NoError(t, svc.MarkRead(ctx, "alice", list[0].ID))
	cnt, err := svc.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cnt)

	unreadOnly, _, err := svc.List(ctx, "alice", true, 20, 0)
	require.NoError(t, err)
	assert.Len(t, unreadOnly, 2)

	require.NoError(t, svc.MarkAllRead(ctx, "alice"))
	cnt, _ = svc.UnreadCount(ctx, "alice")
	assert.Zero(t, cnt)

	require.NoError(t, svc.Delete(ctx, "alice", list[1].ID))
	remaining, _, err := svc.List(ctx, "alice", false, 20, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	require.NoError(t, svc.ClearAll(ctx, "alice"))
	remaining, _, err = svc.List(ctx, "alice", false, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// Other users' rows are untouched.
	cnt, _ = svc.UnreadCount(ctx, "bob")
	assert.Equal(t, int64(1), cnt)
}
