package notification_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/service/notification"
	tu "github.com/oggyb/heartline/internal/testutil"
)

// setupService gives u3 (Cat) two like notifications, from u1 and u2.
func setupService(t *testing.T) (*notification.Service, *app.AppContext) {
	t.Helper()
	ctx := context.Background()
	appCtx := tu.NewAppContext(t)
	tu.SeedProfiles(t, appCtx.DB, "Ana", "Ben", "Cat")

	for _, liker := range []string{"u1", "u2"} {
		_, err := appCtx.Pipeline.Like(ctx, liker, "u3", false)
		require.NoError(t, err)
	}
	return notification.NewNotificationService(appCtx), appCtx
}

func TestListAndUnreadCount(t *testing.T) {
	svc, appCtx := setupService(t)
	ctx := tu.As("u3")

	list, err := svc.ListNotifications(ctx, &notification.ListNotificationsRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 2)

	count, err := svc.UnreadCount(ctx, &notification.UnreadCountRequest{})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count.Count)

	// the counter is now cached and follows new notifications
	_, err = appCtx.Pipeline.Like(context.Background(), "u3", "u1", false)
	require.NoError(t, err)
	_, err = appCtx.Pipeline.Like(context.Background(), "u3", "u2", false)
	require.NoError(t, err)

	count, err = svc.UnreadCount(ctx, &notification.UnreadCountRequest{})
	require.NoError(t, err)
	// two match notifications for u3
	assert.Equal(t, uint64(4), count.Count)

	// nobody else sees them
	list, err = svc.ListNotifications(tu.As("u1"), &notification.ListNotificationsRequest{})
	require.NoError(t, err)
	for _, n := range list.Notifications {
		assert.Equal(t, "u1", n.UserID)
	}
}

func TestMarkReadAndMarkAllRead(t *testing.T) {
	svc, _ := setupService(t)
	ctx := tu.As("u3")

	// warm the cache
	count, err := svc.UnreadCount(ctx, &notification.UnreadCountRequest{})
	require.NoError(t, err)
	require.Equal(t, uint64(2), count.Count)

	list, err := svc.ListNotifications(ctx, &notification.ListNotificationsRequest{})
	require.NoError(t, err)

	resp, err := svc.MarkRead(ctx, &notification.MarkReadRequest{IDs: []string{list.Notifications[0].ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Updated)

	count, err = svc.UnreadCount(ctx, &notification.UnreadCountRequest{})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count.Count)

	unread, err := svc.ListNotifications(ctx, &notification.ListNotificationsRequest{UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Notifications, 1)
	assert.Equal(t, list.Notifications[1].ID, unread.Notifications[0].ID)

	resp, err = svc.MarkAllRead(ctx, &notification.MarkAllReadRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Updated)

	count, err = svc.UnreadCount(ctx, &notification.UnreadCountRequest{})
	require.NoError(t, err)
	assert.Zero(t, count.Count)

	_, err = svc.MarkRead(ctx, &notification.MarkReadRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestMarkRead_IgnoresOthersNotifications(t *testing.T) {
	svc, _ := setupService(t)

	list, err := svc.ListNotifications(tu.As("u3"), &notification.ListNotificationsRequest{})
	require.NoError(t, err)

	resp, err := svc.MarkRead(tu.As("u1"), &notification.MarkReadRequest{IDs: []string{list.Notifications[0].ID}})
	require.NoError(t, err)
	assert.Zero(t, resp.Updated)
}

func TestDelete(t *testing.T) {
	svc, _ := setupService(t)
	ctx := tu.As("u3")

	list, err := svc.ListNotifications(ctx, &notification.ListNotificationsRequest{})
	require.NoError(t, err)
	id := list.Notifications[0].ID

	_, err = svc.Delete(tu.As("u1"), &notification.DeleteRequest{ID: id})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.Delete(ctx, &notification.DeleteRequest{ID: id})
	require.NoError(t, err)

	list, err = svc.ListNotifications(ctx, &notification.ListNotificationsRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Notifications, 1)
}

func TestMarkAllRead_ConcurrentCallsCountEachOnce(t *testing.T) {
	appCtx := tu.NewAppContextOn(t, tu.NewFileDB(t))
	tu.SeedProfiles(t, appCtx.DB, "Ana", "Ben", "Cat", "Dan")
	for _, liker := range []string{"u1", "u2", "u4"} {
		_, err := appCtx.Pipeline.Like(context.Background(), liker, "u3", false)
		require.NoError(t, err)
	}
	svc := notification.NewNotificationService(appCtx)
	ctx := tu.As("u3")

	count, err := svc.UnreadCount(ctx, &notification.UnreadCountRequest{})
	require.NoError(t, err)
	require.Equal(t, uint64(3), count.Count)

	start := make(chan struct{})
	var (
		g       errgroup.Group
		updated atomic.Int64
	)
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			<-start
			resp, err := svc.MarkAllRead(ctx, &notification.MarkAllReadRequest{})
			if err != nil {
				return err
			}
			updated.Add(int64(resp.Updated))
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(3), updated.Load())

	// the cached counter was decremented once per notification
	count, err = svc.UnreadCount(ctx, &notification.UnreadCountRequest{})
	require.NoError(t, err)
	assert.Zero(t, count.Count)

	resp, err := svc.MarkAllRead(ctx, &notification.MarkAllReadRequest{})
	require.NoError(t, err)
	assert.Zero(t, resp.Updated)
}
