package like_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/service/like"
	tu "github.com/oggyb/heartline/internal/testutil"
)

func setupService(t *testing.T) (*like.Service, *app.AppContext) {
	t.Helper()
	appCtx := tu.NewAppContext(t)
	tu.SeedProfiles(t, appCtx.DB, "Ana", "Ben")
	return like.NewLikeService(appCtx), appCtx
}

func TestLike_MutualReturnsMatch(t *testing.T) {
	svc, _ := setupService(t)

	first, err := svc.Like(tu.As("u1"), &like.LikeRequest{LikedID: "u2"})
	require.NoError(t, err)
	assert.False(t, first.IsMatch)
	assert.Equal(t, "u1", first.Like.LikerID)

	second, err := svc.Like(tu.As("u2"), &like.LikeRequest{LikedID: "u1"})
	require.NoError(t, err)
	assert.True(t, second.IsMatch)
	assert.True(t, second.NewMatch)
	require.NotNil(t, second.Match)
	assert.Equal(t, "u1", second.Match.User1ID)

	// repeating reports the existing match without creating a new one
	again, err := svc.Like(tu.As("u2"), &like.LikeRequest{LikedID: "u1"})
	require.NoError(t, err)
	assert.True(t, again.IsMatch)
	assert.False(t, again.NewMatch)
	assert.Equal(t, second.Match.ID, again.Match.ID)
}

func TestLike_Validation(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Like(tu.As("u1"), &like.LikeRequest{LikedID: "u1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.Like(tu.As("u1"), &like.LikeRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.Like(tu.As("u1"), &like.LikeRequest{LikedID: "ghost"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.Like(context.Background(), &like.LikeRequest{LikedID: "u2"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestLike_DeletedCallerRejected(t *testing.T) {
	svc, appCtx := setupService(t)
	ctx := context.Background()
	require.NoError(t, repository.NewAccountRepository(appCtx.DB).Delete(ctx, "u1"))

	_, err := svc.Like(tu.As("u1"), &like.LikeRequest{LikedID: "u2"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	var n int64
	require.NoError(t, appCtx.DB.Model(&db.Like{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, appCtx.DB.Model(&db.Notification{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestPassPendingLike(t *testing.T) {
	svc, appCtx := setupService(t)

	_, err := svc.Like(tu.As("u2"), &like.LikeRequest{LikedID: "u1"})
	require.NoError(t, err)

	sub := appCtx.Hub.Subscribe(realtime.Filter{Table: realtime.TableLikes, Column: "liked_id", Value: "u1"})
	defer sub.Close()

	resp, err := svc.PassPendingLike(tu.As("u1"), &like.PassPendingLikeRequest{LikerID: "u2"})
	require.NoError(t, err)
	assert.True(t, resp.Removed)

	c := <-sub.C()
	assert.Equal(t, realtime.OpDelete, c.Op)

	var n int64
	require.NoError(t, appCtx.DB.Model(&db.Like{}).Count(&n).Error)
	assert.Zero(t, n)

	// nothing left to pass
	resp, err = svc.PassPendingLike(tu.As("u1"), &like.PassPendingLikeRequest{LikerID: "u2"})
	require.NoError(t, err)
	assert.False(t, resp.Removed)
}

func TestPassPendingLike_KeepsMatch(t *testing.T) {
	svc, appCtx := setupService(t)

	_, err := svc.Like(tu.As("u1"), &like.LikeRequest{LikedID: "u2"})
	require.NoError(t, err)
	_, err = svc.Like(tu.As("u2"), &like.LikeRequest{LikedID: "u1"})
	require.NoError(t, err)

	_, err = svc.PassPendingLike(tu.As("u1"), &like.PassPendingLikeRequest{LikerID: "u2"})
	require.NoError(t, err)

	var n int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
