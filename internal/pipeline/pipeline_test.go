package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/db"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/metrics"
	"github.com/oggyb/heartline/internal/pipeline"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
	tu "github.com/oggyb/heartline/internal/testutil"
)

func setup(t *testing.T, names ...string) *app.AppContext {
	t.Helper()
	appCtx := tu.NewAppContext(t, app.WithMetrics(metrics.New(prometheus.NewRegistry())))
	tu.SeedProfiles(t, appCtx.DB, names...)
	return appCtx
}

func notificationsFor(t *testing.T, appCtx *app.AppContext, userID string) []db.Notification {
	t.Helper()
	var out []db.Notification
	require.NoError(t, appCtx.DB.Where("user_id = ?", userID).Order("created_at ASC, type ASC").Find(&out).Error)
	return out
}

func countRows(t *testing.T, appCtx *app.AppContext, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, appCtx.DB.Model(model).Count(&n).Error)
	return n
}

func TestLike_OneWayNotifiesLikedUser(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben")

	res, err := appCtx.Pipeline.Like(ctx, "u1", "u2", false)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Nil(t, res.Match)

	notes := notificationsFor(t, appCtx, "u2")
	require.Len(t, notes, 1)
	assert.Equal(t, db.NotificationLike, notes[0].Type)
	assert.Equal(t, "New Like", notes[0].Title)
	assert.Equal(t, "Ana liked your profile", notes[0].Message)
	assert.Equal(t, "u1", notes[0].Data["actor_id"])
	assert.Equal(t, res.Like.ID, notes[0].Data["like_id"])
	assert.False(t, notes[0].Read)

	assert.Empty(t, notificationsFor(t, appCtx, "u1"))
	assert.Equal(t, int64(0), countRows(t, appCtx, &db.Match{}))
}

func TestLike_SuperLike(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben")

	_, err := appCtx.Pipeline.Like(ctx, "u1", "u2", true)
	require.NoError(t, err)

	notes := notificationsFor(t, appCtx, "u2")
	require.Len(t, notes, 1)
	assert.Equal(t, db.NotificationSuperLike, notes[0].Type)
	assert.Equal(t, "New Super Like", notes[0].Title)
	assert.Equal(t, "Ana super liked you!", notes[0].Message)
}

func TestLike_MutualCreatesCanonicalMatchAndTwoNotifications(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben")

	_, err := appCtx.Pipeline.Like(ctx, "u1", "u2", false)
	require.NoError(t, err)

	res, err := appCtx.Pipeline.Like(ctx, "u2", "u1", false)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	assert.True(t, res.MatchCreated)
	assert.Equal(t, "u1", res.Match.User1ID)
	assert.Equal(t, "u2", res.Match.User2ID)

	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Match{}))

	var matchNotes []db.Notification
	require.NoError(t, appCtx.DB.Where("type = ?", db.NotificationMatch).Order("user_id").Find(&matchNotes).Error)
	require.Len(t, matchNotes, 2)

	assert.Equal(t, "u1", matchNotes[0].UserID)
	assert.Equal(t, "You matched with Ben!", matchNotes[0].Message)
	assert.Equal(t, "u2", matchNotes[0].Data["other_user_id"])
	assert.Equal(t, res.Match.ID, matchNotes[0].Data["match_id"])

	assert.Equal(t, "u2", matchNotes[1].UserID)
	assert.Equal(t, "It's a Match!", matchNotes[1].Title)
	assert.Equal(t, "You matched with Ana!", matchNotes[1].Message)
	assert.Equal(t, "u1", matchNotes[1].Data["other_user_id"])
}

func TestLike_RepeatIsIdempotent(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben")

	_, err := appCtx.Pipeline.Like(ctx, "u1", "u2", false)
	require.NoError(t, err)
	_, err = appCtx.Pipeline.Like(ctx, "u2", "u1", false)
	require.NoError(t, err)
	before := countRows(t, appCtx, &db.Notification{})

	res, err := appCtx.Pipeline.Like(ctx, "u2", "u1", false)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.False(t, res.Updated)
	require.NotNil(t, res.Match)
	assert.False(t, res.MatchCreated)

	m, notes, err := appCtx.Pipeline.Reconcile(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.Equal(t, res.Match.ID, m.ID)
	assert.Nil(t, notes)

	assert.Equal(t, int64(2), countRows(t, appCtx, &db.Like{}))
	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Match{}))
	assert.Equal(t, before, countRows(t, appCtx, &db.Notification{}))
}

func TestLike_ReupsertFlipsSuperWithoutRefiring(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben")

	first, err := appCtx.Pipeline.Like(ctx, "u1", "u2", false)
	require.NoError(t, err)

	res, err := appCtx.Pipeline.Like(ctx, "u1", "u2", true)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.True(t, res.Updated)
	assert.Equal(t, first.Like.ID, res.Like.ID)
	assert.True(t, res.Like.IsSuperLike)
	assert.Empty(t, res.Notifications)

	var likes []db.Like
	require.NoError(t, appCtx.DB.Find(&likes).Error)
	require.Len(t, likes, 1)
	assert.True(t, likes[0].IsSuperLike)
	assert.Len(t, notificationsFor(t, appCtx, "u2"), 1)
	assert.Equal(t, int64(0), countRows(t, appCtx, &db.Match{}))
}

func TestLike_SelfLikeRejected(t *testing.T) {
	appCtx := setup(t, "Ana")
	_, err := appCtx.Pipeline.Like(context.Background(), "u1", "u1", false)
	assert.ErrorIs(t, err, svcErr.ErrSelfLike)
	assert.Equal(t, int64(0), countRows(t, appCtx, &db.Like{}))
}

func TestLike_UnknownActorNamedSomeone(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana")

	_, err := appCtx.Pipeline.Like(ctx, "ghost", "u1", false)
	require.NoError(t, err)

	notes := notificationsFor(t, appCtx, "u1")
	require.Len(t, notes, 1)
	assert.Equal(t, "Someone liked your profile", notes[0].Message)
}

func TestLike_FanoutFailureKeepsLike(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	appCtx := tu.NewAppContext(t, app.WithMetrics(m))
	tu.SeedProfiles(t, appCtx.DB, "Ana", "Ben")
	require.NoError(t, appCtx.DB.Exec("DROP TABLE notifications").Error)

	res, err := appCtx.Pipeline.Like(ctx, "u1", "u2", false)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Empty(t, res.Notifications)

	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Like{}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FanoutFailuresTotal.WithLabelValues("like")))
}

func TestLike_MatchFailureRollsBackLike(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben")

	_, err := appCtx.Pipeline.Like(ctx, "u1", "u2", false)
	require.NoError(t, err)
	require.NoError(t, appCtx.DB.Exec("DROP TABLE matches").Error)

	_, err = appCtx.Pipeline.Like(ctx, "u2", "u1", false)
	require.Error(t, err)

	exists, err := repository.NewLikeRepository(appCtx.DB).Exists(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReconcile_CatchesConcurrentReciprocal(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben")

	// both likes committed without either transaction seeing the other
	likes := repository.NewLikeRepository(appCtx.DB)
	_, err := likes.Insert(ctx, &db.Like{LikerID: "u2", LikedID: "u1"})
	require.NoError(t, err)
	_, err = likes.Insert(ctx, &db.Like{LikerID: "u1", LikedID: "u2"})
	require.NoError(t, err)

	m, notes, err := appCtx.Pipeline.Reconcile(ctx, "u2", "u1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "u1", m.User1ID)
	assert.Len(t, notes, 2)

	m2, notes, err := appCtx.Pipeline.Reconcile(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, m.ID, m2.ID)
	assert.Nil(t, notes)
	assert.Equal(t, int64(1), countRows(t, appCtx, &db.Match{}))
	assert.Equal(t, int64(2), countRows(t, appCtx, &db.Notification{}))
}

func TestReconcile_NoReciprocalNoMatch(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben")
	_, err := appCtx.Pipeline.Like(ctx, "u1", "u2", false)
	require.NoError(t, err)

	m, notes, err := appCtx.Pipeline.Reconcile(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Nil(t, notes)
}

func matchBetween(t *testing.T, appCtx *app.AppContext, a, b string) *db.Match {
	t.Helper()
	ctx := context.Background()
	_, err := appCtx.Pipeline.Like(ctx, a, b, false)
	require.NoError(t, err)
	res, err := appCtx.Pipeline.Like(ctx, b, a, false)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	return res.Match
}

func TestSendMessage_NotifiesOtherParticipantWithPreview(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben")
	m := matchBetween(t, appCtx, "u1", "u2")

	content := "Hello there, this is a moderately long greeting that exceeds fifty characters"
	msg, notes, err := appCtx.Pipeline.SendMessage(ctx, m.ID, "u1", content, db.MessageTypeText)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	n := notes[0]
	assert.Equal(t, "u2", n.UserID)
	assert.Equal(t, db.NotificationMessage, n.Type)
	assert.Equal(t, "New Message", n.Title)
	assert.Equal(t, "Ana: "+content[:50]+"...", n.Message)
	assert.Equal(t, m.ID, n.Data["match_id"])
	assert.Equal(t, "u1", n.Data["sender_id"])
	assert.Equal(t, msg.ID, n.Data["message_id"])

	var stored []db.Notification
	require.NoError(t, appCtx.DB.Where("user_id = ? AND type = ?", "u2", db.NotificationMessage).Find(&stored).Error)
	assert.Len(t, stored, 1)
}

func TestSendMessage_NonParticipantRejected(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben", "Cat")
	m := matchBetween(t, appCtx, "u1", "u2")

	_, _, err := appCtx.Pipeline.SendMessage(ctx, m.ID, "u3", "hi", db.MessageTypeText)
	assert.ErrorIs(t, err, svcErr.ErrNotParticipant)
	assert.Equal(t, int64(0), countRows(t, appCtx, &db.Message{}))
}

func TestLike_PublishesChangesInCommitOrder(t *testing.T) {
	ctx := context.Background()
	appCtx := setup(t, "Ana", "Ben")

	sub := appCtx.Hub.Subscribe(realtime.Filter{Table: realtime.TableNotifications, Column: "user_id", Value: "u2"})
	defer sub.Close()
	likes := appCtx.Hub.Subscribe(realtime.Filter{Table: realtime.TableLikes, Column: "liked_id", Value: "u2"})
	defer likes.Close()

	_, err := appCtx.Pipeline.Like(ctx, "u1", "u2", false)
	require.NoError(t, err)

	c := <-sub.C()
	assert.Equal(t, realtime.OpInsert, c.Op)
	n, err := realtime.Decode[db.Notification](c)
	require.NoError(t, err)
	assert.Equal(t, "Ana liked your profile", n.Message)

	lc := <-likes.C()
	assert.Less(t, lc.Seq, c.Seq)
	l, err := realtime.Decode[db.Like](lc)
	require.NoError(t, err)
	assert.Equal(t, "u1", l.LikerID)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", pipeline.Preview("short"))

	exact := strings.Repeat("a", 50)
	assert.Equal(t, exact, pipeline.Preview(exact))
	assert.Equal(t, exact+"...", pipeline.Preview(exact+"b"))

	hearts := strings.Repeat("♥", 60)
	assert.Equal(t, strings.Repeat("♥", 50)+"...", pipeline.Preview(hearts))
}
