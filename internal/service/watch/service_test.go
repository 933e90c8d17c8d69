package watch_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/auth"
	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/logger"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/rpc"
	"github.com/oggyb/heartline/internal/service/watch"
	"github.com/oggyb/heartline/internal/session"
	tu "github.com/oggyb/heartline/internal/testutil"
)

const watchMethod = "/" + watch.ServiceName + "/Watch"

func startServer(t *testing.T, appCtx *app.AppContext) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	authn := auth.NewAuthenticator(appCtx.Issuer)
	srv := grpc.NewServer(grpc.StreamInterceptor(authn.StreamServerInterceptor()))
	watch.NewRegistrar(appCtx).Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func tokenFor(t *testing.T, appCtx *app.AppContext, userID string) grpc.CallOption {
	t.Helper()
	tok, _, err := appCtx.Issuer.Issue(session.Session{UserID: userID, Email: userID + "@example.com"})
	require.NoError(t, err)
	return grpc.PerRPCCredentials(auth.BearerCredentials(tok))
}

func TestWatch_DeliversNotifications(t *testing.T) {
	appCtx := tu.NewAppContext(t)
	tu.SeedProfiles(t, appCtx.DB, "Ana", "Ben")
	conn := startServer(t, appCtx)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := rpc.Subscribe[watch.WatchRequest, realtime.Change](ctx, conn, watchMethod,
		&watch.WatchRequest{Filter: "notifications:user_id=eq.u1"}, tokenFor(t, appCtx, "u1"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return appCtx.Hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = appCtx.Pipeline.Like(context.Background(), "u2", "u1", true)
	require.NoError(t, err)

	c, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, realtime.TableNotifications, c.Table)
	assert.Equal(t, realtime.OpInsert, c.Op)

	n, err := realtime.Decode[db.Notification](*c)
	require.NoError(t, err)
	assert.Equal(t, "u1", n.UserID)
	assert.Equal(t, db.NotificationSuperLike, n.Type)

	cancel()
	require.Eventually(t, func() bool { return appCtx.Hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_Rejects(t *testing.T) {
	appCtx := tu.NewAppContext(t)
	tu.SeedProfiles(t, appCtx.DB, "Ana", "Ben", "Cat")
	res, err := appCtx.Pipeline.Like(context.Background(), "u1", "u2", false)
	require.NoError(t, err)
	res, err = appCtx.Pipeline.Like(context.Background(), "u2", "u1", false)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	conn := startServer(t, appCtx)

	tests := []struct {
		name   string
		filter string
		as     string
		code   codes.Code
	}{
		{"malformed", "notifications", "u1", codes.InvalidArgument},
		{"unknown column", "notifications:type=eq.match", "u1", codes.InvalidArgument},
		{"someone else's notifications", "notifications:user_id=eq.u2", "u1", codes.PermissionDenied},
		{"foreign match messages", "messages:match_id=eq." + res.Match.ID, "u3", codes.PermissionDenied},
		{"unknown match messages", "messages:match_id=eq.nope", "u1", codes.PermissionDenied},
		{"no token", "notifications:user_id=eq.u1", "", codes.Unauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			var opts []grpc.CallOption
			if tt.as != "" {
				opts = append(opts, tokenFor(t, appCtx, tt.as))
			}
			stream, err := rpc.Subscribe[watch.WatchRequest, realtime.Change](ctx, conn, watchMethod,
				&watch.WatchRequest{Filter: tt.filter}, opts...)
			require.NoError(t, err)

			_, err = stream.Recv()
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
	assert.Zero(t, appCtx.Hub.Len())
}

func TestWatch_MatchParticipantSeesMessages(t *testing.T) {
	appCtx := tu.NewAppContext(t)
	tu.SeedProfiles(t, appCtx.DB, "Ana", "Ben")
	ctx := context.Background()
	_, err := appCtx.Pipeline.Like(ctx, "u1", "u2", false)
	require.NoError(t, err)
	res, err := appCtx.Pipeline.Like(ctx, "u2", "u1", false)
	require.NoError(t, err)
	conn := startServer(t, appCtx)

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	stream, err := rpc.Subscribe[watch.WatchRequest, realtime.Change](sctx, conn, watchMethod,
		&watch.WatchRequest{Filter: "messages:match_id=eq." + res.Match.ID}, tokenFor(t, appCtx, "u2"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return appCtx.Hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, _, err = appCtx.Pipeline.SendMessage(ctx, res.Match.ID, "u1", "hi Ben", db.MessageTypeText)
	require.NoError(t, err)

	c, err := stream.Recv()
	require.NoError(t, err)
	m, err := realtime.Decode[db.Message](*c)
	require.NoError(t, err)
	assert.Equal(t, "hi Ben", m.Content)
	assert.Equal(t, "u1", m.SenderID)
}

func TestWatch_SlowConsumerAborted(t *testing.T) {
	cfg := tu.Config()
	cfg.Events.SubscriberBuffer = 1
	rc, _ := tu.NewRedis(t)
	appCtx := app.New(cfg, tu.NewDB(t), rc, logger.Discard())
	tu.SeedProfiles(t, appCtx.DB, "Ana", "Ben", "Cat", "Dan")
	svc := watch.NewWatchService(appCtx)

	stream := &blockedStream{ctx: tu.As("u1"), ready: make(chan struct{})}
	done := make(chan error, 1)
	go func() { done <- svc.Watch(&watch.WatchRequest{Filter: "notifications:user_id=eq.u1"}, stream) }()
	require.Eventually(t, func() bool { return appCtx.Hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Send is blocked, so the buffer of one overflows
	for _, liker := range []string{"u2", "u3", "u4"} {
		_, err := appCtx.Pipeline.Like(context.Background(), liker, "u1", false)
		require.NoError(t, err)
	}
	close(stream.ready)

	select {
	case err := <-done:
		assert.Equal(t, codes.Aborted, status.Code(err))
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not end")
	}
}

// blockedStream holds every Send until ready is closed.
type blockedStream struct {
	grpc.ServerStream
	ctx   context.Context
	ready chan struct{}
}

func (s *blockedStream) Context() context.Context { return s.ctx }

func (s *blockedStream) Send(*realtime.Change) error {
	<-s.ready
	return nil
}
