// Package watch streams committed row changes to authorized clients.
package watch

import (
	"errors"

	"google.golang.org/grpc"

	"github.com/oggyb/heartline/internal/app"
	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/repository"
	"github.com/oggyb/heartline/internal/session"
)

type WatchRequest struct {
	// Filter is "<table>:<column>=eq.<value>", e.g. "notifications:user_id=eq.u1".
	Filter string `json:"filter"`
}

type Service struct {
	appCtx    *app.AppContext
	matchRepo *repository.MatchRepository
}

func NewWatchService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		matchRepo: repository.NewMatchRepository(appCtx.DB),
	}
}

// Watch sends every committed change selected by the filter until the
// client goes away.
//
// Behavior:
//   - Malformed filter or a column that is not filterable → InvalidArgument.
//   - A stream the caller may not see → PermissionDenied.
//   - A consumer that falls behind is cut off with Aborted; it must re-fetch
//     and watch again.
func (s *Service) Watch(req *WatchRequest, stream grpc.ServerStreamingServer[realtime.Change]) error {
	ctx := stream.Context()
	me, err := session.Require(ctx)
	if err != nil {
		return svcErr.Map(err)
	}

	f, err := realtime.ParseFilter(req.Filter)
	if err != nil {
		return svcErr.InvalidArgument(err.Error())
	}
	if err := realtime.Authorize(ctx, s.matchRepo, me.UserID, f); err != nil {
		if errors.Is(err, realtime.ErrInvalidFilter) {
			return svcErr.InvalidArgument(err.Error())
		}
		return svcErr.Map(err)
	}

	sub := s.appCtx.Hub.Subscribe(f)
	defer sub.Close()
	s.appCtx.Logger.Debug("watch started", "user_id", me.UserID, "filter", f.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-sub.C():
			if !ok {
				if errors.Is(sub.Err(), realtime.ErrSlowConsumer) {
					return svcErr.Aborted(sub.Err().Error())
				}
				// hub shut down
				return nil
			}
			if err := stream.Send(&c); err != nil {
				return err
			}
		}
	}
}
