package watch

import (
	"google.golang.org/grpc"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/rpc"
)

const ServiceName = "heartline.v1.RealtimeService"

type Server interface {
	Watch(*WatchRequest, grpc.ServerStreamingServer[realtime.Change]) error
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Streams: []grpc.StreamDesc{
		rpc.ServerStream("Watch", Server.Watch),
	},
}

type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, NewWatchService(r.appCtx))
}
