package presence

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/rpc"
)

const ServiceName = "heartline.v1.PresenceService"

type Server interface {
	SetStatus(context.Context, *SetStatusRequest) (*db.UserStatus, error)
	GetStatus(context.Context, *GetStatusRequest) (*db.UserStatus, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "SetStatus", Server.SetStatus),
		rpc.Unary(ServiceName, "GetStatus", Server.GetStatus),
	},
}

type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, NewPresenceService(r.appCtx))
}
