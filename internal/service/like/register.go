package like

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/rpc"
)

const ServiceName = "heartline.v1.LikeService"

type Server interface {
	Like(context.Context, *LikeRequest) (*LikeResponse, error)
	PassPendingLike(context.Context, *PassPendingLikeRequest) (*PassPendingLikeResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "Like", Server.Like),
		rpc.Unary(ServiceName, "PassPendingLike", Server.PassPendingLike),
	},
}

// Registrar ties the Like service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, NewLikeService(r.appCtx))
}
