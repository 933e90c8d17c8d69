package explore

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/rpc"
)

const ServiceName = "heartline.v1.ExploreService"

// Server is the ExploreService API implemented by *Service.
type Server interface {
	ListCandidates(context.Context, *ListCandidatesRequest) (*ListCandidatesResponse, error)
	ListLikedYou(context.Context, *ListLikedYouRequest) (*ListLikedYouResponse, error)
	ListNewLikedYou(context.Context, *ListLikedYouRequest) (*ListLikedYouResponse, error)
	CountLikedYou(context.Context, *CountLikedYouRequest) (*CountLikedYouResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "ListCandidates", Server.ListCandidates),
		rpc.Unary(ServiceName, "ListLikedYou", Server.ListLikedYou),
		rpc.Unary(ServiceName, "ListNewLikedYou", Server.ListNewLikedYou),
		rpc.Unary(ServiceName, "CountLikedYou", Server.CountLikedYou),
	},
}

// Registrar ties the Explore service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Explore service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Explore service implementation to the gRPC server
func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, NewExploreService(r.appCtx))
}
