package account

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/rpc"
)

const ServiceName = "heartline.v1.AccountService"

// PublicMethods can be called without a session.
var PublicMethods = []string{
	"/" + ServiceName + "/SignUp",
	"/" + ServiceName + "/SignIn",
}

type Server interface {
	SignUp(context.Context, *SignUpRequest) (*SessionResponse, error)
	SignIn(context.Context, *SignInRequest) (*SessionResponse, error)
	DeleteAccount(context.Context, *DeleteAccountRequest) (*DeleteAccountResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "SignUp", Server.SignUp),
		rpc.Unary(ServiceName, "SignIn", Server.SignIn),
		rpc.Unary(ServiceName, "DeleteAccount", Server.DeleteAccount),
	},
}

type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, NewAccountService(r.appCtx))
}
