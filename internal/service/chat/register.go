package chat

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/rpc"
)

const ServiceName = "heartline.v1.ChatService"

type Server interface {
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	DeleteMessage(context.Context, *DeleteMessageRequest) (*DeleteMessageResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "SendMessage", Server.SendMessage),
		rpc.Unary(ServiceName, "ListMessages", Server.ListMessages),
		rpc.Unary(ServiceName, "MarkRead", Server.MarkRead),
		rpc.Unary(ServiceName, "DeleteMessage", Server.DeleteMessage),
	},
}

type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, NewChatService(r.appCtx))
}
