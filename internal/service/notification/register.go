package notification

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/rpc"
)

const ServiceName = "heartline.v1.NotificationService"

type Server interface {
	ListNotifications(context.Context, *ListNotificationsRequest) (*ListNotificationsResponse, error)
	UnreadCount(context.Context, *UnreadCountRequest) (*UnreadCountResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	MarkAllRead(context.Context, *MarkAllReadRequest) (*MarkReadResponse, error)
	Delete(context.Context, *DeleteRequest) (*DeleteResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "ListNotifications", Server.ListNotifications),
		rpc.Unary(ServiceName, "UnreadCount", Server.UnreadCount),
		rpc.Unary(ServiceName, "MarkRead", Server.MarkRead),
		rpc.Unary(ServiceName, "MarkAllRead", Server.MarkAllRead),
		rpc.Unary(ServiceName, "Delete", Server.Delete),
	},
}

type Registrar struct {
	appCtx *app.AppContext
}

func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&ServiceDesc, NewNotificationService(r.appCtx))
}
