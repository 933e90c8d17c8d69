package server

import (
	"google.golang.org/grpc"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/service/account"
	"github.com/oggyb/heartline/internal/service/chat"
	"github.com/oggyb/heartline/internal/service/explore"
	"github.com/oggyb/heartline/internal/service/like"
	"github.com/oggyb/heartline/internal/service/match"
	"github.com/oggyb/heartline/internal/service/notification"
	"github.com/oggyb/heartline/internal/service/presence"
	"github.com/oggyb/heartline/internal/service/profile"
	"github.com/oggyb/heartline/internal/service/watch"
)

// Registrar is a common interface for all gRPC service registrars
type Registrar interface {
	Register(s grpc.ServiceRegistrar)
}

// Registrars returns every service the API exposes.
func Registrars(appCtx *app.AppContext) []Registrar {
	return []Registrar{
		account.NewRegistrar(appCtx),
		profile.NewRegistrar(appCtx),
		explore.NewRegistrar(appCtx),
		like.NewRegistrar(appCtx),
		match.NewRegistrar(appCtx),
		chat.NewRegistrar(appCtx),
		notification.NewRegistrar(appCtx),
		presence.NewRegistrar(appCtx),
		watch.NewRegistrar(appCtx),
	}
}
