package server

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/auth"
	"github.com/oggyb/heartline/internal/service/account"
)

// NewAuthenticator accepts tokens issued by appCtx and lets sign-up,
// sign-in, health checks and reflection through without one.
func NewAuthenticator(appCtx *app.AppContext) *auth.Authenticator {
	public := append([]string{
		"/grpc.health.v1.Health/",
		"/grpc.reflection.v1.ServerReflection/",
		"/grpc.reflection.v1alpha.ServerReflection/",
	}, account.PublicMethods...)
	return auth.NewAuthenticator(appCtx.Issuer, public...)
}

// NewGRPCServer builds a gRPC server with metrics and authentication
// interceptors and registers all provided services.
func NewGRPCServer(appCtx *app.AppContext, registrars ...Registrar) *grpc.Server {
	authn := NewAuthenticator(appCtx)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			appCtx.Metrics.UnaryServerInterceptor(),
			authn.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			appCtx.Metrics.StreamServerInterceptor(),
			authn.StreamServerInterceptor(),
		),
	)

	// register all services
	for _, r := range registrars {
		r.Register(grpcServer)
	}

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	// Services use the JSON codec and carry no file descriptors, so
	// reflection lists their names but cannot describe their methods.
	reflection.Register(grpcServer)

	return grpcServer
}

// StartGRPCServer listens on addr and serves until the server is stopped.
func StartGRPCServer(grpcServer *grpc.Server, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return grpcServer.Serve(lis)
}
