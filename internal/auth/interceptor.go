package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	svcErr "github.com/oggyb/heartline/internal/errors"
	"github.com/oggyb/heartline/internal/session"
)

// Authenticator turns bearer tokens into sessions for gRPC calls and HTTP
// requests. Methods listed as public skip authentication; an entry ending
// in "/" matches every method of that service.
type Authenticator struct {
	issuer *Issuer
	public []string
}

func NewAuthenticator(issuer *Issuer, public ...string) *Authenticator {
	return &Authenticator{issuer: issuer, public: public}
}

func (a *Authenticator) isPublic(fullMethod string) bool {
	for _, p := range a.public {
		if p == fullMethod || (strings.HasSuffix(p, "/") && strings.HasPrefix(fullMethod, p)) {
			return true
		}
	}
	return false
}

// Authenticate verifies a raw "Bearer <jwt>" value and stores the session
// in ctx.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (context.Context, error) {
	raw, ok := bearer(header)
	if !ok {
		return ctx, svcErr.Unauthenticated("missing bearer token")
	}
	s, err := a.issuer.Verify(raw)
	if err != nil {
		return ctx, svcErr.Unauthenticated("invalid token")
	}
	return session.WithSession(ctx, s), nil
}

func (a *Authenticator) fromMetadata(ctx context.Context) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	var header string
	if v := md.Get("authorization"); len(v) > 0 {
		header = v[0]
	}
	return a.Authenticate(ctx, header)
}

func (a *Authenticator) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if a.isPublic(info.FullMethod) {
			return handler(ctx, req)
		}
		ctx, err := a.fromMetadata(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *Authenticator) StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if a.isPublic(info.FullMethod) {
			return handler(srv, ss)
		}
		ctx, err := a.fromMetadata(ss.Context())
		if err != nil {
			return err
		}
		return handler(srv, &sessionStream{ServerStream: ss, ctx: ctx})
	}
}

type sessionStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *sessionStream) Context() context.Context { return s.ctx }

func bearer(header string) (string, bool) {
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(header[len("bearer "):])
	return raw, raw != ""
}

// BearerCredentials attaches a token to every outgoing call. Used by tests
// and tools.
type BearerCredentials string

func (b BearerCredentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + string(b)}, nil
}

func (BearerCredentials) RequireTransportSecurity() bool { return false }
