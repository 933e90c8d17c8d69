// Package session carries the authenticated caller through request contexts.
// Services receive the caller explicitly from the context handed to them by
// the transport; nothing reads a process-wide "current user".
package session

import (
	"context"
	"fmt"

	svcErr "github.com/oggyb/heartline/internal/errors"
)

var ErrNoSession = fmt.Errorf("%w: no session in context", svcErr.ErrUnauthenticated)

// Session is the identity of the caller of one request.
type Session struct {
	UserID string
	Email  string
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored in ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	if !ok || s.UserID == "" {
		return Session{}, false
	}
	return s, true
}

// Require returns the session stored in ctx or ErrNoSession.
func Require(ctx context.Context) (Session, error) {
	s, ok := FromContext(ctx)
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}
