package gateway

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Session is the authenticated identity of one request.
type Session struct {
	User  *models.User
	Token string
}

type sessionContextKey struct{}

type requestIDContextKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session stored in ctx, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	return s, ok && s.User != nil
}

// WithRequestID stores a request identifier in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the request identifier stored in ctx.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// EventMeta describes the caller of ctx for bus events.
func EventMeta(ctx context.Context) events.Meta {
	meta := events.Meta{RequestID: RequestIDFromContext(ctx)}
	if s, ok := SessionFromContext(ctx); ok {
		meta.UserID = s.User.ID
	}
	return meta
}
