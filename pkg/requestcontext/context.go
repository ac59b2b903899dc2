// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them; services read them. All
// operations within a single request (or a single sweep cycle) observe the
// same "now", which keeps validity-window checks and stored timestamps
// consistent and lets tests simulate time without sleeping.
package requestcontext

import (
	"context"
	"time"
)

type (
	userIDKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	restrictedKey  struct{}
)

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now retrieves the context-scoped time, falling back to the wall clock when
// no middleware or sweeper has stamped one.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithUserID records the authenticated user id.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserID returns the authenticated user id, or "" when unauthenticated.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// WithRequestID records the request correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request correlation id, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithRestricted marks a session issued to a suspended user who still has a
// pending reservation to resolve.
func WithRestricted(ctx context.Context, restricted bool) context.Context {
	return context.WithValue(ctx, restrictedKey{}, restricted)
}

// Restricted reports whether the session carries restricted authority.
func Restricted(ctx context.Context) bool {
	r, _ := ctx.Value(restrictedKey{}).(bool)
	return r
}
