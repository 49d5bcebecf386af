// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; wizard services read them without importing net/http.
//
//	operatorID := requestcontext.OperatorID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

type (
	operatorIDKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyOperatorID  = operatorIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// OperatorID returns the authenticated console operator, or "" when unset.
func OperatorID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyOperatorID).(string); ok {
		return v
	}
	return ""
}

// WithOperatorID injects the console operator subject.
func WithOperatorID(ctx context.Context, operatorID string) context.Context {
	return context.WithValue(ctx, ContextKeyOperatorID, operatorID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() outside HTTP requests (background reconciles, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// Detach returns a background context that keeps the request-scoped values.
// Used for work that outlives the request, such as the post-save refetch.
func Detach(ctx context.Context) context.Context {
	out := context.Background()
	if v := OperatorID(ctx); v != "" {
		out = WithOperatorID(out, v)
	}
	if v := RequestID(ctx); v != "" {
		out = WithRequestID(out, v)
	}
	return out
}
