package logger

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	traceIDKey ctxKey = "trace_id"
	userIDKey  ctxKey = "user_id"
	roleKey    ctxKey = "role"
	studioKey  ctxKey = "studio"
)

// NewTraceID returns a random request identifier.
func NewTraceID() string {
	return uuid.NewString()
}

func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey, id)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, traceIDKey)
}

func WithUserID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, userIDKey, id)
}

func GetUserID(ctx context.Context) string {
	return stringValue(ctx, userIDKey)
}

func WithRole(ctx context.Context, role string) context.Context {
	if role == "" {
		return ctx
	}
	return context.WithValue(ctx, roleKey, role)
}

func GetRole(ctx context.Context) string {
	return stringValue(ctx, roleKey)
}

// WithStudio records the tenant the request operates on.
func WithStudio(ctx context.Context, studio string) context.Context {
	if studio == "" {
		return ctx
	}
	return context.WithValue(ctx, studioKey, studio)
}

func GetStudio(ctx context.Context) string {
	return stringValue(ctx, studioKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
