package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	requestCtxKey struct{}
	errorCtxKey   struct{}
	actorCtxKey   struct{}
	loggerCtxKey  struct{}
)

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.:@-]+$`)

func validID(id string) bool {
	return id != "" && len(id) <= maxIDLen && idPattern.MatchString(id)
}

// ContextFields extracts correlation fields from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := ErrorIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("error.id", id))
	}
	if id := ActorIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("actor.id", id))
	}

	return fields
}

// WithRequestID stores a request id. Values that are empty, too long or
// contain unexpected characters are dropped, since they arrive from clients.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withID(ctx, requestCtxKey{}, id)
}

// RequestIDFromContext returns the request id, or "".
func RequestIDFromContext(ctx context.Context) string {
	return idFrom(ctx, requestCtxKey{})
}

// WithErrorID stores the id of the error being diagnosed.
func WithErrorID(ctx context.Context, id string) context.Context {
	return withID(ctx, errorCtxKey{}, id)
}

// ErrorIDFromContext returns the error id, or "".
func ErrorIDFromContext(ctx context.Context) string {
	return idFrom(ctx, errorCtxKey{})
}

// WithActorID stores the id of the user acting on a suggestion.
func WithActorID(ctx context.Context, id string) context.Context {
	return withID(ctx, actorCtxKey{}, id)
}

// ActorIDFromContext returns the actor id, or "".
func ActorIDFromContext(ctx context.Context) string {
	return idFrom(ctx, actorCtxKey{})
}

func withID(ctx context.Context, key any, id string) context.Context {
	if !validID(id) {
		return ctx
	}
	return context.WithValue(ctx, key, id)
}

func idFrom(ctx context.Context, key any) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok && l != nil {
		return l
	}
	return Nop()
}
