// internal/logging/context.go
package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 7)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	for _, k := range []ctxKey{runKey, projectKey, userKey, requestKey} {
		if v, ok := ctx.Value(k).(string); ok {
			fields = append(fields, zap.String(k.field(), v))
		}
	}
	return fields
}

type ctxKey int

const (
	runKey ctxKey = iota
	projectKey
	userKey
	requestKey
)

func (k ctxKey) field() string {
	switch k {
	case runKey:
		return "run_id"
	case projectKey:
		return "project"
	case userKey:
		return "user"
	default:
		return "request_id"
	}
}

const maxIDLen = 128

// idPattern allows what run ids, project keys, user names and request ids
// are made of.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.@-]+$`)

// with stores v under k. Values that are empty, too long or carry other
// characters are dropped: they usually come from request headers.
func with(ctx context.Context, k ctxKey, v string) context.Context {
	if v == "" || len(v) > maxIDLen || !idPattern.MatchString(v) {
		return ctx
	}
	return context.WithValue(ctx, k, v)
}

func from(ctx context.Context, k ctxKey) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// WithRunID adds the pipeline run id to ctx.
func WithRunID(ctx context.Context, id string) context.Context { return with(ctx, runKey, id) }

// RunIDFromContext returns the run id, if any.
func RunIDFromContext(ctx context.Context) string { return from(ctx, runKey) }

// WithProject adds the tracker project key to ctx.
func WithProject(ctx context.Context, project string) context.Context {
	return with(ctx, projectKey, project)
}

// ProjectFromContext returns the project key, if any.
func ProjectFromContext(ctx context.Context) string { return from(ctx, projectKey) }

// WithUser adds the user name to ctx.
func WithUser(ctx context.Context, user string) context.Context { return with(ctx, userKey, user) }

// UserFromContext returns the user name, if any.
func UserFromContext(ctx context.Context) string { return from(ctx, userKey) }

// WithRequestID adds the HTTP request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return with(ctx, requestKey, id)
}

// RequestIDFromContext returns the request id, if any.
func RequestIDFromContext(ctx context.Context) string { return from(ctx, requestKey) }

type loggerCtxKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return wrap(zap.NewNop(), NewDefaultConfig())
}
