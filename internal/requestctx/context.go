// Package requestctx carries per-comment values through the handling of one
// comment, across package boundaries.
package requestctx

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey struct{}

var correlationIDKey = &contextKey{}

// WithCorrelationID stores the id tying together every log line and span
// of one handled comment.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation id from ctx, or "" if not set.
func CorrelationID(ctx context.Context) string {
	v, _ := ctx.Value(correlationIDKey).(string)
	return v
}

// LogFields adds correlation_id to a zerolog event when ctx carries one:
//
//	log.Debug().Func(requestctx.LogFields(ctx)).Msg("search_fallback")
func LogFields(ctx context.Context) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		if id := CorrelationID(ctx); id != "" {
			e.Str("correlation_id", id)
		}
	}
}
