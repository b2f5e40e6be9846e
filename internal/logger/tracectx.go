package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// AttrsFromCtx returns trace_id/span_id of the active span, or nil.
func AttrsFromCtx(ctx context.Context) []slog.Attr {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}

	return []slog.Attr{
		slog.String("trace_id", sc.TraceID().String()),
		slog.String("span_id", sc.SpanID().String()),
	}
}

// Args converts attrs into the variadic form accepted by slog.Info and friends.
func Args(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
