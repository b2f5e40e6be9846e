package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cwrk-planet/session-service/internal/logger"
)

var tracer = logger.Tracer("session-service/http")

// Logging opens a span per request and logs its outcome. It wraps the
// ResponseWriter, so websocket routes must stay outside of it.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		span.SetAttributes(attribute.Int("http.status_code", status))

		lvl := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			lvl = slog.LevelError
			span.SetStatus(codes.Error, http.StatusText(status))
		case status >= http.StatusBadRequest:
			lvl = slog.LevelWarn
		}

		reqID, _ := RequestIDFrom(ctx)
		args := append([]any{
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}, logger.Args(logger.AttrsFromCtx(ctx))...)
		slog.Log(ctx, lvl, "http request", args...)
	})
}
