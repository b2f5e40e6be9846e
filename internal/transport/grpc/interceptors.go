package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cwrk-planet/session-service/internal/domain"
	"github.com/cwrk-planet/session-service/internal/logger"
	"github.com/cwrk-planet/session-service/internal/security"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const defaultRPCTimeout = 10 * time.Second

var tracer = logger.Tracer("session-service/grpc")

// observe opens a span for the call and returns the function that must be
// deferred to finish it: it turns a panic into codes.Internal and logs one
// line per call, at error level for server-side codes.
func observe(ctx context.Context, kind, method string) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, method, trace.WithSpanKind(trace.SpanKindServer))

	return ctx, func(errp *error) {
		if r := recover(); r != nil {
			slog.Error("grpc "+kind+" panic", "method", method, "panic", r, "stack", string(debug.Stack()))
			*errp = status.Error(codes.Internal, "internal server error")
		}
		code := status.Code(*errp)

		lvl := slog.LevelInfo
		switch code {
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			lvl = slog.LevelError
		}
		args := append([]any{
			"method", method,
			"code", code.String(),
			"dur_ms", time.Since(start).Milliseconds(),
		}, logger.Args(logger.AttrsFromCtx(ctx))...)
		slog.Log(ctx, lvl, "grpc "+kind, args...)
		span.End()
	}
}

// UnaryServerInterceptor traces, logs and recovers unary calls and gives
// calls without a deadline a default one.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		ctx, done := observe(ctx, "unary", info.FullMethod)
		defer done(&err)

		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultRPCTimeout)
			defer cancel()
		}
		return handler(ctx, req)
	}
}

// tracedStream swaps the stream context for the one carrying the span.
type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s tracedStream) Context() context.Context { return s.ctx }

func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		ctx, done := observe(ss.Context(), "stream", info.FullMethod)
		defer done(&err)

		return handler(srv, tracedStream{ServerStream: ss, ctx: ctx})
	}
}

type Validator interface {
	Validate(token string) (domain.Principal, error)
}

// AdminAuthInterceptor requires an ADMIN bearer token on every method of
// the admin service. Other services (health) pass through.
func AdminAuthInterceptor(v Validator) grpc.UnaryServerInterceptor {
	prefix := "/" + adminServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}
		p, err := v.Validate(tokenFromMD(ctx))
		switch {
		case security.IsExpired(err):
			return nil, status.Error(codes.Unauthenticated, "token expired")
		case err != nil:
			return nil, status.Error(codes.Unauthenticated, "invalid or missing token")
		case p.Role != domain.RoleAdmin:
			return nil, status.Error(codes.PermissionDenied, "admin role required")
		}
		return handler(ctx, req)
	}
}

func tokenFromMD(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if vals := md.Get("authorization"); len(vals) > 0 {
		return security.ParseBearer(vals[0])
	}
	return ""
}
