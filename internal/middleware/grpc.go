package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/pesio-ai/be-hr-approvals/internal/logger"
)

// requestIDMetadataKey is the gRPC metadata key for the request id.
const requestIDMetadataKey = "x-request-id"

// UnaryServerInterceptor is the gRPC counterpart of the HTTP chain: it
// carries the request id, attaches a scoped logger, converts panics to
// codes.Internal and logs each call.
func UnaryServerInterceptor(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()

		id := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, id))

		reqLog := &logger.Logger{Logger: log.With().Str("request_id", id).Logger()}
		ctx = logger.WithContext(ContextWithRequestID(ctx, id), reqLog)

		defer func() {
			if rec := recover(); rec != nil {
				reqLog.Error().Interface("panic", rec).Str("method", info.FullMethod).Msg("Recovered from panic")
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}

			code := status.Code(err)
			evt := reqLog.Info()
			if code == codes.Internal || code == codes.Unknown {
				evt = reqLog.Error()
			}
			evt.
				Str("method", info.FullMethod).
				Str("code", code.String()).
				Dur("duration", time.Since(start)).
				Msg("gRPC request")
		}()

		return handler(ctx, req)
	}
}
