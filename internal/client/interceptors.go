package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// forwardMetadata is a gRPC unary client interceptor that propagates
// incoming request metadata (request id included) to outgoing calls, so a
// caller that is itself serving a gRPC request keeps its trace.
func forwardMetadata(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if out, exists := metadata.FromOutgoingContext(ctx); exists {
			md = metadata.Join(md, out)
		}
		ctx = metadata.NewOutgoingContext(ctx, md)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}
