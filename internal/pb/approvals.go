// Package pb holds the gRPC service definition for hr.approvals.v1.
//
// Messages are google.protobuf.Struct values whose fields mirror the JSON
// bodies of the HTTP API, so the service needs no generated message types.
package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "hr.approvals.v1.ApprovalService"

// Method names.
const (
	MethodCreateRequest  = "CreateRequest"
	MethodRecordDecision = "RecordDecision"
	MethodFreeze         = "Freeze"
	MethodTransfer       = "Transfer"
	MethodGetRequest     = "GetRequest"
	MethodSummarize      = "Summarize"
)

// FullMethod returns the "/service/method" path used on the wire.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ApprovalServiceServer is the server API for ApprovalService.
type ApprovalServiceServer interface {
	CreateRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordDecision(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Freeze(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Transfer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Summarize(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structCall func(ApprovalServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call structCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ApprovalServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ApprovalServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes ApprovalService for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ApprovalServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreateRequest, ApprovalServiceServer.CreateRequest),
		unary(MethodRecordDecision, ApprovalServiceServer.RecordDecision),
		unary(MethodFreeze, ApprovalServiceServer.Freeze),
		unary(MethodTransfer, ApprovalServiceServer.Transfer),
		unary(MethodGetRequest, ApprovalServiceServer.GetRequest),
		unary(MethodSummarize, ApprovalServiceServer.Summarize),
	},
	Streams: []grpc.StreamDesc{},
	// No Metadata: there is no registered .proto file descriptor, so
	// reflection can list the service but not describe its methods.
}

// RegisterApprovalServiceServer registers srv on s.
func RegisterApprovalServiceServer(s grpc.ServiceRegistrar, srv ApprovalServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ApprovalServiceClient is the client API for ApprovalService.
type ApprovalServiceClient interface {
	Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type approvalServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewApprovalServiceClient creates a client over an existing connection.
func NewApprovalServiceClient(cc grpc.ClientConnInterface) ApprovalServiceClient {
	return &approvalServiceClient{cc: cc}
}

func (c *approvalServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
