package client

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-hr-approvals/internal/pb"
)

// ApprovalsGRPCClient wraps the ApprovalService gRPC client.
type ApprovalsGRPCClient struct {
	client pb.ApprovalServiceClient
	conn   *grpc.ClientConn
}

// NewApprovalsGRPCClient dials the approvals gRPC service and returns a client.
func NewApprovalsGRPCClient(addr string, opts ...grpc.DialOption) (*ApprovalsGRPCClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(forwardMetadata),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &ApprovalsGRPCClient{
		client: pb.NewApprovalServiceClient(conn),
		conn:   conn,
	}, nil
}

// Close releases the underlying gRPC connection.
func (c *ApprovalsGRPCClient) Close() error {
	return c.conn.Close()
}

// CreateRequest opens an approval request.
func (c *ApprovalsGRPCClient) CreateRequest(ctx context.Context, categoryID, requesterID, designation, grade string, payload map[string]any) (map[string]any, error) {
	in := map[string]any{
		"category_id":           categoryID,
		"requester_id":          requesterID,
		"requester_designation": designation,
		"requester_grade":       grade,
	}
	if payload != nil {
		in["payload"] = payload
	}
	return c.call(ctx, pb.MethodCreateRequest, in)
}

// Decide records an approve or reject decision at a level.
func (c *ApprovalsGRPCClient) Decide(ctx context.Context, requestID string, level int, actorID, designation string, roles []string, decision, comment string) (map[string]any, error) {
	in := map[string]any{
		"request_id":        requestID,
		"level_ordinal":     level,
		"actor_id":          actorID,
		"actor_designation": designation,
		"actor_roles":       roles,
		"decision":          decision,
		"comment":           comment,
	}
	return c.call(ctx, pb.MethodRecordDecision, in)
}

// Freeze puts a pending request on hold.
func (c *ApprovalsGRPCClient) Freeze(ctx context.Context, requestID, reason, actorID string) (map[string]any, error) {
	return c.call(ctx, pb.MethodFreeze, map[string]any{"request_id": requestID, "reason": reason, "actor_id": actorID})
}

// Transfer hands a pending request to another unit.
func (c *ApprovalsGRPCClient) Transfer(ctx context.Context, requestID, moveTo, actorID string) (map[string]any, error) {
	return c.call(ctx, pb.MethodTransfer, map[string]any{"request_id": requestID, "move_to": moveTo, "actor_id": actorID})
}

// GetRequest returns a request, or nil if none exists.
func (c *ApprovalsGRPCClient) GetRequest(ctx context.Context, id string) (map[string]any, error) {
	out, err := c.call(ctx, pb.MethodGetRequest, map[string]any{"id": id})
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// Summarize returns the dashboard rollup. An empty categoryID returns every
// category under the "approvals" key.
func (c *ApprovalsGRPCClient) Summarize(ctx context.Context, categoryID string) (map[string]any, error) {
	in := map[string]any{}
	if categoryID != "" {
		in["category_id"] = categoryID
	}
	return c.call(ctx, pb.MethodSummarize, in)
}

// SummarizeJSON is Summarize rendered as indented JSON.
func (c *ApprovalsGRPCClient) SummarizeJSON(ctx context.Context, categoryID string) ([]byte, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if categoryID != "" {
		in.Fields["category_id"] = structpb.NewStringValue(categoryID)
	}
	out, err := c.client.Call(ctx, pb.MethodSummarize, in)
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(out)
}

func (c *ApprovalsGRPCClient) call(ctx context.Context, method string, in map[string]any) (map[string]any, error) {
	// Round-trip through JSON so slices and nested maps of any element type
	// are accepted by structpb.
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	msg := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}

	out, err := c.client.Call(ctx, method, msg)
	if err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
