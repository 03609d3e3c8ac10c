package handler

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/pb"
	"github.com/pesio-ai/be-hr-approvals/internal/service"
)

// GRPCHandler implements the ApprovalService gRPC interface
type GRPCHandler struct {
	tracker   *service.RequestTracker
	scheduler *service.EscalationScheduler
	dashboard *service.DashboardAggregator
	logger    zerolog.Logger
}

var _ pb.ApprovalServiceServer = (*GRPCHandler)(nil)

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(
	tracker *service.RequestTracker,
	scheduler *service.EscalationScheduler,
	dashboard *service.DashboardAggregator,
	log *logger.Logger,
) *GRPCHandler {
	return &GRPCHandler{
		tracker:   tracker,
		scheduler: scheduler,
		dashboard: dashboard,
		logger:    log.With().Str("handler", "grpc").Logger(),
	}
}

// CreateRequest opens a new approval request
func (h *GRPCHandler) CreateRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body createRequestBody
	if err := decodeStruct(in, &body); err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("category_id", body.CategoryID).
		Str("requester_id", body.RequesterID).
		Msg("gRPC CreateRequest called")

	req, err := h.tracker.CreateRequest(ctx, service.CreateRequestInput{
		CategoryID:           body.CategoryID,
		RequesterID:          body.RequesterID,
		RequesterDesignation: body.RequesterDesignation,
		RequesterGrade:       body.RequesterGrade,
		Payload:              body.Payload,
	})
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return encodeStruct(toRequestView(req))
}

// RecordDecision approves or rejects the current level
func (h *GRPCHandler) RecordDecision(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body decisionBody
	if err := decodeStruct(in, &body); err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("request_id", body.RequestID).
		Int("level", body.LevelOrdinal).
		Str("decision", body.Decision).
		Msg("gRPC RecordDecision called")

	req, err := h.tracker.RecordDecision(ctx, body.toInput())
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return encodeStruct(toRequestView(req))
}

// Freeze puts a pending request on hold
func (h *GRPCHandler) Freeze(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body freezeBody
	if err := decodeStruct(in, &body); err != nil {
		return nil, err
	}

	h.logger.Info().Str("request_id", body.RequestID).Msg("gRPC Freeze called")

	req, err := h.tracker.Freeze(ctx, body.RequestID, body.Reason, body.ActorID)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return encodeStruct(toRequestView(req))
}

// Transfer hands a pending request over to another unit
func (h *GRPCHandler) Transfer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body transferBody
	if err := decodeStruct(in, &body); err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("request_id", body.RequestID).
		Str("move_to", body.MoveTo).
		Msg("gRPC Transfer called")

	req, err := h.tracker.Transfer(ctx, body.RequestID, body.MoveTo, body.ActorID)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return encodeStruct(toRequestView(req))
}

// GetRequest returns a request after raising its overdue flag if due
func (h *GRPCHandler) GetRequest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body idBody
	if err := decodeStruct(in, &body); err != nil {
		return nil, err
	}
	if body.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	req, err := h.scheduler.Evaluate(ctx, body.ID)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return encodeStruct(toRequestView(req))
}

// Summarize returns the dashboard rollup for one category, or every
// category when category_id is empty.
func (h *GRPCHandler) Summarize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var body idBody
	if err := decodeStruct(in, &body); err != nil {
		return nil, err
	}

	if body.CategoryID == "" {
		all, err := h.dashboard.SummarizeAll(ctx)
		if err != nil {
			return nil, mapErrorToGRPC(err)
		}
		return encodeStruct(map[string]any{"approvals": all})
	}

	summary, err := h.dashboard.Summarize(ctx, body.CategoryID)
	if err != nil {
		return nil, mapErrorToGRPC(err)
	}
	return encodeStruct(summary)
}

// decodeStruct reads a Struct message into one of the JSON bodies.
func decodeStruct(in *structpb.Struct, out any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid message: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid message: %v", err)
	}
	return nil
}

// encodeStruct renders a JSON view as a Struct message.
func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func mapErrorToGRPC(err error) error {
	if err == nil {
		return nil
	}

	msg := errors.UserMessage(err)

	switch errors.CodeOf(err) {
	case errors.ErrCodeValidation:
		return status.Error(codes.InvalidArgument, msg)
	case errors.ErrCodeNotFound:
		return status.Error(codes.NotFound, msg)
	case errors.ErrCodeConflict:
		return status.Error(codes.AlreadyExists, msg)
	case errors.ErrCodeInvalidTransition, errors.ErrCodeVersionConflict, errors.ErrCodeNoApplicableMatrix:
		return status.Error(codes.FailedPrecondition, msg)
	default:
		if ctxErr := status.FromContextError(err); ctxErr.Code() != codes.Unknown {
			return ctxErr.Err()
		}
		return status.Error(codes.Internal, msg)
	}
}
