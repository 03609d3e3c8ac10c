package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/metrics"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// CreateRequestInput describes a triggering HR event.
type CreateRequestInput struct {
	CategoryID           string
	RequesterID          string
	RequesterDesignation string
	RequesterGrade       string
	Payload              map[string]any
}

// DecisionInput is one approver action on a request level.
type DecisionInput struct {
	RequestID    string
	LevelOrdinal int
	Actor        Actor
	Decision     repository.DecisionOutcome
	Comment      string
	// ExpectedVersion, when set, is the version the actor last saw. A request
	// that has moved on since is refused.
	ExpectedVersion *int64
}

// RequestTracker is the only writer of request state besides the overdue flag
// raised by the EscalationScheduler. Every mutation is a versioned
// read-modify-write against the request store.
type RequestTracker struct {
	requests repository.RequestStore
	audit    repository.AuditStore
	resolver *EligibilityResolver
	caps     *CapabilityRegistry
	events   EventPublisher
	now      func() time.Time
	log      *logger.Logger
}

// NewRequestTracker creates a new RequestTracker. A nil publisher disables
// notifications.
func NewRequestTracker(
	requests repository.RequestStore,
	audit repository.AuditStore,
	resolver *EligibilityResolver,
	caps *CapabilityRegistry,
	events EventPublisher,
	log *logger.Logger,
	opts ...Option,
) *RequestTracker {
	if events == nil {
		events = nopPublisher{}
	}
	o := buildOptions(opts)
	return &RequestTracker{
		requests: requests,
		audit:    audit,
		resolver: resolver,
		caps:     caps,
		events:   events,
		now:      o.now,
		log:      log,
	}
}

// ── Creation ──────────────────────────────────────────────────────────────────

// CreateRequest resolves the applicable matrix and starts the request at
// level 1. Nothing is stored when resolution fails.
func (t *RequestTracker) CreateRequest(ctx context.Context, in CreateRequestInput) (*repository.ApprovalRequest, error) {
	if strings.TrimSpace(in.CategoryID) == "" {
		return nil, errors.InvalidInput("category_id", "category is required")
	}

	res, err := t.resolver.Resolve(ctx, in.CategoryID, in.RequesterDesignation, in.RequesterGrade)
	if err != nil {
		metrics.RequestsRejectedAtIntake.WithLabelValues(in.CategoryID, strings.ToLower(string(errors.CodeOf(err)))).Inc()
		return nil, err
	}

	now := t.now().UTC()
	req := &repository.ApprovalRequest{
		ID:                   uuid.New().String(),
		CategoryID:           in.CategoryID,
		RequesterID:          in.RequesterID,
		RequesterDesignation: in.RequesterDesignation,
		RequesterGrade:       in.RequesterGrade,
		Payload:              clonePayload(in.Payload),
		MatrixID:             res.MatrixID,
		Levels:               res.Levels,
		CurrentLevel:         1,
		Status:               repository.StatusPending,
		LevelEnteredAt:       now,
		Version:              1,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := t.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	metrics.RequestsCreated.WithLabelValues(req.CategoryID).Inc()

	t.appendAudit(ctx, &repository.ApprovalAuditEntry{
		RequestID:    req.ID,
		CategoryID:   req.CategoryID,
		Action:       repository.AuditCreated,
		PerformedBy:  req.RequesterID,
		PerformedAt:  now,
		LevelOrdinal: 1,
		StatusAfter:  repository.StatusPending,
		Metadata: map[string]any{
			"matrix_id":   res.MatrixID,
			"matrix_name": res.MatrixName,
			"levels":      len(res.Levels),
		},
	})
	t.events.PublishRequestEvent(ctx, EventRequestCreated, req, req.RequesterID, nil)
	t.events.PublishRequestEvent(ctx, EventApprovalRequired, req, req.RequesterID, levelPayload(req))

	t.log.Info().
		Str("request_id", req.ID).
		Str("category_id", req.CategoryID).
		Str("matrix_id", req.MatrixID).
		Int("levels", len(req.Levels)).
		Msg("Approval request created")

	return req.Clone(), nil
}

// ── Decisions ─────────────────────────────────────────────────────────────────

// RecordDecision applies an approve or reject at the current level. A reject
// is final. An approve on the last level completes the request; otherwise the
// request advances and its dwell timer restarts.
func (t *RequestTracker) RecordDecision(ctx context.Context, in DecisionInput) (*repository.ApprovalRequest, error) {
	if in.RequestID == "" {
		return nil, errors.InvalidInput("request_id", "request is required")
	}
	if in.Actor.ID == "" {
		return nil, errors.InvalidInput("actor", "actor is required")
	}
	if in.Decision != repository.DecisionApprove && in.Decision != repository.DecisionReject {
		return nil, errors.InvalidInput("decision", "must be approve or reject")
	}

	req, err := t.requests.Get(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion != req.Version {
		metrics.StaleWrites.WithLabelValues("record_decision").Inc()
		return nil, errors.InvalidTransition("request %s is at version %d, decision was made against version %d",
			req.ID, req.Version, *in.ExpectedVersion)
	}
	if req.Status != repository.StatusPending {
		return nil, errors.InvalidTransition("request %s is %s", req.ID, req.Status)
	}
	if in.LevelOrdinal != req.CurrentLevel {
		return nil, errors.InvalidTransition("request %s is waiting on level %d, not level %d",
			req.ID, req.CurrentLevel, in.LevelOrdinal)
	}
	lvl := req.CurrentLevelDef()
	if lvl == nil {
		return nil, errors.InvalidTransition("request %s has no level %d", req.ID, req.CurrentLevel)
	}
	if !t.caps.CanAct(in.Actor, *lvl) {
		return nil, errors.InvalidTransition("actor %s lacks capability %q for level %d",
			in.Actor.ID, lvl.RequiredCapability, in.LevelOrdinal)
	}

	now := t.now().UTC()
	expected := req.Version
	before := req.Status

	req.History = append(req.History, repository.Decision{
		LevelOrdinal:     in.LevelOrdinal,
		Actor:            in.Actor.ID,
		ActorDesignation: in.Actor.Designation,
		Outcome:          in.Decision,
		Comment:          in.Comment,
		DecidedAt:        now,
	})

	action := repository.AuditApproved
	switch {
	case in.Decision == repository.DecisionReject:
		action = repository.AuditRejected
		req.Status = repository.StatusRejected
		req.Overdue = false
		req.CompletedAt = &now
	case req.CurrentLevel == len(req.Levels):
		req.Status = repository.StatusApproved
		req.Overdue = false
		req.CompletedAt = &now
	default:
		req.CurrentLevel++
		req.Overdue = false
		req.OverdueAt = nil
		req.LevelEnteredAt = now
	}

	if err := t.commit(ctx, req, expected, "record_decision"); err != nil {
		return nil, err
	}
	metrics.Decisions.WithLabelValues(req.CategoryID, string(in.Decision)).Inc()
	if req.Status != before {
		metrics.Transitions.WithLabelValues(req.CategoryID, string(req.Status)).Inc()
	}

	t.appendAudit(ctx, &repository.ApprovalAuditEntry{
		RequestID:    req.ID,
		CategoryID:   req.CategoryID,
		Action:       action,
		PerformedBy:  in.Actor.ID,
		PerformedAt:  now,
		LevelOrdinal: in.LevelOrdinal,
		StatusBefore: before,
		StatusAfter:  req.Status,
		Metadata:     map[string]any{"comment": in.Comment, "designation": in.Actor.Designation},
	})

	switch req.Status {
	case repository.StatusApproved:
		t.events.PublishRequestEvent(ctx, EventRequestApproved, req, in.Actor.ID, nil)
	case repository.StatusRejected:
		t.events.PublishRequestEvent(ctx, EventRequestRejected, req, in.Actor.ID, map[string]any{"comment": in.Comment})
	default:
		t.events.PublishRequestEvent(ctx, EventApprovalRequired, req, in.Actor.ID, levelPayload(req))
	}

	t.log.Info().
		Str("request_id", req.ID).
		Str("actor", in.Actor.ID).
		Str("decision", string(in.Decision)).
		Int("level", in.LevelOrdinal).
		Str("status", string(req.Status)).
		Msg("Approval decision recorded")

	return req.Clone(), nil
}

// ── Freeze ────────────────────────────────────────────────────────────────────

// Freeze halts a pending request and keeps the reason for reporting.
func (t *RequestTracker) Freeze(ctx context.Context, requestID, reason, actorID string) (*repository.ApprovalRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.InvalidInput("reason", "freeze reason is required")
	}

	req, err := t.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != repository.StatusPending {
		return nil, errors.InvalidTransition("request %s cannot be frozen from status %s", req.ID, req.Status)
	}

	now := t.now().UTC()
	expected := req.Version
	req.Status = repository.StatusFrozen
	req.FreezeReason = reason
	req.Overdue = false
	req.CompletedAt = &now

	if err := t.commit(ctx, req, expected, "freeze"); err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(req.CategoryID, string(req.Status)).Inc()

	t.appendAudit(ctx, &repository.ApprovalAuditEntry{
		RequestID:    req.ID,
		CategoryID:   req.CategoryID,
		Action:       repository.AuditFrozen,
		PerformedBy:  actorID,
		PerformedAt:  now,
		LevelOrdinal: req.CurrentLevel,
		StatusBefore: repository.StatusPending,
		StatusAfter:  repository.StatusFrozen,
		Metadata:     map[string]any{"reason": reason},
	})
	t.events.PublishRequestEvent(ctx, EventRequestFrozen, req, actorID, map[string]any{"reason": reason})

	t.log.Info().
		Str("request_id", req.ID).
		Str("actor", actorID).
		Str("reason", reason).
		Msg("Approval request frozen")

	return req.Clone(), nil
}

// ── Transfer ──────────────────────────────────────────────────────────────────

// Transfer hands a pending or frozen request to another level or designation.
func (t *RequestTracker) Transfer(ctx context.Context, requestID, target, actorID string) (*repository.ApprovalRequest, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.InvalidInput("move_to", "transfer target is required")
	}

	req, err := t.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != repository.StatusPending && req.Status != repository.StatusFrozen {
		return nil, errors.InvalidTransition("request %s cannot be transferred from status %s", req.ID, req.Status)
	}

	now := t.now().UTC()
	expected := req.Version
	before := req.Status
	req.Status = repository.StatusTransferred
	req.MoveTo = target
	req.Overdue = false
	req.CompletedAt = &now

	if err := t.commit(ctx, req, expected, "transfer"); err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(req.CategoryID, string(req.Status)).Inc()

	t.appendAudit(ctx, &repository.ApprovalAuditEntry{
		RequestID:    req.ID,
		CategoryID:   req.CategoryID,
		Action:       repository.AuditTransferred,
		PerformedBy:  actorID,
		PerformedAt:  now,
		LevelOrdinal: req.CurrentLevel,
		StatusBefore: before,
		StatusAfter:  repository.StatusTransferred,
		Metadata:     map[string]any{"move_to": target},
	})
	t.events.PublishRequestEvent(ctx, EventRequestTransferred, req, actorID, map[string]any{"move_to": target})

	t.log.Info().
		Str("request_id", req.ID).
		Str("actor", actorID).
		Str("move_to", target).
		Str("from_status", string(before)).
		Msg("Approval request transferred")

	return req.Clone(), nil
}

// ── Query helpers ─────────────────────────────────────────────────────────────

// CurrentLevel returns the level the request waits on, or nil once terminal.
func (t *RequestTracker) CurrentLevel(ctx context.Context, requestID string) (*repository.Level, error) {
	req, err := t.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return req.CurrentLevelDef(), nil
}

// GetRequest returns a request by ID.
func (t *RequestTracker) GetRequest(ctx context.Context, requestID string) (*repository.ApprovalRequest, error) {
	return t.requests.Get(ctx, requestID)
}

// ListRequests returns requests matching the filter in creation order.
func (t *RequestTracker) ListRequests(ctx context.Context, filter repository.RequestFilter) ([]*repository.ApprovalRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.InvalidInput("status", "unknown status "+string(filter.Status))
	}
	return t.requests.List(ctx, filter)
}

// PendingForActor returns pending requests whose current level the actor may act on.
func (t *RequestTracker) PendingForActor(ctx context.Context, actor Actor) ([]*repository.ApprovalRequest, error) {
	pending, err := t.requests.List(ctx, repository.RequestFilter{Status: repository.StatusPending})
	if err != nil {
		return nil, err
	}
	out := make([]*repository.ApprovalRequest, 0)
	for _, req := range pending {
		if lvl := req.CurrentLevelDef(); lvl != nil && t.caps.CanAct(actor, *lvl) {
			out = append(out, req)
		}
	}
	return out, nil
}

// History returns the full audit trail for a request.
func (t *RequestTracker) History(ctx context.Context, requestID string) ([]*repository.ApprovalAuditEntry, error) {
	if _, err := t.requests.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return t.audit.GetByRequestID(ctx, requestID)
}

// ── Internal helpers ──────────────────────────────────────────────────────────

// commit writes req if nobody else changed it since it was read. Losing the
// race is reported as an invalid transition.
func (t *RequestTracker) commit(ctx context.Context, req *repository.ApprovalRequest, expected int64, op string) error {
	err := t.requests.Update(ctx, req, expected)
	if err == nil {
		return nil
	}
	if errors.Is(err, errors.ErrCodeVersionConflict) {
		metrics.StaleWrites.WithLabelValues(op).Inc()
		t.log.Debug().Err(err).Str("request_id", req.ID).Str("op", op).Msg("Lost write race")
		return errors.Wrap(err, errors.ErrCodeInvalidTransition, "request changed while the action was being applied")
	}
	return err
}

// appendAudit writes an audit entry and logs a warning on failure (never returns error).
func (t *RequestTracker) appendAudit(ctx context.Context, entry *repository.ApprovalAuditEntry) {
	if err := t.audit.Append(ctx, entry); err != nil {
		t.log.Warn().Err(err).
			Str("request_id", entry.RequestID).
			Str("action", string(entry.Action)).
			Msg("Failed to write audit log entry")
	}
}

func levelPayload(req *repository.ApprovalRequest) map[string]any {
	lvl := req.CurrentLevelDef()
	if lvl == nil {
		return nil
	}
	return map[string]any{
		"level":               lvl.Ordinal,
		"required_capability": lvl.RequiredCapability,
		"sla_seconds":         int64(lvl.SLA / time.Second),
	}
}

func clonePayload(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
