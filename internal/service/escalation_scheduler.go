package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/metrics"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// SweepResult summarizes one escalation pass.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Flagged int `json:"flagged"`
	// Skipped counts requests that changed underneath the sweep; the next
	// pass sees their new state.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// EscalationScheduler raises the overdue flag on pending requests that have
// outstayed their current level's SLA. It never freezes or transfers.
type EscalationScheduler struct {
	requests repository.RequestStore
	audit    repository.AuditStore
	events   EventPublisher
	interval time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// NewEscalationScheduler creates a scheduler. An interval of zero disables Run's
// background loop; Sweep and Evaluate still work on demand.
func NewEscalationScheduler(
	requests repository.RequestStore,
	audit repository.AuditStore,
	events EventPublisher,
	interval time.Duration,
	log *logger.Logger,
	opts ...Option,
) *EscalationScheduler {
	if events == nil {
		events = nopPublisher{}
	}
	o := buildOptions(opts)
	return &EscalationScheduler{
		requests: requests,
		audit:    audit,
		events:   events,
		interval: interval,
		now:      o.now,
		log:      log,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *EscalationScheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.log.Info().Msg("Escalation sweep loop disabled")
		return nil
	}

	s.log.Info().Dur("interval", s.interval).Msg("Starting escalation scheduler")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Escalation scheduler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("Escalation sweep failed")
			}
		}
	}
}

// Sweep makes one pass over pending requests. Per-request failures are logged
// and counted; only listing failures and cancellation end the pass early.
func (s *EscalationScheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	start := time.Now()
	metrics.SweepsRun.Inc()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	pending, err := s.requests.List(ctx, repository.RequestFilter{Status: repository.StatusPending})
	if err != nil {
		return result, err
	}

	now := s.now().UTC()
	for _, req := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++
		if req.Overdue || !pastSLA(req, now) {
			continue
		}

		flagged, err := s.flag(ctx, req.ID, now)
		switch {
		case err == nil && flagged:
			result.Flagged++
		case err == nil:
			result.Skipped++
		case errors.Is(err, errors.ErrCodeVersionConflict):
			result.Skipped++
			s.log.Debug().Str("request_id", req.ID).Msg("Request changed during sweep; will retry next pass")
		default:
			result.Failed++
			metrics.SweepErrors.Inc()
			s.log.Warn().Err(err).Str("request_id", req.ID).Msg("Failed to evaluate request for escalation")
		}
	}

	s.log.Info().
		Int("scanned", result.Scanned).
		Int("flagged", result.Flagged).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Escalation sweep completed")
	return result, nil
}

// Evaluate checks a single request on read and returns its current state.
func (s *EscalationScheduler) Evaluate(ctx context.Context, requestID string) (*repository.ApprovalRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if req.Overdue || !pastSLA(req, now) {
		return req, nil
	}

	if _, err := s.flag(ctx, requestID, now); err != nil && !errors.Is(err, errors.ErrCodeVersionConflict) {
		return nil, err
	}
	return s.requests.Get(ctx, requestID)
}

// flag re-reads the request and sets the overdue flag under the version guard,
// so a concurrent decision that advanced or closed the request wins.
func (s *EscalationScheduler) flag(ctx context.Context, requestID string, now time.Time) (bool, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return false, err
	}
	if req.Status != repository.StatusPending || req.Overdue || !pastSLA(req, now) {
		return false, nil
	}
	lvl := req.CurrentLevelDef()
	if lvl == nil {
		return false, nil
	}

	expected := req.Version
	req.Overdue = true
	req.OverdueAt = &now
	if err := s.requests.Update(ctx, req, expected); err != nil {
		return false, err
	}
	metrics.RequestsFlaggedOverdue.WithLabelValues(req.CategoryID).Inc()

	elapsed := now.Sub(req.LevelEnteredAt)
	if err := s.audit.Append(ctx, &repository.ApprovalAuditEntry{
		RequestID:    req.ID,
		CategoryID:   req.CategoryID,
		Action:       repository.AuditOverdue,
		PerformedBy:  "escalation-scheduler",
		PerformedAt:  now,
		LevelOrdinal: req.CurrentLevel,
		StatusBefore: req.Status,
		StatusAfter:  req.Status,
		Metadata: map[string]any{
			"elapsed_seconds": int64(elapsed / time.Second),
			"sla_seconds":     int64(lvl.SLA / time.Second),
		},
	}); err != nil {
		s.log.Warn().Err(err).Str("request_id", req.ID).Msg("Failed to write audit log entry")
	}
	s.events.PublishRequestEvent(ctx, EventRequestOverdue, req, "", levelPayload(req))

	s.log.Info().
		Str("request_id", req.ID).
		Int("level", req.CurrentLevel).
		Dur("elapsed", elapsed).
		Dur("sla", lvl.SLA).
		Msg("Approval request flagged overdue")
	return true, nil
}

// pastSLA reports whether a pending request has outstayed its current level.
func pastSLA(req *repository.ApprovalRequest, now time.Time) bool {
	lvl := req.CurrentLevelDef()
	if lvl == nil || lvl.SLA <= 0 {
		return false
	}
	return now.Sub(req.LevelEnteredAt) > lvl.SLA
}
