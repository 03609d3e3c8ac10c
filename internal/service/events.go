package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// Request lifecycle events handed to the EventPublisher.
const (
	EventRequestCreated     = "request_created"
	EventApprovalRequired   = "approval_required"
	EventRequestApproved    = "request_approved"
	EventRequestRejected    = "request_rejected"
	EventRequestFrozen      = "request_frozen"
	EventRequestTransferred = "request_transferred"
	EventRequestOverdue     = "request_overdue"
)

// EventPublisher receives request lifecycle events. Implementations must not
// fail or block the caller; the notification publisher logs and drops errors.
type EventPublisher interface {
	PublishRequestEvent(ctx context.Context, event string, req *repository.ApprovalRequest, actorID string, payload map[string]any)
}

type nopPublisher struct{}

func (nopPublisher) PublishRequestEvent(context.Context, string, *repository.ApprovalRequest, string, map[string]any) {
}

// Option configures the tracker and the scheduler.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
