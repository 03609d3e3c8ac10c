package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-hr-approvals/internal/config"
	"github.com/pesio-ai/be-hr-approvals/internal/metrics"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
	"github.com/pesio-ai/be-hr-approvals/internal/service"
)

// Publisher is the subset of *nats.Conn the notification publisher needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NotificationPublisher publishes approval request events to NATS for
// consumption by the notifications service.
//
// Subject convention: <prefix>.<event_type>, e.g. notifications.hr.request_overdue
//
// Publishing is non-fatal. Errors are logged and counted but never returned,
// so a notification outage never interrupts an approval.
type NotificationPublisher struct {
	nats   Publisher
	prefix string
	log    zerolog.Logger
}

var _ service.EventPublisher = (*NotificationPublisher)(nil)

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType    string         `json:"event_type"`
	RequestID    string         `json:"request_id"`
	CategoryID   string         `json:"category_id"`
	ActorID      string         `json:"actor_id,omitempty"`
	Recipients   []string       `json:"recipients"`
	Status       string         `json:"status"`
	LevelOrdinal int            `json:"level_ordinal,omitempty"`
	IsActionable bool           `json:"is_actionable,omitempty"`
	Severity     string         `json:"severity,omitempty"`
	Category     string         `json:"category,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// NewNotificationPublisher creates a publisher. A nil nats disables publishing.
func NewNotificationPublisher(nats Publisher, prefix string, log zerolog.Logger) *NotificationPublisher {
	if prefix == "" {
		prefix = "notifications.hr"
	}
	return &NotificationPublisher{nats: nats, prefix: strings.TrimSuffix(prefix, "."), log: log}
}

// ConnectNATS dials the configured NATS server.
func ConnectNATS(cfg config.NATSConfig, log zerolog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats: disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats: reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// Subject returns the subject an event type is published on.
func (p *NotificationPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// PublishRequestEvent publishes one request lifecycle event.
func (p *NotificationPublisher) PublishRequestEvent(ctx context.Context, eventType string, req *repository.ApprovalRequest, actorID string, payload map[string]any) {
	if p == nil || p.nats == nil || req == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}

	event := &NotificationEvent{
		EventType:  eventType,
		RequestID:  req.ID,
		CategoryID: req.CategoryID,
		ActorID:    actorID,
		Recipients: recipients(eventType, req),
		Status:     string(req.Status),
		Severity:   "info",
		Category:   "hr_approval",
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
	if lvl := req.CurrentLevelDef(); lvl != nil {
		event.LevelOrdinal = lvl.Ordinal
	}
	switch eventType {
	case service.EventApprovalRequired:
		event.IsActionable = true
	case service.EventRequestOverdue:
		event.IsActionable = true
		event.Severity = "warning"
	}

	data, err := json.Marshal(event)
	if err != nil {
		metrics.NotificationFailures.WithLabelValues(eventType).Inc()
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := p.Subject(eventType)
	if err := p.nats.Publish(subject, data); err != nil {
		metrics.NotificationFailures.WithLabelValues(eventType).Inc()
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("request_id", req.ID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	metrics.NotificationsPublished.WithLabelValues(eventType).Inc()
	p.log.Debug().
		Str("subject", subject).
		Str("request_id", req.ID).
		Msg("notification: event published")
}

// recipients addresses actionable events to the capability holding the
// current level and everything else to the requester.
func recipients(eventType string, req *repository.ApprovalRequest) []string {
	switch eventType {
	case service.EventApprovalRequired, service.EventRequestOverdue:
		if lvl := req.CurrentLevelDef(); lvl != nil {
			return []string{"capability:" + lvl.RequiredCapability}
		}
	}
	if req.RequesterID == "" {
		return []string{}
	}
	return []string{req.RequesterID}
}
