// Package metrics defines Prometheus metrics for the approvals service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Catalog
	CatalogWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hr_approvals_catalog_writes_total",
		Help: "Total number of category and matrix upserts",
	}, []string{"kind", "result"})

	// Request lifecycle
	RequestsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hr_approvals_requests_created_total",
		Help: "Total number of approval requests created",
	}, []string{"category"})
	RequestsRejectedAtIntake = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hr_approvals_requests_intake_failed_total",
		Help: "Total number of create attempts refused before a request was stored",
	}, []string{"category", "reason"})
	Decisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hr_approvals_decisions_total",
		Help: "Total number of level decisions recorded",
	}, []string{"category", "outcome"})
	Transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hr_approvals_status_transitions_total",
		Help: "Total number of status changes grouped by target status",
	}, []string{"category", "status"})
	StaleWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hr_approvals_stale_writes_total",
		Help: "Total number of mutations refused because the request changed underneath",
	}, []string{"operation"})

	// Escalation
	SweepsRun = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hr_approvals_escalation_sweeps_total",
		Help: "Total number of escalation sweeps started",
	})
	RequestsFlaggedOverdue = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hr_approvals_overdue_flagged_total",
		Help: "Total number of pending requests flagged overdue",
	}, []string{"category"})
	SweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hr_approvals_escalation_sweep_errors_total",
		Help: "Total number of per-request failures skipped during sweeps",
	})
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hr_approvals_escalation_sweep_duration_seconds",
		Help:    "Duration of escalation sweeps",
		Buckets: prometheus.DefBuckets,
	})

	// Notifications
	NotificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hr_approvals_notifications_published_total",
		Help: "Total number of notification events published",
	}, []string{"event"})
	NotificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hr_approvals_notifications_failed_total",
		Help: "Total number of notification events that could not be published",
	}, []string{"event"})
)

func init() {
	prometheus.MustRegister(CatalogWrites)
	prometheus.MustRegister(RequestsCreated)
	prometheus.MustRegister(RequestsRejectedAtIntake)
	prometheus.MustRegister(Decisions)
	prometheus.MustRegister(Transitions)
	prometheus.MustRegister(StaleWrites)
	prometheus.MustRegister(SweepsRun)
	prometheus.MustRegister(RequestsFlaggedOverdue)
	prometheus.MustRegister(SweepErrors)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(NotificationsPublished)
	prometheus.MustRegister(NotificationFailures)
}

// Handler returns an http.Handler exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
