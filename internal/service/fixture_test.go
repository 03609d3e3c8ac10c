package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type recordedEvent struct {
	Event     string
	RequestID string
	ActorID   string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishRequestEvent(_ context.Context, event string, req *repository.ApprovalRequest, actorID string, _ map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Event: event, RequestID: req.ID, ActorID: actorID})
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Event
	}
	return out
}

type fixture struct {
	store     *repository.MemoryStore
	clock     *testClock
	events    *recordingPublisher
	catalog   *CatalogService
	resolver  *EligibilityResolver
	tracker   *RequestTracker
	scheduler *EscalationScheduler
	dashboard *DashboardAggregator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &testClock{now: t0}
	store := repository.NewMemoryStore().WithClock(clock.Now)
	events := &recordingPublisher{}
	log := logger.Nop()

	caps := NewCapabilityRegistry(map[string][]string{
		"HR-Head":      {"hr"},
		"Line Manager": {"manager"},
	})
	resolver := NewEligibilityResolver(store, 72*time.Hour, log)

	return &fixture{
		store:     store,
		clock:     clock,
		events:    events,
		catalog:   NewCatalogService(store, log),
		resolver:  resolver,
		tracker:   NewRequestTracker(store, store, resolver, caps, events, log, WithClock(clock.Now)),
		scheduler: NewEscalationScheduler(store, store, events, 0, log, WithClock(clock.Now)),
		dashboard: NewDashboardAggregator(store, store, log),
	}
}

func (f *fixture) category(t *testing.T, name string) *repository.ApprovalCategory {
	t.Helper()
	c := &repository.ApprovalCategory{Name: name, Description: name + " approvals"}
	require.NoError(t, f.catalog.UpsertCategory(context.Background(), c))
	return c
}

func (f *fixture) matrix(t *testing.T, m *repository.ApprovalMatrix) *repository.ApprovalMatrix {
	t.Helper()
	require.NoError(t, f.catalog.UpsertMatrix(context.Background(), m))
	return m
}

// resignation sets up the two-level Manager → HR-Head matrix with 3-day SLAs.
func (f *fixture) resignation(t *testing.T) (*repository.ApprovalCategory, *repository.ApprovalMatrix) {
	t.Helper()
	c := f.category(t, "Resignation")
	m := f.matrix(t, &repository.ApprovalMatrix{
		CategoryID: c.ID,
		Name:       "standard",
		IsDefault:  true,
		Levels: []repository.Level{
			{Ordinal: 1, RequiredCapability: "manager", SLA: 3 * day},
			{Ordinal: 2, RequiredCapability: "hr-head", SLA: 3 * day},
		},
	})
	return c, m
}

func (f *fixture) create(t *testing.T, categoryID string) *repository.ApprovalRequest {
	t.Helper()
	req, err := f.tracker.CreateRequest(context.Background(), CreateRequestInput{
		CategoryID:           categoryID,
		RequesterID:          "emp-1",
		RequesterDesignation: "Engineer",
		RequesterGrade:       "G5",
		Payload:              map[string]any{"last_day": "2026-04-01"},
	})
	require.NoError(t, err)
	return req
}

var (
	manager = Actor{ID: "mgr-1", Designation: "Line Manager"}
	hrHead  = Actor{ID: "hr-1", Designation: "HR-Head"}
)
