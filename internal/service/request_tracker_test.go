package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

func approve(level int, actor Actor) func(id string) DecisionInput {
	return func(id string) DecisionInput {
		return DecisionInput{RequestID: id, LevelOrdinal: level, Actor: actor, Decision: repository.DecisionApprove}
	}
}

func TestTracker_CreateRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, m := f.resignation(t)

	req := f.create(t, c.ID)
	assert.Equal(t, repository.StatusPending, req.Status)
	assert.Equal(t, 1, req.CurrentLevel)
	assert.False(t, req.Overdue)
	assert.Equal(t, m.ID, req.MatrixID)
	assert.Equal(t, int64(1), req.Version)
	assert.Equal(t, t0, req.LevelEnteredAt)
	assert.Len(t, req.Levels, 2)

	lvl, err := f.tracker.CurrentLevel(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, lvl)
	assert.Equal(t, "manager", lvl.RequiredCapability)

	assert.Equal(t, []string{EventRequestCreated, EventApprovalRequired}, f.events.names())

	_, err = f.tracker.CreateRequest(ctx, CreateRequestInput{})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}

// Requester matches no matrix and the category has no default.
func TestTracker_ScenarioC_NoApplicableMatrix(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Resignation")
	f.matrix(t, &repository.ApprovalMatrix{
		CategoryID:   c.ID,
		Designations: []string{"Sales"},
		Levels:       []repository.Level{{Ordinal: 1, RequiredCapability: "manager"}},
	})

	_, err := f.tracker.CreateRequest(ctx, CreateRequestInput{CategoryID: c.ID, RequesterDesignation: "Engineer", RequesterGrade: "G5"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNoApplicableMatrix))

	all, err := f.tracker.ListRequests(ctx, repository.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.events.names())
}

func TestTracker_TwoLevelApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.resignation(t)
	req := f.create(t, c.ID)

	f.clock.Set(t0.Add(day))
	got, err := f.tracker.RecordDecision(ctx, approve(1, manager)(req.ID))
	require.NoError(t, err)
	assert.Equal(t, repository.StatusPending, got.Status)
	assert.Equal(t, 2, got.CurrentLevel)
	assert.Equal(t, t0.Add(day), got.LevelEnteredAt)
	assert.Equal(t, int64(2), got.Version)

	got, err = f.tracker.RecordDecision(ctx, approve(2, hrHead)(req.ID))
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.History, 2)
	assert.Equal(t, "mgr-1", got.History[0].Actor)
	assert.Equal(t, "hr-1", got.History[1].Actor)

	lvl, err := f.tracker.CurrentLevel(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, lvl, "no current level once terminal")

	_, err = f.tracker.RecordDecision(ctx, approve(2, hrHead)(req.ID))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
	assert.Equal(t, errors.NotAwaitingActionMessage, errors.UserMessage(err))

	trail, err := f.tracker.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, repository.AuditCreated, trail[0].Action)
	assert.Equal(t, repository.AuditApproved, trail[2].Action)
	assert.Equal(t, repository.StatusApproved, trail[2].StatusAfter)
}

// Single-level matrix, one reject is final.
func TestTracker_ScenarioB_RejectIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Budget Exception")
	f.matrix(t, &repository.ApprovalMatrix{
		CategoryID: c.ID,
		IsDefault:  true,
		Levels:     []repository.Level{{Ordinal: 1, RequiredCapability: "manager", SLA: day}},
	})
	req := f.create(t, c.ID)

	got, err := f.tracker.RecordDecision(ctx, DecisionInput{
		RequestID:    req.ID,
		LevelOrdinal: 1,
		Actor:        manager,
		Decision:     repository.DecisionReject,
		Comment:      "over budget",
	})
	require.NoError(t, err)
	assert.Equal(t, repository.StatusRejected, got.Status)
	assert.Equal(t, "over budget", got.History[0].Comment)

	_, err = f.tracker.RecordDecision(ctx, approve(1, manager)(req.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestTracker_SingleLevelApproveCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Budget Exception")
	f.matrix(t, &repository.ApprovalMatrix{
		CategoryID: c.ID,
		IsDefault:  true,
		Levels:     []repository.Level{{Ordinal: 1, RequiredCapability: "manager"}},
	})
	req := f.create(t, c.ID)

	got, err := f.tracker.RecordDecision(ctx, approve(1, manager)(req.ID))
	require.NoError(t, err)
	assert.Equal(t, repository.StatusApproved, got.Status)
}

func TestTracker_RecordDecisionRefusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.resignation(t)
	req := f.create(t, c.ID)
	stale := int64(0)

	tests := []struct {
		name string
		in   DecisionInput
		code errors.Code
	}{
		{"wrong level", approve(2, hrHead)(req.ID), errors.ErrCodeInvalidTransition},
		{"ineligible actor", approve(1, Actor{ID: "eng-2", Designation: "Engineer"})(req.ID), errors.ErrCodeInvalidTransition},
		{"stale version", DecisionInput{RequestID: req.ID, LevelOrdinal: 1, Actor: manager, Decision: repository.DecisionApprove, ExpectedVersion: &stale}, errors.ErrCodeInvalidTransition},
		{"unknown decision", DecisionInput{RequestID: req.ID, LevelOrdinal: 1, Actor: manager, Decision: "abstain"}, errors.ErrCodeValidation},
		{"missing actor", DecisionInput{RequestID: req.ID, LevelOrdinal: 1, Decision: repository.DecisionApprove}, errors.ErrCodeValidation},
		{"unknown request", approve(1, manager)("missing"), errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tracker.RecordDecision(ctx, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err), "got %v", err)
		})
	}

	unchanged, err := f.tracker.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unchanged.Version)
	assert.Empty(t, unchanged.History)
}

// Concurrent decisions against the same version: exactly one wins.
func TestTracker_SingleWriter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.resignation(t)
	req := f.create(t, c.ID)

	const attempts = 8
	version := req.Version
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		refusals  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tracker.RecordDecision(ctx, DecisionInput{
				RequestID:       req.ID,
				LevelOrdinal:    1,
				Actor:           manager,
				Decision:        repository.DecisionApprove,
				ExpectedVersion: &version,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errors.ErrCodeInvalidTransition):
				refusals++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, refusals)

	got, err := f.tracker.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentLevel)
	assert.Len(t, got.History, 1)
	assert.Equal(t, int64(2), got.Version)
}

// Freeze a pending request, then transfer it out of frozen.
func TestTracker_ScenarioD_FreezeThenTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.resignation(t)
	req := f.create(t, c.ID)

	frozen, err := f.tracker.Freeze(ctx, req.ID, "budget frozen", "hr-1")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusFrozen, frozen.Status)
	assert.Equal(t, "budget frozen", frozen.FreezeReason)

	_, err = f.tracker.Freeze(ctx, req.ID, "again", "hr-1")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	_, err = f.tracker.RecordDecision(ctx, approve(1, manager)(req.ID))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	moved, err := f.tracker.Transfer(ctx, req.ID, "Regional HR", "hr-1")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusTransferred, moved.Status)
	assert.Equal(t, "Regional HR", moved.MoveTo)
	assert.Equal(t, "budget frozen", moved.FreezeReason, "freeze reason is kept for reporting")

	_, err = f.tracker.Transfer(ctx, req.ID, "Elsewhere", "hr-1")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	names := f.events.names()
	assert.Contains(t, names, EventRequestFrozen)
	assert.Contains(t, names, EventRequestTransferred)
}

func TestTracker_TerminalTransitionsClearOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.resignation(t)
	frozen := f.create(t, c.ID)
	rejected := f.create(t, c.ID)
	approved := f.create(t, c.ID)
	moved := f.create(t, c.ID)

	f.clock.Set(t0.Add(4 * day))
	res, err := f.scheduler.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, res.Flagged)

	_, err = f.tracker.Freeze(ctx, frozen.ID, "hold", "hr-1")
	require.NoError(t, err)
	_, err = f.tracker.RecordDecision(ctx, DecisionInput{RequestID: rejected.ID, LevelOrdinal: 1, Actor: manager, Decision: repository.DecisionReject})
	require.NoError(t, err)
	_, err = f.tracker.Transfer(ctx, moved.ID, "Regional HR", "hr-1")
	require.NoError(t, err)

	// Level 2 is entered fresh at day 4 and is never flagged before approval.
	_, err = f.tracker.RecordDecision(ctx, approve(1, manager)(approved.ID))
	require.NoError(t, err)
	f.clock.Set(t0.Add(10 * day))
	res, err = f.scheduler.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Flagged)
	_, err = f.tracker.RecordDecision(ctx, approve(2, hrHead)(approved.ID))
	require.NoError(t, err)

	for _, id := range []string{frozen.ID, rejected.ID, approved.ID, moved.ID} {
		got, err := f.tracker.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Status.IsTerminal(), id)
		assert.False(t, got.Overdue, id)
		assert.NotNil(t, got.OverdueAt, "overdue time is kept as history")
	}

	overdue, err := f.tracker.ListRequests(ctx, repository.RequestFilter{OverdueOnly: true})
	require.NoError(t, err)
	assert.Empty(t, overdue)

	sum, err := f.dashboard.Summarize(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Overdue)
}

func TestTracker_FreezeAndTransferGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.resignation(t)

	req := f.create(t, c.ID)
	_, err := f.tracker.Freeze(ctx, req.ID, " ", "hr-1")
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
	_, err = f.tracker.Transfer(ctx, req.ID, "", "hr-1")
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))

	moved, err := f.tracker.Transfer(ctx, req.ID, "Level 2", "hr-1")
	require.NoError(t, err)
	assert.Equal(t, repository.StatusTransferred, moved.Status, "pending is a valid transfer source")

	rejected := f.create(t, c.ID)
	_, err = f.tracker.RecordDecision(ctx, DecisionInput{RequestID: rejected.ID, LevelOrdinal: 1, Actor: manager, Decision: repository.DecisionReject})
	require.NoError(t, err)
	_, err = f.tracker.Freeze(ctx, rejected.ID, "late", "hr-1")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
	_, err = f.tracker.Transfer(ctx, rejected.ID, "Level 2", "hr-1")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestTracker_SnapshotSurvivesCatalogEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, m := f.resignation(t)
	req := f.create(t, c.ID)

	m.Levels = []repository.Level{{Ordinal: 1, RequiredCapability: "ceo"}}
	require.NoError(t, f.catalog.UpsertMatrix(ctx, m))

	got, err := f.tracker.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, got.Levels, 2)
	assert.Equal(t, "manager", got.Levels[0].RequiredCapability)

	require.NoError(t, f.catalog.DeleteMatrix(ctx, m.ID))
	_, err = f.tracker.RecordDecision(ctx, approve(1, manager)(req.ID))
	require.NoError(t, err)

	got, err = f.tracker.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "hr-head", got.Levels[1].RequiredCapability)
}

func TestTracker_PendingForActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.resignation(t)

	first := f.create(t, c.ID)
	second := f.create(t, c.ID)
	_, err := f.tracker.RecordDecision(ctx, approve(1, manager)(second.ID))
	require.NoError(t, err)
	third := f.create(t, c.ID)
	_, err = f.tracker.Freeze(ctx, third.ID, "hold", "hr-1")
	require.NoError(t, err)

	forManager, err := f.tracker.PendingForActor(ctx, manager)
	require.NoError(t, err)
	require.Len(t, forManager, 1)
	assert.Equal(t, first.ID, forManager[0].ID)

	forHR, err := f.tracker.PendingForActor(ctx, hrHead)
	require.NoError(t, err)
	require.Len(t, forHR, 1)
	assert.Equal(t, second.ID, forHR[0].ID)
}

type failingAudit struct{}

func (failingAudit) Append(context.Context, *repository.ApprovalAuditEntry) error {
	return errors.New(errors.ErrCodeInternal, "audit unavailable")
}

func (failingAudit) GetByRequestID(context.Context, string) ([]*repository.ApprovalAuditEntry, error) {
	return nil, nil
}

func TestTracker_AuditFailureDoesNotFailDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.resignation(t)

	tracker := NewRequestTracker(f.store, failingAudit{}, f.resolver, NewCapabilityRegistry(nil), nil, logger.Nop())
	req, err := tracker.CreateRequest(ctx, CreateRequestInput{CategoryID: c.ID, RequesterDesignation: "Engineer"})
	require.NoError(t, err)

	got, err := tracker.RecordDecision(ctx, approve(1, Actor{ID: "m", Designation: "manager"})(req.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentLevel)
}

func TestTracker_ListRequestsRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker.ListRequests(context.Background(), repository.RequestFilter{Status: "archived"})
	assert.True(t, errors.Is(err, errors.ErrCodeValidation))
}
