package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

func TestDashboard_Summarize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.resignation(t)

	approved := f.create(t, c.ID)
	_, err := f.tracker.RecordDecision(ctx, approve(1, manager)(approved.ID))
	require.NoError(t, err)
	_, err = f.tracker.RecordDecision(ctx, approve(2, hrHead)(approved.ID))
	require.NoError(t, err)

	rejected := f.create(t, c.ID)
	_, err = f.tracker.RecordDecision(ctx, DecisionInput{RequestID: rejected.ID, LevelOrdinal: 1, Actor: manager, Decision: repository.DecisionReject})
	require.NoError(t, err)

	frozen := f.create(t, c.ID)
	_, err = f.tracker.Freeze(ctx, frozen.ID, "budget frozen", "hr-1")
	require.NoError(t, err)

	for _, target := range []string{"Regional HR", "Finance", "Regional HR"} {
		r := f.create(t, c.ID)
		_, err = f.tracker.Transfer(ctx, r.ID, target, "hr-1")
		require.NoError(t, err)
	}

	f.create(t, c.ID)
	f.clock.Set(t0.Add(4 * day))
	f.create(t, c.ID) // entered its level just now
	_, err = f.scheduler.Sweep(ctx)
	require.NoError(t, err)

	other := f.category(t, "Transfer")
	f.matrix(t, &repository.ApprovalMatrix{CategoryID: other.ID, IsDefault: true, Levels: []repository.Level{{Ordinal: 1, RequiredCapability: "manager"}}})
	f.create(t, other.ID)

	got, err := f.dashboard.Summarize(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, &Approvals{
		ID:            c.ID,
		CategoryName:  "Resignation",
		Description:   "Resignation approvals",
		ApprovedCount: 1,
		RejectedCount: 1,
		PendingCount:  2,
		FreezeCount:   1,
		TransferCount: 3,
		Overdue:       1,
		MoveTo:        []string{"Finance", "Regional HR"},
	}, got)

	again, err := f.dashboard.Summarize(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, got, again, "summarize is idempotent without intervening writes")
}

func TestDashboard_EmptyAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.category(t, "Budget Exception")

	got, err := f.dashboard.Summarize(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, got.PendingCount)
	assert.Empty(t, got.MoveTo)
	assert.NotNil(t, got.MoveTo)

	_, err = f.dashboard.Summarize(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestDashboard_SummarizeAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, _ := f.resignation(t)
	f.create(t, c.ID)
	f.create(t, c.ID)
	f.category(t, "Budget Exception")

	all, err := f.dashboard.SummarizeAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Budget Exception", all[0].CategoryName)
	assert.Zero(t, all[0].PendingCount)
	assert.Equal(t, "Resignation", all[1].CategoryName)
	assert.Equal(t, 2, all[1].PendingCount)
}
