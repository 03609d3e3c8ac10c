package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestMemoryStore_CategoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore().WithClock(fixedClock(t0))

	c := &ApprovalCategory{Name: "Resignation", DefaultSLA: 72 * time.Hour}
	require.NoError(t, s.SaveCategory(ctx, c))
	require.NotEmpty(t, c.ID)
	assert.Equal(t, t0, c.CreatedAt)

	got, err := s.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Resignation", got.Name)

	got.Name = "mutated"
	again, err := s.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Resignation", again.Name)

	_, err = s.GetCategory(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestMemoryStore_ListCategoriesSortedByName(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, name := range []string{"transfer", "Budget Exception", "resignation"} {
		require.NoError(t, s.SaveCategory(ctx, &ApprovalCategory{Name: name}))
	}

	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Budget Exception", list[0].Name)
	assert.Equal(t, "resignation", list[1].Name)
	assert.Equal(t, "transfer", list[2].Name)
}

func TestMemoryStore_MatricesOrderedAndIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	m1 := &ApprovalMatrix{CategoryID: "cat", Name: "b", Priority: 1, Levels: []Level{{Ordinal: 1, RequiredCapability: "manager"}}}
	m2 := &ApprovalMatrix{CategoryID: "cat", Name: "a", Priority: 1, Levels: []Level{{Ordinal: 1, RequiredCapability: "hr"}}}
	m3 := &ApprovalMatrix{CategoryID: "cat", Name: "z", Priority: 0, Levels: []Level{{Ordinal: 1, RequiredCapability: "cfo"}}}
	other := &ApprovalMatrix{CategoryID: "other", Name: "x"}
	for _, m := range []*ApprovalMatrix{m1, m2, m3, other} {
		require.NoError(t, s.SaveMatrix(ctx, m))
	}

	list, err := s.ListMatrices(ctx, "cat")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"z", "a", "b"}, []string{list[0].Name, list[1].Name, list[2].Name})

	list[0].Levels[0].RequiredCapability = "tampered"
	fresh, err := s.GetMatrix(ctx, m3.ID)
	require.NoError(t, err)
	assert.Equal(t, "cfo", fresh.Levels[0].RequiredCapability)

	empty, err := s.ListMatrices(ctx, "none")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.DeleteMatrix(ctx, m3.ID))
	assert.True(t, errors.Is(s.DeleteMatrix(ctx, m3.ID), errors.ErrCodeNotFound))
}

func newPending(id string) *ApprovalRequest {
	return &ApprovalRequest{
		ID:           id,
		CategoryID:   "cat",
		Levels:       []Level{{Ordinal: 1, RequiredCapability: "manager", SLA: time.Hour}},
		CurrentLevel: 1,
		Status:       StatusPending,
		Version:      1,
	}
}

func TestMemoryStore_CreateRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, newPending("r1")))
	err := s.Create(ctx, newPending("r1"))
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))
}

func TestMemoryStore_UpdateChecksVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newPending("r1")))

	req, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	req.Overdue = true
	require.NoError(t, s.Update(ctx, req, 1))
	assert.Equal(t, int64(2), req.Version)

	stale, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	stale.Status = StatusFrozen
	err = s.Update(ctx, stale, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeVersionConflict))

	stored, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.True(t, stored.Overdue)

	missing := newPending("nope")
	assert.True(t, errors.Is(s.Update(ctx, missing, 1), errors.ErrCodeNotFound))
}

func TestMemoryStore_ConcurrentUpdatesSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newPending("r1")))

	const writers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := s.Get(ctx, "r1")
			if err != nil {
				return
			}
			req.Overdue = true
			if err := s.Update(ctx, req, 1); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	stored, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
}

func TestMemoryStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := newPending("a")
	b := newPending("b")
	b.Overdue = true
	c := newPending("c")
	c.CategoryID = "other"
	c.Status = StatusApproved
	d := newPending("d")
	d.Overdue = true
	d.Status = StatusRejected
	for _, r := range []*ApprovalRequest{a, b, c, d} {
		require.NoError(t, s.Create(ctx, r))
	}

	all, err := s.List(ctx, RequestFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "a", all[0].ID)

	cat, err := s.List(ctx, RequestFilter{CategoryID: "cat"})
	require.NoError(t, err)
	assert.Len(t, cat, 3)

	overdue, err := s.List(ctx, RequestFilter{OverdueOnly: true})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "b", overdue[0].ID)

	approved, err := s.List(ctx, RequestFilter{Status: StatusApproved})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "c", approved[0].ID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.List(cancelled, RequestFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_AuditTrail(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore().WithClock(fixedClock(t0))

	require.NoError(t, s.Append(ctx, &ApprovalAuditEntry{RequestID: "r1", Action: AuditCreated}))
	require.NoError(t, s.Append(ctx, &ApprovalAuditEntry{RequestID: "r1", Action: AuditApproved, PerformedBy: "u1"}))
	require.NoError(t, s.Append(ctx, &ApprovalAuditEntry{RequestID: "r2", Action: AuditCreated}))

	trail, err := s.GetByRequestID(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, AuditCreated, trail[0].Action)
	assert.Equal(t, AuditApproved, trail[1].Action)
	assert.Equal(t, t0, trail[0].PerformedAt)
	assert.NotEmpty(t, trail[0].ID)

	none, err := s.GetByRequestID(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
