package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// MemoryStore is an in-process implementation of CatalogStore, RequestStore and
// AuditStore. Each request is guarded by its own lock; the index lock is only
// held to find or insert an entry.
type MemoryStore struct {
	catalogMu  sync.RWMutex
	categories map[string]*ApprovalCategory
	matrices   map[string]*ApprovalMatrix

	indexMu  sync.RWMutex
	requests map[string]*requestEntry
	order    []string

	auditMu sync.Mutex
	audit   map[string][]*ApprovalAuditEntry

	now func() time.Time
}

type requestEntry struct {
	mu  sync.Mutex
	req *ApprovalRequest
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		categories: make(map[string]*ApprovalCategory),
		matrices:   make(map[string]*ApprovalMatrix),
		requests:   make(map[string]*requestEntry),
		audit:      make(map[string][]*ApprovalAuditEntry),
		now:        time.Now,
	}
}

// WithClock replaces the store's time source for timestamps it assigns.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// ── catalog ──────────────────────────────────────────────────────────────────

// SaveCategory inserts or replaces a category.
func (s *MemoryStore) SaveCategory(_ context.Context, c *ApprovalCategory) error {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	now := s.now().UTC()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if existing, ok := s.categories[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	cp := *c
	s.categories[c.ID] = &cp
	return nil
}

// GetCategory returns a category by ID.
func (s *MemoryStore) GetCategory(_ context.Context, id string) (*ApprovalCategory, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, errors.NotFound("approval_category", id)
	}
	cp := *c
	return &cp, nil
}

// ListCategories returns all categories ordered by name.
func (s *MemoryStore) ListCategories(_ context.Context) ([]*ApprovalCategory, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()

	out := make([]*ApprovalCategory, 0, len(s.categories))
	for _, c := range s.categories {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// SaveMatrix inserts or replaces a matrix.
func (s *MemoryStore) SaveMatrix(_ context.Context, m *ApprovalMatrix) error {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	now := s.now().UTC()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if existing, ok := s.matrices[m.ID]; ok {
		m.CreatedAt = existing.CreatedAt
	} else {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	s.matrices[m.ID] = m.Clone()
	return nil
}

// GetMatrix returns a matrix by ID.
func (s *MemoryStore) GetMatrix(_ context.Context, id string) (*ApprovalMatrix, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()

	m, ok := s.matrices[id]
	if !ok {
		return nil, errors.NotFound("approval_matrix", id)
	}
	return m.Clone(), nil
}

// ListMatrices returns a category's matrices ordered by priority, then name.
func (s *MemoryStore) ListMatrices(_ context.Context, categoryID string) ([]*ApprovalMatrix, error) {
	s.catalogMu.RLock()
	defer s.catalogMu.RUnlock()

	out := make([]*ApprovalMatrix, 0)
	for _, m := range s.matrices {
		if m.CategoryID == categoryID {
			out = append(out, m.Clone())
		}
	}
	SortMatrices(out)
	return out, nil
}

// DeleteMatrix removes a matrix. Request snapshots are unaffected.
func (s *MemoryStore) DeleteMatrix(_ context.Context, id string) error {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	if _, ok := s.matrices[id]; !ok {
		return errors.NotFound("approval_matrix", id)
	}
	delete(s.matrices, id)
	return nil
}

// SortMatrices orders matrices by priority, then name, then ID.
func SortMatrices(ms []*ApprovalMatrix) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Priority != ms[j].Priority {
			return ms[i].Priority < ms[j].Priority
		}
		if ms[i].Name != ms[j].Name {
			return ms[i].Name < ms[j].Name
		}
		return ms[i].ID < ms[j].ID
	})
}

// ── requests ─────────────────────────────────────────────────────────────────

// Create inserts a new request.
func (s *MemoryStore) Create(_ context.Context, req *ApprovalRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return errors.Newf(errors.ErrCodeConflict, "approval request %q already exists", req.ID)
	}
	s.requests[req.ID] = &requestEntry{req: req.Clone()}
	s.order = append(s.order, req.ID)
	return nil
}

func (s *MemoryStore) entry(id string) (*requestEntry, error) {
	s.indexMu.RLock()
	e, ok := s.requests[id]
	s.indexMu.RUnlock()
	if !ok {
		return nil, errors.NotFound("approval_request", id)
	}
	return e, nil
}

// Get returns a copy of the request.
func (s *MemoryStore) Get(_ context.Context, id string) (*ApprovalRequest, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.req.Clone(), nil
}

// List returns copies of matching requests in creation order.
func (s *MemoryStore) List(ctx context.Context, filter RequestFilter) ([]*ApprovalRequest, error) {
	s.indexMu.RLock()
	entries := make([]*requestEntry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.requests[id])
	}
	s.indexMu.RUnlock()

	out := make([]*ApprovalRequest, 0)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.mu.Lock()
		if filter.Match(e.req) {
			out = append(out, e.req.Clone())
		}
		e.mu.Unlock()
	}
	return out, nil
}

// Update commits req when the stored version still equals expectedVersion.
func (s *MemoryStore) Update(_ context.Context, req *ApprovalRequest, expectedVersion int64) error {
	e, err := s.entry(req.ID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.req.Version != expectedVersion {
		return errors.Newf(errors.ErrCodeVersionConflict,
			"approval request %q is at version %d, expected %d", req.ID, e.req.Version, expectedVersion)
	}
	req.Version = expectedVersion + 1
	req.UpdatedAt = s.now().UTC()
	e.req = req.Clone()
	return nil
}

// ── audit ────────────────────────────────────────────────────────────────────

// Append records an audit entry.
func (s *MemoryStore) Append(_ context.Context, entry *ApprovalAuditEntry) error {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.PerformedAt.IsZero() {
		entry.PerformedAt = s.now().UTC()
	}
	cp := *entry
	s.audit[entry.RequestID] = append(s.audit[entry.RequestID], &cp)
	return nil
}

// GetByRequestID returns a request's audit trail oldest-first.
func (s *MemoryStore) GetByRequestID(_ context.Context, requestID string) ([]*ApprovalAuditEntry, error) {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	entries := s.audit[requestID]
	out := make([]*ApprovalAuditEntry, len(entries))
	for i, e := range entries {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}
