package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/metrics"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// CatalogService administers approval categories and their matrices. It never
// touches live requests.
type CatalogService struct {
	store repository.CatalogStore
	log   *logger.Logger

	// writeMu serializes catalog writes so uniqueness and overlap checks see
	// a stable catalog.
	writeMu sync.Mutex
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store repository.CatalogStore, log *logger.Logger) *CatalogService {
	return &CatalogService{store: store, log: log}
}

// ── Categories ────────────────────────────────────────────────────────────────

// UpsertCategory stores or updates a category. Names are required and unique
// within the catalog, compared case-insensitively.
func (s *CatalogService) UpsertCategory(ctx context.Context, c *repository.ApprovalCategory) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return s.rejected("category", errors.InvalidInput("name", "category name is required"))
	}
	if c.DefaultSLA < 0 {
		return s.rejected("category", errors.InvalidInput("default_sla", "must not be negative"))
	}
	if c.NoticePeriodDays < 0 {
		return s.rejected("category", errors.InvalidInput("notice_period_days", "must not be negative"))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.store.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID != c.ID && strings.EqualFold(other.Name, c.Name) {
			return s.rejected("category", errors.InvalidInput("name",
				fmt.Sprintf("category %q already exists", other.Name)))
		}
	}

	if err := s.store.SaveCategory(ctx, c); err != nil {
		return err
	}
	metrics.CatalogWrites.WithLabelValues("category", "ok").Inc()

	s.log.Info().
		Str("category_id", c.ID).
		Str("name", c.Name).
		Msg("Approval category saved")
	return nil
}

// GetCategory returns a category by ID.
func (s *CatalogService) GetCategory(ctx context.Context, id string) (*repository.ApprovalCategory, error) {
	return s.store.GetCategory(ctx, id)
}

// ListCategories returns all categories ordered by name.
func (s *CatalogService) ListCategories(ctx context.Context) ([]*repository.ApprovalCategory, error) {
	return s.store.ListCategories(ctx)
}

// ── Matrices ──────────────────────────────────────────────────────────────────

// UpsertMatrix validates and stores a matrix. Malformed levels or predicates
// fail with a validation error; a predicate that overlaps another matrix of
// the same category fails with a conflict.
func (s *CatalogService) UpsertMatrix(ctx context.Context, m *repository.ApprovalMatrix) error {
	if err := normalizeMatrix(m); err != nil {
		return s.rejected("matrix", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.store.GetCategory(ctx, m.CategoryID); err != nil {
		if errors.Is(err, errors.ErrCodeNotFound) {
			return s.rejected("matrix", errors.InvalidInput("category_id",
				fmt.Sprintf("category %q does not exist", m.CategoryID)))
		}
		return err
	}

	siblings, err := s.store.ListMatrices(ctx, m.CategoryID)
	if err != nil {
		return err
	}
	for _, other := range siblings {
		if other.ID == m.ID {
			continue
		}
		if m.IsDefault && other.IsDefault {
			return s.rejected("matrix", errors.Newf(errors.ErrCodeConflict,
				"category %q already has default matrix %q", m.CategoryID, other.ID))
		}
		if m.Overlaps(other) {
			return s.rejected("matrix", errors.Newf(errors.ErrCodeConflict,
				"applicability overlaps matrix %q (%s)", other.ID, describePredicate(other)))
		}
	}

	if err := s.store.SaveMatrix(ctx, m); err != nil {
		return err
	}
	metrics.CatalogWrites.WithLabelValues("matrix", "ok").Inc()

	s.log.Info().
		Str("matrix_id", m.ID).
		Str("category_id", m.CategoryID).
		Int("levels", len(m.Levels)).
		Bool("default", m.IsDefault).
		Msg("Approval matrix saved")
	return nil
}

// GetMatrix returns a matrix by ID.
func (s *CatalogService) GetMatrix(ctx context.Context, id string) (*repository.ApprovalMatrix, error) {
	return s.store.GetMatrix(ctx, id)
}

// ListMatrices returns a category's matrices in evaluation order; empty when
// none are defined.
func (s *CatalogService) ListMatrices(ctx context.Context, categoryID string) ([]*repository.ApprovalMatrix, error) {
	return s.store.ListMatrices(ctx, categoryID)
}

// DeleteMatrix removes a matrix. Requests already resolved against it keep
// their snapshot.
func (s *CatalogService) DeleteMatrix(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.DeleteMatrix(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("matrix_id", id).Msg("Approval matrix deleted")
	return nil
}

// ── Validation ────────────────────────────────────────────────────────────────

// normalizeMatrix trims predicate entries in place and checks the matrix shape.
func normalizeMatrix(m *repository.ApprovalMatrix) error {
	m.CategoryID = strings.TrimSpace(m.CategoryID)
	if m.CategoryID == "" {
		return errors.InvalidInput("category_id", "category is required")
	}

	if len(m.Levels) == 0 {
		return errors.InvalidInput("levels", "at least one level is required")
	}
	for i := range m.Levels {
		lvl := &m.Levels[i]
		if lvl.Ordinal != i+1 {
			return errors.InvalidInput("levels",
				fmt.Sprintf("level ordinals must be contiguous from 1; position %d has ordinal %d", i+1, lvl.Ordinal))
		}
		lvl.RequiredCapability = strings.TrimSpace(lvl.RequiredCapability)
		if lvl.RequiredCapability == "" {
			return errors.InvalidInput("levels", fmt.Sprintf("level %d has no required capability", lvl.Ordinal))
		}
		if lvl.SLA < 0 {
			return errors.InvalidInput("levels", fmt.Sprintf("level %d has a negative SLA", lvl.Ordinal))
		}
	}

	var err error
	if m.Designations, err = trimSet("designations", m.Designations); err != nil {
		return err
	}
	if m.Grades, err = trimSet("grades", m.Grades); err != nil {
		return err
	}

	hasPredicate := len(m.Designations) > 0 || len(m.Grades) > 0
	switch {
	case m.IsDefault && hasPredicate:
		return errors.InvalidInput("is_default", "a default matrix cannot also name designations or grades")
	case !m.IsDefault && !hasPredicate:
		return errors.InvalidInput("designations", "a matrix must name designations, grades, or be the default")
	}
	return nil
}

func trimSet(field string, in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, errors.InvalidInput(field, "entries must not be blank")
		}
		out = append(out, v)
	}
	return out, nil
}

func describePredicate(m *repository.ApprovalMatrix) string {
	return fmt.Sprintf("designations=%v grades=%v", m.Designations, m.Grades)
}

func (s *CatalogService) rejected(kind string, err error) error {
	metrics.CatalogWrites.WithLabelValues(kind, strings.ToLower(string(errors.CodeOf(err)))).Inc()
	s.log.Debug().Err(err).Str("kind", kind).Msg("Catalog write rejected")
	return err
}
