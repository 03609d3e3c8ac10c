package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/database"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// ApprovalMatrixRepository handles CRUD for approval_matrices.
type ApprovalMatrixRepository struct {
	db *database.DB
}

// NewApprovalMatrixRepository creates a new ApprovalMatrixRepository.
func NewApprovalMatrixRepository(db *database.DB) *ApprovalMatrixRepository {
	return &ApprovalMatrixRepository{db: db}
}

// SaveMatrix inserts a matrix or replaces its definition.
func (r *ApprovalMatrixRepository) SaveMatrix(ctx context.Context, m *ApprovalMatrix) error {
	levelsJSON, err := json.Marshal(m.Levels)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal matrix levels")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO approval_matrices
		    (id, category_id, name, levels, designations, grades, is_default, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET category_id  = EXCLUDED.category_id,
		    name         = EXCLUDED.name,
		    levels       = EXCLUDED.levels,
		    designations = EXCLUDED.designations,
		    grades       = EXCLUDED.grades,
		    is_default   = EXCLUDED.is_default,
		    priority     = EXCLUDED.priority,
		    updated_at   = NOW()
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		m.ID,
		m.CategoryID,
		m.Name,
		levelsJSON,
		nonNil(m.Designations),
		nonNil(m.Grades),
		m.IsDefault,
		m.Priority,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to save approval matrix")
	}
	return nil
}

// GetMatrix retrieves a matrix by primary key.
func (r *ApprovalMatrixRepository) GetMatrix(ctx context.Context, id string) (*ApprovalMatrix, error) {
	query := `
		SELECT id, category_id, name, levels, designations, grades,
		       is_default, priority, created_at, updated_at
		FROM approval_matrices
		WHERE id = $1
	`

	m, err := r.scanMatrix(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("approval_matrix", id)
	}
	return m, err
}

// ListMatrices returns all matrices for a category in evaluation order.
func (r *ApprovalMatrixRepository) ListMatrices(ctx context.Context, categoryID string) ([]*ApprovalMatrix, error) {
	query := `
		SELECT id, category_id, name, levels, designations, grades,
		       is_default, priority, created_at, updated_at
		FROM approval_matrices
		WHERE category_id = $1
		ORDER BY priority ASC, name ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, categoryID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval matrices")
	}
	defer rows.Close()

	matrices := make([]*ApprovalMatrix, 0)
	for rows.Next() {
		m, err := r.scanMatrix(rows)
		if err != nil {
			return nil, err
		}
		matrices = append(matrices, m)
	}
	return matrices, rows.Err()
}

// DeleteMatrix removes a matrix. Requests keep their own level snapshots.
func (r *ApprovalMatrixRepository) DeleteMatrix(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM approval_matrices WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete approval matrix")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("approval_matrix", id)
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type matrixScanner interface {
	Scan(dest ...any) error
}

func (r *ApprovalMatrixRepository) scanMatrix(row matrixScanner) (*ApprovalMatrix, error) {
	m := &ApprovalMatrix{}
	var levelsJSON []byte

	err := row.Scan(
		&m.ID,
		&m.CategoryID,
		&m.Name,
		&levelsJSON,
		&m.Designations,
		&m.Grades,
		&m.IsDefault,
		&m.Priority,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval matrix")
	}
	if err := json.Unmarshal(levelsJSON, &m.Levels); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal matrix levels")
	}
	return m, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// PostgresCatalog combines the category and matrix repositories into a CatalogStore.
type PostgresCatalog struct {
	*ApprovalCategoryRepository
	*ApprovalMatrixRepository
}

// NewPostgresCatalog creates a Postgres-backed CatalogStore.
func NewPostgresCatalog(db *database.DB) *PostgresCatalog {
	return &PostgresCatalog{
		ApprovalCategoryRepository: NewApprovalCategoryRepository(db),
		ApprovalMatrixRepository:   NewApprovalMatrixRepository(db),
	}
}
