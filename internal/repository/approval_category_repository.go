package repository

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/database"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// ApprovalCategoryRepository handles CRUD for approval_categories.
type ApprovalCategoryRepository struct {
	db *database.DB
}

// NewApprovalCategoryRepository creates a new ApprovalCategoryRepository.
func NewApprovalCategoryRepository(db *database.DB) *ApprovalCategoryRepository {
	return &ApprovalCategoryRepository{db: db}
}

// SaveCategory inserts a category or updates it in place.
func (r *ApprovalCategoryRepository) SaveCategory(ctx context.Context, c *ApprovalCategory) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	query := `
		INSERT INTO approval_categories
		    (id, name, description, default_sla_ms, notice_period_days)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name               = EXCLUDED.name,
		    description        = EXCLUDED.description,
		    default_sla_ms     = EXCLUDED.default_sla_ms,
		    notice_period_days = EXCLUDED.notice_period_days,
		    updated_at         = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		c.ID,
		c.Name,
		c.Description,
		c.DefaultSLA.Milliseconds(),
		c.NoticePeriodDays,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to save approval category")
	}
	return nil
}

// GetCategory retrieves a category by primary key.
func (r *ApprovalCategoryRepository) GetCategory(ctx context.Context, id string) (*ApprovalCategory, error) {
	query := `
		SELECT id, name, description, default_sla_ms, notice_period_days,
		       created_at, updated_at
		FROM approval_categories
		WHERE id = $1
	`

	c, err := r.scanCategory(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("approval_category", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval category")
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func (r *ApprovalCategoryRepository) ListCategories(ctx context.Context) ([]*ApprovalCategory, error) {
	query := `
		SELECT id, name, description, default_sla_ms, notice_period_days,
		       created_at, updated_at
		FROM approval_categories
		ORDER BY LOWER(name) ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval categories")
	}
	defer rows.Close()

	var categories []*ApprovalCategory
	for rows.Next() {
		c, err := r.scanCategory(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval category")
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

type categoryScanner interface {
	Scan(dest ...any) error
}

func (r *ApprovalCategoryRepository) scanCategory(row categoryScanner) (*ApprovalCategory, error) {
	c := &ApprovalCategory{}
	var slaMs int64

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&slaMs,
		&c.NoticePeriodDays,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.DefaultSLA = time.Duration(slaMs) * time.Millisecond
	return c, nil
}
