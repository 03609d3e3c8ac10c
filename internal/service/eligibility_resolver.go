package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// Resolution is the matrix chosen for a requester together with the level
// snapshot the request will carry for its whole life.
type Resolution struct {
	MatrixID   string
	MatrixName string
	Levels     []repository.Level
}

// EligibilityResolver picks the applicable matrix for a requester.
type EligibilityResolver struct {
	catalog    repository.CatalogStore
	defaultSLA time.Duration
	log        *logger.Logger
}

// NewEligibilityResolver creates a resolver. defaultSLA is the last fallback
// for levels whose matrix and category set no budget.
func NewEligibilityResolver(catalog repository.CatalogStore, defaultSLA time.Duration, log *logger.Logger) *EligibilityResolver {
	return &EligibilityResolver{catalog: catalog, defaultSLA: defaultSLA, log: log}
}

// Resolve selects the matrix for (designation, grade) within a category.
// A designation match beats a grade match, which beats the default matrix;
// within a tier catalog order decides. The returned levels are a private copy
// with every SLA filled in.
func (r *EligibilityResolver) Resolve(ctx context.Context, categoryID, designation, grade string) (*Resolution, error) {
	category, err := r.catalog.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	matrices, err := r.catalog.ListMatrices(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	m := selectMatrix(matrices, designation, grade)
	if m == nil {
		return nil, errors.Newf(errors.ErrCodeNoApplicableMatrix,
			"no approval matrix in category %q applies to designation %q grade %q",
			category.Name, designation, grade)
	}

	levels := repository.CloneLevels(m.Levels)
	for i := range levels {
		if levels[i].SLA <= 0 {
			levels[i].SLA = r.levelBudget(category, len(levels))
		}
	}

	r.log.Debug().
		Str("category_id", categoryID).
		Str("matrix_id", m.ID).
		Str("designation", designation).
		Str("grade", grade).
		Int("levels", len(levels)).
		Msg("Approval matrix resolved")

	return &Resolution{MatrixID: m.ID, MatrixName: m.Name, Levels: levels}, nil
}

func selectMatrix(matrices []*repository.ApprovalMatrix, designation, grade string) *repository.ApprovalMatrix {
	var byGrade, fallback *repository.ApprovalMatrix
	for _, m := range matrices {
		switch {
		case m.IsDefault:
			if fallback == nil {
				fallback = m
			}
		case m.Matches(designation, grade):
			if len(m.Designations) > 0 {
				return m
			}
			if byGrade == nil {
				byGrade = m
			}
		}
	}
	if byGrade != nil {
		return byGrade
	}
	return fallback
}

// levelBudget is the SLA for a level that declares none: the category default,
// else the notice period split across the levels, else the service default.
func (r *EligibilityResolver) levelBudget(c *repository.ApprovalCategory, levelCount int) time.Duration {
	if c.DefaultSLA > 0 {
		return c.DefaultSLA
	}
	if c.NoticePeriodDays > 0 && levelCount > 0 {
		return time.Duration(c.NoticePeriodDays) * 24 * time.Hour / time.Duration(levelCount)
	}
	return r.defaultSLA
}
