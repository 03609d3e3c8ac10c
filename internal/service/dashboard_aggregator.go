package service

import (
	"context"
	"sort"

	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
)

// Approvals is the dashboard rollup for one category.
type Approvals struct {
	ID            string   `json:"id"`
	CategoryName  string   `json:"categoryName"`
	Description   string   `json:"description"`
	ApprovedCount int      `json:"approvedCount"`
	RejectedCount int      `json:"rejectedCount"`
	PendingCount  int      `json:"pendingCount"`
	FreezeCount   int      `json:"freezeCount"`
	TransferCount int      `json:"transferCount"`
	Overdue       int      `json:"overdue"`
	MoveTo        []string `json:"moveTo"`
}

// DashboardAggregator projects tracker state into dashboard counts. It only reads.
type DashboardAggregator struct {
	catalog  repository.CatalogStore
	requests repository.RequestStore
	log      *logger.Logger
}

// NewDashboardAggregator creates a new DashboardAggregator.
func NewDashboardAggregator(catalog repository.CatalogStore, requests repository.RequestStore, log *logger.Logger) *DashboardAggregator {
	return &DashboardAggregator{catalog: catalog, requests: requests, log: log}
}

// Summarize counts a category's requests by status in a single pass.
func (a *DashboardAggregator) Summarize(ctx context.Context, categoryID string) (*Approvals, error) {
	category, err := a.catalog.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	requests, err := a.requests.List(ctx, repository.RequestFilter{CategoryID: categoryID})
	if err != nil {
		return nil, err
	}
	return rollup(category, requests), nil
}

// SummarizeAll returns one rollup per category, ordered like ListCategories.
func (a *DashboardAggregator) SummarizeAll(ctx context.Context) ([]*Approvals, error) {
	categories, err := a.catalog.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	requests, err := a.requests.List(ctx, repository.RequestFilter{})
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]*repository.ApprovalRequest, len(categories))
	for _, req := range requests {
		byCategory[req.CategoryID] = append(byCategory[req.CategoryID], req)
	}

	out := make([]*Approvals, 0, len(categories))
	for _, c := range categories {
		out = append(out, rollup(c, byCategory[c.ID]))
	}
	a.log.Debug().Int("categories", len(out)).Int("requests", len(requests)).Msg("Dashboard summarized")
	return out, nil
}

func rollup(c *repository.ApprovalCategory, requests []*repository.ApprovalRequest) *Approvals {
	out := &Approvals{
		ID:           c.ID,
		CategoryName: c.Name,
		Description:  c.Description,
		MoveTo:       []string{},
	}
	targets := make(map[string]struct{})

	for _, req := range requests {
		switch req.Status {
		case repository.StatusApproved:
			out.ApprovedCount++
		case repository.StatusRejected:
			out.RejectedCount++
		case repository.StatusPending:
			out.PendingCount++
			if req.Overdue {
				out.Overdue++
			}
		case repository.StatusFrozen:
			out.FreezeCount++
		case repository.StatusTransferred:
			out.TransferCount++
			if req.MoveTo != "" {
				targets[req.MoveTo] = struct{}{}
			}
		}
	}

	for t := range targets {
		out.MoveTo = append(out.MoveTo, t)
	}
	sort.Strings(out.MoveTo)
	return out
}
