package repository

import "context"

// CatalogStore persists categories and matrices.
type CatalogStore interface {
	SaveCategory(ctx context.Context, c *ApprovalCategory) error
	GetCategory(ctx context.Context, id string) (*ApprovalCategory, error)
	ListCategories(ctx context.Context) ([]*ApprovalCategory, error)

	SaveMatrix(ctx context.Context, m *ApprovalMatrix) error
	GetMatrix(ctx context.Context, id string) (*ApprovalMatrix, error)
	// ListMatrices returns a category's matrices ordered by priority, then name.
	ListMatrices(ctx context.Context, categoryID string) ([]*ApprovalMatrix, error)
	DeleteMatrix(ctx context.Context, id string) error
}

// RequestStore persists approval requests with per-request optimistic versioning.
type RequestStore interface {
	// Create inserts a new request. The stored version is req.Version.
	Create(ctx context.Context, req *ApprovalRequest) error
	Get(ctx context.Context, id string) (*ApprovalRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]*ApprovalRequest, error)
	// Update commits req only when the stored version equals expectedVersion,
	// storing expectedVersion+1. A mismatch returns ErrCodeVersionConflict.
	Update(ctx context.Context, req *ApprovalRequest, expectedVersion int64) error
}

// AuditStore appends and reads immutable audit entries.
type AuditStore interface {
	Append(ctx context.Context, entry *ApprovalAuditEntry) error
	GetByRequestID(ctx context.Context, requestID string) ([]*ApprovalAuditEntry, error)
}
