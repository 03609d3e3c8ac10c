package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/database"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// ApprovalAuditRepository appends and reads immutable approval audit log entries.
type ApprovalAuditRepository struct {
	db *database.DB
}

// NewApprovalAuditRepository creates a new ApprovalAuditRepository.
func NewApprovalAuditRepository(db *database.DB) *ApprovalAuditRepository {
	return &ApprovalAuditRepository{db: db}
}

// Append inserts one audit entry. Entries are never updated or deleted.
func (r *ApprovalAuditRepository) Append(ctx context.Context, entry *ApprovalAuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO approval_audit_log
		    (id, request_id, category_id,
		     action, performed_by, level_ordinal,
		     status_before, status_after,
		     metadata)
		VALUES ($1, $2, $3,
		        $4, $5, $6,
		        $7, $8,
		        $9)
		RETURNING performed_at
	`

	return r.db.QueryRow(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.CategoryID,
		string(entry.Action),
		entry.PerformedBy,
		entry.LevelOrdinal,
		string(entry.StatusBefore),
		string(entry.StatusAfter),
		metadataJSON,
	).Scan(&entry.PerformedAt)
}

// GetByRequestID returns the full audit trail for a request ordered oldest-first.
func (r *ApprovalAuditRepository) GetByRequestID(ctx context.Context, requestID string) ([]*ApprovalAuditEntry, error) {
	query := `
		SELECT id, request_id, category_id,
		       action, performed_by, performed_at, level_ordinal,
		       status_before, status_after,
		       metadata
		FROM approval_audit_log
		WHERE request_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func (r *ApprovalAuditRepository) scanRows(rows pgx.Rows) ([]*ApprovalAuditEntry, error) {
	entries := make([]*ApprovalAuditEntry, 0)
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type auditScanner interface {
	Scan(dest ...any) error
}

func (r *ApprovalAuditRepository) scanEntry(sc auditScanner) (*ApprovalAuditEntry, error) {
	entry := &ApprovalAuditEntry{}
	var (
		metadataJSON []byte
		action       string
		before       string
		after        string
	)

	err := sc.Scan(
		&entry.ID,
		&entry.RequestID,
		&entry.CategoryID,
		&action,
		&entry.PerformedBy,
		&entry.PerformedAt,
		&entry.LevelOrdinal,
		&before,
		&after,
		&metadataJSON,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
	}

	entry.Action = AuditAction(action)
	entry.StatusBefore = RequestStatus(before)
	entry.StatusAfter = RequestStatus(after)
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit metadata")
		}
	}
	return entry, nil
}
