package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/database"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// ApprovalRequestRepository persists requests and their decision history.
// A request row and its new decisions are always written in one transaction,
// guarded by the row's version column.
type ApprovalRequestRepository struct {
	db *database.DB
}

// NewApprovalRequestRepository creates a new ApprovalRequestRepository.
func NewApprovalRequestRepository(db *database.DB) *ApprovalRequestRepository {
	return &ApprovalRequestRepository{db: db}
}

const requestColumns = `
	id, category_id, requester_id, requester_designation, requester_grade,
	payload, matrix_id, levels, current_level, status,
	overdue, overdue_at, level_entered_at, move_to, freeze_reason,
	version, created_at, updated_at, completed_at`

// Create inserts a request and any initial decisions.
func (r *ApprovalRequestRepository) Create(ctx context.Context, req *ApprovalRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	payloadJSON, levelsJSON, err := marshalRequest(req)
	if err != nil {
		return err
	}

	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO approval_requests (` + requestColumns + `)
			VALUES ($1, $2, $3, $4, $5,
			        $6, $7, $8, $9, $10,
			        $11, $12, $13, $14, $15,
			        $16, $17, $18, $19)
		`
		_, err := tx.Exec(ctx, query,
			req.ID,
			req.CategoryID,
			req.RequesterID,
			req.RequesterDesignation,
			req.RequesterGrade,
			payloadJSON,
			nullableUUID(req.MatrixID),
			levelsJSON,
			req.CurrentLevel,
			string(req.Status),
			req.Overdue,
			req.OverdueAt,
			req.LevelEnteredAt,
			req.MoveTo,
			req.FreezeReason,
			req.Version,
			req.CreatedAt,
			req.UpdatedAt,
			req.CompletedAt,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create approval request")
		}
		return insertDecisions(ctx, tx, req.ID, 0, req.History)
	})
}

// Get retrieves a request with its decision history.
func (r *ApprovalRequestRepository) Get(ctx context.Context, id string) (*ApprovalRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE id = $1`

	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("approval_request", id)
	}
	if err != nil {
		return nil, err
	}

	history, err := r.decisions(ctx, id)
	if err != nil {
		return nil, err
	}
	req.History = history
	return req, nil
}

// List returns requests matching the filter in creation order.
func (r *ApprovalRequestRepository) List(ctx context.Context, filter RequestFilter) ([]*ApprovalRequest, error) {
	var (
		conds []string
		args  []any
	)
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.OverdueOnly {
		conds = append(conds, "overdue = TRUE", "status = 'pending'")
	}

	query := `SELECT ` + requestColumns + ` FROM approval_requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval requests")
	}

	requests := make([]*ApprovalRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		requests = append(requests, req)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate approval requests")
	}

	for _, req := range requests {
		if req.History, err = r.decisions(ctx, req.ID); err != nil {
			return nil, err
		}
	}
	return requests, nil
}

// Update writes req when the stored version equals expectedVersion and appends
// history entries that are not yet persisted.
func (r *ApprovalRequestRepository) Update(ctx context.Context, req *ApprovalRequest, expectedVersion int64) error {
	payloadJSON, levelsJSON, err := marshalRequest(req)
	if err != nil {
		return err
	}
	nextVersion := expectedVersion + 1

	err = r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE approval_requests
			SET payload          = $3,
			    levels           = $4,
			    current_level    = $5,
			    status           = $6,
			    overdue          = $7,
			    overdue_at       = $8,
			    level_entered_at = $9,
			    move_to          = $10,
			    freeze_reason    = $11,
			    completed_at     = $12,
			    version          = $13,
			    updated_at       = NOW()
			WHERE id = $1 AND version = $2
			RETURNING updated_at
		`
		var updatedAt time.Time
		err := tx.QueryRow(ctx, query,
			req.ID,
			expectedVersion,
			payloadJSON,
			levelsJSON,
			req.CurrentLevel,
			string(req.Status),
			req.Overdue,
			req.OverdueAt,
			req.LevelEnteredAt,
			req.MoveTo,
			req.FreezeReason,
			req.CompletedAt,
			nextVersion,
		).Scan(&updatedAt)
		if stderrors.Is(err, pgx.ErrNoRows) {
			return r.versionMiss(ctx, tx, req.ID, expectedVersion)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval request")
		}

		var stored int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM approval_request_decisions WHERE request_id = $1`, req.ID,
		).Scan(&stored); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to count decisions")
		}
		if stored < len(req.History) {
			if err := insertDecisions(ctx, tx, req.ID, stored, req.History[stored:]); err != nil {
				return err
			}
		}

		req.UpdatedAt = updatedAt
		return nil
	})
	if err != nil {
		return err
	}
	req.Version = nextVersion
	return nil
}

// versionMiss distinguishes a missing row from a stale version.
func (r *ApprovalRequestRepository) versionMiss(ctx context.Context, tx pgx.Tx, id string, expected int64) error {
	var current int64
	err := tx.QueryRow(ctx, `SELECT version FROM approval_requests WHERE id = $1`, id).Scan(&current)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.NotFound("approval_request", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to read request version")
	}
	return errors.Newf(errors.ErrCodeVersionConflict,
		"approval request %q is at version %d, expected %d", id, current, expected)
}

func (r *ApprovalRequestRepository) decisions(ctx context.Context, requestID string) ([]Decision, error) {
	query := `
		SELECT level_ordinal, actor, actor_designation, outcome, comment, decided_at
		FROM approval_request_decisions
		WHERE request_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get decisions")
	}
	defer rows.Close()

	var history []Decision
	for rows.Next() {
		var d Decision
		var outcome string
		if err := rows.Scan(&d.LevelOrdinal, &d.Actor, &d.ActorDesignation, &outcome, &d.Comment, &d.DecidedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan decision")
		}
		d.Outcome = DecisionOutcome(outcome)
		history = append(history, d)
	}
	return history, rows.Err()
}

func insertDecisions(ctx context.Context, tx pgx.Tx, requestID string, offset int, decisions []Decision) error {
	query := `
		INSERT INTO approval_request_decisions
		    (request_id, seq, level_ordinal, actor, actor_designation, outcome, comment, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i, d := range decisions {
		_, err := tx.Exec(ctx, query,
			requestID,
			offset+i+1,
			d.LevelOrdinal,
			d.Actor,
			d.ActorDesignation,
			string(d.Outcome),
			d.Comment,
			d.DecidedAt,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to insert decision")
		}
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

type requestScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row requestScanner) (*ApprovalRequest, error) {
	req := &ApprovalRequest{}
	var (
		payloadJSON []byte
		levelsJSON  []byte
		matrixID    *string
		status      string
	)

	err := row.Scan(
		&req.ID,
		&req.CategoryID,
		&req.RequesterID,
		&req.RequesterDesignation,
		&req.RequesterGrade,
		&payloadJSON,
		&matrixID,
		&levelsJSON,
		&req.CurrentLevel,
		&status,
		&req.Overdue,
		&req.OverdueAt,
		&req.LevelEnteredAt,
		&req.MoveTo,
		&req.FreezeReason,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
		&req.CompletedAt,
	)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval request")
	}

	req.Status = RequestStatus(status)
	if matrixID != nil {
		req.MatrixID = *matrixID
	}
	if err := json.Unmarshal(levelsJSON, &req.Levels); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal level snapshot")
	}
	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &req.Payload); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal request payload")
		}
	}
	return req, nil
}

func marshalRequest(req *ApprovalRequest) (payload, levels []byte, err error) {
	if req.Payload != nil {
		if payload, err = json.Marshal(req.Payload); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal request payload")
		}
	}
	if levels, err = json.Marshal(req.Levels); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal level snapshot")
	}
	return payload, levels, nil
}

func nullableUUID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
