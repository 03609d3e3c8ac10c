package repository

import (
	"strings"
	"time"
)

// ── Domain types for the approval matrix ──────────────────────────────────────

// ApprovalCategory is the HR domain a matrix applies to (Resignation, Budget Exception, ...).
type ApprovalCategory struct {
	ID          string
	Name        string
	Description string
	// DefaultSLA is the per-level budget used when a level declares none.
	DefaultSLA time.Duration
	// NoticePeriodDays, when set and no explicit SLA exists, is split evenly
	// across the levels of a resolved matrix.
	NoticePeriodDays int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Level is one approver tier of a matrix. Ordinals are 1-based and contiguous.
type Level struct {
	Ordinal            int           `json:"ordinal"`
	RequiredCapability string        `json:"required_capability"`
	SLA                time.Duration `json:"sla"`
}

// ApprovalMatrix is an ordered list of levels plus the applicability predicate
// that decides which requesters it covers.
type ApprovalMatrix struct {
	ID           string
	CategoryID   string
	Name         string
	Levels       []Level
	Designations []string // empty = any designation
	Grades       []string // empty = any grade
	IsDefault    bool
	Priority     int // lower = evaluated first
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MatchesDesignation reports whether the matrix names the designation explicitly.
func (m *ApprovalMatrix) MatchesDesignation(designation string) bool {
	return containsFold(m.Designations, designation)
}

// MatchesGrade reports whether the matrix names the grade explicitly.
func (m *ApprovalMatrix) MatchesGrade(grade string) bool {
	return containsFold(m.Grades, grade)
}

// Matches reports whether a non-default matrix covers the (designation, grade) pair.
func (m *ApprovalMatrix) Matches(designation, grade string) bool {
	if m.IsDefault {
		return false
	}
	if len(m.Designations) > 0 && !m.MatchesDesignation(designation) {
		return false
	}
	if len(m.Grades) > 0 && !m.MatchesGrade(grade) {
		return false
	}
	return len(m.Designations) > 0 || len(m.Grades) > 0
}

// Overlaps reports whether some (designation, grade) pair is matched by both
// non-default matrices.
func (m *ApprovalMatrix) Overlaps(other *ApprovalMatrix) bool {
	if m.IsDefault || other.IsDefault {
		return false
	}
	return setsIntersect(m.Designations, other.Designations) && setsIntersect(m.Grades, other.Grades)
}

// Clone returns a deep copy.
func (m *ApprovalMatrix) Clone() *ApprovalMatrix {
	c := *m
	c.Levels = CloneLevels(m.Levels)
	c.Designations = append([]string(nil), m.Designations...)
	c.Grades = append([]string(nil), m.Grades...)
	return &c
}

// CloneLevels deep-copies a level sequence.
func CloneLevels(levels []Level) []Level {
	if levels == nil {
		return nil
	}
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}

// ── Request state ────────────────────────────────────────────────────────────

// RequestStatus is the closed set of request states.
type RequestStatus string

const (
	StatusPending     RequestStatus = "pending"
	StatusApproved    RequestStatus = "approved"
	StatusRejected    RequestStatus = "rejected"
	StatusFrozen      RequestStatus = "frozen"
	StatusTransferred RequestStatus = "transferred"
)

// IsTerminal reports whether no level is awaiting action.
func (s RequestStatus) IsTerminal() bool {
	return s != StatusPending
}

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusFrozen, StatusTransferred:
		return true
	}
	return false
}

// DecisionOutcome is what an approver did at a level.
type DecisionOutcome string

const (
	DecisionApprove DecisionOutcome = "approve"
	DecisionReject  DecisionOutcome = "reject"
)

// Decision is one entry of a request's level history.
type Decision struct {
	LevelOrdinal     int             `json:"level_ordinal"`
	Actor            string          `json:"actor"`
	ActorDesignation string          `json:"actor_designation,omitempty"`
	Outcome          DecisionOutcome `json:"outcome"`
	Comment          string          `json:"comment,omitempty"`
	DecidedAt        time.Time       `json:"decided_at"`
}

// ApprovalRequest is a live or finished request moving through its matrix snapshot.
type ApprovalRequest struct {
	ID                   string
	CategoryID           string
	RequesterID          string
	RequesterDesignation string
	RequesterGrade       string
	Payload              map[string]any
	MatrixID             string
	Levels               []Level // snapshot taken at resolution time
	CurrentLevel         int
	Status               RequestStatus
	Overdue              bool       // set only while pending
	OverdueAt            *time.Time // kept after a terminal transition
	LevelEnteredAt       time.Time
	History              []Decision
	MoveTo               string
	FreezeReason         string
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	CompletedAt          *time.Time
}

// CurrentLevelDef returns the level being waited on, or nil once terminal.
func (r *ApprovalRequest) CurrentLevelDef() *Level {
	if r.Status.IsTerminal() || r.CurrentLevel < 1 || r.CurrentLevel > len(r.Levels) {
		return nil
	}
	l := r.Levels[r.CurrentLevel-1]
	return &l
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (r *ApprovalRequest) Clone() *ApprovalRequest {
	c := *r
	c.Levels = CloneLevels(r.Levels)
	if r.History != nil {
		c.History = make([]Decision, len(r.History))
		copy(c.History, r.History)
	}
	if r.Payload != nil {
		c.Payload = make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			c.Payload[k] = v
		}
	}
	if r.OverdueAt != nil {
		t := *r.OverdueAt
		c.OverdueAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// RequestFilter narrows request listings. Zero values mean "any".
type RequestFilter struct {
	CategoryID  string
	Status      RequestStatus
	OverdueOnly bool // pending requests carrying the overdue flag
}

// Match reports whether the request passes the filter.
func (f RequestFilter) Match(r *ApprovalRequest) bool {
	if f.CategoryID != "" && r.CategoryID != f.CategoryID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.OverdueOnly && (!r.Overdue || r.Status != StatusPending) {
		return false
	}
	return true
}

// ── Audit ────────────────────────────────────────────────────────────────────

// AuditAction names a recorded state change.
type AuditAction string

const (
	AuditCreated     AuditAction = "created"
	AuditApproved    AuditAction = "approved"
	AuditRejected    AuditAction = "rejected"
	AuditFrozen      AuditAction = "frozen"
	AuditTransferred AuditAction = "transferred"
	AuditOverdue     AuditAction = "overdue"
)

// ApprovalAuditEntry is one immutable record in the audit log.
type ApprovalAuditEntry struct {
	ID           string
	RequestID    string
	CategoryID   string
	Action       AuditAction
	PerformedBy  string
	PerformedAt  time.Time
	LevelOrdinal int
	StatusBefore RequestStatus
	StatusAfter  RequestStatus
	Metadata     map[string]any
}

// ── helpers ──────────────────────────────────────────────────────────────────

func containsFold(set []string, v string) bool {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// setsIntersect treats an empty set as "everything".
func setsIntersect(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, v := range a {
		if containsFold(b, v) {
			return true
		}
	}
	return false
}
