package handler

import (
	"strings"
	"time"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
	"github.com/pesio-ai/be-hr-approvals/internal/service"
)

// JSON bodies shared by the HTTP and gRPC transports. Durations travel as Go
// duration strings ("72h"), timestamps as RFC 3339.

type categoryBody struct {
	ID               string `json:"id,omitempty"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	DefaultSLA       string `json:"default_sla,omitempty"`
	NoticePeriodDays int    `json:"notice_period_days,omitempty"`
}

type categoryView struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	DefaultSLA       string    `json:"default_sla,omitempty"`
	NoticePeriodDays int       `json:"notice_period_days,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type levelBody struct {
	Ordinal            int    `json:"ordinal"`
	RequiredCapability string `json:"required_capability"`
	SLA                string `json:"sla,omitempty"`
}

type matrixBody struct {
	ID           string      `json:"id,omitempty"`
	CategoryID   string      `json:"category_id"`
	Name         string      `json:"name,omitempty"`
	Levels       []levelBody `json:"levels"`
	Designations []string    `json:"designations,omitempty"`
	Grades       []string    `json:"grades,omitempty"`
	IsDefault    bool        `json:"is_default,omitempty"`
	Priority     int         `json:"priority,omitempty"`
}

type matrixView struct {
	matrixBody
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type createRequestBody struct {
	CategoryID           string         `json:"category_id"`
	RequesterID          string         `json:"requester_id"`
	RequesterDesignation string         `json:"requester_designation"`
	RequesterGrade       string         `json:"requester_grade"`
	Payload              map[string]any `json:"payload,omitempty"`
}

type decisionBody struct {
	RequestID        string   `json:"request_id"`
	LevelOrdinal     int      `json:"level_ordinal"`
	ActorID          string   `json:"actor_id"`
	ActorDesignation string   `json:"actor_designation"`
	ActorRoles       []string `json:"actor_roles,omitempty"`
	Decision         string   `json:"decision"`
	Comment          string   `json:"comment,omitempty"`
	ExpectedVersion  *int64   `json:"expected_version,omitempty"`
}

type freezeBody struct {
	RequestID string `json:"request_id"`
	Reason    string `json:"reason"`
	ActorID   string `json:"actor_id"`
}

type transferBody struct {
	RequestID string `json:"request_id"`
	MoveTo    string `json:"move_to"`
	ActorID   string `json:"actor_id"`
}

type idBody struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id"`
}

type requestView struct {
	ID                   string                `json:"id"`
	CategoryID           string                `json:"category_id"`
	RequesterID          string                `json:"requester_id,omitempty"`
	RequesterDesignation string                `json:"requester_designation,omitempty"`
	RequesterGrade       string                `json:"requester_grade,omitempty"`
	Payload              map[string]any        `json:"payload,omitempty"`
	MatrixID             string                `json:"matrix_id,omitempty"`
	Levels               []levelBody           `json:"levels"`
	CurrentLevel         *levelBody            `json:"current_level,omitempty"`
	Status               string                `json:"status"`
	Overdue              bool                  `json:"overdue"`
	OverdueAt            *time.Time            `json:"overdue_at,omitempty"`
	LevelEnteredAt       time.Time             `json:"level_entered_at"`
	History              []repository.Decision `json:"history"`
	MoveTo               string                `json:"move_to,omitempty"`
	FreezeReason         string                `json:"freeze_reason,omitempty"`
	Version              int64                 `json:"version"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	CompletedAt          *time.Time            `json:"completed_at,omitempty"`
}

type auditView struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	PerformedBy  string         `json:"performed_by,omitempty"`
	PerformedAt  time.Time      `json:"performed_at"`
	LevelOrdinal int            `json:"level_ordinal"`
	StatusBefore string         `json:"status_before,omitempty"`
	StatusAfter  string         `json:"status_after,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ── conversions ───────────────────────────────────────────────────────────────

func parseDuration(field, s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.InvalidInput(field, "must be a duration such as 72h")
	}
	return d, nil
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func (b categoryBody) toDomain() (*repository.ApprovalCategory, error) {
	sla, err := parseDuration("default_sla", b.DefaultSLA)
	if err != nil {
		return nil, err
	}
	return &repository.ApprovalCategory{
		ID:               b.ID,
		Name:             b.Name,
		Description:      b.Description,
		DefaultSLA:       sla,
		NoticePeriodDays: b.NoticePeriodDays,
	}, nil
}

func toCategoryView(c *repository.ApprovalCategory) categoryView {
	return categoryView{
		ID:               c.ID,
		Name:             c.Name,
		Description:      c.Description,
		DefaultSLA:       formatDuration(c.DefaultSLA),
		NoticePeriodDays: c.NoticePeriodDays,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func (b matrixBody) toDomain() (*repository.ApprovalMatrix, error) {
	levels := make([]repository.Level, 0, len(b.Levels))
	for _, l := range b.Levels {
		sla, err := parseDuration("levels.sla", l.SLA)
		if err != nil {
			return nil, err
		}
		levels = append(levels, repository.Level{Ordinal: l.Ordinal, RequiredCapability: l.RequiredCapability, SLA: sla})
	}
	return &repository.ApprovalMatrix{
		ID:           b.ID,
		CategoryID:   b.CategoryID,
		Name:         b.Name,
		Levels:       levels,
		Designations: b.Designations,
		Grades:       b.Grades,
		IsDefault:    b.IsDefault,
		Priority:     b.Priority,
	}, nil
}

func toLevelBodies(levels []repository.Level) []levelBody {
	out := make([]levelBody, len(levels))
	for i, l := range levels {
		out[i] = levelBody{Ordinal: l.Ordinal, RequiredCapability: l.RequiredCapability, SLA: formatDuration(l.SLA)}
	}
	return out
}

func toMatrixView(m *repository.ApprovalMatrix) matrixView {
	return matrixView{
		matrixBody: matrixBody{
			ID:           m.ID,
			CategoryID:   m.CategoryID,
			Name:         m.Name,
			Levels:       toLevelBodies(m.Levels),
			Designations: m.Designations,
			Grades:       m.Grades,
			IsDefault:    m.IsDefault,
			Priority:     m.Priority,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (b decisionBody) toInput() service.DecisionInput {
	return service.DecisionInput{
		RequestID:    b.RequestID,
		LevelOrdinal: b.LevelOrdinal,
		Actor: service.Actor{
			ID:          b.ActorID,
			Designation: b.ActorDesignation,
			Roles:       b.ActorRoles,
		},
		Decision:        repository.DecisionOutcome(strings.ToLower(strings.TrimSpace(b.Decision))),
		Comment:         b.Comment,
		ExpectedVersion: b.ExpectedVersion,
	}
}

func toRequestView(r *repository.ApprovalRequest) requestView {
	v := requestView{
		ID:                   r.ID,
		CategoryID:           r.CategoryID,
		RequesterID:          r.RequesterID,
		RequesterDesignation: r.RequesterDesignation,
		RequesterGrade:       r.RequesterGrade,
		Payload:              r.Payload,
		MatrixID:             r.MatrixID,
		Levels:               toLevelBodies(r.Levels),
		Status:               string(r.Status),
		Overdue:              r.Overdue,
		OverdueAt:            r.OverdueAt,
		LevelEnteredAt:       r.LevelEnteredAt,
		History:              r.History,
		MoveTo:               r.MoveTo,
		FreezeReason:         r.FreezeReason,
		Version:              r.Version,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		CompletedAt:          r.CompletedAt,
	}
	if v.History == nil {
		v.History = []repository.Decision{}
	}
	if lvl := r.CurrentLevelDef(); lvl != nil {
		lb := toLevelBodies([]repository.Level{*lvl})[0]
		v.CurrentLevel = &lb
	}
	return v
}

func toRequestViews(reqs []*repository.ApprovalRequest) []requestView {
	out := make([]requestView, len(reqs))
	for i, r := range reqs {
		out[i] = toRequestView(r)
	}
	return out
}

func toAuditViews(entries []*repository.ApprovalAuditEntry) []auditView {
	out := make([]auditView, len(entries))
	for i, e := range entries {
		out[i] = auditView{
			ID:           e.ID,
			Action:       string(e.Action),
			PerformedBy:  e.PerformedBy,
			PerformedAt:  e.PerformedAt,
			LevelOrdinal: e.LevelOrdinal,
			StatusBefore: string(e.StatusBefore),
			StatusAfter:  string(e.StatusAfter),
			Metadata:     e.Metadata,
		}
	}
	return out
}

func actorFromQuery(id, designation, roles string) service.Actor {
	a := service.Actor{ID: id, Designation: designation}
	for _, r := range strings.Split(roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			a.Roles = append(a.Roles, r)
		}
	}
	return a
}
