package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pesio-ai/be-hr-approvals/internal/errors"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
	"github.com/pesio-ai/be-hr-approvals/internal/service"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	catalog   *service.CatalogService
	tracker   *service.RequestTracker
	scheduler *service.EscalationScheduler
	dashboard *service.DashboardAggregator
	log       *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	catalog *service.CatalogService,
	tracker *service.RequestTracker,
	scheduler *service.EscalationScheduler,
	dashboard *service.DashboardAggregator,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		catalog:   catalog,
		tracker:   tracker,
		scheduler: scheduler,
		dashboard: dashboard,
		log:       log,
	}
}

// Register mounts the API routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/categories", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListCategories(w, r)
		case http.MethodPost:
			h.UpsertCategory(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/categories/get", h.GetCategory)

	mux.HandleFunc("/api/v1/matrices", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListMatrices(w, r)
		case http.MethodPost:
			h.UpsertMatrix(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/matrices/delete", h.DeleteMatrix)

	mux.HandleFunc("/api/v1/requests", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.ListRequests(w, r)
		case http.MethodPost:
			h.CreateRequest(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/requests/get", h.GetRequest)
	mux.HandleFunc("/api/v1/requests/decide", h.RecordDecision)
	mux.HandleFunc("/api/v1/requests/freeze", h.Freeze)
	mux.HandleFunc("/api/v1/requests/transfer", h.Transfer)
	mux.HandleFunc("/api/v1/requests/current-level", h.CurrentLevel)
	mux.HandleFunc("/api/v1/requests/history", h.History)

	mux.HandleFunc("/api/v1/approvals/pending", h.PendingForActor)
	mux.HandleFunc("/api/v1/dashboard", h.Dashboard)
	mux.HandleFunc("/api/v1/escalations/sweep", h.Sweep)
}

// ── Catalog ───────────────────────────────────────────────────────────────────

// UpsertCategory handles category create/update requests
func (h *HTTPHandler) UpsertCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body categoryBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	category, err := body.toDomain()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.catalog.UpsertCategory(r.Context(), category); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCategoryView(category))
}

// GetCategory handles get category requests
func (h *HTTPHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Category ID is required", http.StatusBadRequest)
		return
	}

	category, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryView(category))
}

// ListCategories handles list category requests
func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]categoryView, len(categories))
	for i, c := range categories {
		out[i] = toCategoryView(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

// UpsertMatrix handles matrix create/update requests
func (h *HTTPHandler) UpsertMatrix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body matrixBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	matrix, err := body.toDomain()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.catalog.UpsertMatrix(r.Context(), matrix); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toMatrixView(matrix))
}

// ListMatrices handles list matrix requests for a category
func (h *HTTPHandler) ListMatrices(w http.ResponseWriter, r *http.Request) {
	categoryID := r.URL.Query().Get("category_id")
	if categoryID == "" {
		http.Error(w, "Category ID is required", http.StatusBadRequest)
		return
	}

	matrices, err := h.catalog.ListMatrices(r.Context(), categoryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]matrixView, len(matrices))
	for i, m := range matrices {
		out[i] = toMatrixView(m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"matrices": out})
}

// DeleteMatrix handles delete matrix requests
func (h *HTTPHandler) DeleteMatrix(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Matrix ID is required", http.StatusBadRequest)
		return
	}

	if err := h.catalog.DeleteMatrix(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Requests ──────────────────────────────────────────────────────────────────

// CreateRequest handles request intake
func (h *HTTPHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req, err := h.tracker.CreateRequest(r.Context(), service.CreateRequestInput{
		CategoryID:           body.CategoryID,
		RequesterID:          body.RequesterID,
		RequesterDesignation: body.RequesterDesignation,
		RequesterGrade:       body.RequesterGrade,
		Payload:              body.Payload,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestView(req))
}

// GetRequest returns a request, raising its overdue flag first if it is due.
func (h *HTTPHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	req, err := h.scheduler.Evaluate(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestView(req))
}

// ListRequests handles list request queries
func (h *HTTPHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	overdue, _ := strconv.ParseBool(q.Get("overdue"))

	reqs, err := h.tracker.ListRequests(r.Context(), repository.RequestFilter{
		CategoryID:  q.Get("category_id"),
		Status:      repository.RequestStatus(q.Get("status")),
		OverdueOnly: overdue,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": toRequestViews(reqs)})
}

// RecordDecision handles approve/reject actions
func (h *HTTPHandler) RecordDecision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body decisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req, err := h.tracker.RecordDecision(r.Context(), body.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestView(req))
}

// Freeze handles freeze requests
func (h *HTTPHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body freezeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req, err := h.tracker.Freeze(r.Context(), body.RequestID, body.Reason, body.ActorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestView(req))
}

// Transfer handles transfer requests
func (h *HTTPHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body transferBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req, err := h.tracker.Transfer(r.Context(), body.RequestID, body.MoveTo, body.ActorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestView(req))
}

// CurrentLevel returns the level a request waits on; null once terminal.
func (h *HTTPHandler) CurrentLevel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	lvl, err := h.tracker.CurrentLevel(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var out *levelBody
	if lvl != nil {
		lb := toLevelBodies([]repository.Level{*lvl})[0]
		out = &lb
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": id, "current_level": out})
}

// History returns a request's audit trail
func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "Request ID is required", http.StatusBadRequest)
		return
	}

	entries, err := h.tracker.History(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": id, "entries": toAuditViews(entries)})
}

// PendingForActor lists requests waiting on the given actor
func (h *HTTPHandler) PendingForActor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if q.Get("designation") == "" && q.Get("roles") == "" {
		http.Error(w, "Designation or roles are required", http.StatusBadRequest)
		return
	}

	reqs, err := h.tracker.PendingForActor(r.Context(), actorFromQuery(q.Get("actor_id"), q.Get("designation"), q.Get("roles")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": toRequestViews(reqs)})
}

// ── Reporting & escalation ────────────────────────────────────────────────────

// Dashboard returns the rollup for one category, or all when none is given.
func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	categoryID := r.URL.Query().Get("category_id")
	if categoryID == "" {
		all, err := h.dashboard.SummarizeAll(r.Context())
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"approvals": all})
		return
	}

	summary, err := h.dashboard.Summarize(r.Context(), categoryID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Sweep runs one escalation pass on demand
func (h *HTTPHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.scheduler.Sweep(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func httpStatus(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict, errors.ErrCodeInvalidTransition, errors.ErrCodeVersionConflict:
		return http.StatusConflict
	case errors.ErrCodeNoApplicableMatrix:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	log := logger.FromContext(r.Context(), h.log)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("Request refused")
	}
	writeJSON(w, status, errorBody{Error: string(errors.CodeOf(err)), Message: errors.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
