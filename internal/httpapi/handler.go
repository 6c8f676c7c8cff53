// Package httpapi implements the HTTP handlers for the pipeline service.
//
// All mutating routes expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	POST  /applications                          → create candidacy
//	GET   /applications?job_id=&stage=           → list applications for a job
//	POST  /applications/{id}/move                → move application to new stage
//	POST  /applications/{id}/rescore             → recompute cached score
//	GET   /applications/{id}/history             → stage history, newest first
//	GET   /jobs/kanban                           → all jobs grouped by lane
//	GET   /jobs/{id}/pipeline                    → board view for one job
//	PATCH /jobs/{id}/stage                       → move job to new lane
//	PATCH /jobs/{id}/contratacao-result          → record hiring outcome
//	GET   /jobs/{id}/stage-history               → lane history, newest first
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"selecta/pipeline-service/internal/board"
	"selecta/pipeline-service/internal/jobflow"
	"selecta/pipeline-service/internal/pipeline"
)

// moveRetries bounds optimistic-concurrency retries on stage moves.
const moveRetries = 3

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	pipeline *pipeline.Service
	jobs     *jobflow.Service
	boards   *board.Service
	validate *validator.Validate
}

// NewHandler returns a configured Handler.
func NewHandler(pipelineSvc *pipeline.Service, jobSvc *jobflow.Service, boardSvc *board.Service) *Handler {
	return &Handler{
		pipeline: pipelineSvc,
		jobs:     jobSvc,
		boards:   boardSvc,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts all pipeline-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/applications", h.handleApplications)
	mux.HandleFunc("/applications/", h.handleApplicationAction)
	mux.HandleFunc("/jobs/kanban", h.handleJobsKanban)
	mux.HandleFunc("/jobs/", h.handleJobAction)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handleApplications handles POST /applications and GET /applications
func (h *Handler) handleApplications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createApplication(w, r)
	case http.MethodGet:
		h.listApplications(w, r)
	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleApplicationAction handles /applications/{id}/move|rescore|history
func (h *Handler) handleApplicationAction(w http.ResponseWriter, r *http.Request) {
	// Parse /applications/{id}/{action}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	appID, err := uuid.Parse(parts[1])
	if err != nil {
		jsonError(w, "invalid application id", http.StatusBadRequest)
		return
	}
	action := parts[2]

	switch {
	case action == "move" && r.Method == http.MethodPost:
		h.moveApplication(w, r, appID)
	case action == "rescore" && r.Method == http.MethodPost:
		h.rescoreApplication(w, r, appID)
	case action == "history" && r.Method == http.MethodGet:
		h.applicationHistory(w, r, appID)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// handleJobAction handles /jobs/{id}/pipeline|stage|contratacao-result|stage-history
func (h *Handler) handleJobAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}

	jobID, err := uuid.Parse(parts[1])
	if err != nil {
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	}
	action := parts[2]

	switch {
	case action == "pipeline" && r.Method == http.MethodGet:
		h.jobPipeline(w, r, jobID)
	case action == "stage" && r.Method == http.MethodPatch:
		h.moveJob(w, r, jobID)
	case action == "contratacao-result" && r.Method == http.MethodPatch:
		h.setHiringResult(w, r, jobID)
	case action == "stage-history" && r.Method == http.MethodGet:
		h.jobHistory(w, r, jobID)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// ─── Application handlers ─────────────────────────────────────────────────────

type createApplicationRequest struct {
	TenantID    string `json:"tenantId" validate:"required,uuid"`
	JobID       string `json:"jobId" validate:"required,uuid"`
	CandidateID string `json:"candidateId" validate:"required,uuid"`
}

func (h *Handler) createApplication(w http.ResponseWriter, r *http.Request) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}

	var body createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	app, err := h.pipeline.Create(r.Context(), pipeline.CreateParams{
		TenantID:    uuid.MustParse(body.TenantID),
		JobID:       uuid.MustParse(body.JobID),
		CandidateID: uuid.MustParse(body.CandidateID),
		ActingUser:  actor,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	jsonStatus(w, http.StatusCreated, app)
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(r.URL.Query().Get("job_id"))
	if err != nil {
		jsonError(w, "job_id query parameter is required", http.StatusBadRequest)
		return
	}

	var stage pipeline.Stage
	if s := r.URL.Query().Get("stage"); s != "" {
		stage, err = pipeline.ParseStage(s)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	apps, err := h.pipeline.ListByJob(r.Context(), jobID, stage)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, apps)
}

type moveApplicationRequest struct {
	ToStage string `json:"toStage" validate:"required"`
	Note    string `json:"note"`
}

func (h *Handler) moveApplication(w http.ResponseWriter, r *http.Request, appID uuid.UUID) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}

	var body moveApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	to, err := pipeline.ParseStage(body.ToStage)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var (
		app   *pipeline.Application
		entry *pipeline.StageChange
	)
	err = pipeline.RetryOnConflict(moveRetries, func() error {
		var inner error
		app, entry, inner = h.pipeline.Advance(r.Context(), appID, to, actor, body.Note)
		return inner
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	jsonOK(w, map[string]any{
		"application": app,
		"change":      entry,
	})
}

func (h *Handler) rescoreApplication(w http.ResponseWriter, r *http.Request, appID uuid.UUID) {
	if _, ok := actingUser(w, r); !ok {
		return
	}

	score, err := h.pipeline.RecalculateScore(r.Context(), appID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, score)
}

func (h *Handler) applicationHistory(w http.ResponseWriter, r *http.Request, appID uuid.UUID) {
	history, err := h.pipeline.History(r.Context(), appID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, history)
}

// ─── Job handlers ─────────────────────────────────────────────────────────────

func (h *Handler) handleJobsKanban(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kanban, err := h.boards.JobsKanban(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, kanban)
}

func (h *Handler) jobPipeline(w http.ResponseWriter, r *http.Request, jobID uuid.UUID) {
	q := r.URL.Query()
	filters := board.Filters{
		Stage: q.Get("stage"),
		City:  q.Get("city"),
	}
	if s := q.Get("min_score"); s != "" {
		min, err := strconv.ParseFloat(s, 64)
		if err != nil {
			jsonError(w, "min_score must be a number", http.StatusBadRequest)
			return
		}
		filters.MinScore = &min
	}
	if s := q.Get("has_must_have"); s != "" {
		filters.MustHaveOnly = s == "true"
	}

	view, err := h.boards.JobPipeline(r.Context(), jobID, filters)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, view)
}

type moveJobRequest struct {
	Stage string `json:"stage" validate:"required"`
	Notes string `json:"notes"`
}

func (h *Handler) moveJob(w http.ResponseWriter, r *http.Request, jobID uuid.UUID) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}

	var body moveJobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	to, err := jobflow.ParseLane(body.Stage)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var job *jobflow.Job
	err = jobflow.RetryOnConflict(moveRetries, func() error {
		var inner error
		job, inner = h.jobs.MoveStage(r.Context(), jobID, to, actor, body.Notes)
		return inner
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, job)
}

type hiringResultRequest struct {
	Result string `json:"result" validate:"required"`
	Notes  string `json:"notes"`
}

func (h *Handler) setHiringResult(w http.ResponseWriter, r *http.Request, jobID uuid.UUID) {
	actor, ok := actingUser(w, r)
	if !ok {
		return
	}

	var body hiringResultRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := jobflow.ParseHiringResult(body.Result)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var job *jobflow.Job
	err = jobflow.RetryOnConflict(moveRetries, func() error {
		var inner error
		job, inner = h.jobs.SetHiringResult(r.Context(), jobID, result, actor, body.Notes)
		return inner
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, job)
}

func (h *Handler) jobHistory(w http.ResponseWriter, r *http.Request, jobID uuid.UUID) {
	history, err := h.jobs.History(r.Context(), jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, history)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// actingUser extracts the x-user-id header. Writes a 401 and returns
// ok=false when it is missing or malformed.
func actingUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("x-user-id")
	if raw == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		jsonError(w, "invalid x-user-id header", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps service errors onto HTTP statuses. Unknown errors
// are reported as a dependency failure so the Gateway retries instead of
// surfacing them to users.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		transitionErr *pipeline.InvalidTransitionError
		stateErr      *jobflow.InvalidStateError
	)
	switch {
	case errors.Is(err, pipeline.ErrNotFound) || errors.Is(err, jobflow.ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.Is(err, pipeline.ErrDuplicate):
		jsonError(w, "candidate already has an application for this job", http.StatusConflict)
	case errors.Is(err, pipeline.ErrConflict) || errors.Is(err, jobflow.ErrConflict):
		jsonError(w, "concurrent modification, retry", http.StatusConflict)
	case errors.As(err, &transitionErr) || errors.As(err, &stateErr):
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("unhandled service error", "err", err)
		jsonError(w, "dependency unavailable", http.StatusServiceUnavailable)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonStatus(w, http.StatusOK, v)
}

func jsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
