/*
handlers.go - HTTP API handlers for the commission audit engine

PURPOSE:
  Exposes the commission calculation and audit engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Health:
    GET    /api/health                 Liveness check

  Plans:
    GET    /api/plans                  List all plans
    POST   /api/plans                  Create plan from config JSON
    GET    /api/plans/{id}             Get plan details

  Assignments and teams:
    GET    /api/assignments            List assignments (?agent= filter)
    POST   /api/assignments            Assign a plan to an agent
    GET    /api/teams                  List teams
    POST   /api/teams                  Create team

  Transactions:
    POST   /api/transactions           Bulk upload (normalizes aliases)
    GET    /api/transactions           List normalized records

  Audit runs:
    POST   /api/audit/runs             Execute a full audit run
    GET    /api/audit/runs             List runs
    GET    /api/audit/runs/{id}        Get run record
    GET    /api/audit/runs/{id}/results    Per-record audit results
    GET    /api/audit/runs/{id}/variances  Coarse variance items
    GET    /api/audit/runs/{id}/summaries  Per-agent rollups
    GET    /api/audit/runs/{id}/export     CSV export (?view=results|summaries)

  Adjustments:
    POST   /api/adjustments            Create pending adjustment
    GET    /api/adjustments            List (?record_id= ?status= filters)
    GET    /api/adjustments/{id}       Get adjustment
    POST   /api/adjustments/{id}/approve|reject|revert
    GET    /api/adjustments/{id}/log   Append-only audit trail
    GET    /api/records/{id}/current-value  Plan value + approved deltas

  Scenarios:
    GET    /api/scenarios              List demo scenarios
    POST   /api/scenarios/load         Load a demo scenario
    POST   /api/scenarios/reset        Clear the database

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - PlanFactory: JSON to Plan conversion
  - Adjustments: Adjustment workflow service
  - Runner: Audit batch execution

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (go-playground/validator on request DTOs)
  3. Call domain logic (engine, runner, adjustment service)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (refused state transition)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/brokerops/commission-engine/adjust"
	"github.com/brokerops/commission-engine/audit"
	"github.com/brokerops/commission-engine/commission"
	"github.com/brokerops/commission-engine/factory"
	"github.com/brokerops/commission-engine/report"
	"github.com/brokerops/commission-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	PlanFactory *factory.PlanFactory
	Adjustments *adjust.Service
	Runner      *audit.Runner

	validate *validator.Validate

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store. auditWorkers
// bounds the per-agent fan-out of audit runs; zero means the engine
// default.
func NewHandler(store *sqlite.Store, auditWorkers int) *Handler {
	return &Handler{
		Store:       store,
		PlanFactory: factory.NewPlanFactory(),
		Adjustments: adjust.NewService(store, store),
		Runner:      audit.NewRunner(&audit.Engine{Workers: auditWorkers}, store, store),
		validate:    validator.New(),
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns all plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toPlanDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePlan creates a new plan from its config JSON.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	configJSON, _ := json.Marshal(req.Config)

	// Validate by parsing
	plan, err := h.PlanFactory.FromJSON(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan configuration", err)
		return
	}

	record := sqlite.PlanRecord{
		ID:         string(plan.ID),
		Name:       plan.Name,
		ConfigJSON: string(configJSON),
		Version:    1,
	}

	if err := h.Store.SavePlan(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create plan", err)
		return
	}

	writeJSON(w, http.StatusCreated, PlanDTO{
		ID:      record.ID,
		Name:    record.Name,
		Config:  req.Config,
		Version: record.Version,
	})
}

// GetPlan returns a single plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	record, err := h.Store.GetPlan(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, toPlanDTO(*record))
}

func toPlanDTO(rec sqlite.PlanRecord) PlanDTO {
	var config factory.PlanJSON
	json.Unmarshal([]byte(rec.ConfigJSON), &config)

	dto := PlanDTO{
		ID:      rec.ID,
		Name:    rec.Name,
		Config:  config,
		Version: rec.Version,
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

// ListAssignments returns assignments, optionally filtered by agent.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		records []sqlite.AssignmentRecord
		err     error
	)
	if agent := r.URL.Query().Get("agent"); agent != "" {
		records, err = h.Store.GetAssignmentsByAgent(ctx, agent)
	} else {
		records, err = h.Store.ListAssignments(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}

	dtos := make([]AssignmentDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toAssignmentDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAssignment assigns a plan to an agent from a start date on.
func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, "Invalid assignment", err)
		return
	}

	ctx := r.Context()

	plan, err := h.Store.GetPlan(ctx, req.PlanID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check plan", err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusBadRequest, "Unknown plan", fmt.Errorf("plan %s does not exist", req.PlanID))
		return
	}

	if req.TeamID != "" {
		team, err := h.Store.GetTeam(ctx, req.TeamID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to check team", err)
			return
		}
		if team == nil {
			writeError(w, http.StatusBadRequest, "Unknown team", fmt.Errorf("team %s does not exist", req.TeamID))
			return
		}
	}

	// Already validated by the datetime tag
	effectiveStart, _ := time.Parse("2006-01-02", req.EffectiveStart)

	record := sqlite.AssignmentRecord{
		ID:             uuid.NewString(),
		AgentName:      req.AgentName,
		PlanID:         req.PlanID,
		TeamID:         req.TeamID,
		EffectiveStart: effectiveStart,
	}
	if err := h.Store.SaveAssignment(ctx, record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create assignment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAssignmentDTO(record))
}

func toAssignmentDTO(rec sqlite.AssignmentRecord) AssignmentDTO {
	dto := AssignmentDTO{
		ID:             rec.ID,
		AgentName:      rec.AgentName,
		PlanID:         rec.PlanID,
		TeamID:         rec.TeamID,
		EffectiveStart: rec.EffectiveStart.Format("2006-01-02"),
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// TEAM HANDLERS
// =============================================================================

// ListTeams returns all teams.
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListTeams(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list teams", err)
		return
	}

	dtos := make([]TeamDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toTeamDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTeam creates a team split override.
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, "Invalid team", err)
		return
	}

	// Validate split percentages through the domain type
	team := commission.Team{
		ID:                    commission.TeamID(req.ID),
		Name:                  req.Name,
		LeadAgent:             commission.AgentName(req.LeadAgent),
		LeadSplitPercentage:   req.LeadSplit,
		MemberSplitPercentage: req.MemberSplit,
	}
	if err := team.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid team configuration", err)
		return
	}

	record := sqlite.TeamRecord{
		ID:                    req.ID,
		Name:                  req.Name,
		LeadAgent:             req.LeadAgent,
		LeadSplitPercentage:   req.LeadSplit,
		MemberSplitPercentage: req.MemberSplit,
	}
	if err := h.Store.SaveTeam(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create team", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTeamDTO(record))
}

func toTeamDTO(rec sqlite.TeamRecord) TeamDTO {
	dto := TeamDTO{
		ID:          rec.ID,
		Name:        rec.Name,
		LeadAgent:   rec.LeadAgent,
		LeadSplit:   rec.LeadSplitPercentage,
		MemberSplit: rec.MemberSplitPercentage,
	}
	if !rec.CreatedAt.IsZero() {
		dto.CreatedAt = rec.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// SubmitTransactions normalizes and stores a batch of feed rows.
func (h *Handler) SubmitTransactions(w http.ResponseWriter, r *http.Request) {
	var req SubmitTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, "Invalid transactions", err)
		return
	}

	records := make([]commission.TransactionRecord, 0, len(req.Transactions))
	var problems []string
	for _, in := range req.Transactions {
		rec, err := in.normalize()
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		records = append(records, rec)
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Transactions failed normalization",
			Code:    "normalization_failed",
			Details: problems,
		})
		return
	}

	if err := h.Store.SaveTransactionBatch(r.Context(), records); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store transactions", err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitTransactionsResponse{Accepted: len(records)})
}

// ListTransactions returns all stored transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListTransactions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(records))
}

// =============================================================================
// AUDIT RUN HANDLERS
// =============================================================================

// ExecuteAuditRun audits every stored transaction against the current
// plan book and persists the run with its results, variances, and
// per-agent summaries.
func (h *Handler) ExecuteAuditRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.Store.ListTransactions(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transactions", err)
		return
	}

	book, err := h.buildBook(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to assemble plan book", err)
		return
	}

	run, rep, err := h.Runner.Execute(ctx, audit.Input{Records: records, Book: book})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Audit run failed", err)
		return
	}

	summaries := report.BuildSummaries(rep, book)
	if err := h.Store.SaveSummaries(ctx, run.ID, summaries); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store summaries", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRunDTO(run))
}

// ListAuditRuns returns all runs in creation order.
func (h *Handler) ListAuditRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, 0, len(runs))
	for _, run := range runs {
		dtos = append(dtos, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAuditRun returns one run record.
func (h *Handler) GetAuditRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRunDTO(run))
}

// GetRunResults returns the per-record audit results of a run.
func (h *Handler) GetRunResults(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	results, err := h.Store.ListResults(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list results", err)
		return
	}
	writeJSON(w, http.StatusOK, toResultDTOs(results))
}

// GetRunVariances returns the coarse variance items of a run.
func (h *Handler) GetRunVariances(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	items, err := h.Store.ListVariances(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list variances", err)
		return
	}
	writeJSON(w, http.StatusOK, toVarianceDTOs(items))
}

// GetRunSummaries returns the per-agent rollups of a run.
func (h *Handler) GetRunSummaries(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}

	summaries, err := h.Store.ListSummaries(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list summaries", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTOs(summaries))
}

// ExportRun streams a run as CSV. view=results (default) exports the
// per-record results, view=summaries the per-agent rollups.
func (h *Handler) ExportRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	view := r.URL.Query().Get("view")
	if view == "" {
		view = "results"
	}

	switch view {
	case "results":
		results, err := h.Store.ListResults(ctx, run.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list results", err)
			return
		}
		setCSVHeaders(w, fmt.Sprintf("audit-%s-results.csv", run.ID))
		if err := report.WriteResultsCSV(w, results); err != nil {
			log.Printf("[API] csv export of run %s: %v", run.ID, err)
		}
	case "summaries":
		summaries, err := h.Store.ListSummaries(ctx, run.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list summaries", err)
			return
		}
		setCSVHeaders(w, fmt.Sprintf("audit-%s-summaries.csv", run.ID))
		if err := report.WriteSummariesCSV(w, summaries); err != nil {
			log.Printf("[API] csv export of run %s: %v", run.ID, err)
		}
	default:
		writeError(w, http.StatusBadRequest, "Unknown export view", fmt.Errorf("view %q is not results or summaries", view))
	}
}

// loadRun fetches the run in the URL, writing the error response itself
// when the run cannot be served.
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*audit.Run, bool) {
	id := chi.URLParam(r, "id")

	run, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "Run not found", err)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		}
		return nil, false
	}
	return run, true
}

// buildBook assembles the current plan/assignment/team configuration
// into the immutable book one audit run computes against.
func (h *Handler) buildBook(ctx context.Context) (*commission.AssignmentBook, error) {
	planRecords, err := h.Store.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	plans := make([]commission.Plan, 0, len(planRecords))
	for _, rec := range planRecords {
		plan, err := h.PlanFactory.ParsePlan(rec.ConfigJSON)
		if err != nil {
			return nil, fmt.Errorf("stored plan %s: %w", rec.ID, err)
		}
		plans = append(plans, *plan)
	}

	assignmentRecords, err := h.Store.ListAssignments(ctx)
	if err != nil {
		return nil, err
	}
	assignments := make([]commission.Assignment, 0, len(assignmentRecords))
	for _, rec := range assignmentRecords {
		assignments = append(assignments, commission.Assignment{
			AgentName:      commission.AgentName(rec.AgentName),
			PlanID:         commission.PlanID(rec.PlanID),
			TeamID:         commission.TeamID(rec.TeamID),
			EffectiveStart: rec.EffectiveStart,
		})
	}

	teamRecords, err := h.Store.ListTeams(ctx)
	if err != nil {
		return nil, err
	}
	teams := make([]commission.Team, 0, len(teamRecords))
	for _, rec := range teamRecords {
		teams = append(teams, commission.Team{
			ID:                    commission.TeamID(rec.ID),
			Name:                  rec.Name,
			LeadAgent:             commission.AgentName(rec.LeadAgent),
			LeadSplitPercentage:   rec.LeadSplitPercentage,
			MemberSplitPercentage: rec.MemberSplitPercentage,
		})
	}

	return commission.NewAssignmentBook(plans, assignments, teams)
}

// =============================================================================
// ADJUSTMENT HANDLERS
// =============================================================================

// CreateAdjustment opens a pending adjustment against a record.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, "Invalid adjustment", err)
		return
	}

	adj, err := h.Adjustments.Create(r.Context(), adjust.CreateRequest{
		RecordID:      commission.RecordID(req.RecordID),
		AgentName:     commission.AgentName(req.AgentName),
		OriginalValue: commission.Cents(req.OriginalValue),
		AdjustedValue: commission.Cents(req.AdjustedValue),
		ReasonCode:    req.ReasonCode,
		CreatedBy:     req.CreatedBy,
		Details:       req.Details,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create adjustment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAdjustmentDTO(adj))
}

// ListAdjustments returns adjustments filtered by record and status.
func (h *Handler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	filter := adjust.Filter{
		RecordID: commission.RecordID(r.URL.Query().Get("record_id")),
		Status:   adjust.Status(r.URL.Query().Get("status")),
	}

	adjs, err := h.Adjustments.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list adjustments", err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentDTOs(adjs))
}

// GetAdjustment returns one adjustment.
func (h *Handler) GetAdjustment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	adj, err := h.Adjustments.Get(r.Context(), id)
	if err != nil {
		writeAdjustmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentDTO(adj))
}

// ApproveAdjustment moves a pending adjustment to approved.
func (h *Handler) ApproveAdjustment(w http.ResponseWriter, r *http.Request) {
	h.transitionAdjustment(w, r, h.Adjustments.Approve)
}

// RejectAdjustment moves a pending adjustment to rejected.
func (h *Handler) RejectAdjustment(w http.ResponseWriter, r *http.Request) {
	h.transitionAdjustment(w, r, h.Adjustments.Reject)
}

// RevertAdjustment moves an approved adjustment to reverted.
func (h *Handler) RevertAdjustment(w http.ResponseWriter, r *http.Request) {
	h.transitionAdjustment(w, r, h.Adjustments.Revert)
}

func (h *Handler) transitionAdjustment(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id, actor, details string) (*adjust.Adjustment, error)) {
	id := chi.URLParam(r, "id")

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, "Invalid action", err)
		return
	}

	adj, err := apply(r.Context(), id, req.Actor, req.Details)
	if err != nil {
		writeAdjustmentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentDTO(adj))
}

// GetAdjustmentLog returns the append-only trail for an adjustment.
func (h *Handler) GetAdjustmentLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	// Existence check so unknown ids are 404, not an empty trail
	if _, err := h.Adjustments.Get(ctx, id); err != nil {
		writeAdjustmentError(w, err)
		return
	}

	entries, err := h.Adjustments.Log(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list log entries", err)
		return
	}

	dtos := make([]LogEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toLogEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func writeAdjustmentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, adjust.ErrAdjustmentNotFound):
		writeError(w, http.StatusNotFound, "Adjustment not found", err)
	case errors.Is(err, adjust.ErrInvalidAdjustmentState):
		writeError(w, http.StatusConflict, "Invalid adjustment state", err)
	default:
		writeError(w, http.StatusInternalServerError, "Adjustment operation failed", err)
	}
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// GetRecordCurrentValue returns the displayed company dollar for a
// record: the plan-computed value from the latest completed run that
// covers it (falling back to the reported value) plus every approved
// adjustment.
func (h *Handler) GetRecordCurrentValue(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	rec, err := h.Store.GetTransaction(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transaction", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}

	planValue := rec.ReportedCompanyDollar
	basis := "reported"
	runID := ""

	runs, err := h.Store.ListRuns(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	for i := len(runs) - 1; i >= 0 && basis == "reported"; i-- {
		if runs[i].Status != audit.RunCompleted {
			continue
		}
		results, err := h.Store.ListResults(ctx, runs[i].ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list results", err)
			return
		}
		for _, res := range results {
			if res.RecordID == rec.ID {
				planValue = res.ExpectedCompanyDollar
				basis = "audit"
				runID = runs[i].ID
				break
			}
		}
	}

	current, err := h.Adjustments.CurrentValue(ctx, rec.ID, planValue)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute current value", err)
		return
	}

	writeJSON(w, http.StatusOK, CurrentValueDTO{
		RecordID:     string(rec.ID),
		PlanValue:    int64(planValue),
		CurrentValue: int64(current),
		Basis:        basis,
		RunID:        runID,
	})
}

// =============================================================================
// ADMIN
// =============================================================================

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.currentScenario = ""

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeValidationError reports validator failures with per-field detail.
func writeValidationError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Code: "validation_failed"}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[fe.Field()] = fe.Error()
		}
		resp.Details = fields
	} else if err != nil {
		resp.Details = err.Error()
	}

	writeJSON(w, http.StatusBadRequest, resp)
}

func setCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
