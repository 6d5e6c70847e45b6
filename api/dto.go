/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Input: Raw inbound shapes that still need normalization

MONEY:
  Every monetary field on the wire is integer cents. Percentages travel
  as decimal strings ("80", "2.5"); bare JSON numbers are accepted on
  input. Dollar formatting is a client concern.

NORMALIZATION:
  TransactionInput is the one place alternative feed field names are
  tolerated (agent_name / agent / listing_agent). Its normalize() method
  produces a strict commission.TransactionRecord; everything past the
  DTO layer sees exactly one shape. Gross commission is derived from
  sale price x rate when the feed omits it.

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  the validator and return field-level details on failure. Domain rules
  (tier ordering, percent ranges) stay in the domain types.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON config schema
*/
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brokerops/commission-engine/adjust"
	"github.com/brokerops/commission-engine/audit"
	"github.com/brokerops/commission-engine/commission"
	"github.com/brokerops/commission-engine/factory"
	"github.com/brokerops/commission-engine/report"
)

// =============================================================================
// PLAN / ASSIGNMENT / TEAM TYPES
// =============================================================================

// PlanDTO represents a commission plan in API responses.
type PlanDTO struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Config    factory.PlanJSON `json:"config"`
	Version   int              `json:"version"`
	CreatedAt string           `json:"created_at,omitempty"`
}

// CreatePlanRequest is the request to create a plan.
type CreatePlanRequest struct {
	Config factory.PlanJSON `json:"config"`
}

// AssignmentDTO represents a plan assignment.
type AssignmentDTO struct {
	ID             string `json:"id"`
	AgentName      string `json:"agent_name"`
	PlanID         string `json:"plan_id"`
	TeamID         string `json:"team_id,omitempty"`
	EffectiveStart string `json:"effective_start"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// CreateAssignmentRequest is the request to assign a plan to an agent.
type CreateAssignmentRequest struct {
	AgentName      string `json:"agent_name" validate:"required"`
	PlanID         string `json:"plan_id" validate:"required"`
	TeamID         string `json:"team_id"`
	EffectiveStart string `json:"effective_start" validate:"required,datetime=2006-01-02"`
}

// TeamDTO represents a team split override.
type TeamDTO struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	LeadAgent   string          `json:"lead_agent"`
	LeadSplit   decimal.Decimal `json:"lead_split_percentage"`
	MemberSplit decimal.Decimal `json:"member_split_percentage"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

// CreateTeamRequest is the request to create a team.
type CreateTeamRequest struct {
	ID          string          `json:"id" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	LeadAgent   string          `json:"lead_agent" validate:"required"`
	LeadSplit   decimal.Decimal `json:"lead_split_percentage"`
	MemberSplit decimal.Decimal `json:"member_split_percentage"`
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// TransactionInput is one inbound transaction row before normalization.
// Feeds disagree on the agent column name, so all accepted aliases are
// declared here and resolved in normalize().
type TransactionInput struct {
	ID string `json:"id" validate:"required"`

	// Exactly one of these must be non-empty; checked in normalize()
	// because validator tags cannot express "first non-empty wins".
	AgentName    string `json:"agent_name"`
	Agent        string `json:"agent"`
	ListingAgent string `json:"listing_agent"`

	CoAgents []string `json:"co_agents,omitempty"`

	SalePrice      int64           `json:"sale_price" validate:"gte=0"`
	CommissionRate decimal.Decimal `json:"commission_rate"`

	// GrossCommission is derived from sale_price x commission_rate when
	// zero or absent.
	GrossCommission int64 `json:"gross_commission,omitempty"`

	// ClosingDate is YYYY-MM-DD; empty is allowed and marks the record
	// unsequenceable.
	ClosingDate string `json:"closing_date,omitempty"`

	ReportedCompanyDollar int64 `json:"reported_company_dollar"`
}

// normalize resolves field aliases and produces the strict record the
// engine consumes.
func (in TransactionInput) normalize() (commission.TransactionRecord, error) {
	rec := commission.TransactionRecord{
		ID:                    commission.RecordID(in.ID),
		SalePrice:             commission.Cents(in.SalePrice),
		CommissionRate:        in.CommissionRate,
		GrossCommission:       commission.Cents(in.GrossCommission),
		ReportedCompanyDollar: commission.Cents(in.ReportedCompanyDollar),
	}

	agent := firstNonEmpty(in.AgentName, in.Agent, in.ListingAgent)
	if agent == "" {
		return rec, fmt.Errorf("transaction %s: agent name missing (accepted fields: agent_name, agent, listing_agent)", in.ID)
	}
	rec.AgentName = commission.AgentName(agent)

	for _, co := range in.CoAgents {
		if name := strings.TrimSpace(co); name != "" {
			rec.CoAgents = append(rec.CoAgents, commission.AgentName(name))
		}
	}

	if in.ClosingDate != "" {
		t, err := time.Parse("2006-01-02", in.ClosingDate)
		if err != nil {
			return rec, fmt.Errorf("transaction %s: closing date %q is not YYYY-MM-DD", in.ID, in.ClosingDate)
		}
		rec.ClosingDate = t
	}

	if rec.GrossCommission == 0 && rec.SalePrice > 0 && in.CommissionRate.IsPositive() {
		rec.GrossCommission = commission.RoundCents(commission.PercentOf(rec.SalePrice, in.CommissionRate))
	}

	return rec, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// SubmitTransactionsRequest is a bulk transaction upload.
type SubmitTransactionsRequest struct {
	Transactions []TransactionInput `json:"transactions" validate:"required,min=1,dive"`
}

// SubmitTransactionsResponse reports how many rows were stored.
type SubmitTransactionsResponse struct {
	Accepted int `json:"accepted"`
}

// TransactionDTO represents a normalized transaction in API responses.
type TransactionDTO struct {
	ID                    string          `json:"id"`
	AgentName             string          `json:"agent_name"`
	CoAgents              []string        `json:"co_agents,omitempty"`
	SalePrice             int64           `json:"sale_price"`
	CommissionRate        decimal.Decimal `json:"commission_rate"`
	GrossCommission       int64           `json:"gross_commission"`
	ClosingDate           string          `json:"closing_date,omitempty"`
	ReportedCompanyDollar int64           `json:"reported_company_dollar"`
}

// =============================================================================
// ADJUSTMENT TYPES
// =============================================================================

// AdjustmentDTO represents an adjustment in API responses.
type AdjustmentDTO struct {
	ID               string  `json:"id"`
	RecordID         string  `json:"record_id"`
	AgentName        string  `json:"agent_name"`
	OriginalValue    int64   `json:"original_value"`
	AdjustedValue    int64   `json:"adjusted_value"`
	AdjustmentAmount int64   `json:"adjustment_amount"`
	ReasonCode       string  `json:"reason_code"`
	Status           string  `json:"status"`
	CreatedBy        string  `json:"created_by"`
	CreatedAt        string  `json:"created_at"`
	ApprovedBy       *string `json:"approved_by,omitempty"`
	ApprovedAt       *string `json:"approved_at,omitempty"`
	RevertedBy       *string `json:"reverted_by,omitempty"`
	RevertedAt       *string `json:"reverted_at,omitempty"`
	UpdatedAt        string  `json:"updated_at"`
}

// CreateAdjustmentRequest opens a pending adjustment. The amount is
// derived server-side from adjusted - original and never accepted from
// the client.
type CreateAdjustmentRequest struct {
	RecordID      string `json:"record_id" validate:"required"`
	AgentName     string `json:"agent_name" validate:"required"`
	OriginalValue int64  `json:"original_value"`
	AdjustedValue int64  `json:"adjusted_value"`
	ReasonCode    string `json:"reason_code" validate:"required"`
	CreatedBy     string `json:"created_by" validate:"required"`
	Details       string `json:"details"`
}

// ActionRequest carries the actor behind an approve/reject/revert.
type ActionRequest struct {
	Actor   string `json:"actor" validate:"required"`
	Details string `json:"details"`
}

// LogEntryDTO represents one audit trail entry.
type LogEntryDTO struct {
	ID           string `json:"id"`
	AdjustmentID string `json:"adjustment_id"`
	Action       string `json:"action"`
	Actor        string `json:"actor"`
	At           string `json:"at"`
	Details      string `json:"details,omitempty"`
}

// CurrentValueDTO is the displayed value for a record: the plan-computed
// company dollar plus all approved adjustments.
type CurrentValueDTO struct {
	RecordID     string `json:"record_id"`
	PlanValue    int64  `json:"plan_value"`
	CurrentValue int64  `json:"current_value"`

	// Basis is "audit" when PlanValue came from the latest completed run,
	// "reported" when no run covers the record.
	Basis string `json:"basis"`
	RunID string `json:"run_id,omitempty"`
}

// =============================================================================
// AUDIT RUN TYPES
// =============================================================================

// RunDTO represents an audit run.
type RunDTO struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	StartedAt   string    `json:"started_at"`
	CompletedAt *string   `json:"completed_at,omitempty"`
	Error       string    `json:"error,omitempty"`
	Totals      TotalsDTO `json:"totals"`
}

// TotalsDTO aggregates one run.
type TotalsDTO struct {
	Records     int `json:"records"`
	Matches     int `json:"matches"`
	Underpaid   int `json:"underpaid"`
	Overpaid    int `json:"overpaid"`
	Exact       int `json:"exact"`
	Minor       int `json:"minor"`
	Major       int `json:"major"`
	Unsequenced int `json:"unsequenced"`
	NoPlan      int `json:"no_plan"`
}

// ResultDTO represents one audited record.
type ResultDTO struct {
	RecordID              string        `json:"record_id"`
	AgentName             string        `json:"agent_name"`
	ActualCompanyDollar   int64         `json:"actual_company_dollar"`
	ExpectedCompanyDollar int64         `json:"expected_company_dollar"`
	Difference            int64         `json:"difference"`
	Status                string        `json:"status"`
	Breakdown             *BreakdownDTO `json:"breakdown,omitempty"`
	Notes                 []string      `json:"notes,omitempty"`
}

// BreakdownDTO is the calculator snapshot behind an expected value.
// Absent for records audited on the reported value alone.
type BreakdownDTO struct {
	GrossCommission int64              `json:"gross_commission"`
	SplitPercentage decimal.Decimal    `json:"split_percentage"`
	TeamApplied     bool               `json:"team_applied,omitempty"`
	AgentGross      int64              `json:"agent_gross"`
	Deductions      []DeductionLineDTO `json:"deductions,omitempty"`
	Royalty         int64              `json:"royalty"`
	AgentNet        int64              `json:"agent_net"`
	CompanyDollar   int64              `json:"company_dollar"`
	CappedPortion   int64              `json:"capped_portion,omitempty"`
}

// DeductionLineDTO is one applied deduction.
type DeductionLineDTO struct {
	Name   string `json:"name"`
	Basis  string `json:"basis,omitempty"`
	Amount int64  `json:"amount"`
}

// VarianceDTO represents one coarse variance check result.
type VarianceDTO struct {
	RecordID           string          `json:"record_id"`
	AgentName          string          `json:"agent_name"`
	ReportedCommission int64           `json:"reported_commission"`
	NaiveCommission    int64           `json:"naive_commission"`
	DeviationPct       decimal.Decimal `json:"deviation_pct"`
	NoBaseline         bool            `json:"no_baseline,omitempty"`
	Category           string          `json:"category"`
}

// SummaryDTO represents one agent-period rollup.
type SummaryDTO struct {
	AgentName         string          `json:"agent_name"`
	PeriodKey         string          `json:"period_key"`
	PeriodStart       string          `json:"period_start"`
	PeriodEnd         string          `json:"period_end"`
	PlanID            string          `json:"plan_id,omitempty"`
	Transactions      int             `json:"transactions"`
	TotalGCI          int64           `json:"total_gci"`
	TotalAgentNet     int64           `json:"total_agent_net"`
	CompanyDollarPaid int64           `json:"company_dollar_paid"`
	RoyaltyPaid       int64           `json:"royalty_paid"`
	PercentToCap      decimal.Decimal `json:"percent_to_cap"`
	IsCapped          bool            `json:"is_capped"`
	CurrentSplit      decimal.Decimal `json:"current_split"`
	Matches           int             `json:"matches"`
	Underpaid         int             `json:"underpaid"`
	Overpaid          int             `json:"overpaid"`
}

// =============================================================================
// SCENARIO AND ERROR TYPES
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to seed.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTransactionDTO(rec commission.TransactionRecord) TransactionDTO {
	dto := TransactionDTO{
		ID:                    string(rec.ID),
		AgentName:             string(rec.AgentName),
		SalePrice:             int64(rec.SalePrice),
		CommissionRate:        rec.CommissionRate,
		GrossCommission:       int64(rec.GrossCommission),
		ReportedCompanyDollar: int64(rec.ReportedCompanyDollar),
	}
	for _, co := range rec.CoAgents {
		dto.CoAgents = append(dto.CoAgents, string(co))
	}
	if rec.HasClosingDate() {
		dto.ClosingDate = rec.ClosingDate.Format("2006-01-02")
	}
	return dto
}

func toTransactionDTOs(recs []commission.TransactionRecord) []TransactionDTO {
	dtos := make([]TransactionDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = toTransactionDTO(rec)
	}
	return dtos
}

func toAdjustmentDTO(adj *adjust.Adjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:               adj.ID,
		RecordID:         string(adj.RecordID),
		AgentName:        string(adj.AgentName),
		OriginalValue:    int64(adj.OriginalValue),
		AdjustedValue:    int64(adj.AdjustedValue),
		AdjustmentAmount: int64(adj.AdjustmentAmount),
		ReasonCode:       adj.ReasonCode,
		Status:           string(adj.Status),
		CreatedBy:        adj.CreatedBy,
		CreatedAt:        adj.CreatedAt.Format(time.RFC3339),
		ApprovedBy:       adj.ApprovedBy,
		ApprovedAt:       formatTimePtr(adj.ApprovedAt),
		RevertedBy:       adj.RevertedBy,
		RevertedAt:       formatTimePtr(adj.RevertedAt),
		UpdatedAt:        adj.UpdatedAt.Format(time.RFC3339),
	}
}

func toAdjustmentDTOs(adjs []*adjust.Adjustment) []AdjustmentDTO {
	dtos := make([]AdjustmentDTO, len(adjs))
	for i, adj := range adjs {
		dtos[i] = toAdjustmentDTO(adj)
	}
	return dtos
}

func toLogEntryDTO(e adjust.LogEntry) LogEntryDTO {
	return LogEntryDTO{
		ID:           e.ID,
		AdjustmentID: e.AdjustmentID,
		Action:       string(e.Action),
		Actor:        e.Actor,
		At:           e.At.Format(time.RFC3339),
		Details:      e.Details,
	}
}

func toRunDTO(run *audit.Run) RunDTO {
	return RunDTO{
		ID:          run.ID,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt.Format(time.RFC3339),
		CompletedAt: formatTimePtr(run.CompletedAt),
		Error:       run.Error,
		Totals:      toTotalsDTO(run.Totals),
	}
}

func toTotalsDTO(t audit.Totals) TotalsDTO {
	return TotalsDTO{
		Records:     t.Records,
		Matches:     t.Matches,
		Underpaid:   t.Underpaid,
		Overpaid:    t.Overpaid,
		Exact:       t.Exact,
		Minor:       t.Minor,
		Major:       t.Major,
		Unsequenced: t.Unsequenced,
		NoPlan:      t.NoPlan,
	}
}

func toResultDTO(res audit.Result) ResultDTO {
	dto := ResultDTO{
		RecordID:              string(res.RecordID),
		AgentName:             string(res.AgentName),
		ActualCompanyDollar:   int64(res.ActualCompanyDollar),
		ExpectedCompanyDollar: int64(res.ExpectedCompanyDollar),
		Difference:            int64(res.Difference),
		Status:                string(res.Status),
		Notes:                 res.Notes,
	}
	if res.Breakdown.RecordID != "" {
		b := BreakdownDTO{
			GrossCommission: int64(res.Breakdown.GrossCommission),
			SplitPercentage: res.Breakdown.SplitPct,
			TeamApplied:     res.Breakdown.TeamApplied,
			AgentGross:      int64(res.Breakdown.AgentGross),
			Royalty:         int64(res.Breakdown.Royalty),
			AgentNet:        int64(res.Breakdown.AgentNet),
			CompanyDollar:   int64(res.Breakdown.CompanyDollar),
			CappedPortion:   int64(res.Breakdown.CappedPortion),
		}
		for _, d := range res.Breakdown.Deductions {
			b.Deductions = append(b.Deductions, DeductionLineDTO{
				Name:   d.Name,
				Basis:  string(d.Basis),
				Amount: int64(d.Amount),
			})
		}
		dto.Breakdown = &b
	}
	return dto
}

func toResultDTOs(results []audit.Result) []ResultDTO {
	dtos := make([]ResultDTO, len(results))
	for i, res := range results {
		dtos[i] = toResultDTO(res)
	}
	return dtos
}

func toVarianceDTO(v audit.VarianceItem) VarianceDTO {
	return VarianceDTO{
		RecordID:           string(v.RecordID),
		AgentName:          string(v.AgentName),
		ReportedCommission: int64(v.ReportedCommission),
		NaiveCommission:    int64(v.NaiveCommission),
		DeviationPct:       v.DeviationPct,
		NoBaseline:         v.NoBaseline,
		Category:           string(v.Category),
	}
}

func toVarianceDTOs(items []audit.VarianceItem) []VarianceDTO {
	dtos := make([]VarianceDTO, len(items))
	for i, v := range items {
		dtos[i] = toVarianceDTO(v)
	}
	return dtos
}

func toSummaryDTO(s report.AgentSummary) SummaryDTO {
	return SummaryDTO{
		AgentName:         string(s.AgentName),
		PeriodKey:         s.PeriodKey,
		PeriodStart:       s.Period.Start.Format("2006-01-02"),
		PeriodEnd:         s.Period.End.Format("2006-01-02"),
		PlanID:            string(s.PlanID),
		Transactions:      s.Transactions,
		TotalGCI:          int64(s.TotalGCI),
		TotalAgentNet:     int64(s.TotalAgentNet),
		CompanyDollarPaid: int64(s.CompanyDollarPaid),
		RoyaltyPaid:       int64(s.RoyaltyPaid),
		PercentToCap:      s.PercentToCap,
		IsCapped:          s.IsCapped,
		CurrentSplit:      s.CurrentSplit,
		Matches:           s.Matches,
		Underpaid:         s.Underpaid,
		Overpaid:          s.Overpaid,
	}
}

func toSummaryDTOs(summaries []report.AgentSummary) []SummaryDTO {
	dtos := make([]SummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSummaryDTO(s)
	}
	return dtos
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
