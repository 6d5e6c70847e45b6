/*
Package factory provides JSON to Go commission plan conversion.

PURPOSE:
  Converts JSON plan definitions into commission.Plan, Assignment, and Team
  objects. This enables plan configuration without code changes - brokerage
  operations staff can define plans in JSON, and the factory creates the
  proper Go structs.

WHY JSON?
  - Non-developers can modify commission plans
  - Easy integration with admin UI
  - Version control for plan definitions
  - Database storage of plan configs

JSON SCHEMA:
  {
    "id": "plan-sliding",
    "name": "Sliding Scale 60/65/70",
    "split_percentage": "60",
    "tiers": [
      {"threshold": 0, "split_percentage": "60"},
      {"threshold": 5000000, "split_percentage": "65"},
      {"threshold": 10000000, "split_percentage": "70"}
    ],
    "cap_amount": 30000000,
    "post_cap_split": "95",
    "deductions": [
      {"name": "Transaction Fee", "amount": 29500},
      {"name": "E&O Insurance", "percentage": "1", "basis": "gci"}
    ],
    "royalty_percentage": "6",
    "royalty_cap": 300000,
    "period_mode": "calendar-year"
  }

  Monetary fields are integer cents. Percentage fields accept JSON numbers
  or strings; strings avoid any binary float representation of rates.

KEY FEATURES:
  - Validates plans on conversion; invalid JSON never becomes a Plan
  - Round-trips plans back to JSON for the admin API
  - Parses whole configuration books (plans + assignments + teams)
    directly into a ready-to-use commission.AssignmentBook

USAGE:
  factory := factory.NewPlanFactory()

  // Single plan from JSON
  plan, err := factory.ParsePlan(jsonString)

  // Whole configuration document
  book, err := factory.ParseBook(configJSON)

SEE ALSO:
  - commission/plan.go: Plan type definition and validation
  - commission/presets.go: Go-based plan configurations
  - store/sqlite: Persists the JSON representation
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brokerops/commission-engine/commission"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a commission plan.
type PlanJSON struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	SplitPercentage decimal.Decimal `json:"split_percentage"`
	Tiers           []TierJSON      `json:"tiers,omitempty"`
	CapAmount       int64           `json:"cap_amount,omitempty"`
	PostCapSplit    decimal.Decimal `json:"post_cap_split,omitempty"`
	Deductions      []DeductionJSON `json:"deductions,omitempty"`
	RoyaltyPct      decimal.Decimal `json:"royalty_percentage,omitempty"`
	RoyaltyCap      int64           `json:"royalty_cap,omitempty"`
	PeriodMode      string          `json:"period_mode,omitempty"`
}

// TierJSON represents one rung of a sliding scale.
type TierJSON struct {
	Threshold       int64           `json:"threshold"`
	SplitPercentage decimal.Decimal `json:"split_percentage"`
}

// DeductionJSON represents a per-transaction deduction. Exactly one of
// amount (cents) or percentage must be set; basis is required with
// percentage.
type DeductionJSON struct {
	Name       string          `json:"name"`
	Amount     int64           `json:"amount,omitempty"`
	Percentage decimal.Decimal `json:"percentage,omitempty"`
	Basis      string          `json:"basis,omitempty"`
}

// AssignmentJSON links an agent to a plan from a start date on.
type AssignmentJSON struct {
	AgentName      string `json:"agent_name"`
	PlanID         string `json:"plan_id"`
	TeamID         string `json:"team_id,omitempty"`
	EffectiveStart string `json:"effective_start"` // YYYY-MM-DD
}

// TeamJSON represents a team split override.
type TeamJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	LeadAgent   string          `json:"lead_agent"`
	LeadSplit   decimal.Decimal `json:"lead_split_percentage"`
	MemberSplit decimal.Decimal `json:"member_split_percentage"`
}

// BookJSON is a whole configuration document: every plan, assignment, and
// team the engine needs for a computation run.
type BookJSON struct {
	Plans       []PlanJSON       `json:"plans"`
	Assignments []AssignmentJSON `json:"assignments,omitempty"`
	Teams       []TeamJSON       `json:"teams,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plan configuration to Go structs.
type PlanFactory struct{}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON string into a validated Plan.
func (f *PlanFactory) ParsePlan(jsonStr string) (*commission.Plan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON into a validated commission.Plan.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*commission.Plan, error) {
	plan := &commission.Plan{
		ID:                commission.PlanID(pj.ID),
		Name:              pj.Name,
		SplitPercentage:   pj.SplitPercentage,
		CapAmount:         commission.Cents(pj.CapAmount),
		PostCapSplit:      pj.PostCapSplit,
		RoyaltyPercentage: pj.RoyaltyPct,
		RoyaltyCap:        commission.Cents(pj.RoyaltyCap),
		PeriodMode:        commission.PeriodMode(pj.PeriodMode),
	}

	for _, tj := range pj.Tiers {
		plan.Tiers = append(plan.Tiers, commission.Tier{
			Threshold:       commission.Cents(tj.Threshold),
			SplitPercentage: tj.SplitPercentage,
		})
	}

	for _, dj := range pj.Deductions {
		plan.Deductions = append(plan.Deductions, commission.Deduction{
			Name:       dj.Name,
			Amount:     commission.Cents(dj.Amount),
			Percentage: dj.Percentage,
			Basis:      commission.DeductionBasis(dj.Basis),
		})
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// ToJSON converts a Plan back to its JSON representation.
func (f *PlanFactory) ToJSON(plan *commission.Plan) PlanJSON {
	pj := PlanJSON{
		ID:              string(plan.ID),
		Name:            plan.Name,
		SplitPercentage: plan.SplitPercentage,
		CapAmount:       int64(plan.CapAmount),
		PostCapSplit:    plan.PostCapSplit,
		RoyaltyPct:      plan.RoyaltyPercentage,
		RoyaltyCap:      int64(plan.RoyaltyCap),
		PeriodMode:      string(plan.PeriodMode),
	}
	for _, t := range plan.Tiers {
		pj.Tiers = append(pj.Tiers, TierJSON{
			Threshold:       int64(t.Threshold),
			SplitPercentage: t.SplitPercentage,
		})
	}
	for _, d := range plan.Deductions {
		pj.Deductions = append(pj.Deductions, DeductionJSON{
			Name:       d.Name,
			Amount:     int64(d.Amount),
			Percentage: d.Percentage,
			Basis:      string(d.Basis),
		})
	}
	return pj
}

// =============================================================================
// ASSIGNMENTS AND TEAMS
// =============================================================================

// AssignmentFromJSON converts AssignmentJSON, parsing the effective date.
func (f *PlanFactory) AssignmentFromJSON(aj AssignmentJSON) (commission.Assignment, error) {
	start, err := time.Parse("2006-01-02", aj.EffectiveStart)
	if err != nil {
		return commission.Assignment{}, fmt.Errorf("failed to parse effective_start %q: %w", aj.EffectiveStart, err)
	}
	return commission.Assignment{
		AgentName:      commission.AgentName(aj.AgentName),
		PlanID:         commission.PlanID(aj.PlanID),
		TeamID:         commission.TeamID(aj.TeamID),
		EffectiveStart: start,
	}, nil
}

// AssignmentToJSON converts an Assignment back to JSON form.
func (f *PlanFactory) AssignmentToJSON(a commission.Assignment) AssignmentJSON {
	return AssignmentJSON{
		AgentName:      string(a.AgentName),
		PlanID:         string(a.PlanID),
		TeamID:         string(a.TeamID),
		EffectiveStart: a.EffectiveStart.Format("2006-01-02"),
	}
}

// TeamFromJSON converts TeamJSON into a Team.
func (f *PlanFactory) TeamFromJSON(tj TeamJSON) commission.Team {
	return commission.Team{
		ID:                    commission.TeamID(tj.ID),
		Name:                  tj.Name,
		LeadAgent:             commission.AgentName(tj.LeadAgent),
		LeadSplitPercentage:   tj.LeadSplit,
		MemberSplitPercentage: tj.MemberSplit,
	}
}

// TeamToJSON converts a Team back to JSON form.
func (f *PlanFactory) TeamToJSON(t commission.Team) TeamJSON {
	return TeamJSON{
		ID:          string(t.ID),
		Name:        t.Name,
		LeadAgent:   string(t.LeadAgent),
		LeadSplit:   t.LeadSplitPercentage,
		MemberSplit: t.MemberSplitPercentage,
	}
}

// =============================================================================
// CONFIGURATION BOOKS
// =============================================================================

// ParseBook parses a whole configuration document into a ready-to-use
// AssignmentBook. Every plan and team is validated; the first invalid
// entry fails the parse.
func (f *PlanFactory) ParseBook(jsonStr string) (*commission.AssignmentBook, error) {
	var bj BookJSON
	if err := json.Unmarshal([]byte(jsonStr), &bj); err != nil {
		return nil, fmt.Errorf("failed to parse configuration JSON: %w", err)
	}
	return f.BookFromJSON(bj)
}

// BookFromJSON converts a BookJSON into an AssignmentBook.
func (f *PlanFactory) BookFromJSON(bj BookJSON) (*commission.AssignmentBook, error) {
	plans := make([]commission.Plan, 0, len(bj.Plans))
	for _, pj := range bj.Plans {
		p, err := f.FromJSON(pj)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *p)
	}

	assignments := make([]commission.Assignment, 0, len(bj.Assignments))
	for _, aj := range bj.Assignments {
		a, err := f.AssignmentFromJSON(aj)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}

	teams := make([]commission.Team, 0, len(bj.Teams))
	for _, tj := range bj.Teams {
		teams = append(teams, f.TeamFromJSON(tj))
	}

	return commission.NewAssignmentBook(plans, assignments, teams)
}
