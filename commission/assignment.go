/*
assignment.go - Agent-to-plan assignments and team overrides

PURPOSE:
  Links agents to commission plans with an effective start date, and models
  teams whose lead/member splits override the plan's tier-resolved split.

ASSIGNMENT RESOLUTION:
  An agent may have multiple assignments over time (plan changes). The
  assignment active at a date is the one with the latest EffectiveStart that
  is on or before that date. A transaction closing before the agent's first
  assignment has no plan - the calculator signals ErrNoPlanAssigned and the
  caller treats the reported value as authoritative.

ANNIVERSARY ANCHOR:
  For plans with agent-anniversary periods, the active assignment's
  EffectiveStart doubles as the anniversary anchor date.

SEE ALSO:
  - plan.go: The plan an assignment points at
  - period.go: Anniversary period resolution from the anchor
*/
package commission

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ASSIGNMENT
// =============================================================================

// Assignment links an agent to a commission plan from a start date on.
type Assignment struct {
	AgentName AgentName
	PlanID    PlanID

	// TeamID is empty when the agent is not on a team.
	TeamID TeamID

	// EffectiveStart is when the assignment begins. It is also the
	// anniversary anchor for anniversary-period plans.
	EffectiveStart time.Time
}

// IsActiveAt returns true if the assignment is in effect at the given date.
func (a Assignment) IsActiveAt(at time.Time) bool {
	return !at.Before(a.EffectiveStart)
}

// =============================================================================
// TEAM
// =============================================================================

// Team overrides the plan split for its members: the lead and members each
// carry their own split percentage in place of the tier-resolved one. Cap
// and royalty handling still follow the plan.
type Team struct {
	ID                    TeamID
	Name                  string
	LeadAgent             AgentName
	LeadSplitPercentage   decimal.Decimal
	MemberSplitPercentage decimal.Decimal
}

// SplitFor returns the override split for the given agent.
func (t *Team) SplitFor(agent AgentName) decimal.Decimal {
	if agent == t.LeadAgent {
		return t.LeadSplitPercentage
	}
	return t.MemberSplitPercentage
}

// Validate checks the team's split percentages.
func (t *Team) Validate() error {
	if t.ID == "" {
		return &PlanValidationError{Field: "team.id", Reason: "team id is required"}
	}
	if !percentInRange(t.LeadSplitPercentage) {
		return &PlanValidationError{Field: "team.leadSplitPercentage", Reason: "must be within [0,100]"}
	}
	if !percentInRange(t.MemberSplitPercentage) {
		return &PlanValidationError{Field: "team.memberSplitPercentage", Reason: "must be within [0,100]"}
	}
	return nil
}

// =============================================================================
// ASSIGNMENT BOOK - Resolved view for a single computation run
// =============================================================================

// AssignmentBook resolves which plan and team apply to an agent at a date.
// It is built once per run from the plan-management collaborator's records
// and is safe for concurrent reads.
type AssignmentBook struct {
	plans       map[PlanID]*Plan
	assignments map[AgentName][]Assignment
	teams       map[TeamID]*Team
}

// NewAssignmentBook builds a book. Plans and teams are validated; the first
// invalid one is returned as an error (fail fast on load).
func NewAssignmentBook(plans []Plan, assignments []Assignment, teams []Team) (*AssignmentBook, error) {
	book := &AssignmentBook{
		plans:       make(map[PlanID]*Plan, len(plans)),
		assignments: make(map[AgentName][]Assignment),
		teams:       make(map[TeamID]*Team, len(teams)),
	}

	for i := range plans {
		p := plans[i]
		if err := p.Validate(); err != nil {
			return nil, err
		}
		book.plans[p.ID] = &p
	}

	for i := range teams {
		t := teams[i]
		if err := t.Validate(); err != nil {
			return nil, err
		}
		book.teams[t.ID] = &t
	}

	for _, a := range assignments {
		book.assignments[a.AgentName] = append(book.assignments[a.AgentName], a)
	}
	for agent := range book.assignments {
		list := book.assignments[agent]
		sort.Slice(list, func(i, j int) bool {
			return list[i].EffectiveStart.Before(list[j].EffectiveStart)
		})
	}

	return book, nil
}

// ActiveAt returns the assignment in effect for the agent at the date: the
// latest assignment starting on or before it.
func (b *AssignmentBook) ActiveAt(agent AgentName, at time.Time) (Assignment, bool) {
	list := b.assignments[agent]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].IsActiveAt(at) {
			return list[i], true
		}
	}
	return Assignment{}, false
}

// PlanFor returns the plan referenced by an assignment.
func (b *AssignmentBook) PlanFor(a Assignment) (*Plan, bool) {
	p, ok := b.plans[a.PlanID]
	return p, ok
}

// TeamFor returns the team referenced by an assignment, if any.
func (b *AssignmentBook) TeamFor(a Assignment) (*Team, bool) {
	if a.TeamID == "" {
		return nil, false
	}
	t, ok := b.teams[a.TeamID]
	return t, ok
}

// Plan returns a plan by id.
func (b *AssignmentBook) Plan(id PlanID) (*Plan, bool) {
	p, ok := b.plans[id]
	return p, ok
}
