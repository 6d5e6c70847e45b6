/*
Package report builds per-agent rollups and flat exports from audit output.

PURPOSE:
  The engine emits record-level results; reviewers want period-level
  answers: how much GCI an agent closed, where they stand against their
  cap, and how many of their records disagreed with the books. This
  package folds a report into one AgentSummary per (agent, period).

DERIVED, NOT STORED:
  Summaries are a pure function of an audit report plus the assignment
  book. They are persisted per run purely for cheap retrieval; rebuilding
  them from stored results would give the same rows.

SEE ALSO:
  - audit/engine.go: Produces the Report consumed here
  - csv.go: Flat CSV rendering of results and summaries
*/
package report

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/brokerops/commission-engine/audit"
	"github.com/brokerops/commission-engine/commission"
)

// =============================================================================
// AGENT SUMMARY
// =============================================================================

// AgentSummary rolls one agent's period up to the numbers a reviewer
// scans first.
type AgentSummary struct {
	AgentName commission.AgentName
	PeriodKey string
	Period    commission.Period

	PlanID commission.PlanID

	// Transactions counts the records the calculator replayed into this
	// period. Records audited on the reported value alone are not here.
	Transactions int

	TotalGCI      commission.Cents
	TotalAgentNet commission.Cents

	// CompanyDollarPaid and RoyaltyPaid are the period-end YTD figures.
	CompanyDollarPaid commission.Cents
	RoyaltyPaid       commission.Cents

	PercentToCap decimal.Decimal
	IsCapped     bool

	// CurrentSplit is the agent percentage the next closing would get:
	// the post-cap split once capped, otherwise the resolved tier split.
	CurrentSplit decimal.Decimal

	Matches   int
	Underpaid int
	Overpaid  int
}

// SummaryStore persists summaries per run.
type SummaryStore interface {
	SaveSummaries(ctx context.Context, runID string, summaries []AgentSummary) error
	ListSummaries(ctx context.Context, runID string) ([]AgentSummary, error)
}

// =============================================================================
// BUILDING
// =============================================================================

// BuildSummaries folds an audit report into one summary per (agent,
// period), in the report's state order. The book resolves each period's
// plan; a period whose agent has no assignment anymore keeps zero plan
// fields rather than dropping the row.
func BuildSummaries(rep *audit.Report, book *commission.AssignmentBook) []AgentSummary {
	if rep == nil {
		return nil
	}

	summaries := make([]AgentSummary, 0, len(rep.States))
	index := make(map[string]int, len(rep.States))

	for _, state := range rep.States {
		s := AgentSummary{
			AgentName:         state.AgentName,
			PeriodKey:         state.Period.Key(),
			Period:            state.Period,
			CompanyDollarPaid: state.CompanyDollarPaid,
			RoyaltyPaid:       state.RoyaltyPaid,
			IsCapped:          state.IsCapped,
			PercentToCap:      decimal.Zero,
			CurrentSplit:      decimal.Zero,
		}

		if plan := planAt(book, state.AgentName, state.Period); plan != nil {
			s.PlanID = plan.ID
			s.PercentToCap = state.PercentToCap(plan)
			if state.IsCapped && plan.HasCap() {
				s.CurrentSplit = plan.PostCapSplit
			} else {
				s.CurrentSplit = state.CurrentTier(plan).SplitPercentage
			}
		}

		index[summaryKey(state.AgentName, s.PeriodKey)] = len(summaries)
		summaries = append(summaries, s)
	}

	for _, result := range rep.Results {
		period := result.Breakdown.YTDAfter.Period
		if period.Start.IsZero() {
			continue
		}
		i, ok := index[summaryKey(result.AgentName, period.Key())]
		if !ok {
			continue
		}
		s := &summaries[i]
		s.Transactions++
		s.TotalGCI += result.Breakdown.GrossCommission
		s.TotalAgentNet += result.Breakdown.AgentNet
		switch result.Status {
		case audit.StatusMatch:
			s.Matches++
		case audit.StatusUnderpaid:
			s.Underpaid++
		case audit.StatusOverpaid:
			s.Overpaid++
		}
	}

	return summaries
}

// planAt resolves the plan governing a period, preferring the assignment
// active at the period's end. Plans assigned mid-period and ended early
// still resolve through the period start.
func planAt(book *commission.AssignmentBook, agent commission.AgentName, period commission.Period) *commission.Plan {
	if book == nil {
		return nil
	}
	assignment, ok := book.ActiveAt(agent, period.End)
	if !ok {
		assignment, ok = book.ActiveAt(agent, period.Start)
	}
	if !ok {
		return nil
	}
	plan, ok := book.PlanFor(assignment)
	if !ok {
		return nil
	}
	return plan
}

func summaryKey(agent commission.AgentName, periodKey string) string {
	return string(agent) + "|" + periodKey
}
