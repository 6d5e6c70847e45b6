/*
Package audit replays transactions against commission plans and classifies
discrepancies between computed and reported company dollar.

PURPOSE:
  The audit engine is the consumer of the commission calculator: it replays
  every transaction per agent in closing-date order, building YTD state as
  it goes, and compares the plan-expected company dollar against the value
  the brokerage actually reported. A separate coarse variance check compares
  reported commission against a naive rate recomputation, independent of any
  plan.

ORDERING:
  Within an agent, transactions are processed strictly in ascending closing
  date (record id breaking ties). This ordering is load-bearing: tier and
  cap resolution for a transaction depend on the YTD state left by every
  earlier transaction. Across agents there is no shared state, so agents
  fan out across a bounded worker pool.

CLASSIFICATION:
  difference = actual - expected
  match      |difference| <= tolerance (lesser of $1 and 0.5% of expected)
  underpaid  actual > expected beyond tolerance (the brokerage retained
             more than the plan dictates, the agent was shorted)
  overpaid   actual < expected beyond tolerance

RECOVERABLE CONDITIONS:
  A record without a closing date cannot be sequenced: it is audited with
  the reported value as authoritative and flagged with a note, never
  dropped. The same fallback applies when no plan is assigned for the
  agent at the closing date. Neither condition fails the batch.

DETERMINISM:
  Run is a pure function of its input. Results are assembled in sorted
  agent order regardless of goroutine completion order, so a parallel run
  is byte-for-byte identical to a serial one.

USAGE:
  engine := &audit.Engine{Workers: 4}
  report, err := engine.Run(ctx, audit.Input{Records: records, Book: book})

SEE ALSO:
  - commission/calculator.go: The per-transaction computation
  - variance.go: The plan-unaware sanity check
  - runner.go: Batch execution bookkeeping
*/
package audit

import (
	"context"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/brokerops/commission-engine/commission"
)

// =============================================================================
// RESULT TYPES
// =============================================================================

// Status classifies one audited record.
type Status string

const (
	StatusMatch     Status = "match"
	StatusUnderpaid Status = "underpaid"
	StatusOverpaid  Status = "overpaid"
)

// Result is the audit outcome for one transaction.
type Result struct {
	RecordID  commission.RecordID
	AgentName commission.AgentName

	// ActualCompanyDollar is the externally reported value.
	ActualCompanyDollar commission.Cents

	// ExpectedCompanyDollar is the plan-computed value. When the record
	// could not be computed (no date, no plan) it equals the actual value
	// and a note records why.
	ExpectedCompanyDollar commission.Cents

	// Difference = actual - expected.
	Difference commission.Cents

	Status Status

	// Breakdown is the full calculator snapshot behind the expected value.
	// Zero-valued for records audited on the reported value alone.
	Breakdown commission.Breakdown

	Notes []string
}

// Totals aggregates one run for reporting and run records.
type Totals struct {
	Records     int
	Matches     int
	Underpaid   int
	Overpaid    int
	Exact       int
	Minor       int
	Major       int
	Unsequenced int
	NoPlan      int
}

// Report is the full output of one audit run.
type Report struct {
	Results   []Result
	Variances []VarianceItem
	States    []commission.YTDState
	Totals    Totals
}

// Input is everything one run needs: the normalized records and the
// resolved plan/assignment/team book.
type Input struct {
	Records []commission.TransactionRecord
	Book    *commission.AssignmentBook
}

// =============================================================================
// ENGINE
// =============================================================================

// DefaultWorkers bounds the agent fan-out when Engine.Workers is unset.
const DefaultWorkers = 4

// Engine audits batches of transactions. The zero value is usable.
type Engine struct {
	// Workers bounds how many agents are audited concurrently.
	Workers int

	// Tolerance overrides the default match tolerance when set.
	Tolerance func(expected commission.Cents) commission.Cents
}

// Run audits the batch. Agents fan out across the worker pool; each agent's
// records replay sequentially against a private tracker. The input is never
// mutated.
func (e *Engine) Run(ctx context.Context, input Input) (*Report, error) {
	byAgent := groupByAgent(input.Records)
	agents := make([]commission.AgentName, 0, len(byAgent))
	for agent := range byAgent {
		agents = append(agents, agent)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i] < agents[j] })

	workers := e.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	log.Printf("[Audit] auditing %d records across %d agents (workers=%d)",
		len(input.Records), len(agents), workers)

	partials := make([]agentPartial, len(agents))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, agent := range agents {
		i, agent := i, agent
		g.Go(func() error {
			partial, err := e.auditAgent(ctx, byAgent[agent], input.Book)
			if err != nil {
				return fmt.Errorf("agent %q: %w", agent, err)
			}
			partials[i] = partial
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assemble(partials), nil
}

// agentPartial is one agent's share of the run, merged after the fan-in.
type agentPartial struct {
	results     []Result
	variances   []VarianceItem
	states      []commission.YTDState
	unsequenced int
	noPlan      int
}

func groupByAgent(records []commission.TransactionRecord) map[commission.AgentName][]commission.TransactionRecord {
	byAgent := make(map[commission.AgentName][]commission.TransactionRecord)
	for _, rec := range records {
		byAgent[rec.AgentName] = append(byAgent[rec.AgentName], rec)
	}
	return byAgent
}

// auditAgent replays one agent's records in order against a private tracker.
func (e *Engine) auditAgent(ctx context.Context, records []commission.TransactionRecord, book *commission.AssignmentBook) (agentPartial, error) {
	commission.SortRecords(records)
	tracker := commission.NewTracker()
	var partial agentPartial

	for _, rec := range records {
		select {
		case <-ctx.Done():
			return agentPartial{}, ctx.Err()
		default:
		}

		partial.variances = append(partial.variances, CheckVariance(rec))

		if !rec.HasClosingDate() {
			partial.unsequenced++
			partial.results = append(partial.results, e.reportedAsAuthoritative(rec,
				"missing closing date; excluded from year-to-date sequencing"))
			continue
		}

		result, computed, err := e.auditSequenced(rec, book, tracker)
		if err != nil {
			return agentPartial{}, err
		}
		if !computed {
			partial.noPlan++
		}
		partial.results = append(partial.results, result)
	}

	partial.states = tracker.States()
	return partial, nil
}

// auditSequenced audits one dated record. computed is false when the engine
// had to fall back to the reported value.
func (e *Engine) auditSequenced(rec commission.TransactionRecord, book *commission.AssignmentBook, tracker *commission.Tracker) (Result, bool, error) {
	assignment, ok := book.ActiveAt(rec.AgentName, rec.ClosingDate)
	if !ok {
		return e.reportedAsAuthoritative(rec,
			"no commission plan assigned; reported company dollar treated as authoritative"), false, nil
	}
	plan, ok := book.PlanFor(assignment)
	if !ok {
		return e.reportedAsAuthoritative(rec,
			fmt.Sprintf("plan %s not found; reported company dollar treated as authoritative", assignment.PlanID)), false, nil
	}
	team, _ := book.TeamFor(assignment)

	period := commission.PeriodFor(plan.PeriodMode, assignment.EffectiveStart, rec.ClosingDate)
	before := tracker.StateFor(rec.AgentName, period)

	breakdown, err := commission.Compute(rec, plan, team, before)
	if err != nil {
		if commission.IsRecoverable(err) {
			return e.reportedAsAuthoritative(rec, err.Error()), false, nil
		}
		return Result{}, false, err
	}
	if err := tracker.Commit(breakdown.YTDAfter); err != nil {
		return Result{}, false, err
	}

	result := Result{
		RecordID:              rec.ID,
		AgentName:             rec.AgentName,
		ActualCompanyDollar:   rec.ReportedCompanyDollar,
		ExpectedCompanyDollar: breakdown.CompanyDollar,
		Difference:            rec.ReportedCompanyDollar - breakdown.CompanyDollar,
		Breakdown:             breakdown,
	}
	result.Status = e.classify(result.Difference, breakdown.CompanyDollar)
	if breakdown.YTDAfter.IsCapped && !before.IsCapped {
		result.Notes = append(result.Notes, "company dollar cap reached this period")
	}
	return result, true, nil
}

// reportedAsAuthoritative builds the fallback result: expected := actual,
// a guaranteed match, with the reason on the notes.
func (e *Engine) reportedAsAuthoritative(rec commission.TransactionRecord, note string) Result {
	return Result{
		RecordID:              rec.ID,
		AgentName:             rec.AgentName,
		ActualCompanyDollar:   rec.ReportedCompanyDollar,
		ExpectedCompanyDollar: rec.ReportedCompanyDollar,
		Difference:            0,
		Status:                StatusMatch,
		Notes:                 []string{note},
	}
}

func assemble(partials []agentPartial) *Report {
	report := &Report{}
	for _, p := range partials {
		report.Results = append(report.Results, p.results...)
		report.Variances = append(report.Variances, p.variances...)
		report.States = append(report.States, p.states...)
		report.Totals.Unsequenced += p.unsequenced
		report.Totals.NoPlan += p.noPlan
	}

	report.Totals.Records = len(report.Results)
	for _, r := range report.Results {
		switch r.Status {
		case StatusMatch:
			report.Totals.Matches++
		case StatusUnderpaid:
			report.Totals.Underpaid++
		case StatusOverpaid:
			report.Totals.Overpaid++
		}
	}
	for _, v := range report.Variances {
		switch v.Category {
		case VarianceExact:
			report.Totals.Exact++
		case VarianceMinor:
			report.Totals.Minor++
		case VarianceMajor:
			report.Totals.Major++
		}
	}
	return report
}

// =============================================================================
// TOLERANCE
// =============================================================================

var halfPercent = commission.MustParsePercent("0.5")

// DefaultTolerance is the lesser of $1.00 and 0.5% of the expected value.
func DefaultTolerance(expected commission.Cents) commission.Cents {
	pctTolerance := commission.RoundCents(commission.PercentOf(expected.Abs(), halfPercent))
	if pctTolerance < 100 {
		return pctTolerance
	}
	return 100
}

func (e *Engine) classify(difference, expected commission.Cents) Status {
	tolerance := DefaultTolerance(expected)
	if e.Tolerance != nil {
		tolerance = e.Tolerance(expected)
	}
	switch {
	case difference.Abs() <= tolerance:
		return StatusMatch
	case difference > 0:
		return StatusUnderpaid
	default:
		return StatusOverpaid
	}
}
