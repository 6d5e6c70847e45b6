/*
tracker.go - Per-agent, per-period YTD accumulation

PURPOSE:
  Tracks the cumulative company dollar an agent has paid the brokerage
  within a cap period, plus the royalty paid against the per-period royalty
  ceiling. Tier and cap resolution for every transaction depend on this
  state, which is why processing order within an agent is strict.

INVARIANTS:
  - YTD company dollar is monotonically non-decreasing within a period;
    the only way down is an explicit full recompute
  - Once CompanyDollarPaid >= the plan cap, IsCapped stays set for the
    remainder of the period
  - State is mutated only through Commit with a calculator result, never
    directly by callers

PERIOD RESET:
  States are keyed by (agent, period). Crossing a period boundary simply
  resolves to a fresh zero-valued state under the new key; nothing is
  zeroed in place.

CONCURRENCY:
  A Tracker is single-writer. The audit engine creates one Tracker per
  agent inside that agent's goroutine; agents never share a Tracker.

SEE ALSO:
  - calculator.go: Produces the YTDAfter committed here
  - period.go: Period resolution
*/
package commission

import "github.com/shopspring/decimal"

// =============================================================================
// YTD STATE
// =============================================================================

// YTDState is the cumulative position of one agent within one cap period.
type YTDState struct {
	AgentName AgentName
	Period    Period

	// CompanyDollarPaid is the cumulative company dollar retained by the
	// brokerage this period.
	CompanyDollarPaid Cents

	// RoyaltyPaid is the cumulative franchise royalty this period, bounded
	// by the plan's RoyaltyCap when configured.
	RoyaltyPaid Cents

	// IsCapped is set once CompanyDollarPaid reaches the plan cap.
	IsCapped bool

	// LastAppliedTransactionID is the most recent record folded into this
	// state, useful for audit trails and resume checks.
	LastAppliedTransactionID RecordID
}

// PercentToCap returns progress toward the plan cap as a percentage clamped
// to [0,100] for display. Plans without a cap report zero.
func (s YTDState) PercentToCap(plan *Plan) decimal.Decimal {
	if plan == nil || !plan.HasCap() {
		return decimal.Zero
	}
	pct := s.CompanyDollarPaid.Decimal().Div(plan.CapAmount.Decimal()).Mul(oneHundred)
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(oneHundred) {
		return oneHundred
	}
	return pct
}

// CurrentTier returns the tier that would govern the agent's next
// transaction under the plan.
func (s YTDState) CurrentTier(plan *Plan) Tier {
	return plan.ResolveTier(s.CompanyDollarPaid)
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker holds YTD states keyed by (agent, period). Not safe for
// concurrent use; each agent timeline owns its own Tracker.
type Tracker struct {
	states map[string]YTDState
	order  []string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]YTDState)}
}

func stateKey(agent AgentName, period Period) string {
	return string(agent) + "|" + period.Key()
}

// StateFor returns the current state for the agent and period, zero-valued
// on first touch.
func (t *Tracker) StateFor(agent AgentName, period Period) YTDState {
	key := stateKey(agent, period)
	if s, ok := t.states[key]; ok {
		return s
	}
	return YTDState{AgentName: agent, Period: period}
}

// Commit stores a state produced by the calculator. It rejects regressions:
// committed company dollar must never decrease within a period.
func (t *Tracker) Commit(s YTDState) error {
	key := stateKey(s.AgentName, s.Period)
	if prev, ok := t.states[key]; ok && s.CompanyDollarPaid < prev.CompanyDollarPaid {
		return &YTDRegressionError{
			AgentName: s.AgentName,
			Period:    s.Period,
			Previous:  prev.CompanyDollarPaid,
			Committed: s.CompanyDollarPaid,
		}
	}
	if _, ok := t.states[key]; !ok {
		t.order = append(t.order, key)
	}
	t.states[key] = s
	return nil
}

// States returns all tracked states in first-touch order.
func (t *Tracker) States() []YTDState {
	out := make([]YTDState, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.states[key])
	}
	return out
}
