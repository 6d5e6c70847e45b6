/*
calculator.go - The commission computation

PURPOSE:
  Compute is the pure function at the heart of the engine: it maps a
  (transaction, plan, optional team, YTD-before) to a full commission
  breakdown and the YTD state after the transaction. It never mutates its
  inputs and has no side effects, which is what makes full recomputes
  idempotent and safely restartable.

ALGORITHM:
  1. Resolve the agent split from the tier scale using YTD-before; a team
     assignment overrides the tier split with the lead/member split.
  2. Split GCI between agent and brokerage. If the company-dollar
     contribution crosses the plan cap inside this transaction, the GCI
     slice that exactly fills the remaining cap room is split at the
     pre-cap percentage and the rest at PostCapSplit (blended).
  3. Apply each deduction independently from its basis (agent gross
     commission or GCI).
  4. Apply the franchise royalty as a percent of GCI, clamped so the
     period's royalty paid never exceeds RoyaltyCap.
  5. Net commission = gross - deductions - royalty.

ROUNDING:
  All intermediates are exact decimals. Each output line is rounded to the
  nearest cent exactly once. CompanyDollar is defined as GCI minus the
  rounded agent gross so that agent + company always reproduce GCI to the
  cent, and AgentNet is defined over the rounded lines so the printed
  breakdown always sums exactly.

EXAMPLE:
  out, err := commission.Compute(rec, plan, nil, ytd)
  if errors.Is(err, commission.ErrNoPlanAssigned) {
      // treat the reported value as authoritative
  }

SEE ALSO:
  - plan.go: Tier resolution and plan validation
  - tracker.go: Where YTDAfter is committed
*/
package commission

import "github.com/shopspring/decimal"

// =============================================================================
// BREAKDOWN - The computed result for one transaction
// =============================================================================

// DeductionLine is one applied deduction in a breakdown.
type DeductionLine struct {
	Name   string
	Basis  DeductionBasis
	Amount Cents
}

// Breakdown is the full commission computation for one transaction. The
// snapshot is embedded in audit results so reviewers can see exactly how an
// expected value was produced.
type Breakdown struct {
	RecordID  RecordID
	AgentName AgentName

	// GrossCommission is the transaction GCI the split was applied to.
	GrossCommission Cents

	// SplitPct is the agent percentage applied to the pre-cap portion; when
	// the whole transaction was post-cap it is the post-cap split.
	SplitPct decimal.Decimal

	// TeamApplied records that a team override replaced the tier split.
	TeamApplied bool

	// AgentGross is the agent's share of GCI before deductions and royalty.
	AgentGross Cents

	Deductions []DeductionLine

	// Royalty is the franchise fee charged on this transaction, after the
	// per-period cap clamp.
	Royalty Cents

	// AgentNet = AgentGross - deductions - royalty.
	AgentNet Cents

	// CompanyDollar is the brokerage's split share, the expected "actual".
	CompanyDollar Cents

	// CappedPortion is the GCI slice split at PostCapSplit; zero when the
	// cap was not touched.
	CappedPortion Cents

	YTDAfter YTDState
}

// TotalDeductions sums the deduction lines.
func (b Breakdown) TotalDeductions() Cents {
	var total Cents
	for _, d := range b.Deductions {
		total += d.Amount
	}
	return total
}

// =============================================================================
// COMPUTE
// =============================================================================

// Compute calculates the commission breakdown for one transaction. It is
// pure: ytdBefore is passed by value and returned advanced as YTDAfter.
// A nil plan yields a *NoPlanError unwrapping ErrNoPlanAssigned.
func Compute(rec TransactionRecord, plan *Plan, team *Team, ytdBefore YTDState) (Breakdown, error) {
	if plan == nil {
		return Breakdown{}, &NoPlanError{AgentName: rec.AgentName, RecordID: rec.ID}
	}

	gci := rec.GrossCommission
	gciD := gci.Decimal()

	split := plan.ResolveTier(ytdBefore.CompanyDollarPaid).SplitPercentage
	teamApplied := false
	if team != nil {
		split = team.SplitFor(rec.AgentName)
		teamApplied = true
	}

	agentGrossD, cappedPortionD, splitReported := splitGCI(gciD, split, plan, ytdBefore)

	agentGross := RoundCents(agentGrossD)
	// Company dollar is GCI minus the rounded agent share so the two always
	// recombine to GCI exactly.
	companyDollar := gci - agentGross

	lines := applyDeductions(plan.Deductions, agentGrossD, gciD)
	royalty := applyRoyalty(plan, gciD, ytdBefore.RoyaltyPaid)

	agentNet := agentGross - royalty
	for _, l := range lines {
		agentNet -= l.Amount
	}

	after := ytdBefore
	after.CompanyDollarPaid += companyDollar
	after.RoyaltyPaid += royalty
	after.LastAppliedTransactionID = rec.ID
	if plan.HasCap() && after.CompanyDollarPaid >= plan.CapAmount {
		after.IsCapped = true
	}

	return Breakdown{
		RecordID:        rec.ID,
		AgentName:       rec.AgentName,
		GrossCommission: gci,
		SplitPct:        splitReported,
		TeamApplied:     teamApplied,
		AgentGross:      agentGross,
		Deductions:      lines,
		Royalty:         royalty,
		AgentNet:        agentNet,
		CompanyDollar:   companyDollar,
		CappedPortion:   RoundCents(cappedPortionD),
		YTDAfter:        after,
	}, nil
}

// splitGCI returns the agent's exact gross share, the GCI slice charged at
// the post-cap split, and the split percentage to report.
func splitGCI(gciD, split decimal.Decimal, plan *Plan, ytdBefore YTDState) (agentGross, cappedPortion, reported decimal.Decimal) {
	if !plan.HasCap() {
		return share(gciD, split), decimal.Zero, split
	}

	if ytdBefore.CompanyDollarPaid >= plan.CapAmount {
		// Entire transaction is post-cap.
		return share(gciD, plan.PostCapSplit), gciD, plan.PostCapSplit
	}

	companyPct := oneHundred.Sub(split)
	contribution := gciD.Mul(companyPct).Div(oneHundred)
	room := (plan.CapAmount - ytdBefore.CompanyDollarPaid).Decimal()

	if contribution.LessThanOrEqual(room) || companyPct.IsZero() {
		// Cap not reached within this transaction.
		return share(gciD, split), decimal.Zero, split
	}

	// The contribution crosses the cap inside this transaction: the GCI
	// slice whose contribution exactly fills the room keeps the pre-cap
	// split, the remainder moves to PostCapSplit.
	gciPre := room.Mul(oneHundred).Div(companyPct)
	gciPost := gciD.Sub(gciPre)
	agentGross = share(gciPre, split).Add(share(gciPost, plan.PostCapSplit))
	return agentGross, gciPost, split
}

func share(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(oneHundred)
}

func applyDeductions(deductions []Deduction, agentGrossD, gciD decimal.Decimal) []DeductionLine {
	if len(deductions) == 0 {
		return nil
	}
	lines := make([]DeductionLine, 0, len(deductions))
	for _, d := range deductions {
		line := DeductionLine{Name: d.Name, Basis: d.Basis}
		if d.IsFixed() {
			line.Amount = d.Amount
		} else {
			base := agentGrossD
			if d.Basis == BasisGCI {
				base = gciD
			}
			line.Amount = RoundCents(share(base, d.Percentage))
		}
		lines = append(lines, line)
	}
	return lines
}

func applyRoyalty(plan *Plan, gciD decimal.Decimal, royaltyPaid Cents) Cents {
	if plan.RoyaltyPercentage.IsZero() {
		return 0
	}
	royD := share(gciD, plan.RoyaltyPercentage)
	if plan.RoyaltyCap > 0 {
		room := plan.RoyaltyCap - royaltyPaid
		if room < 0 {
			room = 0
		}
		if royD.GreaterThan(room.Decimal()) {
			royD = room.Decimal()
		}
	}
	return RoundCents(royD)
}
