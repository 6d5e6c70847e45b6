/*
plan.go - Commission plan model and tier resolution

PURPOSE:
  Defines how a commission is split between agent and brokerage: a base
  split, an optional sliding scale of tiers keyed by cumulative YTD company
  dollar, a company-dollar cap with a post-cap split, per-transaction
  deductions, and a franchise royalty with an optional per-period ceiling.

TIER RESOLUTION:
  ResolveTier(cumulativeYTD) returns the last tier whose threshold is <=
  the cumulative value; the threshold boundary is inclusive of the higher
  tier. A flat plan (no tiers) behaves as a single implicit tier at 0.
  The tier lookup applies to the whole transaction: a transaction whose
  contribution spans a tier boundary is NOT prorated across tiers. Only the
  cap boundary blends (see calculator.go).

VALIDATION:
  Plans are validated on load and invalid plans are rejected, never
  silently corrected:
  - tier thresholds strictly increasing, unique, non-negative
  - all percentages within [0,100]
  - each deduction names exactly one of fixed amount / percentage
  - known deduction basis and period mode

EXAMPLE:
  plan := commission.Plan{
      ID:              "plan-sliding",
      Name:            "Sliding Scale 60/65/70",
      SplitPercentage: decimal.NewFromInt(60),
      Tiers: []commission.Tier{
          {Threshold: 0, SplitPercentage: decimal.NewFromInt(60)},
          {Threshold: 5000000, SplitPercentage: decimal.NewFromInt(65)},
          {Threshold: 10000000, SplitPercentage: decimal.NewFromInt(70)},
      },
  }
  if err := plan.Validate(); err != nil { ... }

SEE ALSO:
  - calculator.go: Applies the resolved split, cap, deductions, royalty
  - period.go: Calendar vs anniversary cap periods
  - factory/plan.go: JSON configuration for plans
*/
package commission

import "github.com/shopspring/decimal"

// =============================================================================
// DEDUCTIONS
// =============================================================================

// DeductionBasis selects the amount a percentage deduction is computed from.
type DeductionBasis string

const (
	// BasisGrossCommission computes against the agent's split share.
	BasisGrossCommission DeductionBasis = "gross-commission"

	// BasisGCI computes against the full transaction commission.
	BasisGCI DeductionBasis = "gci"
)

// Deduction is a per-transaction charge against the agent's commission,
// either a fixed amount or a percentage of its basis. Deductions are applied
// independently of one another; they never compound.
type Deduction struct {
	Name       string
	Amount     Cents
	Percentage decimal.Decimal
	Basis      DeductionBasis
}

// IsFixed reports whether the deduction is a flat amount.
func (d Deduction) IsFixed() bool {
	return d.Amount != 0
}

// =============================================================================
// TIERS - Sliding scale of agent-favorable splits
// =============================================================================

// Tier associates a cumulative YTD company-dollar threshold with the agent
// split percentage that applies from that threshold on.
type Tier struct {
	Threshold       Cents
	SplitPercentage decimal.Decimal
}

// =============================================================================
// PLAN
// =============================================================================

// Plan is the static configuration describing how commissions are split.
// Plans are immutable once loaded; agents are linked to plans through
// Assignment records.
type Plan struct {
	ID   PlanID
	Name string

	// SplitPercentage is the agent's base share of GCI, used when Tiers is
	// empty and below the first tier threshold otherwise.
	SplitPercentage decimal.Decimal

	// Tiers is the sliding scale, ordered by strictly increasing Threshold.
	Tiers []Tier

	// CapAmount is the per-period ceiling on company dollar; 0 means no cap.
	CapAmount Cents

	// PostCapSplit is the agent's share once CapAmount has been met.
	PostCapSplit decimal.Decimal

	Deductions []Deduction

	// RoyaltyPercentage is the franchise royalty as a percent of GCI.
	RoyaltyPercentage decimal.Decimal

	// RoyaltyCap is the per-period ceiling on royalty paid; 0 means uncapped.
	RoyaltyCap Cents

	// PeriodMode controls when YTD accumulation resets.
	PeriodMode PeriodMode
}

// HasCap reports whether the plan caps company dollar.
func (p *Plan) HasCap() bool {
	return p.CapAmount > 0
}

// ResolveTier returns the tier governing a transaction given the cumulative
// YTD company dollar BEFORE the transaction. The boundary is inclusive: a
// cumulative value exactly at a threshold resolves to that tier. When the
// cumulative value is below the first tier threshold the base split applies.
func (p *Plan) ResolveTier(cumulative Cents) Tier {
	resolved := Tier{Threshold: 0, SplitPercentage: p.SplitPercentage}
	for _, t := range p.Tiers {
		if t.Threshold <= cumulative {
			resolved = t
		} else {
			break
		}
	}
	return resolved
}

// Validate checks the plan configuration. It returns a *PlanValidationError
// (unwrapping ErrInvalidPlan) describing the first violation found.
func (p *Plan) Validate() error {
	if p.ID == "" {
		return p.invalid("id", "plan id is required")
	}
	if !percentInRange(p.SplitPercentage) {
		return p.invalid("splitPercentage", "must be within [0,100]")
	}
	if !percentInRange(p.PostCapSplit) {
		return p.invalid("postCapSplit", "must be within [0,100]")
	}
	if !percentInRange(p.RoyaltyPercentage) {
		return p.invalid("royaltyPercentage", "must be within [0,100]")
	}
	if p.CapAmount < 0 {
		return p.invalid("capAmount", "must not be negative")
	}
	if p.RoyaltyCap < 0 {
		return p.invalid("royaltyCap", "must not be negative")
	}

	prev := Cents(-1)
	for i, t := range p.Tiers {
		if t.Threshold < 0 {
			return p.invalid("tiers", "threshold must not be negative")
		}
		if i > 0 && t.Threshold <= prev {
			return p.invalid("tiers", "thresholds must be strictly increasing")
		}
		if !percentInRange(t.SplitPercentage) {
			return p.invalid("tiers", "split percentage must be within [0,100]")
		}
		prev = t.Threshold
	}

	for _, d := range p.Deductions {
		if d.Name == "" {
			return p.invalid("deductions", "deduction name is required")
		}
		if d.Amount < 0 {
			return p.invalid("deductions", "fixed amount must not be negative")
		}
		hasAmount := d.Amount != 0
		hasPct := !d.Percentage.IsZero()
		if hasAmount == hasPct {
			return p.invalid("deductions", "exactly one of amount or percentage must be set")
		}
		if hasPct {
			if !percentInRange(d.Percentage) {
				return p.invalid("deductions", "percentage must be within [0,100]")
			}
			if d.Basis != BasisGrossCommission && d.Basis != BasisGCI {
				return p.invalid("deductions", "unknown basis: "+string(d.Basis))
			}
		}
	}

	switch p.PeriodMode {
	case "", PeriodCalendarYear, PeriodAnniversary:
	default:
		return p.invalid("periodMode", "unknown period mode: "+string(p.PeriodMode))
	}

	return nil
}

func (p *Plan) invalid(field, reason string) error {
	return &PlanValidationError{PlanID: p.ID, Field: field, Reason: reason}
}

func percentInRange(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(oneHundred)
}
