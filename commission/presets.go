/*
presets.go - Pre-built commission plan configurations

PURPOSE:
  Provides ready-to-use plan configurations for common brokerage
  compensation models. These are convenience functions that set up splits,
  tiers, caps, deductions, and royalties according to typical industry
  patterns.

AVAILABLE PLANS:
  StandardSplitPlan:  Flat agent/brokerage split (e.g. 70/30)
  SlidingScalePlan:   Tiered splits that improve with YTD production
  CappedSplitPlan:    Company-dollar cap with a high post-cap split
  FranchisePlan:      Split plus franchise royalty and standard fees

CUSTOMIZATION:
  These are starting points. Real brokerages often need:
  - Different tier ladders per market
  - Anniversary-year caps aligned to hire dates
  - Office-specific transaction fees
  - Royalty ceilings negotiated per franchise agreement

EXAMPLE:
  plan := commission.CappedSplitPlan("plan-cap-2025", "Capped 70/30", 70, 30000000, 95)
  plan.PeriodMode = commission.PeriodAnniversary
  if err := plan.Validate(); err != nil { ... }

SEE ALSO:
  - plan.go: Plan type definition and validation
  - factory/plan.go: JSON-based plan creation
*/
package commission

import "github.com/shopspring/decimal"

// =============================================================================
// COMMON COMMISSION PLANS
// =============================================================================

// StandardSplitPlan returns a flat split plan, e.g. 70 for a 70/30 split.
func StandardSplitPlan(id PlanID, name string, agentSplit int64) Plan {
	return Plan{
		ID:              id,
		Name:            name,
		SplitPercentage: decimal.NewFromInt(agentSplit),
		PeriodMode:      PeriodCalendarYear,
	}
}

// SlidingScalePlan returns a tiered plan whose split improves as the agent's
// YTD company dollar crosses each threshold. Thresholds are cents.
func SlidingScalePlan(id PlanID, name string, tiers []Tier) Plan {
	base := decimal.Zero
	if len(tiers) > 0 {
		base = tiers[0].SplitPercentage
	}
	return Plan{
		ID:              id,
		Name:            name,
		SplitPercentage: base,
		Tiers:           tiers,
		PeriodMode:      PeriodCalendarYear,
	}
}

// CappedSplitPlan returns a flat split with a company-dollar cap. Once the
// agent has paid capCents of company dollar in the period, the split moves
// to postCapSplit (typically 90-100).
func CappedSplitPlan(id PlanID, name string, agentSplit int64, capCents Cents, postCapSplit int64) Plan {
	return Plan{
		ID:              id,
		Name:            name,
		SplitPercentage: decimal.NewFromInt(agentSplit),
		CapAmount:       capCents,
		PostCapSplit:    decimal.NewFromInt(postCapSplit),
		PeriodMode:      PeriodAnniversary,
	}
}

// FranchisePlan returns a split plan carrying a franchise royalty with a
// per-period ceiling and the usual per-transaction fees.
func FranchisePlan(id PlanID, name string, agentSplit int64, royaltyPct string, royaltyCapCents Cents) Plan {
	return Plan{
		ID:                id,
		Name:              name,
		SplitPercentage:   decimal.NewFromInt(agentSplit),
		RoyaltyPercentage: MustParsePercent(royaltyPct),
		RoyaltyCap:        royaltyCapCents,
		Deductions: []Deduction{
			{Name: "Transaction Fee", Amount: 29500},
			{Name: "E&O Insurance", Percentage: MustParsePercent("1"), Basis: BasisGCI},
		},
		PeriodMode: PeriodCalendarYear,
	}
}
