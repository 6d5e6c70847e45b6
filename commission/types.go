/*
Package commission provides the core commission calculation engine.

PURPOSE:
  This package contains the domain types and algorithms for computing
  real-estate sales commissions under configurable plans: tiered splits,
  company-dollar caps, deductions, franchise royalties, and per-period
  year-to-date accumulation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Cents: Monetary amounts in integer minor units
  - TransactionRecord: A normalized closed-transaction input row
  - Plan/Team/Record IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Integer money: Stored and exchanged values are always whole cents
  2. Exact intermediates: Calculation happens in decimal.Decimal and is
     rounded to the nearest cent exactly once, at the final output
  3. Type Safety: Strong typing for IDs prevents mixing plan/team/record IDs
  4. Strict inputs: Upstream normalization produces one schema; this package
     never inspects alternative field spellings

USAGE:
  gci := commission.Cents(1500000) // $15,000.00
  rec := commission.TransactionRecord{
      ID:              "rec-001",
      AgentName:       "Jane Smith",
      GrossCommission: gci,
  }

SEE ALSO:
  - plan.go: Commission plan definitions and tier resolution
  - calculator.go: The compute function producing breakdowns
  - tracker.go: Per-agent per-period YTD state
*/
package commission

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CENTS - Monetary amounts in integer minor units
// =============================================================================

// Cents is a monetary amount in whole US cents. All stored and exchanged
// values use this representation; fractional intermediate math lives in
// decimal.Decimal and is rounded back exactly once.
type Cents int64

// Decimal returns the amount as an exact decimal number of cents.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), 0)
}

// Dollars returns the amount as a decimal number of dollars.
func (c Cents) Dollars() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String formats the amount as dollars, e.g. "$4500.00". Negative amounts
// render as "-$4500.00".
func (c Cents) String() string {
	d := c.Dollars()
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// Abs returns the absolute value.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// RoundCents rounds an exact cent-scaled decimal to whole cents, half away
// from zero. This is the single rounding point for all computed outputs.
func RoundCents(d decimal.Decimal) Cents {
	return Cents(d.Round(0).IntPart())
}

// DollarsToCents converts a decimal dollar amount to whole cents.
func DollarsToCents(d decimal.Decimal) Cents {
	return RoundCents(d.Mul(decimal.NewFromInt(100)))
}

// PercentOf returns pct% of the amount as an exact (unrounded) decimal in
// cent scale.
func PercentOf(c Cents, pct decimal.Decimal) decimal.Decimal {
	return c.Decimal().Mul(pct).Div(oneHundred)
}

var oneHundred = decimal.NewFromInt(100)

// MustParsePercent parses a percentage string, returning zero on failure.
// Convenience for configuration defaults and tests.
func MustParsePercent(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type TeamID string
type RecordID string

// AgentName identifies an agent. Transaction feeds key agents by display
// name; upstream normalization is responsible for spelling consistency.
type AgentName string

// =============================================================================
// TRANSACTION RECORD - Normalized closed-transaction input
// =============================================================================

// TransactionRecord is one closed transaction as produced by the upstream
// parsing/normalization collaborator. The engine treats it as immutable:
// adjustments are overlays, never edits.
type TransactionRecord struct {
	ID        RecordID
	AgentName AgentName

	// CoAgents lists additional agents on the deal (co-listing, double-ended
	// sides). Informational only; YTD accrues to AgentName.
	CoAgents []AgentName

	SalePrice Cents

	// CommissionRate is the reported rate in percent (e.g. 3 or 2.5).
	CommissionRate decimal.Decimal

	// GrossCommission is the GCI for the transaction. Upstream derives it
	// from SalePrice x CommissionRate when the feed omits it.
	GrossCommission Cents

	// ClosingDate is zero when the feed had no usable date. Such records are
	// excluded from YTD sequencing and flagged, never dropped.
	ClosingDate time.Time

	// ReportedCompanyDollar is the externally reported amount the brokerage
	// retained ("actual"), audited against the computed expectation.
	ReportedCompanyDollar Cents
}

// HasClosingDate reports whether the record can be placed in an agent's
// chronological sequence.
func (r TransactionRecord) HasClosingDate() bool {
	return !r.ClosingDate.IsZero()
}

// NaiveCommission is the plan-unaware recomputation of the commission from
// the reported rate, used by the coarse variance check.
func (r TransactionRecord) NaiveCommission() Cents {
	return RoundCents(PercentOf(r.SalePrice, r.CommissionRate))
}

// SortRecords orders records in place by closing date ascending with record
// ID as the stable tie-breaker. Records without a closing date sort last so
// sequenced processing can stop at the first unsequenceable record.
// This ordering is load-bearing: tier and cap resolution depend on it.
func SortRecords(records []TransactionRecord) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case !a.HasClosingDate() && !b.HasClosingDate():
			return a.ID < b.ID
		case !a.HasClosingDate():
			return false
		case !b.HasClosingDate():
			return true
		case a.ClosingDate.Equal(b.ClosingDate):
			return a.ID < b.ID
		default:
			return a.ClosingDate.Before(b.ClosingDate)
		}
	})
}
