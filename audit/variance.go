/*
variance.go - Plan-unaware commission sanity check

PURPOSE:
  The variance check is a coarse second opinion, deliberately independent
  of the plan-based audit: it recomputes each transaction's commission
  naively from the reported sale price and rate, and buckets the deviation
  of the reported commission from that baseline. A feed whose rows mostly
  land in "exact" is internally consistent even before any plan logic runs.

BUCKETS:
  exact   reported equals the naive recomputation to the cent
  minor   deviation below 5%
  major   deviation at or above 5%

ZERO BASELINE:
  A zero naive baseline with a nonzero reported value has no meaningful
  percentage. The item is marked NoBaseline and bucketed major; the engine
  never emits NaN or infinity.

SEE ALSO:
  - engine.go: The plan-based audit both checks feed into one report
*/
package audit

import (
	"github.com/shopspring/decimal"

	"github.com/brokerops/commission-engine/commission"
)

// =============================================================================
// VARIANCE TYPES
// =============================================================================

// VarianceCategory buckets a deviation.
type VarianceCategory string

const (
	VarianceExact VarianceCategory = "exact"
	VarianceMinor VarianceCategory = "minor"
	VarianceMajor VarianceCategory = "major"
)

// majorThreshold is the deviation percentage at which a variance is major.
var majorThreshold = decimal.NewFromInt(5)

var oneHundred = decimal.NewFromInt(100)

// VarianceItem is one record's coarse check outcome.
type VarianceItem struct {
	RecordID  commission.RecordID
	AgentName commission.AgentName

	// ReportedCommission is the GCI the feed reported.
	ReportedCommission commission.Cents

	// NaiveCommission is salePrice x reported rate, not plan-aware.
	NaiveCommission commission.Cents

	// DeviationPct is |reported - naive| / naive as a percentage. Zero when
	// NoBaseline is set.
	DeviationPct decimal.Decimal

	// NoBaseline marks a zero naive baseline with a nonzero reported value.
	NoBaseline bool

	Category VarianceCategory
}

// =============================================================================
// CHECK
// =============================================================================

// CheckVariance runs the coarse check for one record.
func CheckVariance(rec commission.TransactionRecord) VarianceItem {
	item := VarianceItem{
		RecordID:           rec.ID,
		AgentName:          rec.AgentName,
		ReportedCommission: rec.GrossCommission,
		NaiveCommission:    rec.NaiveCommission(),
	}

	if item.ReportedCommission == item.NaiveCommission {
		item.Category = VarianceExact
		return item
	}

	if item.NaiveCommission == 0 {
		item.NoBaseline = true
		item.Category = VarianceMajor
		return item
	}

	deviation := (item.ReportedCommission - item.NaiveCommission).Abs()
	item.DeviationPct = deviation.Decimal().
		Div(item.NaiveCommission.Abs().Decimal()).
		Mul(oneHundred)

	if item.DeviationPct.GreaterThanOrEqual(majorThreshold) {
		item.Category = VarianceMajor
	} else {
		item.Category = VarianceMinor
	}
	return item
}
