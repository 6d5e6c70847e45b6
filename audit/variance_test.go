package audit_test

import (
	"testing"

	"github.com/brokerops/commission-engine/audit"
	"github.com/brokerops/commission-engine/commission"
)

// =============================================================================
// VARIANCE BUCKET TESTS
// =============================================================================

func varianceRec(salePrice, reported commission.Cents, rate string) commission.TransactionRecord {
	return commission.TransactionRecord{
		ID:              "rec-var",
		AgentName:       "Jane Smith",
		SalePrice:       salePrice,
		CommissionRate:  pct(rate),
		GrossCommission: reported,
	}
}

func TestCheckVariance_ExactWhenCentEqual(t *testing.T) {
	// GIVEN: Reported commission equals the naive recomputation exactly
	//        ($200,000 at 2% = $4,000)
	// WHEN: Checking
	// THEN: Category exact with no deviation

	item := audit.CheckVariance(varianceRec(dollars(200000), dollars(4000), "2"))

	if item.Category != audit.VarianceExact {
		t.Errorf("expected exact, got %s", item.Category)
	}
	if !item.DeviationPct.IsZero() {
		t.Errorf("expected zero deviation, got %s", item.DeviationPct)
	}
	if item.NoBaseline {
		t.Error("a real baseline must not be flagged NoBaseline")
	}
}

func TestCheckVariance_MajorAtSevenPointFivePercent(t *testing.T) {
	// GIVEN: Reported $4,300 against a naive $4,000 baseline
	// WHEN: Checking
	// THEN: 7.5% deviation, category major

	item := audit.CheckVariance(varianceRec(dollars(200000), dollars(4300), "2"))

	if !item.DeviationPct.Equal(pct("7.5")) {
		t.Errorf("expected 7.5%% deviation, got %s", item.DeviationPct)
	}
	if item.Category != audit.VarianceMajor {
		t.Errorf("expected major, got %s", item.Category)
	}
}

func TestCheckVariance_MinorBelowFivePercent(t *testing.T) {
	// GIVEN: Reported $4,100 against a naive $4,000 baseline (2.5%)
	// WHEN: Checking
	// THEN: Category minor

	item := audit.CheckVariance(varianceRec(dollars(200000), dollars(4100), "2"))

	if !item.DeviationPct.Equal(pct("2.5")) {
		t.Errorf("expected 2.5%% deviation, got %s", item.DeviationPct)
	}
	if item.Category != audit.VarianceMinor {
		t.Errorf("expected minor, got %s", item.Category)
	}
}

func TestCheckVariance_FivePercentBoundaryIsMajor(t *testing.T) {
	// GIVEN: Reported $4,200 against a naive $4,000 baseline (exactly 5%)
	// WHEN: Checking
	// THEN: Category major; the boundary belongs to major

	item := audit.CheckVariance(varianceRec(dollars(200000), dollars(4200), "2"))
	if item.Category != audit.VarianceMajor {
		t.Errorf("expected major at the 5%% boundary, got %s", item.Category)
	}
}

func TestCheckVariance_ZeroBaseline_NoBaselineMarker(t *testing.T) {
	// GIVEN: A zero naive baseline (no sale price on record) with a nonzero
	//        reported commission
	// WHEN: Checking
	// THEN: NoBaseline set, bucketed major, no infinite percentage

	item := audit.CheckVariance(varianceRec(0, dollars(4000), "2"))

	if !item.NoBaseline {
		t.Error("expected the NoBaseline marker")
	}
	if item.Category != audit.VarianceMajor {
		t.Errorf("expected major, got %s", item.Category)
	}
	if !item.DeviationPct.IsZero() {
		t.Errorf("expected no percentage against a zero baseline, got %s", item.DeviationPct)
	}
}

func TestCheckVariance_BothZero_Exact(t *testing.T) {
	// GIVEN: Zero reported and zero naive commission
	// WHEN: Checking
	// THEN: Exact; nothing deviates from nothing

	item := audit.CheckVariance(varianceRec(0, 0, "2"))
	if item.Category != audit.VarianceExact {
		t.Errorf("expected exact, got %s", item.Category)
	}
	if item.NoBaseline {
		t.Error("equal zeros are not a missing baseline")
	}
}
