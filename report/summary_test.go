package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brokerops/commission-engine/audit"
	"github.com/brokerops/commission-engine/commission"
	"github.com/brokerops/commission-engine/report"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func pct(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dollars(n int64) commission.Cents {
	return commission.Cents(n * 100)
}

func testBook(t *testing.T, plans []commission.Plan, assignments []commission.Assignment) *commission.AssignmentBook {
	t.Helper()
	book, err := commission.NewAssignmentBook(plans, assignments, nil)
	if err != nil {
		t.Fatalf("failed to build book: %v", err)
	}
	return book
}

func rec(id string, agent commission.AgentName, gci, reported commission.Cents, closing time.Time) commission.TransactionRecord {
	return commission.TransactionRecord{
		ID:                    commission.RecordID(id),
		AgentName:             agent,
		GrossCommission:       gci,
		ReportedCompanyDollar: reported,
		ClosingDate:           closing,
	}
}

func runReport(t *testing.T, records []commission.TransactionRecord, book *commission.AssignmentBook) *audit.Report {
	t.Helper()
	engine := &audit.Engine{Workers: 1}
	rep, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("engine run failed: %v", err)
	}
	return rep
}

func findSummary(t *testing.T, summaries []report.AgentSummary, agent commission.AgentName, periodKey string) report.AgentSummary {
	t.Helper()
	for _, s := range summaries {
		if s.AgentName == agent && s.PeriodKey == periodKey {
			return s
		}
	}
	t.Fatalf("no summary for %s / %s", agent, periodKey)
	return report.AgentSummary{}
}

// =============================================================================
// SUMMARY BUILDING
// =============================================================================

func TestBuildSummaries_RollsUpOneAgentPeriod(t *testing.T) {
	// GIVEN: An 80/20 agent with a match and an underpayment in 2025
	book := testBook(t,
		[]commission.Plan{{ID: "plan-flat", Name: "Flat", SplitPercentage: pct("80")}},
		[]commission.Assignment{{
			AgentName:      "Jane Smith",
			PlanID:         "plan-flat",
			EffectiveStart: commission.Date(2024, time.January, 1),
		}},
	)
	records := []commission.TransactionRecord{
		rec("rec-1", "Jane Smith", dollars(10000), dollars(2000), commission.Date(2025, time.March, 1)),
		rec("rec-2", "Jane Smith", dollars(5000), dollars(1100), commission.Date(2025, time.April, 1)),
	}

	// WHEN: The report is folded into summaries
	rep := runReport(t, records, book)
	summaries := report.BuildSummaries(rep, book)

	// THEN: One row carries the full period rollup
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.AgentName != "Jane Smith" || s.PeriodKey != "2025-01-01" {
		t.Errorf("unexpected summary identity: %s / %s", s.AgentName, s.PeriodKey)
	}
	if s.PlanID != "plan-flat" {
		t.Errorf("expected plan-flat, got %s", s.PlanID)
	}
	if s.Transactions != 2 {
		t.Errorf("expected 2 transactions, got %d", s.Transactions)
	}
	if s.TotalGCI != dollars(15000) {
		t.Errorf("expected total GCI $15000, got %s", s.TotalGCI)
	}
	if s.TotalAgentNet != dollars(12000) {
		t.Errorf("expected agent net $12000, got %s", s.TotalAgentNet)
	}
	if s.CompanyDollarPaid != dollars(3000) {
		t.Errorf("expected company dollar $3000, got %s", s.CompanyDollarPaid)
	}
	if s.Matches != 1 || s.Underpaid != 1 || s.Overpaid != 0 {
		t.Errorf("unexpected status counts: %d/%d/%d", s.Matches, s.Underpaid, s.Overpaid)
	}
	if !s.CurrentSplit.Equal(pct("80")) {
		t.Errorf("expected current split 80, got %s", s.CurrentSplit)
	}
	if !s.PercentToCap.IsZero() {
		t.Errorf("uncapped plan must report zero percent-to-cap, got %s", s.PercentToCap)
	}
	if s.IsCapped {
		t.Error("agent must not be capped")
	}
}

func TestBuildSummaries_CappedAgentUsesPostCapSplit(t *testing.T) {
	// GIVEN: A 60/40 plan with a $5,000 cap and 95% post-cap split
	plan := commission.Plan{
		ID:              "plan-cap",
		Name:            "Capped",
		SplitPercentage: pct("60"),
		CapAmount:       dollars(5000),
		PostCapSplit:    pct("95"),
	}
	book := testBook(t,
		[]commission.Plan{plan},
		[]commission.Assignment{{
			AgentName:      "Bob Jones",
			PlanID:         "plan-cap",
			EffectiveStart: commission.Date(2024, time.January, 1),
		}},
	)
	records := []commission.TransactionRecord{
		rec("rec-1", "Bob Jones", dollars(10000), dollars(4000), commission.Date(2025, time.February, 1)),
		rec("rec-2", "Bob Jones", dollars(5000), dollars(1125), commission.Date(2025, time.March, 1)),
	}

	// WHEN: Summaries are built after the cap is crossed
	rep := runReport(t, records, book)
	summaries := report.BuildSummaries(rep, book)

	// THEN: The row reports the capped position and post-cap split
	s := findSummary(t, summaries, "Bob Jones", "2025-01-01")
	if !s.IsCapped {
		t.Fatal("expected capped state")
	}
	if s.CompanyDollarPaid != dollars(5125) {
		t.Errorf("expected company dollar $5125, got %s", s.CompanyDollarPaid)
	}
	if !s.PercentToCap.Equal(pct("100")) {
		t.Errorf("expected percent-to-cap clamped at 100, got %s", s.PercentToCap)
	}
	if !s.CurrentSplit.Equal(pct("95")) {
		t.Errorf("expected post-cap split 95, got %s", s.CurrentSplit)
	}
	if s.Matches != 2 {
		t.Errorf("expected both records to match, got %d", s.Matches)
	}
}

func TestBuildSummaries_SplitsCalendarYears(t *testing.T) {
	// GIVEN: Records straddling the calendar year boundary
	book := testBook(t,
		[]commission.Plan{{ID: "plan-flat", Name: "Flat", SplitPercentage: pct("80")}},
		[]commission.Assignment{{
			AgentName:      "Jane Smith",
			PlanID:         "plan-flat",
			EffectiveStart: commission.Date(2024, time.January, 1),
		}},
	)
	records := []commission.TransactionRecord{
		rec("rec-1", "Jane Smith", dollars(10000), dollars(2000), commission.Date(2024, time.December, 30)),
		rec("rec-2", "Jane Smith", dollars(10000), dollars(2000), commission.Date(2025, time.January, 2)),
	}

	// WHEN: Summaries are built
	rep := runReport(t, records, book)
	summaries := report.BuildSummaries(rep, book)

	// THEN: Each year gets its own row with a fresh accumulation
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	for _, key := range []string{"2024-01-01", "2025-01-01"} {
		s := findSummary(t, summaries, "Jane Smith", key)
		if s.Transactions != 1 {
			t.Errorf("period %s: expected 1 transaction, got %d", key, s.Transactions)
		}
		if s.CompanyDollarPaid != dollars(2000) {
			t.Errorf("period %s: expected company dollar $2000, got %s", key, s.CompanyDollarPaid)
		}
	}
}

func TestBuildSummaries_SkipsUncomputedRecords(t *testing.T) {
	// GIVEN: A batch where one record has no closing date
	book := testBook(t,
		[]commission.Plan{{ID: "plan-flat", Name: "Flat", SplitPercentage: pct("80")}},
		[]commission.Assignment{{
			AgentName:      "Jane Smith",
			PlanID:         "plan-flat",
			EffectiveStart: commission.Date(2024, time.January, 1),
		}},
	)
	records := []commission.TransactionRecord{
		rec("rec-1", "Jane Smith", dollars(10000), dollars(2000), commission.Date(2025, time.March, 1)),
		rec("rec-2", "Jane Smith", dollars(5000), dollars(999), time.Time{}),
	}

	// WHEN: Summaries are built
	rep := runReport(t, records, book)
	summaries := report.BuildSummaries(rep, book)

	// THEN: The undated record is audited but never aggregated
	if rep.Totals.Records != 2 {
		t.Fatalf("expected 2 audited records, got %d", rep.Totals.Records)
	}
	s := findSummary(t, summaries, "Jane Smith", "2025-01-01")
	if s.Transactions != 1 {
		t.Errorf("expected 1 aggregated transaction, got %d", s.Transactions)
	}
	if s.TotalGCI != dollars(10000) {
		t.Errorf("expected total GCI $10000, got %s", s.TotalGCI)
	}
}

func TestBuildSummaries_NilReport(t *testing.T) {
	if got := report.BuildSummaries(nil, nil); got != nil {
		t.Errorf("expected nil summaries, got %v", got)
	}
}
