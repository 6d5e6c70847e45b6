package audit_test

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brokerops/commission-engine/audit"
	"github.com/brokerops/commission-engine/commission"
)

// =============================================================================
// TEST HELPERS
// =============================================================================
// Note: pct, dollars, and newBook are shared by all tests in this package.

func pct(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("bad percent literal: " + s)
	}
	return d
}

func dollars(n int64) commission.Cents {
	return commission.Cents(n * 100)
}

func newBook(t *testing.T, plans []commission.Plan, assignments []commission.Assignment, teams []commission.Team) *commission.AssignmentBook {
	t.Helper()
	book, err := commission.NewAssignmentBook(plans, assignments, teams)
	if err != nil {
		t.Fatalf("failed to build book: %v", err)
	}
	return book
}

// flatBook assigns every named agent to one flat split plan from Jan 1 2024.
func flatBook(t *testing.T, split string, agents ...commission.AgentName) *commission.AssignmentBook {
	t.Helper()
	plan := commission.Plan{ID: "plan-flat", Name: "Flat", SplitPercentage: pct(split)}
	assignments := make([]commission.Assignment, 0, len(agents))
	for _, agent := range agents {
		assignments = append(assignments, commission.Assignment{
			AgentName:      agent,
			PlanID:         "plan-flat",
			EffectiveStart: commission.Date(2024, time.January, 1),
		})
	}
	return newBook(t, []commission.Plan{plan}, assignments, nil)
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

func hasNote(result audit.Result, fragment string) bool {
	for _, n := range result.Notes {
		if strings.Contains(n, fragment) {
			return true
		}
	}
	return false
}

// =============================================================================
// CLASSIFICATION TESTS
// =============================================================================

func TestRun_CorrectlyReportedBatch_AllMatch(t *testing.T) {
	// GIVEN: An 80/20 book where every reported value equals 20% of GCI
	// WHEN: Auditing the batch
	// THEN: Every record matches, none underpaid or overpaid

	book := flatBook(t, "80", "Jane Smith")
	records := []commission.TransactionRecord{
		rec("rec-1", "Jane Smith", dollars(15000), dollars(3000), commission.Date(2025, time.January, 10)),
		rec("rec-2", "Jane Smith", dollars(10000), dollars(2000), commission.Date(2025, time.February, 12)),
		rec("rec-3", "Jane Smith", dollars(8000), dollars(1600), commission.Date(2025, time.March, 3)),
	}

	engine := &audit.Engine{}
	report, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Totals.Records != 3 || report.Totals.Matches != 3 {
		t.Errorf("expected 3 matches of 3, got %+v", report.Totals)
	}
	for _, r := range report.Results {
		if r.Status != audit.StatusMatch {
			t.Errorf("record %s: expected match, got %s (diff %s)", r.RecordID, r.Status, r.Difference)
		}
	}
}

func TestRun_ToleranceBoundary(t *testing.T) {
	// GIVEN: Expected company dollar $4,500 (tolerance is the lesser of $1
	//        and 0.5%, here $1)
	// WHEN: Reporting $1 over, then $1.01 over, then $1.01 under
	// THEN: match, underpaid, overpaid respectively

	book := flatBook(t, "70", "Jane Smith")
	cases := []struct {
		name     string
		reported commission.Cents
		want     audit.Status
	}{
		{"within tolerance", dollars(4500) + 100, audit.StatusMatch},
		{"over tolerance", dollars(4500) + 101, audit.StatusUnderpaid},
		{"under tolerance", dollars(4500) - 101, audit.StatusOverpaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records := []commission.TransactionRecord{
				rec("rec-1", "Jane Smith", dollars(15000), tc.reported, commission.Date(2025, time.March, 15)),
			}
			engine := &audit.Engine{}
			report, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := report.Results[0].Status; got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestRun_SmallExpected_UsesPercentageTolerance(t *testing.T) {
	// GIVEN: Expected company dollar $30, where 0.5% ($0.15) is less than $1
	// WHEN: Reporting $0.16 over
	// THEN: Underpaid; the percentage leg of the tolerance governs

	book := flatBook(t, "70", "Jane Smith")
	records := []commission.TransactionRecord{
		rec("rec-1", "Jane Smith", dollars(100), dollars(30)+16, commission.Date(2025, time.March, 15)),
	}

	engine := &audit.Engine{}
	report, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := report.Results[0].Status; got != audit.StatusUnderpaid {
		t.Errorf("expected underpaid, got %s", got)
	}
}

func TestDefaultTolerance(t *testing.T) {
	cases := []struct {
		expected commission.Cents
		want     commission.Cents
	}{
		{dollars(4500), 100}, // 0.5% is $22.50, the $1 leg governs
		{dollars(100), 50},   // 0.5% is $0.50, the percentage leg governs
		{0, 0},
	}
	for _, tc := range cases {
		if got := audit.DefaultTolerance(tc.expected); got != tc.want {
			t.Errorf("DefaultTolerance(%s): expected %d cents, got %d", tc.expected, tc.want, got)
		}
	}
}

// =============================================================================
// ORDERING TESTS
// =============================================================================

func TestRun_ReplaysInClosingDateOrder(t *testing.T) {
	// GIVEN: A tiered plan (60% then 70% at $4k YTD) and records supplied in
	//        reverse chronological order
	// WHEN: Auditing
	// THEN: The January record is evaluated first at 60%; the February record
	//       lands on the 70% tier built from January's company dollar

	plan := commission.Plan{
		ID:              "plan-tiered",
		Name:            "Tiered",
		SplitPercentage: pct("60"),
		Tiers: []commission.Tier{
			{Threshold: 0, SplitPercentage: pct("60")},
			{Threshold: dollars(4000), SplitPercentage: pct("70")},
		},
	}
	book := newBook(t, []commission.Plan{plan}, []commission.Assignment{
		{AgentName: "Jane Smith", PlanID: "plan-tiered", EffectiveStart: commission.Date(2024, time.January, 1)},
	}, nil)

	records := []commission.TransactionRecord{
		rec("rec-feb", "Jane Smith", dollars(10000), dollars(3000), commission.Date(2025, time.February, 1)),
		rec("rec-jan", "Jane Smith", dollars(10000), dollars(4000), commission.Date(2025, time.January, 1)),
	}

	engine := &audit.Engine{}
	report, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Results[0].RecordID != "rec-jan" {
		t.Fatalf("expected rec-jan first, got %s", report.Results[0].RecordID)
	}
	// January at 60%: company dollar $4,000
	if report.Results[0].ExpectedCompanyDollar != dollars(4000) {
		t.Errorf("expected January company dollar $4000.00, got %s", report.Results[0].ExpectedCompanyDollar)
	}
	// February on the 70% tier: company dollar $3,000
	if report.Results[1].ExpectedCompanyDollar != dollars(3000) {
		t.Errorf("expected February company dollar $3000.00, got %s", report.Results[1].ExpectedCompanyDollar)
	}
	if report.Results[0].Status != audit.StatusMatch || report.Results[1].Status != audit.StatusMatch {
		t.Errorf("both records were reported correctly, got %s / %s",
			report.Results[0].Status, report.Results[1].Status)
	}
}

func TestRun_AgentsAccumulateIndependently(t *testing.T) {
	// GIVEN: Two agents on the same plan
	// WHEN: Auditing both
	// THEN: Each carries their own YTD state

	book := flatBook(t, "70", "Jane Smith", "Bob Jones")
	records := []commission.TransactionRecord{
		rec("rec-1", "Jane Smith", dollars(10000), dollars(3000), commission.Date(2025, time.January, 5)),
		rec("rec-2", "Bob Jones", dollars(20000), dollars(6000), commission.Date(2025, time.January, 6)),
	}

	engine := &audit.Engine{}
	report, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.States) != 2 {
		t.Fatalf("expected 2 YTD states, got %d", len(report.States))
	}
	byAgent := make(map[commission.AgentName]commission.Cents)
	for _, s := range report.States {
		byAgent[s.AgentName] = s.CompanyDollarPaid
	}
	if byAgent["Jane Smith"] != dollars(3000) {
		t.Errorf("expected Jane at $3000.00, got %s", byAgent["Jane Smith"])
	}
	if byAgent["Bob Jones"] != dollars(6000) {
		t.Errorf("expected Bob at $6000.00, got %s", byAgent["Bob Jones"])
	}
}

// =============================================================================
// RECOVERABLE CONDITION TESTS
// =============================================================================

func TestRun_MissingClosingDate_ReportedAuthoritative(t *testing.T) {
	// GIVEN: One record without a closing date alongside a dated one
	// WHEN: Auditing
	// THEN: The undated record matches on the reported value, carries a note,
	//       and contributes nothing to YTD

	book := flatBook(t, "70", "Jane Smith")
	records := []commission.TransactionRecord{
		rec("rec-dated", "Jane Smith", dollars(10000), dollars(3000), commission.Date(2025, time.April, 1)),
		rec("rec-undated", "Jane Smith", dollars(10000), dollars(9999), time.Time{}),
	}

	engine := &audit.Engine{}
	report, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Totals.Unsequenced != 1 {
		t.Errorf("expected 1 unsequenced record, got %d", report.Totals.Unsequenced)
	}

	var undated audit.Result
	for _, r := range report.Results {
		if r.RecordID == "rec-undated" {
			undated = r
		}
	}
	if undated.Status != audit.StatusMatch {
		t.Errorf("expected match for the undated record, got %s", undated.Status)
	}
	if undated.ExpectedCompanyDollar != dollars(9999) {
		t.Errorf("expected the reported value echoed, got %s", undated.ExpectedCompanyDollar)
	}
	if !hasNote(undated, "missing closing date") {
		t.Errorf("expected a missing-date note, got %v", undated.Notes)
	}

	// Only the dated record advanced YTD
	if len(report.States) != 1 || report.States[0].CompanyDollarPaid != dollars(3000) {
		t.Errorf("expected YTD $3000.00 from the dated record only, got %+v", report.States)
	}
}

func TestRun_NoPlanAssigned_ReportedAuthoritative(t *testing.T) {
	// GIVEN: An agent with no assignment in the book
	// WHEN: Auditing their record
	// THEN: Match on the reported value with a note; the batch never fails

	book := flatBook(t, "70", "Jane Smith")
	records := []commission.TransactionRecord{
		rec("rec-1", "Ghost Agent", dollars(10000), dollars(2500), commission.Date(2025, time.March, 1)),
	}

	engine := &audit.Engine{}
	report, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Totals.NoPlan != 1 {
		t.Errorf("expected 1 no-plan record, got %d", report.Totals.NoPlan)
	}
	r := report.Results[0]
	if r.Status != audit.StatusMatch || r.Difference != 0 {
		t.Errorf("expected a zero-difference match, got %s diff %s", r.Status, r.Difference)
	}
	if !hasNote(r, "no commission plan assigned") {
		t.Errorf("expected a no-plan note, got %v", r.Notes)
	}
}

func TestRun_TransactionBeforeFirstAssignment(t *testing.T) {
	// GIVEN: A record closing before the agent's assignment started
	// WHEN: Auditing
	// THEN: Treated as no plan assigned for that date

	book := flatBook(t, "70", "Jane Smith") // effective 2024-01-01
	records := []commission.TransactionRecord{
		rec("rec-early", "Jane Smith", dollars(10000), dollars(3000), commission.Date(2023, time.June, 1)),
	}

	engine := &audit.Engine{}
	report, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Totals.NoPlan != 1 {
		t.Errorf("expected the early record to fall back, got %+v", report.Totals)
	}
}

// =============================================================================
// CAP BEHAVIOR TESTS
// =============================================================================

func TestRun_CapCrossingNoted(t *testing.T) {
	// GIVEN: A capped plan and a record that pushes the agent over the cap
	// WHEN: Auditing
	// THEN: The crossing record carries a cap note and the state is capped

	plan := commission.Plan{
		ID:              "plan-capped",
		Name:            "Capped",
		SplitPercentage: pct("60"),
		CapAmount:       dollars(5000),
		PostCapSplit:    pct("95"),
	}
	book := newBook(t, []commission.Plan{plan}, []commission.Assignment{
		{AgentName: "Jane Smith", PlanID: "plan-capped", EffectiveStart: commission.Date(2024, time.January, 1)},
	}, nil)

	records := []commission.TransactionRecord{
		// 40% of $10k = $4k company dollar
		rec("rec-1", "Jane Smith", dollars(10000), dollars(4000), commission.Date(2025, time.January, 10)),
		// room is $1k; crossing happens here
		rec("rec-2", "Jane Smith", dollars(10000), dollars(1375), commission.Date(2025, time.February, 10)),
	}

	engine := &audit.Engine{}
	report, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	crossing := report.Results[1]
	// gciPre = 1000*100/40 = $2,500 at 60/40; $7,500 at 95/5
	// company = 2500*0.40 + 7500*0.05 = 1000 + 375
	if crossing.ExpectedCompanyDollar != dollars(1375) {
		t.Errorf("expected blended company dollar $1375.00, got %s", crossing.ExpectedCompanyDollar)
	}
	if !hasNote(crossing, "cap reached") {
		t.Errorf("expected a cap note, got %v", crossing.Notes)
	}
	if len(report.States) != 1 || !report.States[0].IsCapped {
		t.Errorf("expected a capped YTD state, got %+v", report.States)
	}
}

// =============================================================================
// DETERMINISM TESTS
// =============================================================================

func TestRun_ParallelMatchesSerial(t *testing.T) {
	// GIVEN: A batch spread over several agents
	// WHEN: Running with one worker and with many
	// THEN: The reports are identical, element for element

	agents := []commission.AgentName{"Alice", "Bob", "Carol", "Dave", "Eve"}
	book := flatBook(t, "70", agents...)

	var records []commission.TransactionRecord
	for i, agent := range agents {
		for j := 0; j < 6; j++ {
			gci := dollars(int64(1000 * (j + 1)))
			records = append(records, rec(
				fmt.Sprintf("rec-%d-%d", i, j),
				agent,
				gci,
				commission.RoundCents(commission.PercentOf(gci, pct("30"))),
				commission.Date(2025, time.Month(1+j), 10),
			))
		}
	}

	serial := &audit.Engine{Workers: 1}
	parallel := &audit.Engine{Workers: 8}

	serialReport, err := serial.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parallelReport, err := parallel.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(serialReport, parallelReport) {
		t.Error("parallel run diverged from serial run")
	}
}

func TestRun_RerunIsIdempotent(t *testing.T) {
	// GIVEN: A batch audited once
	// WHEN: Auditing the same input again
	// THEN: The report is identical; the input records are untouched

	book := flatBook(t, "70", "Jane Smith")
	records := []commission.TransactionRecord{
		rec("rec-2", "Jane Smith", dollars(10000), dollars(3000), commission.Date(2025, time.February, 1)),
		rec("rec-1", "Jane Smith", dollars(10000), dollars(3000), commission.Date(2025, time.January, 1)),
	}

	engine := &audit.Engine{}
	first, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.Run(context.Background(), audit.Input{Records: records, Book: book})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("rerun over identical input diverged")
	}
	// The caller's slice order is preserved (sorting happens on copies)
	if records[0].ID != "rec-2" {
		t.Errorf("input slice was reordered: %s first", records[0].ID)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	// GIVEN: A cancelled context
	// WHEN: Running
	// THEN: The run aborts with the context error

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	book := flatBook(t, "70", "Jane Smith")
	records := []commission.TransactionRecord{
		rec("rec-1", "Jane Smith", dollars(10000), dollars(3000), commission.Date(2025, time.January, 1)),
	}

	engine := &audit.Engine{}
	if _, err := engine.Run(ctx, audit.Input{Records: records, Book: book}); err == nil {
		t.Fatal("expected a context error")
	}
}
