package commission_test

import (
	"errors"
	"testing"
	"time"

	"github.com/brokerops/commission-engine/commission"
)

// =============================================================================
// TRACKER STATE TESTS
// =============================================================================

func TestTracker_FirstTouchIsZeroValued(t *testing.T) {
	// GIVEN: An empty tracker
	// WHEN: Reading a state never committed
	// THEN: A zero-valued state for that agent and period

	tracker := commission.NewTracker()
	s := tracker.StateFor("Jane Smith", year2025())

	if s.CompanyDollarPaid != 0 || s.RoyaltyPaid != 0 || s.IsCapped {
		t.Errorf("expected a fresh state, got %+v", s)
	}
	if s.AgentName != "Jane Smith" {
		t.Errorf("expected the agent name carried, got %q", s.AgentName)
	}
}

func TestTracker_CommitThenRead(t *testing.T) {
	// GIVEN: A committed state
	// WHEN: Reading it back
	// THEN: The committed values round-trip

	tracker := commission.NewTracker()
	s := commission.YTDState{
		AgentName:                "Jane Smith",
		Period:                   year2025(),
		CompanyDollarPaid:        dollars(4500),
		RoyaltyPaid:              dollars(600),
		LastAppliedTransactionID: "rec-001",
	}
	if err := tracker.Commit(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := tracker.StateFor("Jane Smith", year2025())
	if got.CompanyDollarPaid != dollars(4500) {
		t.Errorf("expected $4500.00 company dollar, got %s", got.CompanyDollarPaid)
	}
	if got.LastAppliedTransactionID != "rec-001" {
		t.Errorf("expected last applied rec-001, got %s", got.LastAppliedTransactionID)
	}
}

func TestTracker_RejectsRegression(t *testing.T) {
	// GIVEN: An agent with $10k committed company dollar
	// WHEN: Committing a state with less
	// THEN: The commit is rejected with ErrYTDRegression

	tracker := commission.NewTracker()
	base := commission.YTDState{
		AgentName:         "Jane Smith",
		Period:            year2025(),
		CompanyDollarPaid: dollars(10000),
	}
	if err := tracker.Commit(base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	back := base
	back.CompanyDollarPaid = dollars(9000)
	err := tracker.Commit(back)
	if err == nil {
		t.Fatal("expected a regression error")
	}
	if !errors.Is(err, commission.ErrYTDRegression) {
		t.Errorf("expected ErrYTDRegression, got %v", err)
	}

	// The stored state is untouched
	if got := tracker.StateFor("Jane Smith", year2025()); got.CompanyDollarPaid != dollars(10000) {
		t.Errorf("rejected commit must not change state, got %s", got.CompanyDollarPaid)
	}
}

func TestTracker_PeriodsAreIndependent(t *testing.T) {
	// GIVEN: An agent capped out in 2024
	// WHEN: Reading the 2025 period
	// THEN: A fresh zero state; nothing carries across the boundary

	tracker := commission.NewTracker()
	year2024 := commission.Period{
		Start: commission.Date(2024, time.January, 1),
		End:   commission.Date(2024, time.December, 31),
	}
	if err := tracker.Commit(commission.YTDState{
		AgentName:         "Jane Smith",
		Period:            year2024,
		CompanyDollarPaid: dollars(300000),
		IsCapped:          true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh := tracker.StateFor("Jane Smith", year2025())
	if fresh.CompanyDollarPaid != 0 || fresh.IsCapped {
		t.Errorf("expected a reset state in the new period, got %+v", fresh)
	}

	// The old period remains readable
	old := tracker.StateFor("Jane Smith", year2024)
	if old.CompanyDollarPaid != dollars(300000) || !old.IsCapped {
		t.Errorf("old period state should persist, got %+v", old)
	}
}

func TestTracker_AgentsAreIndependent(t *testing.T) {
	// GIVEN: Two agents in the same period
	// WHEN: Committing for one
	// THEN: The other stays untouched

	tracker := commission.NewTracker()
	if err := tracker.Commit(commission.YTDState{
		AgentName:         "Jane Smith",
		Period:            year2025(),
		CompanyDollarPaid: dollars(5000),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := tracker.StateFor("Bob Jones", year2025()); got.CompanyDollarPaid != 0 {
		t.Errorf("expected zero state for the other agent, got %s", got.CompanyDollarPaid)
	}
}

func TestTracker_StatesReturnsFirstTouchOrder(t *testing.T) {
	// GIVEN: Commits for several agents
	// WHEN: Listing states
	// THEN: First-touch order, stable across re-commits

	tracker := commission.NewTracker()
	for _, agent := range []commission.AgentName{"Charlie", "Alice", "Bob"} {
		if err := tracker.Commit(commission.YTDState{
			AgentName:         agent,
			Period:            year2025(),
			CompanyDollarPaid: dollars(100),
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Re-commit the first agent; order must not change
	if err := tracker.Commit(commission.YTDState{
		AgentName:         "Charlie",
		Period:            year2025(),
		CompanyDollarPaid: dollars(200),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	states := tracker.States()
	if len(states) != 3 {
		t.Fatalf("expected 3 states, got %d", len(states))
	}
	want := []commission.AgentName{"Charlie", "Alice", "Bob"}
	for i, s := range states {
		if s.AgentName != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], s.AgentName)
		}
	}
	if states[0].CompanyDollarPaid != dollars(200) {
		t.Errorf("re-commit should update the stored state, got %s", states[0].CompanyDollarPaid)
	}
}

// =============================================================================
// CAP PROGRESS TESTS
// =============================================================================

func TestYTDState_PercentToCap(t *testing.T) {
	// GIVEN: A $300k cap plan
	// WHEN: Reading progress at various YTD positions
	// THEN: Percentage clamped to [0,100], zero without a cap

	plan := cappedPlan()

	cases := []struct {
		name string
		ytd  commission.Cents
		want string
	}{
		{"empty", 0, "0"},
		{"halfway", dollars(150000), "50"},
		{"at cap", dollars(300000), "100"},
		{"past cap clamps", dollars(350000), "100"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := commission.YTDState{CompanyDollarPaid: tc.ytd}
			if got := s.PercentToCap(plan); !got.Equal(pct(tc.want)) {
				t.Errorf("expected %s%%, got %s", tc.want, got)
			}
		})
	}
}

func TestYTDState_PercentToCap_NoCapReportsZero(t *testing.T) {
	// GIVEN: A plan without a cap
	// WHEN: Reading cap progress
	// THEN: Zero, not a division error

	s := commission.YTDState{CompanyDollarPaid: dollars(50000)}
	if got := s.PercentToCap(flatPlan("70")); !got.IsZero() {
		t.Errorf("expected zero for an uncapped plan, got %s", got)
	}
}

func TestYTDState_CurrentTier(t *testing.T) {
	// GIVEN: An agent at $60k YTD under the sliding plan
	// WHEN: Asking for the governing tier
	// THEN: The $50k tier at 65%

	s := commission.YTDState{CompanyDollarPaid: dollars(60000)}
	tier := s.CurrentTier(slidingPlan())
	if !tier.SplitPercentage.Equal(pct("65")) {
		t.Errorf("expected the 65%% tier, got %s", tier.SplitPercentage)
	}
}
