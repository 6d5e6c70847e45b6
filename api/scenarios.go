/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates plans, agents,
	assignments, and transactions that demonstrate specific features.

AVAILABLE SCENARIOS:

	flat-brokerage:          Flat 80/20 book with a mis-reported row
	tiered-cap:              Sliding scale + cap crossed mid-transaction
	adjustment-walkthrough:  Approved and pending adjustments

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create plans via factory
 3. Assign plans to agents
 4. Store the transaction batch
 5. Optionally open adjustments through the workflow service

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "flat-brokerage"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase and the shared helpers
  - factory/plan.go: Plan JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brokerops/commission-engine/adjust"
	"github.com/brokerops/commission-engine/commission"
	"github.com/brokerops/commission-engine/factory"
	"github.com/brokerops/commission-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "flat-brokerage",
		Name:        "Flat Split Book",
		Description: "Three agents on a flat 80/20 split: a double-ended deal, a co-listed sale, and one mis-reported company dollar",
	},
	{
		ID:          "tiered-cap",
		Name:        "Tiers and Company Cap",
		Description: "Sliding-scale splits with a royalty clamp, plus a company-dollar cap crossed mid-transaction",
	},
	{
		ID:          "adjustment-walkthrough",
		Name:        "Adjustment Walkthrough",
		Description: "A flat book with one approved clawback and one pending adjustment",
	},
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, ScenarioDTO{})
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "flat-brokerage":
		err = h.loadFlatBrokerageScenario(ctx)
	case "tiered-cap":
		err = h.loadTieredCapScenario(ctx)
	case "adjustment-walkthrough":
		err = h.loadAdjustmentWalkthroughScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	// Track the loaded scenario
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadFlatBrokerageScenario seeds a small book where every agent keeps 80%
// of GCI. rec-1003 deliberately reports $300 less company dollar than the
// plan dictates, so an audit run flags exactly one record.
func (h *Handler) loadFlatBrokerageScenario(ctx context.Context) error {
	if err := h.createScenarioPlan(ctx, factory.PlanJSON{
		ID:              "plan-flat-80",
		Name:            "Flat 80/20 Split",
		SplitPercentage: decimal.NewFromInt(80),
	}); err != nil {
		return err
	}

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i, agent := range []string{"Jane Smith", "Bob Jones", "Carol White"} {
		if err := h.assignScenarioPlan(ctx, fmt.Sprintf("assign-%03d", i+1), agent, "plan-flat-80", start); err != nil {
			return err
		}
	}

	records := []commission.TransactionRecord{
		seedRecord("rec-1001", "Jane Smith", 45_000_000, "3", 1_350_000, 270_000, time.Date(2024, time.February, 16, 0, 0, 0, 0, time.UTC)),
		seedRecord("rec-1002", "Jane Smith", 32_500_000, "2.5", 812_500, 162_500, time.Date(2024, time.March, 22, 0, 0, 0, 0, time.UTC)),
		// Reported $2,760 against an expected $3,060
		seedRecord("rec-1003", "Jane Smith", 51_000_000, "3", 1_530_000, 276_000, time.Date(2024, time.May, 8, 0, 0, 0, 0, time.UTC)),
		seedRecord("rec-1004", "Bob Jones", 28_900_000, "3", 867_000, 173_400, time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC)),
		// Double-ended: Bob represented both sides, 6% total
		seedRecord("rec-1005", "Bob Jones", 40_000_000, "6", 2_400_000, 480_000, time.Date(2024, time.June, 28, 0, 0, 0, 0, time.UTC)),
		seedRecord("rec-1006", "Carol White", 27_500_000, "2.5", 687_500, 137_500, time.Date(2024, time.September, 12, 0, 0, 0, 0, time.UTC)),
	}
	records[5].CoAgents = []commission.AgentName{"Jane Smith"}

	return h.Store.SaveTransactionBatch(ctx, records)
}

// loadTieredCapScenario seeds one agent climbing a sliding scale (with a
// royalty clamped by its per-period cap) and one agent crossing a company
// dollar cap in the middle of a transaction.
func (h *Handler) loadTieredCapScenario(ctx context.Context) error {
	if err := h.createScenarioPlan(ctx, factory.PlanJSON{
		ID:              "plan-sliding",
		Name:            "Sliding Scale 60/70/80",
		SplitPercentage: decimal.NewFromInt(60),
		Tiers: []factory.TierJSON{
			{Threshold: 1_000_000, SplitPercentage: decimal.NewFromInt(70)},
			{Threshold: 2_500_000, SplitPercentage: decimal.NewFromInt(80)},
		},
		Deductions: []factory.DeductionJSON{
			{Name: "Transaction Fee", Amount: 29_500},
			{Name: "E&O Insurance", Percentage: decimal.NewFromInt(1), Basis: "gci"},
		},
		RoyaltyPct: decimal.NewFromInt(6),
		RoyaltyCap: 250_000,
		PeriodMode: "calendar-year",
	}); err != nil {
		return err
	}

	if err := h.createScenarioPlan(ctx, factory.PlanJSON{
		ID:              "plan-capped",
		Name:            "Capped 70/30",
		SplitPercentage: decimal.NewFromInt(70),
		CapAmount:       1_500_000,
		PostCapSplit:    decimal.NewFromInt(95),
	}); err != nil {
		return err
	}

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	if err := h.assignScenarioPlan(ctx, "assign-001", "Dana Lee", "plan-sliding", start); err != nil {
		return err
	}
	if err := h.assignScenarioPlan(ctx, "assign-002", "Evan Park", "plan-capped", start); err != nil {
		return err
	}

	records := []commission.TransactionRecord{
		// Dana: $8,000 + $6,000 company dollar at 60%, then the $10,000
		// threshold promotes rec-2003 to the 70% tier
		seedRecord("rec-2001", "Dana Lee", 50_000_000, "4", 2_000_000, 800_000, time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)),
		seedRecord("rec-2002", "Dana Lee", 50_000_000, "3", 1_500_000, 600_000, time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC)),
		seedRecord("rec-2003", "Dana Lee", 40_000_000, "2.5", 1_000_000, 300_000, time.Date(2024, time.April, 18, 0, 0, 0, 0, time.UTC)),
		// Evan: rec-2102 crosses the $15,000 cap inside the transaction,
		// rec-2103 is entirely post-cap at 95%
		seedRecord("rec-2101", "Evan Park", 100_000_000, "3", 3_000_000, 900_000, time.Date(2024, time.February, 2, 0, 0, 0, 0, time.UTC)),
		seedRecord("rec-2102", "Evan Park", 100_000_000, "2.5", 2_500_000, 625_000, time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC)),
		seedRecord("rec-2103", "Evan Park", 40_000_000, "3", 1_200_000, 60_000, time.Date(2024, time.July, 11, 0, 0, 0, 0, time.UTC)),
	}

	return h.Store.SaveTransactionBatch(ctx, records)
}

// loadAdjustmentWalkthroughScenario seeds a clean flat book and drives two
// adjustments through the workflow service: a clawback approved by the
// broker and a passthrough still waiting on them.
func (h *Handler) loadAdjustmentWalkthroughScenario(ctx context.Context) error {
	if err := h.createScenarioPlan(ctx, factory.PlanJSON{
		ID:              "plan-flat-80",
		Name:            "Flat 80/20 Split",
		SplitPercentage: decimal.NewFromInt(80),
	}); err != nil {
		return err
	}

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	if err := h.assignScenarioPlan(ctx, "assign-001", "Frank Moore", "plan-flat-80", start); err != nil {
		return err
	}

	records := []commission.TransactionRecord{
		seedRecord("rec-3001", "Frank Moore", 52_000_000, "3", 1_560_000, 312_000, time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)),
		seedRecord("rec-3002", "Frank Moore", 50_000_000, "2.5", 1_250_000, 250_000, time.Date(2024, time.June, 2, 0, 0, 0, 0, time.UTC)),
	}
	if err := h.Store.SaveTransactionBatch(ctx, records); err != nil {
		return err
	}

	clawback, err := h.Adjustments.Create(ctx, adjust.CreateRequest{
		RecordID:      "rec-3001",
		AgentName:     "Frank Moore",
		OriginalValue: 312_000,
		AdjustedValue: 297_000,
		ReasonCode:    "clerical-error",
		CreatedBy:     "ops@brokerage.test",
		Details:       "Commission recorded off the pre-concession price",
	})
	if err != nil {
		return err
	}
	if _, err := h.Adjustments.Approve(ctx, clawback.ID, "broker@brokerage.test", "Verified against the settlement statement"); err != nil {
		return err
	}

	_, err = h.Adjustments.Create(ctx, adjust.CreateRequest{
		RecordID:      "rec-3002",
		AgentName:     "Frank Moore",
		OriginalValue: 250_000,
		AdjustedValue: 262_500,
		ReasonCode:    "fee-passthrough",
		CreatedBy:     "ops@brokerage.test",
		Details:       "Transaction fee passthrough pending broker confirmation",
	})
	return err
}

// =============================================================================
// SEED HELPERS
// =============================================================================

func (h *Handler) createScenarioPlan(ctx context.Context, pj factory.PlanJSON) error {
	if _, err := h.PlanFactory.FromJSON(pj); err != nil {
		return err
	}
	configJSON, err := json.Marshal(pj)
	if err != nil {
		return err
	}
	return h.Store.SavePlan(ctx, sqlite.PlanRecord{
		ID:         pj.ID,
		Name:       pj.Name,
		ConfigJSON: string(configJSON),
		Version:    1,
	})
}

func (h *Handler) assignScenarioPlan(ctx context.Context, id, agent, planID string, start time.Time) error {
	return h.Store.SaveAssignment(ctx, sqlite.AssignmentRecord{
		ID:             id,
		AgentName:      agent,
		PlanID:         planID,
		EffectiveStart: start,
	})
}

func seedRecord(id, agent string, salePrice int64, rate string, gci, reported int64, closing time.Time) commission.TransactionRecord {
	return commission.TransactionRecord{
		ID:                    commission.RecordID(id),
		AgentName:             commission.AgentName(agent),
		SalePrice:             commission.Cents(salePrice),
		CommissionRate:        commission.MustParsePercent(rate),
		GrossCommission:       commission.Cents(gci),
		ClosingDate:           closing,
		ReportedCompanyDollar: commission.Cents(reported),
	}
}
