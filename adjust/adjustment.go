/*
Package adjust implements the variance adjustment approval workflow.

PURPOSE:
  When an audit surfaces a discrepancy a human cannot ignore, the fix is
  never an edit to the transaction record: it is an adjustment overlay with
  its own lifecycle. This package owns that lifecycle and its append-only
  audit trail.

STATE MACHINE:
  pending --> approved --> reverted (terminal)
     |
     +-----> rejected

  A reverted adjustment is never reactivated; correcting further means
  creating a new adjustment. Every transition is caused by an explicit
  actor action and appends exactly one audit log entry, creation included.

SIGN CONVENTION:
  AdjustmentAmount = AdjustedValue - OriginalValue. Positive means a
  deduction/cost to the agent, negative a credit/payment to the agent. The
  amount is always derived, never supplied, so the arithmetic cannot drift.

CURRENT VALUE:
  The displayed value for a record is the plan-calculated commission plus
  the sum of all approved adjustment amounts for that record. Pending,
  rejected, and reverted adjustments contribute nothing.

KEY COMPONENTS:
  Adjustment: The overlay entity with status and actor tracking
  LogEntry:   One append-only audit trail entry
  Service:    Orchestrates transitions with per-id serialization

EXAMPLE:
  svc := adjust.NewService(repo, auditLog)
  adj, err := svc.Create(ctx, adjust.CreateRequest{
      RecordID:      "rec-001",
      AgentName:     "Jane Smith",
      OriginalValue: 450000,
      AdjustedValue: 420000,
      ReasonCode:    "split-correction",
      CreatedBy:     "ops@brokerage.test",
  })
  adj, err = svc.Approve(ctx, adj.ID, "manager@brokerage.test", "verified with closing file")

SEE ALSO:
  - service.go: Transition rules and per-id locking
  - repo.go: Persistence interfaces
  - audit: Produces the discrepancies adjustments respond to
*/
package adjust

import (
	"time"

	"github.com/brokerops/commission-engine/commission"
)

// =============================================================================
// ADJUSTMENT - A value overlay with its own lifecycle
// =============================================================================

// Status is the adjustment lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusReverted Status = "reverted"
)

// Adjustment overlays a corrected value on top of an audited transaction.
// The original transaction record is never mutated.
type Adjustment struct {
	ID        string
	RecordID  commission.RecordID
	AgentName commission.AgentName

	// OriginalValue is the plan-calculated value being corrected.
	OriginalValue commission.Cents

	// AdjustedValue is the value that should stand instead.
	AdjustedValue commission.Cents

	// AdjustmentAmount = AdjustedValue - OriginalValue. Positive raises
	// the value, negative claws it back.
	AdjustmentAmount commission.Cents

	// ReasonCode categorizes why the adjustment exists.
	ReasonCode string

	Status Status

	CreatedBy string
	CreatedAt time.Time

	ApprovedBy *string
	ApprovedAt *time.Time

	RevertedBy *string
	RevertedAt *time.Time

	UpdatedAt time.Time
}

// IsTerminal reports whether no further transition is possible.
func (a *Adjustment) IsTerminal() bool {
	return a.Status == StatusRejected || a.Status == StatusReverted
}

// =============================================================================
// AUDIT LOG ENTRY
// =============================================================================

// Action names what happened to an adjustment.
type Action string

const (
	ActionCreated  Action = "created"
	ActionApproved Action = "approved"
	ActionRejected Action = "rejected"
	ActionReverted Action = "reverted"
)

// LogEntry is one append-only audit trail entry. Entries are never mutated
// or deleted; the trail is the complete transition history.
type LogEntry struct {
	ID           string
	AdjustmentID string
	Action       Action
	Actor        string
	At           time.Time
	Details      string
}
