/*
repo.go - Persistence interfaces for adjustments and their audit trail

PURPOSE:
  The workflow has zero storage-technology dependency: it talks to these
  two narrow interfaces and nothing else. Note what is absent - no delete,
  no entry mutation. The audit log only grows.

SEE ALSO:
  - store/sqlite: The production implementation
  - store/memory: The in-memory implementation for tests and demos
*/
package adjust

import (
	"context"

	"github.com/brokerops/commission-engine/commission"
)

// =============================================================================
// REPOSITORY INTERFACES
// =============================================================================

// Filter narrows adjustment listings. Zero values match everything.
type Filter struct {
	RecordID commission.RecordID
	Status   Status
}

// Repository persists adjustments.
type Repository interface {
	CreateAdjustment(ctx context.Context, adj *Adjustment) error
	GetAdjustment(ctx context.Context, id string) (*Adjustment, error)
	ListAdjustments(ctx context.Context, filter Filter) ([]*Adjustment, error)

	// UpdateAdjustmentStatus persists a status transition and its actor
	// fields. It never touches the value fields.
	UpdateAdjustmentStatus(ctx context.Context, adj *Adjustment) error
}

// AuditLog persists the append-only transition trail.
type AuditLog interface {
	AppendEntry(ctx context.Context, entry LogEntry) error
	ListEntries(ctx context.Context, adjustmentID string) ([]LogEntry, error)
}
