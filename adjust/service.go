/*
service.go - Adjustment workflow orchestration

PURPOSE:
  All adjustment state transitions flow through this service. It enforces
  the state machine, derives the adjustment amount, and appends exactly one
  audit log entry per transition.

CONCURRENCY:
  Mutations are serialized per adjustment id: two concurrent approvals of
  the same adjustment cannot both succeed - one wins, the other gets a
  StateError. Operations on distinct ids proceed concurrently.

SEE ALSO:
  - errors.go: StateError and sentinels
  - repo.go: The injected persistence interfaces
*/
package adjust

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brokerops/commission-engine/commission"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service orchestrates the adjustment lifecycle over injected persistence.
type Service struct {
	repo Repository
	log  AuditLog

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires a workflow service.
func NewService(repo Repository, auditLog AuditLog) *Service {
	return &Service{
		repo:  repo,
		log:   auditLog,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing mutations of one adjustment id.
func (s *Service) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[id] = l
	return l
}

// =============================================================================
// CREATION
// =============================================================================

// CreateRequest carries everything needed to open an adjustment.
type CreateRequest struct {
	RecordID      commission.RecordID
	AgentName     commission.AgentName
	OriginalValue commission.Cents
	AdjustedValue commission.Cents
	ReasonCode    string
	CreatedBy     string
	Details       string
}

// Create opens a pending adjustment and appends its created entry. The
// adjustment amount is derived here; callers never supply it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Adjustment, error) {
	if req.RecordID == "" {
		return nil, fmt.Errorf("record id is required")
	}
	if req.CreatedBy == "" {
		return nil, fmt.Errorf("created by is required")
	}
	if req.ReasonCode == "" {
		return nil, fmt.Errorf("reason code is required")
	}

	now := time.Now().UTC()
	adj := &Adjustment{
		ID:               uuid.NewString(),
		RecordID:         req.RecordID,
		AgentName:        req.AgentName,
		OriginalValue:    req.OriginalValue,
		AdjustedValue:    req.AdjustedValue,
		AdjustmentAmount: req.AdjustedValue - req.OriginalValue,
		ReasonCode:       req.ReasonCode,
		Status:           StatusPending,
		CreatedBy:        req.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.CreateAdjustment(ctx, adj); err != nil {
		return nil, fmt.Errorf("failed to create adjustment: %w", err)
	}
	if err := s.appendEntry(ctx, adj.ID, ActionCreated, req.CreatedBy, now, req.Details); err != nil {
		return nil, err
	}

	log.Printf("[Adjust] created %s for record %s: %s -> %s (%s)",
		adj.ID, adj.RecordID, adj.OriginalValue, adj.AdjustedValue, adj.AdjustmentAmount)
	return adj, nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Approve moves a pending adjustment to approved.
func (s *Service) Approve(ctx context.Context, id, actor, details string) (*Adjustment, error) {
	return s.transition(ctx, id, actor, details, ActionApproved, StatusPending, func(adj *Adjustment, at time.Time) {
		adj.Status = StatusApproved
		adj.ApprovedBy = &actor
		adj.ApprovedAt = &at
	})
}

// Reject moves a pending adjustment to rejected (terminal).
func (s *Service) Reject(ctx context.Context, id, actor, details string) (*Adjustment, error) {
	return s.transition(ctx, id, actor, details, ActionRejected, StatusPending, func(adj *Adjustment, at time.Time) {
		adj.Status = StatusRejected
	})
}

// Revert moves an approved adjustment to reverted (terminal). A reverted
// adjustment is not reactivated; a new adjustment must be created.
func (s *Service) Revert(ctx context.Context, id, actor, details string) (*Adjustment, error) {
	return s.transition(ctx, id, actor, details, ActionReverted, StatusApproved, func(adj *Adjustment, at time.Time) {
		adj.Status = StatusReverted
		adj.RevertedBy = &actor
		adj.RevertedAt = &at
	})
}

func (s *Service) transition(ctx context.Context, id, actor, details string, action Action, required Status, apply func(*Adjustment, time.Time)) (*Adjustment, error) {
	if actor == "" {
		return nil, fmt.Errorf("actor is required")
	}

	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	adj, err := s.repo.GetAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	if adj.Status != required {
		return nil, &StateError{ID: id, Action: action, Required: required, Current: adj.Status}
	}

	now := time.Now().UTC()
	apply(adj, now)
	adj.UpdatedAt = now

	if err := s.repo.UpdateAdjustmentStatus(ctx, adj); err != nil {
		return nil, fmt.Errorf("failed to update adjustment %s: %w", id, err)
	}
	if err := s.appendEntry(ctx, id, action, actor, now, details); err != nil {
		return nil, err
	}

	log.Printf("[Adjust] %s %s by %s", action, id, actor)
	return adj, nil
}

func (s *Service) appendEntry(ctx context.Context, adjustmentID string, action Action, actor string, at time.Time, details string) error {
	entry := LogEntry{
		ID:           uuid.NewString(),
		AdjustmentID: adjustmentID,
		Action:       action,
		Actor:        actor,
		At:           at,
		Details:      details,
	}
	if err := s.log.AppendEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit log entry: %w", err)
	}
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns one adjustment.
func (s *Service) Get(ctx context.Context, id string) (*Adjustment, error) {
	return s.repo.GetAdjustment(ctx, id)
}

// List returns adjustments matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Adjustment, error) {
	return s.repo.ListAdjustments(ctx, filter)
}

// Log returns the full audit trail of one adjustment, oldest first.
func (s *Service) Log(ctx context.Context, adjustmentID string) ([]LogEntry, error) {
	return s.log.ListEntries(ctx, adjustmentID)
}

// CurrentValue is the displayed value for a record: the plan-calculated
// value plus every approved adjustment amount for that record.
func (s *Service) CurrentValue(ctx context.Context, recordID commission.RecordID, planValue commission.Cents) (commission.Cents, error) {
	approved, err := s.repo.ListAdjustments(ctx, Filter{RecordID: recordID, Status: StatusApproved})
	if err != nil {
		return 0, err
	}
	current := planValue
	for _, adj := range approved {
		current += adj.AdjustmentAmount
	}
	return current, nil
}
