// Package memory provides map-backed repository implementations for
// tests and demos. Every method copies on the way in and out, so callers
// can never mutate stored state through a returned pointer.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brokerops/commission-engine/adjust"
	"github.com/brokerops/commission-engine/audit"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store implements adjust.Repository, adjust.AuditLog, audit.RunRepository
// and audit.ReportStore on plain maps guarded by a single RWMutex.
type Store struct {
	mu sync.RWMutex

	adjustments map[string]*adjust.Adjustment
	adjOrder    []string

	entries map[string][]adjust.LogEntry

	runs     map[string]*audit.Run
	runOrder []string

	results   map[string][]audit.Result
	variances map[string][]audit.VarianceItem
}

func New() *Store {
	return &Store{
		adjustments: make(map[string]*adjust.Adjustment),
		entries:     make(map[string][]adjust.LogEntry),
		runs:        make(map[string]*audit.Run),
		results:     make(map[string][]audit.Result),
		variances:   make(map[string][]audit.VarianceItem),
	}
}

// =============================================================================
// ADJUSTMENTS (adjust.Repository)
// =============================================================================

func (s *Store) CreateAdjustment(_ context.Context, adj *adjust.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.adjustments[adj.ID]; ok {
		return fmt.Errorf("adjustment %s already exists", adj.ID)
	}
	s.adjustments[adj.ID] = cloneAdjustment(adj)
	s.adjOrder = append(s.adjOrder, adj.ID)
	return nil
}

func (s *Store) GetAdjustment(_ context.Context, id string) (*adjust.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adj, ok := s.adjustments[id]
	if !ok {
		return nil, fmt.Errorf("adjustment %s: %w", id, adjust.ErrAdjustmentNotFound)
	}
	return cloneAdjustment(adj), nil
}

// ListAdjustments returns adjustments in creation order.
func (s *Store) ListAdjustments(_ context.Context, filter adjust.Filter) ([]*adjust.Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*adjust.Adjustment
	for _, id := range s.adjOrder {
		adj := s.adjustments[id]
		if filter.RecordID != "" && adj.RecordID != filter.RecordID {
			continue
		}
		if filter.Status != "" && adj.Status != filter.Status {
			continue
		}
		out = append(out, cloneAdjustment(adj))
	}
	return out, nil
}

func (s *Store) UpdateAdjustmentStatus(_ context.Context, adj *adjust.Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.adjustments[adj.ID]; !ok {
		return fmt.Errorf("adjustment %s: %w", adj.ID, adjust.ErrAdjustmentNotFound)
	}
	s.adjustments[adj.ID] = cloneAdjustment(adj)
	return nil
}

// =============================================================================
// AUDIT TRAIL (adjust.AuditLog)
// =============================================================================

func (s *Store) AppendEntry(_ context.Context, entry adjust.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.AdjustmentID] = append(s.entries[entry.AdjustmentID], entry)
	return nil
}

// ListEntries returns the trail oldest-first.
func (s *Store) ListEntries(_ context.Context, adjustmentID string) ([]adjust.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]adjust.LogEntry, len(s.entries[adjustmentID]))
	copy(out, s.entries[adjustmentID])
	return out, nil
}

// =============================================================================
// AUDIT RUNS (audit.RunRepository)
// =============================================================================

func (s *Store) CreateRun(_ context.Context, run *audit.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	s.runOrder = append(s.runOrder, run.ID)
	return nil
}

func (s *Store) UpdateRun(_ context.Context, run *audit.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, audit.ErrRunNotFound)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (*audit.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, audit.ErrRunNotFound)
	}
	return cloneRun(run), nil
}

// ListRuns returns runs in creation order, newest last.
func (s *Store) ListRuns(_ context.Context) ([]*audit.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*audit.Run, 0, len(s.runOrder))
	for _, id := range s.runOrder {
		out = append(out, cloneRun(s.runs[id]))
	}
	return out, nil
}

// =============================================================================
// AUDIT OUTPUTS (audit.ReportStore)
// =============================================================================

func (s *Store) SaveResults(_ context.Context, runID string, results []audit.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]audit.Result, len(results))
	copy(stored, results)
	s.results[runID] = stored
	return nil
}

func (s *Store) ListResults(_ context.Context, runID string) ([]audit.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Result, len(s.results[runID]))
	copy(out, s.results[runID])
	return out, nil
}

func (s *Store) SaveVariances(_ context.Context, runID string, items []audit.VarianceItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]audit.VarianceItem, len(items))
	copy(stored, items)
	s.variances[runID] = stored
	return nil
}

func (s *Store) ListVariances(_ context.Context, runID string) ([]audit.VarianceItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.VarianceItem, len(s.variances[runID]))
	copy(out, s.variances[runID])
	return out, nil
}

// =============================================================================
// CLONING
// =============================================================================

func cloneAdjustment(adj *adjust.Adjustment) *adjust.Adjustment {
	c := *adj
	c.ApprovedBy = cloneString(adj.ApprovedBy)
	c.ApprovedAt = cloneTime(adj.ApprovedAt)
	c.RevertedBy = cloneString(adj.RevertedBy)
	c.RevertedAt = cloneTime(adj.RevertedAt)
	return &c
}

func cloneRun(run *audit.Run) *audit.Run {
	c := *run
	c.CompletedAt = cloneTime(run.CompletedAt)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
