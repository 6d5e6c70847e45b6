/*
runner.go - Audit batch execution bookkeeping

PURPOSE:
  Wraps the engine with run records: each executed batch gets a Run row
  moving running -> completed/failed with summary counts, and its results
  and variance items are persisted for later retrieval. The engine itself
  stays pure; all side effects live here.

RUN IDS:
  AUD-<utc timestamp>-<short uuid>, e.g. AUD-20250315-143022-a1b2c3d4.
  Sortable by start time and unique under concurrent execution.

SEE ALSO:
  - engine.go: The pure computation being recorded
  - store/sqlite: The production repositories
*/
package audit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id does not exist in storage.
var ErrRunNotFound = errors.New("audit run not found")

// =============================================================================
// RUN RECORD
// =============================================================================

// RunStatus tracks a batch through its lifecycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the bookkeeping record for one executed batch.
type Run struct {
	ID          string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	Totals      Totals
}

// NewRunID builds a sortable unique run identifier.
func NewRunID(now time.Time) string {
	return fmt.Sprintf("AUD-%s-%s", now.UTC().Format("20060102-150405"), uuid.NewString()[:8])
}

// =============================================================================
// REPOSITORIES
// =============================================================================

// RunRepository persists run records.
type RunRepository interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context) ([]*Run, error)
}

// ReportStore persists the per-run outputs.
type ReportStore interface {
	SaveResults(ctx context.Context, runID string, results []Result) error
	ListResults(ctx context.Context, runID string) ([]Result, error)
	SaveVariances(ctx context.Context, runID string, items []VarianceItem) error
	ListVariances(ctx context.Context, runID string) ([]VarianceItem, error)
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes batches synchronously and records their outcome.
type Runner struct {
	Engine  *Engine
	Runs    RunRepository
	Reports ReportStore
}

// NewRunner wires a runner.
func NewRunner(engine *Engine, runs RunRepository, reports ReportStore) *Runner {
	return &Runner{Engine: engine, Runs: runs, Reports: reports}
}

// Execute runs the batch, persisting the run record and its outputs. The
// report is returned alongside the run so callers can derive summaries
// without re-reading storage.
func (r *Runner) Execute(ctx context.Context, input Input) (*Run, *Report, error) {
	started := time.Now().UTC()
	run := &Run{
		ID:        NewRunID(started),
		Status:    RunRunning,
		StartedAt: started,
	}
	if err := r.Runs.CreateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("failed to create run record: %w", err)
	}
	log.Printf("[Audit] run %s started: %d records", run.ID, len(input.Records))

	report, err := r.Engine.Run(ctx, input)
	if err != nil {
		r.fail(ctx, run, err)
		return run, nil, err
	}

	if r.Reports != nil {
		if err := r.Reports.SaveResults(ctx, run.ID, report.Results); err != nil {
			r.fail(ctx, run, err)
			return run, report, fmt.Errorf("failed to save results: %w", err)
		}
		if err := r.Reports.SaveVariances(ctx, run.ID, report.Variances); err != nil {
			r.fail(ctx, run, err)
			return run, report, fmt.Errorf("failed to save variances: %w", err)
		}
	}

	completed := time.Now().UTC()
	run.Status = RunCompleted
	run.CompletedAt = &completed
	run.Totals = report.Totals
	if err := r.Runs.UpdateRun(ctx, run); err != nil {
		return run, report, fmt.Errorf("failed to record run completion: %w", err)
	}

	log.Printf("[Audit] run %s completed: %d records, %d match, %d underpaid, %d overpaid",
		run.ID, run.Totals.Records, run.Totals.Matches, run.Totals.Underpaid, run.Totals.Overpaid)
	return run, report, nil
}

func (r *Runner) fail(ctx context.Context, run *Run, cause error) {
	completed := time.Now().UTC()
	run.Status = RunFailed
	run.Error = cause.Error()
	run.CompletedAt = &completed
	if err := r.Runs.UpdateRun(ctx, run); err != nil {
		log.Printf("[Audit] failed to record failed run %s: %v", run.ID, err)
	}
}
