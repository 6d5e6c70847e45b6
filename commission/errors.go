/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All error types for the core package in one place. Sentinels support
  errors.Is checks at call sites; structured errors carry context and
  unwrap to their sentinel.

ERROR CATEGORIES:
  1. Plan errors - invalid configuration, rejected at load
  2. Resolution errors - missing plan or assignment, recoverable
  3. State errors - YTD regressions, programming defects

RECOVERABILITY:
  ErrNoPlanAssigned is deliberately recoverable: batch callers substitute
  the reported value for the expected one instead of failing the batch.

SEE ALSO:
  - calculator.go: Signals ErrNoPlanAssigned
  - tracker.go: Signals YTD regressions
  - adjust: Workflow state errors live with the workflow
*/
package commission

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPlan is returned when a plan fails load-time validation.
	// Invalid plans are rejected, never silently coerced.
	ErrInvalidPlan = errors.New("invalid commission plan")

	// ErrNoPlanAssigned is returned when an agent has no active plan for a
	// transaction date. Callers fall back to the reported value rather than
	// failing the batch.
	ErrNoPlanAssigned = errors.New("no commission plan assigned")

	// ErrPlanNotFound is returned when an assignment references a plan that
	// was not loaded.
	ErrPlanNotFound = errors.New("commission plan not found")

	// ErrYTDRegression is returned when a commit would move cumulative
	// company dollar backwards within a period. This indicates out-of-order
	// processing, a programming defect.
	ErrYTDRegression = errors.New("ytd company dollar regression")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PlanValidationError describes the first violation found in a plan.
type PlanValidationError struct {
	PlanID PlanID
	Field  string
	Reason string
}

func (e *PlanValidationError) Error() string {
	if e.PlanID == "" {
		return fmt.Sprintf("invalid plan: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid plan %s: %s: %s", e.PlanID, e.Field, e.Reason)
}

func (e *PlanValidationError) Unwrap() error {
	return ErrInvalidPlan
}

// NoPlanError identifies which agent and date could not be resolved.
type NoPlanError struct {
	AgentName AgentName
	RecordID  RecordID
}

func (e *NoPlanError) Error() string {
	return fmt.Sprintf("no plan assigned for agent %q (record %s)", e.AgentName, e.RecordID)
}

func (e *NoPlanError) Unwrap() error {
	return ErrNoPlanAssigned
}

// YTDRegressionError reports an attempted backwards commit.
type YTDRegressionError struct {
	AgentName AgentName
	Period    Period
	Previous  Cents
	Committed Cents
}

func (e *YTDRegressionError) Error() string {
	return fmt.Sprintf("ytd regression for %q in %s: %s -> %s",
		e.AgentName, e.Period, e.Previous, e.Committed)
}

func (e *YTDRegressionError) Unwrap() error {
	return ErrYTDRegression
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRecoverable returns true if batch processing should substitute the
// reported value and continue rather than abort.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrNoPlanAssigned)
}

// IsClientError returns true if the error is due to invalid supplied
// configuration rather than an engine defect.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPlan) ||
		errors.Is(err, ErrPlanNotFound)
}
