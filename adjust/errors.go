/*
errors.go - Workflow error types

PURPOSE:
  Sentinels for errors.Is checks plus the structured StateError carrying
  which transition was refused and why.

SEE ALSO:
  - service.go: Where transitions are guarded
*/
package adjust

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAdjustmentNotFound is returned when the id resolves to nothing.
	ErrAdjustmentNotFound = errors.New("adjustment not found")

	// ErrInvalidAdjustmentState is returned when a transition is attempted
	// from a state that does not allow it.
	ErrInvalidAdjustmentState = errors.New("invalid adjustment state transition")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// StateError reports a refused transition: the action, the status it
// requires, and the status actually found.
type StateError struct {
	ID       string
	Action   Action
	Required Status
	Current  Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("can only %s %s adjustments, current status: %s",
		transitionVerb(e.Action), e.Required, e.Current)
}

func (e *StateError) Unwrap() error {
	return ErrInvalidAdjustmentState
}

func transitionVerb(a Action) string {
	switch a {
	case ActionApproved:
		return "approve"
	case ActionRejected:
		return "reject"
	case ActionReverted:
		return "revert"
	default:
		return string(a)
	}
}
