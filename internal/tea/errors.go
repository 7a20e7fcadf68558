package tea

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFlow is returned when a simulator is handed a MAML with no steps.
	ErrEmptyFlow = errors.New("tea: process flow has no steps")

	// ErrUnresolvedTarget marks a run the simulator has no model for.
	ErrUnresolvedTarget = errors.New("tea: unresolved simulation target")

	// ErrDegenerateResult is returned instead of a NaN or infinite metric.
	ErrDegenerateResult = errors.New("tea: degenerate result")
)

// UnresolvedTargetError reports why a level could not model a MAML: no engine
// mapping for its feedstock/target, or no usable formula for a step.
type UnresolvedTargetError struct {
	Level  int
	Target string // process target or step type
	Reason string
	Err    error
}

func (e *UnresolvedTargetError) Error() string {
	msg := fmt.Sprintf("tea: level %d cannot resolve %s", e.Level, e.Target)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrUnresolvedTarget.
func (e *UnresolvedTargetError) Is(target error) bool { return target == ErrUnresolvedTarget }

func (e *UnresolvedTargetError) Unwrap() error { return e.Err }
