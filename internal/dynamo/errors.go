package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation setup and execution.
var (
	// ErrInvalidInput indicates a malformed or truncated run description.
	ErrInvalidInput = errors.New("dynamo: invalid input")

	// ErrRestart indicates the restart file could not be opened or parsed.
	ErrRestart = errors.New("dynamo: cannot read restart file")

	// ErrInvalidState indicates non-finite coordinates or velocities.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrContextCanceled indicates the run was interrupted between steps.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")
)

// StepError wraps a failure with the step and pipeline operation it occurred in.
type StepError struct {
	Step    int
	Op      string
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %s: %v", e.Step, e.Op, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
