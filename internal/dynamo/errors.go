package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration runs.
var (
	// ErrInvalidState indicates a state vector with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrInvalidConfig indicates a configuration rejected before integration.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrMissingParam indicates a derivative or integrator needed a named
	// parameter that was not supplied.
	ErrMissingParam = errors.New("dynamo: missing parameter")

	// ErrStepTooSmall indicates adaptive timestep fell below the configured minimum.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrStepLimit indicates the attempt ceiling was reached before TMax.
	ErrStepLimit = errors.New("dynamo: step limit reached before end time")

	// ErrNoConvergence indicates a Newton-Raphson solve exceeded its iteration budget.
	ErrNoConvergence = errors.New("dynamo: newton iteration did not converge")

	// ErrDimensionMismatch indicates a derivative returned a vector of the wrong length.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and derivative")
)

// SimulationError wraps an error with the step at which integration stopped.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// RequirePositive returns ErrInvalidConfig unless v > 0.
func RequirePositive(name string, v float64) error {
	if !(v > 0) {
		return invalidConfig("%s must be positive, got %g", name, v)
	}
	return nil
}
