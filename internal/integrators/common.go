package integrators

import (
	"fmt"

	"github.com/san-kum/sirsim/internal/dynamo"
)

const maxPrealloc = 1 << 16

func validateExplicit(f dynamo.Derivative, y0 dynamo.State, cfg dynamo.Config) error {
	if f == nil {
		return fmt.Errorf("%w: derivative function is nil", dynamo.ErrInvalidConfig)
	}
	if len(y0) == 0 {
		return fmt.Errorf("%w: empty initial state", dynamo.ErrInvalidConfig)
	}
	if !y0.IsValid() {
		return dynamo.ErrInvalidState
	}
	if err := dynamo.RequirePositive("t_max", cfg.TMax); err != nil {
		return err
	}
	return dynamo.RequirePositive("tolerance", cfg.Tol)
}

func dimensionError(tr *dynamo.Trajectory, t float64, y dynamo.State, got int) error {
	return &dynamo.SimulationError{
		Step:    tr.Stats.Accepted,
		Time:    t,
		State:   y.Clone(),
		Wrapped: fmt.Errorf("%w: state has %d components, derivative returned %d", dynamo.ErrDimensionMismatch, len(y), got),
	}
}

func estimateCapacity(tMax, h float64) int {
	if h <= 0 {
		return 16
	}
	n := int(tMax/h) + 2
	if n > maxPrealloc {
		return maxPrealloc
	}
	if n < 16 {
		return 16
	}
	return n
}
