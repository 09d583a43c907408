package integrators

import (
	"math"

	"github.com/san-kum/sirsim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// Doubling is the general-purpose adaptive integrator. Each attempt compares
// a half-step Euler estimate y + h*k1/2 with the midpoint estimate y + h*k2,
// halving h on rejection and doubling it after a comfortably accurate step.
//
// The estimate is about h*|f|/2, first order in h, so the step needed for a
// given tolerance shrinks with the size of the derivative. It suits
// population fractions; on absolute counts the tolerance must be scaled up
// with the population or the run hits MaxSteps long before TMax.
type Doubling struct {
	growBelow float64
}

func NewDoubling() *Doubling {
	return &Doubling{growBelow: 0.5}
}

func (d *Doubling) Name() string { return "doubling" }

func (d *Doubling) Integrate(f dynamo.Derivative, y0 dynamo.State, p dynamo.Params, cfg dynamo.Config) (*dynamo.Trajectory, error) {
	if err := validateExplicit(f, y0, cfg); err != nil {
		return nil, err
	}

	n := len(y0)
	h := cfg.H0
	if h <= 0 {
		h = dynamo.DefaultConfig().H0
	}
	if cfg.HMax > 0 && h > cfg.HMax {
		h = cfg.HMax
	}

	y := y0.Clone()
	t := 0.0
	tr := dynamo.NewTrajectory(estimateCapacity(cfg.TMax, h))
	tr.Append(t, y)

	yHalf := make(dynamo.State, n)
	yNext := make(dynamo.State, n)
	attempts := 0

	for t < cfg.TMax {
		if cfg.MaxSteps > 0 && attempts >= cfg.MaxSteps {
			return tr, &dynamo.SimulationError{Step: tr.Stats.Accepted, Time: t, State: y.Clone(), Wrapped: dynamo.ErrStepLimit}
		}
		attempts++

		step, last := h, false
		if t+step >= cfg.TMax {
			step, last = cfg.TMax-t, true
		}

		k1 := f(y, p)
		if len(k1) != n {
			return tr, dimensionError(tr, t, y, len(k1))
		}
		floats.AddScaledTo(yHalf, y, step/2, k1)

		k2 := f(yHalf, p)
		if len(k2) != n {
			return tr, dimensionError(tr, t, y, len(k2))
		}
		floats.AddScaledTo(yNext, y, step, k2)
		tr.Stats.Evaluations += 2

		errEst := floats.Distance(yNext, yHalf, math.Inf(1))

		if !(errEst <= cfg.Tol) || (cfg.NonNegative && !yNext.NonNegative()) {
			h = step / 2
			tr.Stats.Rejected++
			continue
		}

		if last {
			t = cfg.TMax
		} else {
			t += step
		}
		copy(y, yNext)
		tr.Append(t, y)
		tr.Stats.Accepted++

		if errEst < cfg.Tol*d.growBelow {
			h = step * 2
			if cfg.HMax > 0 && h > cfg.HMax {
				h = cfg.HMax
			}
		} else {
			h = step
		}
	}

	return tr, nil
}
