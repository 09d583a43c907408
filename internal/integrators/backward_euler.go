package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/linalg"
)

// NewtonMode selects how the backward-Euler correction is computed.
type NewtonMode int

const (
	// NewtonFull solves the complete 3x3 Jacobian system.
	NewtonFull NewtonMode = iota
	// NewtonReduced solves only the S-I block in closed form and corrects R
	// from its own residual. It is an approximation of the Newton step that
	// still converges because the R equation is linear.
	NewtonReduced
)

func (m NewtonMode) String() string {
	if m == NewtonReduced {
		return "reduced"
	}
	return "full"
}

// BackwardEuler is the fixed-step implicit integrator for the SIR system.
// The update equations and their Jacobian are specific to SIR, so Integrate
// ignores the derivative function it is handed.
type BackwardEuler struct {
	Mode NewtonMode
}

func NewBackwardEuler() *BackwardEuler {
	return &BackwardEuler{Mode: NewtonFull}
}

func NewBackwardEulerReduced() *BackwardEuler {
	return &BackwardEuler{Mode: NewtonReduced}
}

func (b *BackwardEuler) Name() string {
	if b.Mode == NewtonReduced {
		return "backward-euler-reduced"
	}
	return "backward-euler"
}

// Integrate adapts IntegrateSIR to the generic integrator interface. y0 must
// hold [S, I, R] and p must carry beta and gamma.
func (b *BackwardEuler) Integrate(_ dynamo.Derivative, y0 dynamo.State, p dynamo.Params, cfg dynamo.Config) (*dynamo.Trajectory, error) {
	if len(y0) != 3 {
		return nil, fmt.Errorf("%w: backward euler needs 3 compartments, got %d", dynamo.ErrDimensionMismatch, len(y0))
	}
	beta, err := p.Get("beta")
	if err != nil {
		return nil, err
	}
	gamma, err := p.Get("gamma")
	if err != nil {
		return nil, err
	}
	return b.IntegrateSIR(y0[0], y0[1], y0[2], beta, gamma, cfg)
}

// IntegrateSIR advances (S, I, R) with fixed step cfg.Step until cfg.TMax or
// until I falls below cfg.Extinction. A step whose Newton solve does not
// converge within cfg.MaxIter iterations ends the run with ErrNoConvergence;
// the trajectory up to the previous step is still returned.
func (b *BackwardEuler) IntegrateSIR(s0, i0, r0, beta, gamma float64, cfg dynamo.Config) (*dynamo.Trajectory, error) {
	y := dynamo.State{s0, i0, r0}
	if !y.IsValid() {
		return nil, dynamo.ErrInvalidState
	}
	for _, check := range []struct {
		name string
		v    float64
	}{
		{"t_max", cfg.TMax},
		{"step", cfg.Step},
		{"tolerance", cfg.Tol},
	} {
		if err := dynamo.RequirePositive(check.name, check.v); err != nil {
			return nil, err
		}
	}
	if cfg.MaxIter <= 0 {
		return nil, fmt.Errorf("%w: max_iter must be positive, got %d", dynamo.ErrInvalidConfig, cfg.MaxIter)
	}

	extinction := cfg.Extinction
	if extinction <= 0 {
		extinction = dynamo.DefaultConfig().Extinction
	}

	t := 0.0
	tr := dynamo.NewTrajectory(estimateCapacity(cfg.TMax, cfg.Step))
	tr.Append(t, y)

	step := 0
	for t < cfg.TMax && y[1] >= extinction {
		h := cfg.Step
		if t+h > cfg.TMax {
			h = cfg.TMax - t
		}

		nr := newtonStep{
			prev:  y,
			h:     h,
			beta:  beta,
			gamma: gamma,
			n:     y.Sum(),
			mode:  b.Mode,
		}
		next, iters, err := nr.solve(cfg.Tol, cfg.MaxIter)
		tr.Stats.NewtonIters += iters
		if err != nil {
			return tr, &dynamo.SimulationError{Step: tr.Stats.Accepted, Time: t, State: y.Clone(), Wrapped: err}
		}

		step++
		t = float64(step) * cfg.Step
		if t > cfg.TMax {
			t = cfg.TMax
		}
		y = next
		tr.Append(t, y)
		tr.Stats.Accepted++
	}

	return tr, nil
}

// newtonStep holds one backward-Euler time step. N is frozen at the
// population of the previous accepted state.
type newtonStep struct {
	prev        dynamo.State
	h           float64
	beta, gamma float64
	n           float64
	mode        NewtonMode
}

func (s *newtonStep) residual(x dynamo.State) dynamo.State {
	hb := s.h * s.beta / s.n
	sn, in, rn := x[0], x[1], x[2]
	return dynamo.State{
		sn - s.prev[0] + hb*sn*in,
		in - s.prev[1] - (hb*sn*in - s.h*s.gamma*in),
		rn - s.prev[2] - s.h*s.gamma*in,
	}
}

func (s *newtonStep) jacobian(x dynamo.State) [][]float64 {
	hb := s.h * s.beta / s.n
	sn, in := x[0], x[1]
	return [][]float64{
		{1 + hb*in, hb * sn, 0},
		{-hb * in, 1 - hb*sn + s.h*s.gamma, 0},
		{0, -s.h * s.gamma, 1},
	}
}

// solve runs Newton-Raphson from the previous state. Every iteration applies
// a correction before testing the residual, so a nearly-extinct epidemic
// still moves forward.
func (s *newtonStep) solve(tol float64, maxIter int) (dynamo.State, int, error) {
	x := s.prev.Clone()
	if s.n <= 0 {
		return x, 0, nil
	}

	f := s.residual(x)
	for iter := 1; iter <= maxIter; iter++ {
		delta, err := s.correction(x, f)
		if err != nil {
			return nil, iter, err
		}
		for i := range x {
			x[i] = math.Max(0, x[i]+delta[i])
		}

		f = s.residual(x)
		if maxAbs(f) < tol {
			return x, iter, nil
		}
	}

	return nil, maxIter, fmt.Errorf("%w: residual %.3g after %d iterations", dynamo.ErrNoConvergence, maxAbs(f), maxIter)
}

func (s *newtonStep) correction(x, f dynamo.State) (dynamo.State, error) {
	j := s.jacobian(x)

	if s.mode == NewtonReduced {
		det := j[0][0]*j[1][1] - j[0][1]*j[1][0]
		if math.Abs(det) < linalg.PivotEpsilon {
			return nil, fmt.Errorf("%w: S-I block determinant %g", linalg.ErrSingular, det)
		}
		return dynamo.State{
			(-f[0]*j[1][1] + j[0][1]*f[1]) / det,
			(-j[0][0]*f[1] + j[1][0]*f[0]) / det,
			-f[2],
		}, nil
	}

	rhs := []float64{-f[0], -f[1], -f[2]}
	delta, err := linalg.SolveInPlace(j, rhs)
	if err != nil {
		return nil, err
	}
	return dynamo.State(delta), nil
}

func maxAbs(v dynamo.State) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}
