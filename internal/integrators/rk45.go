package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/sirsim/internal/dynamo"
)

// Runge-Kutta-Fehlberg 4(5) coefficients
var (
	b21 = 1.0 / 4.0
	b31 = 3.0 / 32.0
	b32 = 9.0 / 32.0
	b41 = 1932.0 / 2197.0
	b42 = -7200.0 / 2197.0
	b43 = 7296.0 / 2197.0
	b51 = 439.0 / 216.0
	b52 = -8.0
	b53 = 3680.0 / 513.0
	b54 = -845.0 / 4104.0
	b61 = -8.0 / 27.0
	b62 = 2.0
	b63 = -3544.0 / 2565.0
	b64 = 1859.0 / 4104.0
	b65 = -11.0 / 40.0

	// 5th order weights
	c1 = 16.0 / 135.0
	c3 = 6656.0 / 12825.0
	c4 = 28561.0 / 56430.0
	c5 = -9.0 / 50.0
	c6 = 2.0 / 55.0

	// 4th order weights minus 5th order weights
	dc1 = 25.0/216.0 - c1
	dc3 = 1408.0/2565.0 - c3
	dc4 = 2197.0/4104.0 - c4
	dc5 = -1.0/5.0 - c5
	dc6 = -c6
)

// RKF45 is the six-stage embedded Fehlberg integrator. The struct only holds
// controller constants, so one instance may serve concurrent calls.
type RKF45 struct {
	safety    float64
	minScale  float64
	growScale float64
	tiny      float64
}

type fehlbergWork struct {
	k       [6]dynamo.State
	scratch dynamo.State
	y4, y5  dynamo.State
	badLen  int
}

func newFehlbergWork(n int) *fehlbergWork {
	w := &fehlbergWork{
		scratch: make(dynamo.State, n),
		y4:      make(dynamo.State, n),
		y5:      make(dynamo.State, n),
	}
	for i := range w.k {
		w.k[i] = make(dynamo.State, n)
	}
	return w
}

func NewRKF45() *RKF45 {
	return &RKF45{
		safety:    0.84,
		minScale:  0.1,
		growScale: 2.0,
		tiny:      1e-10,
	}
}

func (r *RKF45) Name() string { return "rkf45" }

func (r *RKF45) Integrate(f dynamo.Derivative, y0 dynamo.State, p dynamo.Params, cfg dynamo.Config) (*dynamo.Trajectory, error) {
	if err := validateExplicit(f, y0, cfg); err != nil {
		return nil, err
	}
	if err := dynamo.RequirePositive("h_min", cfg.HMin); err != nil {
		return nil, err
	}
	if err := dynamo.RequirePositive("h_max", cfg.HMax); err != nil {
		return nil, err
	}
	if cfg.HMin > cfg.HMax {
		return nil, fmt.Errorf("%w: h_min %g exceeds h_max %g", dynamo.ErrInvalidConfig, cfg.HMin, cfg.HMax)
	}

	w := newFehlbergWork(len(y0))

	h := cfg.H0
	if h <= 0 || h > cfg.HMax {
		h = cfg.HMax
	}

	y := y0.Clone()
	t := 0.0
	tr := dynamo.NewTrajectory(estimateCapacity(cfg.TMax, h))
	tr.Append(t, y)
	attempts := 0

	for t < cfg.TMax {
		if cfg.MaxSteps > 0 && attempts >= cfg.MaxSteps {
			return tr, &dynamo.SimulationError{Step: tr.Stats.Accepted, Time: t, State: y.Clone(), Wrapped: dynamo.ErrStepLimit}
		}
		attempts++

		last := false
		if t+h >= cfg.TMax {
			h, last = cfg.TMax-t, true
		}

		errEst, err := r.stages(w, f, y, p, h)
		if err != nil {
			return tr, dimensionError(tr, t, y, w.badLen)
		}
		tr.Stats.Evaluations += 6

		if !(errEst <= cfg.Tol) || (cfg.NonNegative && !w.y5.NonNegative()) {
			tr.Stats.Rejected++
			h *= r.shrink(errEst, cfg.Tol)
			if h < cfg.HMin {
				return tr, &dynamo.SimulationError{Step: tr.Stats.Accepted, Time: t, State: y.Clone(), Wrapped: dynamo.ErrStepTooSmall}
			}
			continue
		}

		if last {
			t = cfg.TMax
		} else {
			t += h
		}
		copy(y, w.y5)
		tr.Append(t, y)
		tr.Stats.Accepted++

		if errEst < r.tiny || errEst < cfg.Tol/10 {
			h = math.Min(h*r.growScale, cfg.HMax)
		}
	}

	return tr, nil
}

// shrink returns the factor applied to h after a rejected step.
func (r *RKF45) shrink(errEst, tol float64) float64 {
	if math.IsNaN(errEst) || math.IsInf(errEst, 0) {
		return r.minScale
	}
	if errEst <= tol {
		// rejected for leaving the non-negative orthant, not for accuracy
		return 0.5
	}
	return math.Max(r.minScale, r.safety*math.Pow(tol/errEst, 0.25))
}

// stages evaluates the six Fehlberg stages from y with step h, leaves the
// 4th and 5th order solutions in w.y4 and w.y5, and returns their max-norm
// difference.
func (r *RKF45) stages(w *fehlbergWork, f dynamo.Derivative, y dynamo.State, p dynamo.Params, h float64) (float64, error) {
	n := len(y)
	k := &w.k
	x := w.scratch

	eval := func(dst dynamo.State, in dynamo.State) error {
		out := f(in, p)
		if len(out) != n {
			w.badLen = len(out)
			return dynamo.ErrDimensionMismatch
		}
		copy(dst, out)
		return nil
	}

	if err := eval(k[0], y); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		x[i] = y[i] + h*b21*k[0][i]
	}
	if err := eval(k[1], x); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		x[i] = y[i] + h*(b31*k[0][i]+b32*k[1][i])
	}
	if err := eval(k[2], x); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		x[i] = y[i] + h*(b41*k[0][i]+b42*k[1][i]+b43*k[2][i])
	}
	if err := eval(k[3], x); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		x[i] = y[i] + h*(b51*k[0][i]+b52*k[1][i]+b53*k[2][i]+b54*k[3][i])
	}
	if err := eval(k[4], x); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		x[i] = y[i] + h*(b61*k[0][i]+b62*k[1][i]+b63*k[2][i]+b64*k[3][i]+b65*k[4][i])
	}
	if err := eval(k[5], x); err != nil {
		return 0, err
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		w.y5[i] = y[i] + h*(c1*k[0][i]+c3*k[2][i]+c4*k[3][i]+c5*k[4][i]+c6*k[5][i])
		diff := h * (dc1*k[0][i] + dc3*k[2][i] + dc4*k[3][i] + dc5*k[4][i] + dc6*k[5][i])
		w.y4[i] = w.y5[i] + diff
		errMax = math.Max(errMax, math.Abs(diff))
	}

	return errMax, nil
}
