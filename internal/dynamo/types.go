package dynamo

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Sum() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum
}

// NonNegative reports whether every component is >= 0.
func (s State) NonNegative() bool {
	for _, v := range s {
		if v < 0 {
			return false
		}
	}
	return true
}

// Params holds named model coefficients. Integrators pass it through to the
// derivative function unchanged.
type Params map[string]float64

func (p Params) Get(name string) (float64, error) {
	v, ok := p[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingParam, name)
	}
	return v, nil
}

func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Derivative computes dy/dt for state y. It must return a fresh slice of the
// same length as y and must not retain or modify y.
type Derivative func(y State, p Params) State

// Integrator advances an initial state from t=0 to cfg.TMax (or an earlier
// stopping condition) and returns every accepted step.
type Integrator interface {
	Name() string
	Integrate(f Derivative, y0 State, p Params, cfg Config) (*Trajectory, error)
}

// Config carries the stopping and tolerance settings shared by all
// integrators. Each integrator reads only the fields it needs.
type Config struct {
	TMax float64
	Tol  float64

	// explicit adaptive methods
	H0       float64
	HMin     float64
	HMax     float64
	MaxSteps int

	// fixed-step implicit methods
	Step       float64
	MaxIter    int
	Extinction float64

	// NonNegative rejects trial steps that would drive a compartment below
	// zero.
	NonNegative bool
}

func DefaultConfig() Config {
	return Config{
		TMax:        160.0,
		Tol:         1e-6,
		H0:          0.1,
		HMin:        1e-6,
		HMax:        1.0,
		MaxSteps:    1_000_000,
		Step:        0.1,
		MaxIter:     50,
		Extinction:  1e-6,
		NonNegative: true,
	}
}

// Stats counts the work done by one Integrate call.
type Stats struct {
	Accepted    int
	Rejected    int
	Evaluations int
	NewtonIters int
}

// Trajectory is the ordered record of accepted steps, starting at t=0.
type Trajectory struct {
	Times  []float64
	States []State
	Stats  Stats
}

func NewTrajectory(capacity int) *Trajectory {
	return &Trajectory{
		Times:  make([]float64, 0, capacity),
		States: make([]State, 0, capacity),
	}
}

// Append records a copy of y at time t.
func (tr *Trajectory) Append(t float64, y State) {
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, y.Clone())
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

func (tr *Trajectory) Last() (float64, State) {
	n := len(tr.Times)
	if n == 0 {
		return 0, nil
	}
	return tr.Times[n-1], tr.States[n-1]
}

// Column extracts component idx across all records.
func (tr *Trajectory) Column(idx int) []float64 {
	col := make([]float64, len(tr.States))
	for i, s := range tr.States {
		if idx < len(s) {
			col[i] = s[idx]
		}
	}
	return col
}
