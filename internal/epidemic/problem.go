package epidemic

import (
	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/physics"
	"github.com/san-kum/sirsim/internal/validate"
)

// Problem is one SIR initial-value problem. Compartments are absolute counts
// unless the solver was built with a mass-action derivative, in which case
// they are fractions of the population.
type Problem struct {
	S0    float64 `json:"s0" yaml:"s0" validate:"finite,gte=0"`
	I0    float64 `json:"i0" yaml:"i0" validate:"finite,gte=0"`
	R0    float64 `json:"r0" yaml:"r0" validate:"finite,gte=0"`
	Beta  float64 `json:"beta" yaml:"beta" validate:"finite,gt=0"`
	Gamma float64 `json:"gamma" yaml:"gamma" validate:"finite,gt=0"`
	TMax  float64 `json:"t_max" yaml:"t_max" validate:"finite,gt=0"`

	// Tol and Step override the solver's configuration when positive.
	Tol  float64 `json:"tol,omitempty" yaml:"tol,omitempty" validate:"finite,gte=0"`
	Step float64 `json:"step,omitempty" yaml:"step,omitempty" validate:"finite,gte=0"`
}

// Validate reports every invalid field at once, wrapped in
// dynamo.ErrInvalidConfig.
func (p Problem) Validate() error {
	return validate.Struct(p)
}

func (p Problem) InitialState() dynamo.State {
	return dynamo.State{p.S0, p.I0, p.R0}
}

func (p Problem) Model() *physics.SIR {
	return physics.NewSIR(p.Beta, p.Gamma)
}

func (p Problem) Params() dynamo.Params {
	return p.Model().Params()
}

func (p Problem) Population() float64 {
	return p.Model().Total(p.InitialState())
}

// R0Number is the basic reproduction number beta/gamma.
func (p Problem) R0Number() float64 {
	return p.Model().R0()
}

// settings merges the per-problem overrides into base.
func (p Problem) settings(base dynamo.Config) dynamo.Config {
	cfg := base
	cfg.TMax = p.TMax
	if p.Tol > 0 {
		cfg.Tol = p.Tol
	}
	if p.Step > 0 {
		cfg.Step = p.Step
	}
	return cfg
}
