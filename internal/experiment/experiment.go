package experiment

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/sirsim/internal/config"
	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/epidemic"
	"github.com/san-kum/sirsim/internal/integrators"
)

// fractionSlack is how far S0+I0+R0 may sit from 1 for a population to count
// as fractions.
const fractionSlack = 1e-9

// Experiment is a validated config bound to its integrator and model.
type Experiment struct {
	cfg    *config.Config
	solver *epidemic.Solver
}

// New validates cfg and resolves its integrator and model through reg. opts
// are applied after the config-derived options, so a caller can still attach
// a logger or recorder.
func New(cfg *config.Config, reg *Registry, opts ...epidemic.Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	deriv, err := reg.GetModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	if err := checkImplicitModel(cfg, integ); err != nil {
		return nil, err
	}

	all := append([]epidemic.Option{
		epidemic.WithConfig(cfg.Settings()),
		epidemic.WithDerivative(deriv),
	}, opts...)

	return &Experiment{
		cfg:    cfg.Clone(),
		solver: epidemic.New(integ, all...),
	}, nil
}

// checkImplicitModel rejects mass-action with backward Euler on counts. The
// implicit integrators hard-code the beta*S*I/N equations, which agree with
// mass-action only when N = 1.
func checkImplicitModel(cfg *config.Config, integ dynamo.Integrator) error {
	if _, implicit := integ.(*integrators.BackwardEuler); !implicit || cfg.Model != "mass-action" {
		return nil
	}
	n := cfg.Problem().Population()
	if math.Abs(n-1) > fractionSlack {
		return fmt.Errorf("%w: %s solves the normalized model; mass-action needs fractions summing to 1, got population %g",
			dynamo.ErrInvalidConfig, integ.Name(), n)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*epidemic.Result, error) {
	return e.solver.Solve(ctx, e.cfg.Problem())
}

func (e *Experiment) Config() *config.Config {
	return e.cfg
}
