package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/integrators"
	"github.com/san-kum/sirsim/internal/physics"
)

// Registry maps the names used in configs and on the command line to
// integrators and derivative models.
type Registry struct {
	models      map[string]dynamo.Derivative
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]dynamo.Derivative),
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.models["normalized"] = physics.SIRDerivativesNormalized
	r.models["mass-action"] = physics.SIRDerivatives

	r.integrators["doubling"] = func() dynamo.Integrator { return integrators.NewDoubling() }
	r.integrators["rkf45"] = func() dynamo.Integrator { return integrators.NewRKF45() }
	r.integrators["backward-euler"] = func() dynamo.Integrator { return integrators.NewBackwardEuler() }
	r.integrators["backward-euler-reduced"] = func() dynamo.Integrator { return integrators.NewBackwardEulerReduced() }

	return r
}

func (r *Registry) GetModel(name string) (dynamo.Derivative, error) {
	f, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s (available: %v)", name, r.ListModels())
	}
	return f, nil
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s (available: %v)", name, r.ListIntegrators())
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.models)
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
