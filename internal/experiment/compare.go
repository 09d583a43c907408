package experiment

import (
	"context"

	"github.com/san-kum/sirsim/internal/config"
	"github.com/san-kum/sirsim/internal/epidemic"
)

// Comparison is one integrator's run of a shared config.
type Comparison struct {
	Integrator string
	Result     *epidemic.Result
	Err        error
}

// Compare runs cfg once per integrator name, one after another so wall times
// are comparable. An unknown name is reported in that entry's Err.
func Compare(ctx context.Context, cfg *config.Config, reg *Registry, names []string, opts ...epidemic.Option) []Comparison {
	out := make([]Comparison, 0, len(names))
	for _, name := range names {
		c := cfg.Clone()
		c.Integrator = name

		cmp := Comparison{Integrator: name}
		exp, err := New(c, reg, opts...)
		if err != nil {
			cmp.Err = err
		} else {
			cmp.Result, cmp.Err = exp.Run(ctx)
		}
		out = append(out, cmp)
	}
	return out
}
