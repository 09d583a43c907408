package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/sirsim/internal/config"
	"github.com/san-kum/sirsim/internal/epidemic"
)

// Sweep solves one problem for every (beta, gamma) pair of a grid.
type Sweep struct {
	Betas   []float64
	Gammas  []float64
	Workers int
}

// SweepPoint is one grid cell. Err holds an integrator failure for this cell
// only; the rest of the sweep still runs.
type SweepPoint struct {
	Beta   float64
	Gamma  float64
	Result *epidemic.Result
	Err    error
}

func NewSweep(betas, gammas []float64) *Sweep {
	return &Sweep{Betas: betas, Gammas: gammas, Workers: runtime.GOMAXPROCS(0)}
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// Run solves the grid concurrently. Points come back beta-major in grid
// order. An invalid cell config or a cancelled context stops the whole sweep.
func (s *Sweep) Run(ctx context.Context, base *config.Config, reg *Registry, opts ...epidemic.Option) ([]SweepPoint, error) {
	if len(s.Betas) == 0 || len(s.Gammas) == 0 {
		return nil, fmt.Errorf("sweep: empty grid (%d betas, %d gammas)", len(s.Betas), len(s.Gammas))
	}

	points := make([]SweepPoint, 0, len(s.Betas)*len(s.Gammas))
	for _, b := range s.Betas {
		for _, g := range s.Gammas {
			points = append(points, SweepPoint{Beta: b, Gamma: g})
		}
	}

	exps := make([]*Experiment, len(points))
	for i, p := range points {
		cfg := base.Clone()
		cfg.Rates.Beta = p.Beta
		cfg.Rates.Gamma = p.Gamma

		exp, err := New(cfg, reg, opts...)
		if err != nil {
			return nil, fmt.Errorf("sweep: beta=%g gamma=%g: %w", p.Beta, p.Gamma, err)
		}
		exps[i] = exp
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.Workers > 0 {
		g.SetLimit(s.Workers)
	}

	for i, exp := range exps {
		g.Go(func() error {
			res, err := exp.Run(gctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			points[i].Result, points[i].Err = res, err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}

// Best returns the point minimising metric among cells that finished
// without error.
func Best(points []SweepPoint, metric string) (SweepPoint, bool) {
	best := math.Inf(1)
	var out SweepPoint
	found := false
	for _, p := range points {
		if p.Err != nil || p.Result == nil {
			continue
		}
		v, ok := p.Result.Summary.Metrics()[metric]
		if !ok {
			continue
		}
		if v < best {
			best, out, found = v, p, true
		}
	}
	return out, found
}
