package epidemic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/physics"
)

var ErrNoIntegrator = errors.New("epidemic: no integrator selected")

// Recorder receives one observation per finished or abandoned solve.
type Recorder interface {
	ObserveSolve(integrator string, stats dynamo.Stats, err error, elapsed time.Duration)
}

type Solver struct {
	integ     dynamo.Integrator
	deriv     dynamo.Derivative
	base      dynamo.Config
	threshold float64
	logger    *zap.Logger
	recorder  Recorder
}

type Option func(*Solver)

func WithLogger(l *zap.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Solver) { s.recorder = r }
}

// WithDerivative replaces the frequency-dependent SIR model, for example with
// physics.SIRDerivatives when compartments are fractions.
func WithDerivative(f dynamo.Derivative) Option {
	return func(s *Solver) {
		if f != nil {
			s.deriv = f
		}
	}
}

// WithConfig sets the integrator settings. Problem.TMax always wins over
// cfg.TMax.
func WithConfig(cfg dynamo.Config) Option {
	return func(s *Solver) { s.base = cfg }
}

// WithDurationThreshold sets the infected level below which the summary
// considers the epidemic over.
func WithDurationThreshold(v float64) Option {
	return func(s *Solver) {
		if v > 0 {
			s.threshold = v
		}
	}
}

func New(integ dynamo.Integrator, opts ...Option) *Solver {
	s := &Solver{
		integ:     integ,
		deriv:     physics.SIRDerivativesNormalized,
		base:      dynamo.DefaultConfig(),
		threshold: DefaultDurationThreshold,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Solver) Integrator() string {
	if s.integ == nil {
		return ""
	}
	return s.integ.Name()
}

// Result is a finished or partially finished solve.
type Result struct {
	Integrator string
	Problem    Problem
	Trajectory *dynamo.Trajectory
	Summary    Summary
	Elapsed    time.Duration

	// Partial is set when the integrator gave up before its stopping
	// condition. The error returned alongside says why.
	Partial bool
}

// Record is one (t, S, I, R) sample.
type Record struct {
	T float64 `json:"t"`
	S float64 `json:"s"`
	I float64 `json:"i"`
	R float64 `json:"r"`
}

func (r *Result) Records() []Record {
	if r == nil || r.Trajectory == nil {
		return nil
	}
	out := make([]Record, r.Trajectory.Len())
	for i, y := range r.Trajectory.States {
		out[i] = Record{
			T: r.Trajectory.Times[i],
			S: y[physics.Susceptible],
			I: y[physics.Infected],
			R: y[physics.Recovered],
		}
	}
	return out
}

type outcome struct {
	tr  *dynamo.Trajectory
	err error
}

// Solve validates prob, integrates it and summarises the trajectory. On
// integrator failure both the partial Result and the error are returned.
func (s *Solver) Solve(ctx context.Context, prob Problem) (*Result, error) {
	if s.integ == nil {
		return nil, ErrNoIntegrator
	}
	if err := prob.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := s.integ.Name()
	cfg := prob.settings(s.base)
	log := s.logger.With(zap.String("integrator", name))
	log.Debug("solve started",
		zap.Float64("s0", prob.S0),
		zap.Float64("i0", prob.I0),
		zap.Float64("r0", prob.R0),
		zap.Float64("beta", prob.Beta),
		zap.Float64("gamma", prob.Gamma),
		zap.Float64("t_max", cfg.TMax),
		zap.Float64("tol", cfg.Tol),
	)

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		tr, err := s.integ.Integrate(s.deriv, prob.InitialState(), prob.Params(), cfg)
		done <- outcome{tr: tr, err: err}
	}()

	var out outcome
	select {
	case <-ctx.Done():
		elapsed := time.Since(start)
		s.observe(name, dynamo.Stats{}, ctx.Err(), elapsed)
		log.Warn("solve abandoned", zap.Error(ctx.Err()), zap.Duration("elapsed", elapsed))
		return nil, ctx.Err()
	case out = <-done:
	}

	elapsed := time.Since(start)
	var stats dynamo.Stats
	if out.tr != nil {
		stats = out.tr.Stats
	}
	s.observe(name, stats, out.err, elapsed)

	if out.tr == nil {
		log.Error("solve failed", zap.Error(out.err))
		return nil, fmt.Errorf("epidemic: %s: %w", name, out.err)
	}

	res := &Result{
		Integrator: name,
		Problem:    prob,
		Trajectory: out.tr,
		Summary:    Summarize(out.tr, s.threshold),
		Elapsed:    elapsed,
		Partial:    out.err != nil,
	}

	if out.err != nil {
		log.Warn("solve stopped early",
			zap.Error(out.err),
			zap.Float64("t_end", res.Summary.FinalTime),
			zap.Int("records", out.tr.Len()),
		)
		return res, fmt.Errorf("epidemic: %s: %w", name, out.err)
	}

	log.Debug("solve finished",
		zap.Int("accepted", stats.Accepted),
		zap.Int("rejected", stats.Rejected),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

func (s *Solver) observe(name string, stats dynamo.Stats, err error, elapsed time.Duration) {
	if s.recorder != nil {
		s.recorder.ObserveSolve(name, stats, err, elapsed)
	}
}
