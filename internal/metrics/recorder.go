// Package metrics exports solver activity as Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/sirsim/internal/dynamo"
)

const namespace = "sirsim"

// Outcome labels.
const (
	OutcomeOK            = "ok"
	OutcomeCancelled     = "cancelled"
	OutcomeInvalid       = "invalid"
	OutcomeStepTooSmall  = "step_too_small"
	OutcomeStepLimit     = "step_limit"
	OutcomeNoConvergence = "no_convergence"
	OutcomeFailed        = "failed"
)

// Recorder counts solves, integration steps and wall time per integrator.
type Recorder struct {
	Solves      *prometheus.CounterVec
	Steps       *prometheus.CounterVec
	Evaluations *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
}

// NewRecorder registers the collectors with reg. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		Solves: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "solver",
				Name:      "solves_total",
				Help:      "Solves by integrator and outcome",
			},
			[]string{"integrator", "outcome"},
		),
		Steps: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "solver",
				Name:      "steps_total",
				Help:      "Integration steps by integrator and kind (accepted, rejected, newton)",
			},
			[]string{"integrator", "kind"},
		),
		Evaluations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "solver",
				Name:      "derivative_evaluations_total",
				Help:      "Derivative function calls by integrator",
			},
			[]string{"integrator"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "solver",
				Name:      "solve_duration_seconds",
				Help:      "Wall time of one solve in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"integrator"},
		),
	}
}

// ObserveSolve records one solve. err selects the outcome label.
func (r *Recorder) ObserveSolve(integrator string, stats dynamo.Stats, err error, elapsed time.Duration) {
	r.Solves.WithLabelValues(integrator, Outcome(err)).Inc()
	r.Steps.WithLabelValues(integrator, "accepted").Add(float64(stats.Accepted))
	r.Steps.WithLabelValues(integrator, "rejected").Add(float64(stats.Rejected))
	r.Steps.WithLabelValues(integrator, "newton").Add(float64(stats.NewtonIters))
	r.Evaluations.WithLabelValues(integrator).Add(float64(stats.Evaluations))
	r.Duration.WithLabelValues(integrator).Observe(elapsed.Seconds())
}

func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	case errors.Is(err, dynamo.ErrInvalidConfig), errors.Is(err, dynamo.ErrInvalidState):
		return OutcomeInvalid
	case errors.Is(err, dynamo.ErrStepTooSmall):
		return OutcomeStepTooSmall
	case errors.Is(err, dynamo.ErrStepLimit):
		return OutcomeStepLimit
	case errors.Is(err, dynamo.ErrNoConvergence):
		return OutcomeNoConvergence
	default:
		return OutcomeFailed
	}
}
