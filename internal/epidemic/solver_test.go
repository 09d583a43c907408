package epidemic_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/epidemic"
	"github.com/san-kum/sirsim/internal/integrators"
	"github.com/san-kum/sirsim/internal/physics"
)

func textbook() epidemic.Problem {
	return epidemic.Problem{S0: 990, I0: 10, R0: 0, Beta: 0.3, Gamma: 0.1, TMax: 160}
}

// fractions is the textbook outbreak as population fractions, for the
// mass-action model.
func fractions() epidemic.Problem {
	return epidemic.Problem{S0: 0.99, I0: 0.01, R0: 0, Beta: 0.3, Gamma: 0.1, TMax: 160, Tol: 1e-5}
}

// blockingIntegrator never returns until release is closed.
type blockingIntegrator struct {
	release chan struct{}
}

func (b *blockingIntegrator) Name() string { return "blocking" }

func (b *blockingIntegrator) Integrate(f dynamo.Derivative, y0 dynamo.State, p dynamo.Params, cfg dynamo.Config) (*dynamo.Trajectory, error) {
	<-b.release
	tr := dynamo.NewTrajectory(1)
	tr.Append(0, y0)
	return tr, nil
}

// failingIntegrator records two steps and then fails.
type failingIntegrator struct{}

func (failingIntegrator) Name() string { return "failing" }

func (failingIntegrator) Integrate(f dynamo.Derivative, y0 dynamo.State, p dynamo.Params, cfg dynamo.Config) (*dynamo.Trajectory, error) {
	tr := dynamo.NewTrajectory(2)
	tr.Append(0, y0)
	tr.Append(1, y0)
	tr.Stats.Accepted = 1
	return tr, &dynamo.SimulationError{Step: 1, Time: 1, State: y0.Clone(), Wrapped: dynamo.ErrStepTooSmall}
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []error
	names []string
}

func (r *fakeRecorder) ObserveSolve(integrator string, stats dynamo.Stats, err error, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, err)
	r.names = append(r.names, integrator)
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var _ = Describe("Solver", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	DescribeTable("every integrator returns a well-formed trajectory",
		func(integ dynamo.Integrator, prob epidemic.Problem, deriv dynamo.Derivative) {
			res, err := epidemic.New(integ, epidemic.WithDerivative(deriv)).Solve(ctx, prob)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Partial).To(BeFalse())
			Expect(res.Integrator).To(Equal(integ.Name()))

			recs := res.Records()
			Expect(recs).NotTo(BeEmpty())
			Expect(recs[0]).To(Equal(epidemic.Record{T: 0, S: prob.S0, I: prob.I0, R: prob.R0}))

			for i, r := range recs {
				Expect(r.S).To(BeNumerically(">=", 0))
				Expect(r.I).To(BeNumerically(">=", 0))
				Expect(r.R).To(BeNumerically(">=", 0))
				Expect(r.S + r.I + r.R).To(BeNumerically("~", prob.Population(), 1e-3))
				if i > 0 {
					Expect(r.T).To(BeNumerically(">", recs[i-1].T))
				}
			}
			Expect(recs[len(recs)-1].T).To(BeNumerically("<=", prob.TMax))
		},
		Entry("doubling", integrators.NewDoubling(), fractions(), dynamo.Derivative(physics.SIRDerivatives)),
		Entry("rkf45", integrators.NewRKF45(), textbook(), dynamo.Derivative(nil)),
		Entry("backward euler", integrators.NewBackwardEuler(), textbook(), dynamo.Derivative(nil)),
		Entry("backward euler reduced", integrators.NewBackwardEulerReduced(), textbook(), dynamo.Derivative(nil)),
	)

	It("produces identical trajectories for identical inputs", func() {
		solver := epidemic.New(integrators.NewRKF45())
		a, err := solver.Solve(ctx, textbook())
		Expect(err).NotTo(HaveOccurred())
		b, err := solver.Solve(ctx, textbook())
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Trajectory).To(Equal(a.Trajectory))
	})

	It("applies per-problem tolerance and step overrides", func() {
		loose := fractions()
		loose.Tol = 1e-3
		tight := fractions()
		tight.Tol = 1e-4

		solver := epidemic.New(integrators.NewDoubling(), epidemic.WithDerivative(physics.SIRDerivatives))
		rl, err := solver.Solve(ctx, loose)
		Expect(err).NotTo(HaveOccurred())
		rt, err := solver.Solve(ctx, tight)
		Expect(err).NotTo(HaveOccurred())
		Expect(rt.Trajectory.Stats.Accepted).To(BeNumerically(">", rl.Trajectory.Stats.Accepted))

		coarse := textbook()
		coarse.Step = 1
		be := epidemic.New(integrators.NewBackwardEuler())
		rc, err := be.Solve(ctx, coarse)
		Expect(err).NotTo(HaveOccurred())
		Expect(rc.Trajectory.Times[1]).To(Equal(1.0))
	})

	It("accepts population fractions with the mass-action model", func() {
		prob := epidemic.Problem{S0: 0.99, I0: 0.01, Beta: 0.3, Gamma: 0.1, TMax: 160}
		solver := epidemic.New(integrators.NewRKF45(), epidemic.WithDerivative(physics.SIRDerivatives))

		res, err := solver.Solve(ctx, prob)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Summary.FinalR).To(BeNumerically(">", 0.8))
	})

	DescribeTable("treats a disease-free start as valid input",
		func(integ dynamo.Integrator) {
			prob := textbook()
			prob.I0 = 0

			res, err := epidemic.New(integ).Solve(ctx, prob)
			Expect(err).NotTo(HaveOccurred())
			for _, r := range res.Records() {
				Expect(r.S).To(Equal(prob.S0))
				Expect(r.I).To(BeZero())
				Expect(r.R).To(BeZero())
			}
			Expect(res.Summary.PeakInfected).To(BeZero())
			Expect(res.Summary.AttackRate).To(BeZero())
			Expect(res.Summary.Ended).To(BeTrue())
		},
		Entry("doubling", integrators.NewDoubling()),
		Entry("rkf45", integrators.NewRKF45()),
		Entry("backward euler", integrators.NewBackwardEuler()),
	)

	Describe("validation", func() {
		DescribeTable("rejects invalid problems before integrating",
			func(mutate func(*epidemic.Problem), field string) {
				rec := &fakeRecorder{}
				prob := textbook()
				mutate(&prob)

				res, err := epidemic.New(integrators.NewRKF45(), epidemic.WithRecorder(rec)).Solve(ctx, prob)
				Expect(res).To(BeNil())
				Expect(err).To(MatchError(dynamo.ErrInvalidConfig))
				Expect(err.Error()).To(ContainSubstring(field))
				Expect(rec.count()).To(BeZero())
			},
			Entry("negative S0", func(p *epidemic.Problem) { p.S0 = -1 }, "s0"),
			Entry("negative I0", func(p *epidemic.Problem) { p.I0 = -1 }, "i0"),
			Entry("negative R0", func(p *epidemic.Problem) { p.R0 = -5 }, "r0"),
			Entry("zero beta", func(p *epidemic.Problem) { p.Beta = 0 }, "beta"),
			Entry("negative gamma", func(p *epidemic.Problem) { p.Gamma = -0.1 }, "gamma"),
			Entry("zero horizon", func(p *epidemic.Problem) { p.TMax = 0 }, "t_max"),
			Entry("NaN beta", func(p *epidemic.Problem) { p.Beta = math.NaN() }, "beta"),
			Entry("negative tolerance", func(p *epidemic.Problem) { p.Tol = -1 }, "tol"),
		)

		It("requires an integrator", func() {
			_, err := epidemic.New(nil).Solve(ctx, textbook())
			Expect(err).To(MatchError(epidemic.ErrNoIntegrator))
		})
	})

	Describe("failures", func() {
		It("returns the partial trajectory with the integrator error", func() {
			rec := &fakeRecorder{}
			res, err := epidemic.New(failingIntegrator{}, epidemic.WithRecorder(rec)).Solve(ctx, textbook())

			Expect(err).To(MatchError(dynamo.ErrStepTooSmall))
			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(1))

			Expect(res).NotTo(BeNil())
			Expect(res.Partial).To(BeTrue())
			Expect(res.Records()).To(HaveLen(2))
			Expect(rec.count()).To(Equal(1))
		})

		It("surfaces step-size exhaustion from the Fehlberg integrator", func() {
			cfg := dynamo.DefaultConfig()
			cfg.Tol = 1e-9
			cfg.H0, cfg.HMin, cfg.HMax = 10, 9, 10

			res, err := epidemic.New(integrators.NewRKF45(), epidemic.WithConfig(cfg)).Solve(ctx, textbook())
			Expect(err).To(MatchError(dynamo.ErrStepTooSmall))
			Expect(res.Partial).To(BeTrue())
			Expect(res.Summary.FinalTime).To(BeNumerically("<", 160))
		})
	})

	Describe("cancellation", func() {
		It("returns when the context ends and discards the late result", func() {
			blocker := &blockingIntegrator{release: make(chan struct{})}
			defer close(blocker.release)

			rec := &fakeRecorder{}
			cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()

			res, err := epidemic.New(blocker, epidemic.WithRecorder(rec)).Solve(cctx, textbook())
			Expect(res).To(BeNil())
			Expect(err).To(MatchError(context.DeadlineExceeded))
			Expect(rec.count()).To(Equal(1))
		})

		It("does not start when the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := epidemic.New(integrators.NewRKF45()).Solve(cctx, textbook())
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("logging", func() {
		It("logs at debug level around each solve", func() {
			core, logs := observer.New(zap.DebugLevel)
			solver := epidemic.New(integrators.NewRKF45(), epidemic.WithLogger(zap.New(core)))

			_, err := solver.Solve(ctx, textbook())
			Expect(err).NotTo(HaveOccurred())
			Expect(logs.FilterMessage("solve started").Len()).To(Equal(1))
			Expect(logs.FilterMessage("solve finished").Len()).To(Equal(1))
			Expect(logs.All()[0].ContextMap()).To(HaveKeyWithValue("integrator", "rkf45"))
		})

		It("warns when a solve stops early", func() {
			core, logs := observer.New(zap.WarnLevel)
			solver := epidemic.New(failingIntegrator{}, epidemic.WithLogger(zap.New(core)))

			_, _ = solver.Solve(ctx, textbook())
			Expect(logs.FilterMessage("solve stopped early").Len()).To(Equal(1))
		})
	})
})
