// Package epidemic is the entry point for solving an SIR outbreak.
//
// A [Solver] binds one integrator chosen by the caller to the SIR derivative
// model, validates a [Problem] once at the boundary and returns the
// trajectory as (t, S, I, R) records:
//
//	solver := epidemic.New(integrators.NewRKF45(), epidemic.WithLogger(log))
//	res, err := solver.Solve(ctx, epidemic.Problem{
//		S0: 990, I0: 10, Beta: 0.3, Gamma: 0.1, TMax: 160,
//	})
//
// Integrators are blocking and have no interruption point. Solve runs them on
// a separate goroutine and returns ctx.Err() when the context ends first; the
// abandoned result is discarded.
//
// When an integrator fails part way, Solve returns the error together with a
// Result whose Partial flag is set. A short trajectory is never reported as a
// completed epidemic.
package epidemic
