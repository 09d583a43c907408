// Package dynamo provides the core primitives shared by the ODE integrators.
//
// The package defines the fundamental types for initial-value problems
// dy/dt = f(y; p):
//
//   - [State]: vector of compartment values
//   - [Params]: named coefficients passed unchanged to every evaluation
//   - [Derivative]: the right-hand side f
//   - [Integrator]: pluggable integration algorithm
//   - [Trajectory]: accepted (t, y) records produced by one run
//
// # Example
//
//	integ := integrators.NewRKF45()
//	cfg := dynamo.DefaultConfig()
//	traj, err := integ.Integrate(physics.SIRDerivatives, y0, params, cfg)
//
// # Thread Safety
//
// Integrate calls are independent and reentrant as long as the derivative
// function is pure. None of them observe cancellation; callers that need it
// run the call on its own goroutine.
package dynamo
