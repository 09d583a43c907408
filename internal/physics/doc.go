// Package physics provides the SIR compartment model.
//
// Two right-hand sides share the [dynamo.Derivative] signature:
//
//   - [SIRDerivatives]: mass-action form for population fractions
//   - [SIRDerivativesNormalized]: frequency-dependent form for absolute counts
//
// [SIR] wraps the rate coefficients and supports runtime parameter changes:
//
//	m := physics.NewSIR(0.3, 0.1)
//	_ = m.SetParam(physics.ParamBeta, 0.5)
//	dy := m.Derive(dynamo.State{990, 10, 0})
package physics
