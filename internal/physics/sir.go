package physics

import (
	"fmt"

	"github.com/san-kum/sirsim/internal/dynamo"
)

// Compartment indices within an SIR state vector.
const (
	Susceptible = iota
	Infected
	Recovered
)

const (
	ParamBeta  = "beta"
	ParamGamma = "gamma"
)

// Labels names the SIR compartments in state order.
var Labels = []string{"S", "I", "R"}

// SIRDerivatives is the mass-action SIR right-hand side, meant for
// compartments expressed as population fractions:
//
//	dS = -beta*S*I
//	dI =  beta*S*I - gamma*I
//	dR =  gamma*I
func SIRDerivatives(y dynamo.State, p dynamo.Params) dynamo.State {
	beta, gamma := p[ParamBeta], p[ParamGamma]
	s, i := y[Susceptible], y[Infected]

	infection := beta * s * i
	recovery := gamma * i

	return dynamo.State{-infection, infection - recovery, recovery}
}

// SIRDerivativesNormalized is the frequency-dependent form for absolute
// counts. The infection term is divided by N = S+I+R taken from y, which
// matches the residual equations of the backward-Euler integrator.
func SIRDerivativesNormalized(y dynamo.State, p dynamo.Params) dynamo.State {
	beta, gamma := p[ParamBeta], p[ParamGamma]
	s, i := y[Susceptible], y[Infected]

	n := s + i + y[Recovered]
	infection := 0.0
	if n > 0 {
		infection = beta * s * i / n
	}
	recovery := gamma * i

	return dynamo.State{-infection, infection - recovery, recovery}
}

// SIR bundles the two rate coefficients of the model.
type SIR struct {
	Beta  float64
	Gamma float64
}

func NewSIR(beta, gamma float64) *SIR {
	return &SIR{Beta: beta, Gamma: gamma}
}

func (m *SIR) StateDim() int {
	return 3
}

// R0 is the basic reproduction number beta/gamma.
func (m *SIR) R0() float64 {
	if m.Gamma == 0 {
		return 0
	}
	return m.Beta / m.Gamma
}

// Total is the conserved population S+I+R.
func (m *SIR) Total(y dynamo.State) float64 {
	return y[Susceptible] + y[Infected] + y[Recovered]
}

func (m *SIR) Params() dynamo.Params {
	return dynamo.Params{
		ParamBeta:  m.Beta,
		ParamGamma: m.Gamma,
	}
}

func (m *SIR) SetParam(name string, value float64) error {
	switch name {
	case ParamBeta:
		m.Beta = value
	case ParamGamma:
		m.Gamma = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}

// Derive evaluates the frequency-dependent right-hand side with the model's
// own coefficients.
func (m *SIR) Derive(y dynamo.State) dynamo.State {
	return SIRDerivativesNormalized(y, m.Params())
}
