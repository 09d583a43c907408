package physics

import (
	"math"
	"testing"

	"github.com/san-kum/sirsim/internal/dynamo"
)

func TestSIRDerivativesMassAction(t *testing.T) {
	p := dynamo.Params{"beta": 0.5, "gamma": 0.1}
	y := dynamo.State{0.9, 0.1, 0.0}

	dy := SIRDerivatives(y, p)

	if len(dy) != 3 {
		t.Fatalf("expected 3 derivatives, got %d", len(dy))
	}

	expectedS := -0.5 * 0.9 * 0.1
	expectedI := 0.5*0.9*0.1 - 0.1*0.1
	expectedR := 0.1 * 0.1

	if math.Abs(dy[0]-expectedS) > 1e-15 {
		t.Errorf("dS: expected %g, got %g", expectedS, dy[0])
	}
	if math.Abs(dy[1]-expectedI) > 1e-15 {
		t.Errorf("dI: expected %g, got %g", expectedI, dy[1])
	}
	if math.Abs(dy[2]-expectedR) > 1e-15 {
		t.Errorf("dR: expected %g, got %g", expectedR, dy[2])
	}
}

func TestSIRDerivativesConserveTotal(t *testing.T) {
	p := dynamo.Params{"beta": 0.3, "gamma": 0.1}
	states := []dynamo.State{
		{990, 10, 0},
		{500, 300, 200},
		{0.2, 1e-7, 0.8},
	}

	for _, y := range states {
		for name, f := range map[string]dynamo.Derivative{
			"mass_action": SIRDerivatives,
			"normalized":  SIRDerivativesNormalized,
		} {
			dy := f(y, p)
			if math.Abs(dy.Sum()) > 1e-12*math.Max(1, y.Sum()) {
				t.Errorf("%s at %v: derivative sum %g, want 0", name, y, dy.Sum())
			}
		}
	}
}

func TestSIRDerivativesNormalizedScaleInvariant(t *testing.T) {
	p := dynamo.Params{"beta": 0.3, "gamma": 0.1}
	counts := SIRDerivativesNormalized(dynamo.State{990, 10, 0}, p)
	fractions := SIRDerivativesNormalized(dynamo.State{0.99, 0.01, 0}, p)

	for i := range counts {
		if math.Abs(counts[i]/1000-fractions[i]) > 1e-15 {
			t.Errorf("component %d: counts/N=%g fractions=%g", i, counts[i]/1000, fractions[i])
		}
	}
}

func TestSIRDerivativesEmptyPopulation(t *testing.T) {
	dy := SIRDerivativesNormalized(dynamo.State{0, 0, 0}, dynamo.Params{"beta": 0.3, "gamma": 0.1})
	for i, v := range dy {
		if v != 0 {
			t.Errorf("component %d: expected 0, got %g", i, v)
		}
	}
}

func TestSIRDerivativesDoNotMutateInput(t *testing.T) {
	y := dynamo.State{990, 10, 0}
	p := dynamo.Params{"beta": 0.3, "gamma": 0.1}
	_ = SIRDerivatives(y, p)
	_ = SIRDerivativesNormalized(y, p)

	if y[0] != 990 || y[1] != 10 || y[2] != 0 {
		t.Errorf("state mutated: %v", y)
	}
	if p["beta"] != 0.3 || p["gamma"] != 0.1 || len(p) != 2 {
		t.Errorf("params mutated: %v", p)
	}
}

func TestSIRModel(t *testing.T) {
	m := NewSIR(0.3, 0.1)

	if m.StateDim() != 3 {
		t.Errorf("expected state dim 3, got %d", m.StateDim())
	}
	if math.Abs(m.R0()-3.0) > 1e-12 {
		t.Errorf("expected R0 3, got %f", m.R0())
	}
	if m.Total(dynamo.State{990, 10, 0}) != 1000 {
		t.Errorf("expected total 1000")
	}

	if err := m.SetParam("gamma", 0.2); err != nil {
		t.Fatalf("SetParam: %v", err)
	}
	if m.Params()["gamma"] != 0.2 {
		t.Errorf("expected gamma 0.2, got %f", m.Params()["gamma"])
	}
	if err := m.SetParam("delta", 1); err == nil {
		t.Error("expected error for unknown param")
	}

	if (&SIR{Beta: 1}).R0() != 0 {
		t.Error("expected R0 0 when gamma is 0")
	}
}

func TestSIRDeriveUsesOwnParams(t *testing.T) {
	m := NewSIR(0.3, 0.1)
	y := dynamo.State{990, 10, 0}

	got := m.Derive(y)
	want := SIRDerivativesNormalized(y, dynamo.Params{"beta": 0.3, "gamma": 0.1})
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("component %d: got %g want %g", i, got[i], want[i])
		}
	}
}
