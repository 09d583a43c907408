package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/sirsim/internal/config"
	"github.com/san-kum/sirsim/internal/epidemic"
	"github.com/san-kum/sirsim/internal/experiment"
)

func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestDurationDefaultsStopAtExtinction(t *testing.T) {
	cfg := config.DefaultConfig()
	durationDefaults(cfg, changedSet(), false, false, epidemic.DefaultDurationThreshold)

	assert.Equal(t, "backward-euler", cfg.Integrator)
	assert.Equal(t, epidemic.DurationHorizon, cfg.Solver.TMax)
	assert.Equal(t, 1.0, cfg.Solver.Step)

	exp, err := experiment.New(cfg, experiment.NewRegistry())
	require.NoError(t, err)
	res, err := exp.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Summary.Ended)
	assert.Less(t, res.Summary.FinalTime, epidemic.DurationHorizon, "the run should stop at extinction, not at the horizon")
	assert.LessOrEqual(t, res.Summary.FinalI, epidemic.DefaultDurationThreshold)
	assert.Equal(t, res.Summary.FinalTime, epidemic.Duration(res.Trajectory, epidemic.DefaultDurationThreshold))
}

func TestDurationDefaultsKeepExplicitChoices(t *testing.T) {
	tests := []struct {
		name       string
		changed    []string
		fromPreset bool
		fromFile   bool
		wantInteg  string
		wantTMax   float64
		wantStep   float64
	}{
		{"integrator flag", []string{"integrator"}, false, false, "rkf45", epidemic.DurationHorizon, 1},
		{"preset", nil, true, false, "rkf45", epidemic.DurationHorizon, 1},
		{"config file", nil, false, true, "rkf45", 160, 0.1},
		{"tmax and step flags", []string{"tmax", "step"}, false, false, "backward-euler", 160, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			durationDefaults(cfg, changedSet(tt.changed...), tt.fromPreset, tt.fromFile, 1e-3)

			assert.Equal(t, tt.wantInteg, cfg.Integrator)
			assert.Equal(t, tt.wantTMax, cfg.Solver.TMax)
			assert.Equal(t, tt.wantStep, cfg.Solver.Step)
			assert.Equal(t, 1e-3, cfg.Solver.Extinction)
		})
	}
}
