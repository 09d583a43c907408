package config

import "sort"

func preset(name, integ, model string, pop PopulationConfig, rates RateConfig, tMax float64) *Config {
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.Integrator = integ
	cfg.Model = model
	cfg.Population = pop
	cfg.Rates = rates
	cfg.Solver.TMax = tMax
	return cfg
}

// Presets are standard parameter sets. R0 = beta/gamma is noted for each.
var Presets = map[string]*Config{
	// R0 = 3
	"textbook": preset("textbook", "rkf45", "normalized",
		PopulationConfig{S0: 990, I0: 10}, RateConfig{Beta: 0.3, Gamma: 0.1}, 160),
	// R0 = 1.5, three day infectious period
	"seasonal-flu": preset("seasonal-flu", "rkf45", "normalized",
		PopulationConfig{S0: 9990, I0: 10}, RateConfig{Beta: 0.5, Gamma: 1.0 / 3.0}, 200),
	// R0 = 2.5, ten day infectious period
	"covid": preset("covid", "backward-euler", "normalized",
		PopulationConfig{S0: 99999, I0: 1}, RateConfig{Beta: 0.25, Gamma: 0.1}, 365),
	// R0 = 15
	"measles-like": preset("measles-like", "rkf45", "normalized",
		PopulationConfig{S0: 99990, I0: 10}, RateConfig{Beta: 1.875, Gamma: 0.125}, 120),
	// R0 = 0.2, dies out
	"subcritical": preset("subcritical", "backward-euler", "normalized",
		PopulationConfig{S0: 990, I0: 10}, RateConfig{Beta: 0.1, Gamma: 0.5}, 100),
	// population fractions with the mass-action model
	"fractions": withTol(preset("fractions", "doubling", "mass-action",
		PopulationConfig{S0: 0.99, I0: 0.01}, RateConfig{Beta: 0.3, Gamma: 0.1}, 160), 1e-5),
}

func withTol(cfg *Config, tol float64) *Config {
	cfg.Solver.Tol = tol
	return cfg
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
