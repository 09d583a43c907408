package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/sirsim/internal/dynamo"
	"github.com/san-kum/sirsim/internal/epidemic"
	"github.com/san-kum/sirsim/internal/validate"
)

const (
	DefaultIntegrator = "rkf45"
	DefaultModel      = "normalized"
	DefaultS0         = 990.0
	DefaultI0         = 10.0
	DefaultBeta       = 0.3
	DefaultGamma      = 0.1
)

type Config struct {
	Name       string           `yaml:"name"`
	Integrator string           `yaml:"integrator" validate:"oneof=doubling rkf45 backward-euler backward-euler-reduced"`
	Model      string           `yaml:"model" validate:"oneof=normalized mass-action"`
	Population PopulationConfig `yaml:"population"`
	Rates      RateConfig       `yaml:"rates"`
	Solver     SolverConfig     `yaml:"solver"`
}

type PopulationConfig struct {
	S0 float64 `yaml:"s0" validate:"finite,gte=0"`
	I0 float64 `yaml:"i0" validate:"finite,gte=0"`
	R0 float64 `yaml:"r0" validate:"finite,gte=0"`
}

type RateConfig struct {
	Beta  float64 `yaml:"beta" validate:"finite,gt=0"`
	Gamma float64 `yaml:"gamma" validate:"finite,gt=0"`
}

// SolverConfig mirrors dynamo.Config. Fields an integrator does not use are
// still validated so a config file stays portable between integrators.
type SolverConfig struct {
	TMax        float64 `yaml:"t_max" validate:"finite,gt=0"`
	Tol         float64 `yaml:"tol" validate:"finite,gt=0"`
	H0          float64 `yaml:"h0" validate:"finite,gte=0"`
	HMin        float64 `yaml:"h_min" validate:"finite,gt=0,ltefield=HMax"`
	HMax        float64 `yaml:"h_max" validate:"finite,gt=0"`
	MaxSteps    int     `yaml:"max_steps" validate:"gte=0"`
	Step        float64 `yaml:"step" validate:"finite,gt=0"`
	MaxIter     int     `yaml:"max_iter" validate:"gt=0"`
	Extinction  float64 `yaml:"extinction" validate:"finite,gt=0"`
	NonNegative bool    `yaml:"non_negative"`
}

func DefaultConfig() *Config {
	d := dynamo.DefaultConfig()
	return &Config{
		Name:       "sir",
		Integrator: DefaultIntegrator,
		Model:      DefaultModel,
		Population: PopulationConfig{S0: DefaultS0, I0: DefaultI0},
		Rates:      RateConfig{Beta: DefaultBeta, Gamma: DefaultGamma},
		Solver: SolverConfig{
			TMax:        d.TMax,
			Tol:         d.Tol,
			H0:          d.H0,
			HMin:        d.HMin,
			HMax:        d.HMax,
			MaxSteps:    d.MaxSteps,
			Step:        d.Step,
			MaxIter:     d.MaxIter,
			Extinction:  d.Extinction,
			NonNegative: d.NonNegative,
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads a YAML file over a copy of base, so keys missing from the
// file keep base's values.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseOver(data, base)
}

func Parse(data []byte) (*Config, error) {
	return parseOver(data, DefaultConfig())
}

func parseOver(data []byte, base *Config) (*Config, error) {
	cfg := base.Clone()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	return validate.Struct(c)
}

func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

func (c *Config) Problem() epidemic.Problem {
	return epidemic.Problem{
		S0:    c.Population.S0,
		I0:    c.Population.I0,
		R0:    c.Population.R0,
		Beta:  c.Rates.Beta,
		Gamma: c.Rates.Gamma,
		TMax:  c.Solver.TMax,
	}
}

func (c *Config) Settings() dynamo.Config {
	s := c.Solver
	return dynamo.Config{
		TMax:        s.TMax,
		Tol:         s.Tol,
		H0:          s.H0,
		HMin:        s.HMin,
		HMax:        s.HMax,
		MaxSteps:    s.MaxSteps,
		Step:        s.Step,
		MaxIter:     s.MaxIter,
		Extinction:  s.Extinction,
		NonNegative: s.NonNegative,
	}
}
