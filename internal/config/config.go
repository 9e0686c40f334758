// Package config loads and saves simulation configurations.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kestrel-sim/alphadyn/internal/dynamics"
)

const (
	DefaultStepSize      = 0.001
	DefaultSteps         = 1000
	DefaultMaxIterations = 10
)

// Config is the YAML-facing description of one integration run. Range
// validation happens where the values are consumed (integrator and mass
// matrix constructors), not here.
type Config struct {
	Model        string      `yaml:"model"`
	AlphaF       float64     `yaml:"alpha_f"`
	AlphaM       float64     `yaml:"alpha_m"`
	Beta         float64     `yaml:"beta"`
	Gamma        float64     `yaml:"gamma"`
	Precondition bool        `yaml:"precondition"`
	Time         TimeConfig  `yaml:"time"`
	Body         BodyConfig  `yaml:"body"`
	Forces       [6]float64  `yaml:"forces"`
	Init         StateConfig `yaml:"init"`
}

type TimeConfig struct {
	Start         float64 `yaml:"start"`
	Step          float64 `yaml:"step"`
	Steps         int     `yaml:"steps"`
	MaxIterations int     `yaml:"max_iterations"`
}

type BodyConfig struct {
	Mass      float64    `yaml:"mass"`
	Inertia   [3]float64 `yaml:"inertia"`
	Reference [3]float64 `yaml:"reference"`
}

type StateConfig struct {
	Position    [3]float64 `yaml:"position"`
	Orientation [4]float64 `yaml:"orientation"`
	Velocity    [6]float64 `yaml:"velocity"`
}

// DefaultConfig is the reference heavy top with trapezoidal parameters.
func DefaultConfig() *Config {
	return &Config{
		Model:  "heavytop",
		AlphaF: 0.5,
		AlphaM: 0.5,
		Beta:   0.25,
		Gamma:  0.5,
		Time: TimeConfig{
			Step:          DefaultStepSize,
			Steps:         DefaultSteps,
			MaxIterations: DefaultMaxIterations,
		},
		Body: BodyConfig{
			Mass:      15.,
			Inertia:   [3]float64{0.234375, 0.46875, 0.234375},
			Reference: [3]float64{0., 1., 0.},
		},
		Forces: [6]float64{0., 0., 147.15, 0., 0., 0.},
		Init: StateConfig{
			Position:    [3]float64{0., 1., 0.},
			Orientation: [4]float64{1., 0., 0., 0.},
			Velocity:    [6]float64{4.61538, 0., 0., 0., 150., -4.61538},
		},
	}
}

// Load reads a YAML file over the defaults, so partial files work.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// InitialState assembles the initial integration state: the configured
// coordinates and velocity with zero acceleration and algorithmic
// acceleration.
func (c *Config) InitialState() dynamics.State {
	coords := dynamics.Vector{
		c.Init.Position[0], c.Init.Position[1], c.Init.Position[2],
		c.Init.Orientation[0], c.Init.Orientation[1], c.Init.Orientation[2], c.Init.Orientation[3],
	}
	velocity := make(dynamics.Vector, 6)
	copy(velocity, c.Init.Velocity[:])

	return dynamics.NewState(coords, velocity, make(dynamics.Vector, 6), make(dynamics.Vector, 6))
}
