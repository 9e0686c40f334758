package config

// Presets are named starting points tweakable from the command line.

type preset struct {
	name        string
	description string
	build       func() *Config
}

var presets = []preset{
	{
		name:        "reference",
		description: "fast-spinning heavy top, trapezoidal rule, no damping",
		build:       DefaultConfig,
	},
	{
		name:        "damped",
		description: "heavy top with numerical damping for long runs",
		build: func() *Config {
			cfg := DefaultConfig()
			cfg.AlphaF = 0.4
			cfg.AlphaM = 0.6
			cfg.Beta = 0.3025
			cfg.Gamma = 0.6
			return cfg
		},
	},
	{
		name:        "preconditioned",
		description: "reference top with Bottasso scaling for small steps",
		build: func() *Config {
			cfg := DefaultConfig()
			cfg.Precondition = true
			cfg.Time.Step = 0.0001
			cfg.Time.Steps = 10000
			return cfg
		},
	},
	{
		name:        "slow-spin",
		description: "precessing top at a tenth of the reference spin rate",
		build: func() *Config {
			cfg := DefaultConfig()
			cfg.Init.Velocity = [6]float64{0.461538, 0., 0., 0., 15., -0.461538}
			return cfg
		},
	},
}

// GetPreset returns a fresh config for the named preset, or nil if unknown.
func GetPreset(name string) *Config {
	for _, p := range presets {
		if p.name == name {
			return p.build()
		}
	}
	return nil
}

// ListPresets returns the preset names with their descriptions, in
// registration order.
func ListPresets() [][2]string {
	out := make([][2]string, 0, len(presets))
	for _, p := range presets {
		out = append(out, [2]string{p.name, p.description})
	}
	return out
}
