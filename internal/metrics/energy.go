// Package metrics provides scalar diagnostics accumulated over a state
// history.
package metrics

import (
	"math"

	"github.com/kestrel-sim/alphadyn/internal/dynamics"
)

// EnergyDrift tracks the maximum relative deviation of mechanical energy from
// its value at the first observed state.
type EnergyDrift struct {
	model    dynamics.EnergyComputer
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift(model dynamics.EnergyComputer) *EnergyDrift {
	return &EnergyDrift{model: model}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(s dynamics.State, t float64) {
	energy := e.model.Energy(s)

	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++

	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		if drift > e.maxDrift {
			e.maxDrift = drift
		}
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
