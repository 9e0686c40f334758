package metrics

import (
	"math"
	"testing"

	"github.com/kestrel-sim/alphadyn/internal/dynamics"
)

// springEnergy is a stand-in energy model: E = x^2 + v^2 on a 1-DOF state.
type springEnergy struct{}

func (springEnergy) Energy(s dynamics.State) float64 {
	return s.GenCoords[0]*s.GenCoords[0] + s.Velocity[0]*s.Velocity[0]
}

// fixedConstraint reports the coordinate itself as the constraint value.
type fixedConstraint struct{}

func (fixedConstraint) Constraint(coords dynamics.Vector) dynamics.Vector {
	return dynamics.Vector{coords[0]}
}

func oneDofState(x, v float64) dynamics.State {
	return dynamics.NewState(dynamics.Vector{x}, dynamics.Vector{v}, dynamics.Vector{0.}, dynamics.Vector{0.})
}

func TestEnergyDrift(t *testing.T) {
	m := NewEnergyDrift(springEnergy{})

	m.Observe(oneDofState(1., 0.), 0.)  // E = 1
	m.Observe(oneDofState(1., 0.5), 1.) // E = 1.25
	m.Observe(oneDofState(1., 0.1), 2.) // E = 1.01

	if got, want := m.Value(), 0.25; math.Abs(got-want) > 1e-12 {
		t.Errorf("Value() = %v, want %v", got, want)
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("Reset did not clear the drift")
	}

	// After reset the first observation re-anchors the initial energy.
	m.Observe(oneDofState(2., 0.), 0.)
	if m.Value() != 0 {
		t.Errorf("drift after single observation = %v, want 0", m.Value())
	}
}

func TestConstraintViolation(t *testing.T) {
	m := NewConstraintViolation(fixedConstraint{})

	m.Observe(oneDofState(0.001, 0.), 0.)
	m.Observe(oneDofState(-0.01, 0.), 1.)
	m.Observe(oneDofState(0.002, 0.), 2.)

	if got, want := m.Value(), 0.01; math.Abs(got-want) > 1e-12 {
		t.Errorf("Value() = %v, want %v", got, want)
	}

	if m.Name() != "constraint_violation" {
		t.Errorf("Name() = %q", m.Name())
	}
}
