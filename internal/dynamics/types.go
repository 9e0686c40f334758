package dynamics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vector is a dense vector of generalized quantities.
type Vector []float64

// Clone returns a deep copy.
func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

// IsValid reports whether every component is finite.
func (v Vector) IsValid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Norm returns the Euclidean norm.
func (v Vector) Norm() float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Model is the contract between the integrator and a physical system. The
// integrator knows nothing about the mechanics it advances beyond these two
// callbacks.
//
// ComputeResidual returns the nonlinear residual, conventionally
// M(q)v' + g(q,v,t) + B(q)^T lambda stacked with the constraint equation
// value, of length dof+constraints.
//
// ComputeTangent returns the iteration (tangent) matrix of the residual,
// square of size dof+constraints, assembled from the mass matrix scaled by
// betaPrime, tangent damping scaled by gammaPrime, tangent stiffness, and the
// constraint gradient blocks.
type Model interface {
	ComputeResidual(coords, velocity, acceleration, multipliers Vector) Vector
	ComputeTangent(betaPrime, gammaPrime float64, coords, velocity, multipliers Vector, h float64, delta Vector) *mat.Dense
}

// ConstraintEvaluator is implemented by models that can report the raw
// holonomic constraint value for a set of generalized coordinates. Metrics use
// it to track constraint drift.
type ConstraintEvaluator interface {
	Constraint(coords Vector) Vector
}

// EnergyComputer is implemented by models with a well-defined mechanical
// energy.
type EnergyComputer interface {
	Energy(s State) float64
}

// Metric accumulates a scalar quantity over the produced state history.
type Metric interface {
	Name() string
	Observe(s State, t float64)
	Value() float64
	Reset()
}

// Observer is notified after every completed time step.
type Observer interface {
	OnStep(s State, t float64)
}
