// Package dynamics provides the core data model for constrained rigid body
// simulation.
//
// The package defines the types shared by the integrator and the physical
// models:
//
//   - [Vector]: dense slice of generalized quantities
//   - [State]: per-step bundle of coordinates, velocity, acceleration, and
//     algorithmic acceleration
//   - [TimeStepper]: simulation clock and Newton iteration counters
//   - [MassMatrix], [GeneralizedForces]: fixed physical inputs
//   - [Model]: residual/tangent contract every physical system implements
//
// # Thread Safety
//
// TimeStepper counters are mutated in place during an integration run, so one
// integrator instance must not be shared across goroutines. States appended to
// a history are never mutated afterwards and are safe to read concurrently.
package dynamics
