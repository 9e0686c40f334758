package dynamics

// State bundles the kinematic quantities of one time step. For the full rigid
// body the generalized coordinates hold 3 translational components plus a
// 4-component orientation quaternion, and the remaining vectors hold 3 linear
// plus 3 angular components; reduced test systems may use any consistent
// sizes.
//
// A State is a value: the integrator never mutates one after appending it to
// the history.
type State struct {
	GenCoords        Vector
	Velocity         Vector
	Acceleration     Vector
	AlgoAcceleration Vector
}

// NewState deep-copies its inputs so the caller cannot alias the stored
// vectors.
func NewState(coords, velocity, acceleration, algoAcceleration Vector) State {
	return State{
		GenCoords:        coords.Clone(),
		Velocity:         velocity.Clone(),
		Acceleration:     acceleration.Clone(),
		AlgoAcceleration: algoAcceleration.Clone(),
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	return NewState(s.GenCoords, s.Velocity, s.Acceleration, s.AlgoAcceleration)
}

// IsValid reports whether every component of the state is finite.
func (s State) IsValid() bool {
	return s.GenCoords.IsValid() && s.Velocity.IsValid() &&
		s.Acceleration.IsValid() && s.AlgoAcceleration.IsValid()
}
