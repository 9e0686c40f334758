package dynamics

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// MassMatrix is the 6x6 block-diagonal rigid body mass matrix: a 3x3 scalar
// mass identity block followed by a 3x3 diagonal principal moment of inertia
// block.
type MassMatrix struct {
	mass    float64
	inertia mgl64.Vec3
	matrix  *mat.Dense
}

// NewMassMatrix validates mass > 0 and every principal moment > 0 and builds
// the block-diagonal matrix.
func NewMassMatrix(mass float64, inertia mgl64.Vec3) (*MassMatrix, error) {
	if mass <= 0. || inertia[0] <= 0. || inertia[1] <= 0. || inertia[2] <= 0. {
		return nil, ErrInvalidMass
	}

	m := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		m.Set(i, i, mass)
		m.Set(i+3, i+3, inertia[i])
	}

	return &MassMatrix{mass: mass, inertia: inertia, matrix: m}, nil
}

// NewUniformMassMatrix builds a mass matrix with equal principal moments.
func NewUniformMassMatrix(mass, momentOfInertia float64) (*MassMatrix, error) {
	return NewMassMatrix(mass, mgl64.Vec3{momentOfInertia, momentOfInertia, momentOfInertia})
}

// Mass returns the scalar mass.
func (m *MassMatrix) Mass() float64 { return m.mass }

// Inertia returns the principal moments of inertia.
func (m *MassMatrix) Inertia() mgl64.Vec3 { return m.inertia }

// Matrix returns the assembled 6x6 matrix. Callers must not modify it.
func (m *MassMatrix) Matrix() *mat.Dense { return m.matrix }

// MulVec returns M*v for a 6-vector v.
func (m *MassMatrix) MulVec(v Vector) Vector {
	out := make(Vector, 6)
	for i := 0; i < 3; i++ {
		out[i] = m.mass * v[i]
		out[i+3] = m.inertia[i] * v[i+3]
	}
	return out
}

// GeneralizedForces stacks 3 force components with 3 moment components.
type GeneralizedForces struct {
	forces  mgl64.Vec3
	moments mgl64.Vec3
}

// NewGeneralizedForces builds the generalized force vector from its force and
// moment parts.
func NewGeneralizedForces(forces, moments mgl64.Vec3) *GeneralizedForces {
	return &GeneralizedForces{forces: forces, moments: moments}
}

// Forces returns the force part.
func (g *GeneralizedForces) Forces() mgl64.Vec3 { return g.forces }

// Moments returns the moment part.
func (g *GeneralizedForces) Moments() mgl64.Vec3 { return g.moments }

// Vector returns the stacked 6-vector.
func (g *GeneralizedForces) Vector() Vector {
	return Vector{
		g.forces[0], g.forces[1], g.forces[2],
		g.moments[0], g.moments[1], g.moments[2],
	}
}
