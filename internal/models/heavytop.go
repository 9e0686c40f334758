// Package models contains physical systems that plug into the
// generalized-alpha integrator through the dynamics.Model contract.
package models

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/kestrel-sim/alphadyn/internal/dynamics"
	"github.com/kestrel-sim/alphadyn/internal/rotation"
)

// HeavyTop is a spinning rigid body pinned to the origin through its fixed
// reference point X in the body frame: 6 degrees of freedom plus a
// 3-component position constraint phi(q) = R*X - x enforced by Lagrange
// multipliers.
//
// The model holds no mutable state, so a single value may serve concurrent
// integrations.
type HeavyTop struct {
	mass     *dynamics.MassMatrix
	forces   *dynamics.GeneralizedForces
	refPoint mgl64.Vec3
}

// NewHeavyTop binds the physical inputs of the model: its mass matrix, the
// constant generalized forces, and the body-frame position of the reference
// point.
func NewHeavyTop(mass *dynamics.MassMatrix, forces *dynamics.GeneralizedForces, refPoint mgl64.Vec3) *HeavyTop {
	return &HeavyTop{mass: mass, forces: forces, refPoint: refPoint}
}

// Dof returns the number of degrees of freedom.
func (m *HeavyTop) Dof() int { return 6 }

// NumConstraints returns the number of holonomic constraint equations.
func (m *HeavyTop) NumConstraints() int { return 3 }

// ComputeResidual assembles M*v' + g + B^T*lambda stacked with the constraint
// value, length 9.
func (m *HeavyTop) ComputeResidual(coords, velocity, acceleration, multipliers dynamics.Vector) dynamics.Vector {
	r := m.rotationMatrix(coords)
	b := m.constraintGradient(r)

	residual := make(dynamics.Vector, 9)

	ma := m.mass.MulVec(acceleration)
	g := m.forces.Vector()
	for i := 0; i < 6; i++ {
		bt := 0.
		for j := 0; j < 3; j++ {
			bt += b.At(j, i) * multipliers[j]
		}
		residual[i] = ma[i] + g[i] + bt
	}

	phi := m.constraintValue(coords, r)
	for i := 0; i < 3; i++ {
		residual[6+i] = phi[i]
	}

	return residual
}

// ComputeTangent assembles the 9x9 iteration matrix
//
//	[ M*beta' + Ct*gamma' + Kt   B^T ]
//	[ B                          0   ]
//
// with tangent damping Ct from the gyroscopic coupling and tangent stiffness
// Kt from the constraint curvature.
func (m *HeavyTop) ComputeTangent(betaPrime, gammaPrime float64, coords, velocity, multipliers dynamics.Vector, h float64, delta dynamics.Vector) *mat.Dense {
	r := m.rotationMatrix(coords)
	b := m.constraintGradient(r)

	ct := m.tangentDamping(velocity)
	kt := m.tangentStiffness(r, multipliers)

	tangent := mat.NewDense(9, 9, nil)

	mm := m.mass.Matrix()
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			tangent.Set(i, j, mm.At(i, j)*betaPrime+ct.At(i, j)*gammaPrime+kt.At(i, j))
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 6; j++ {
			tangent.Set(j, 6+i, b.At(i, j))
			tangent.Set(6+i, j, b.At(i, j))
		}
	}
	// The constraint x constraint block stays zero.

	return tangent
}

// Constraint returns phi(q) = R*X - x.
func (m *HeavyTop) Constraint(coords dynamics.Vector) dynamics.Vector {
	return m.constraintValue(coords, m.rotationMatrix(coords))
}

// Energy returns the kinetic plus potential energy of the configuration. The
// potential is taken against the constant generalized force acting on the
// reference position.
func (m *HeavyTop) Energy(s dynamics.State) float64 {
	v := mgl64.Vec3{s.Velocity[0], s.Velocity[1], s.Velocity[2]}
	w := mgl64.Vec3{s.Velocity[3], s.Velocity[4], s.Velocity[5]}
	j := m.mass.Inertia()

	kinetic := 0.5*m.mass.Mass()*v.Dot(v) +
		0.5*(j[0]*w[0]*w[0]+j[1]*w[1]*w[1]+j[2]*w[2]*w[2])

	x := mgl64.Vec3{s.GenCoords[0], s.GenCoords[1], s.GenCoords[2]}
	potential := m.forces.Forces().Dot(x)

	return kinetic + potential
}

// rotationMatrix reads the orientation quaternion out of the generalized
// coordinates. A quaternion that cannot be normalized is a data-contract bug,
// consistent with the rotation package's fatal handling.
func (m *HeavyTop) rotationMatrix(coords dynamics.Vector) mgl64.Mat3 {
	q := rotation.Quaternion{Q0: coords[3], Q1: coords[4], Q2: coords[5], Q3: coords[6]}
	unit, err := q.Unit()
	if err != nil {
		panic(err)
	}
	r, err := unit.Mat3()
	if err != nil {
		panic(err)
	}
	return r
}

func (m *HeavyTop) constraintValue(coords dynamics.Vector, r mgl64.Mat3) dynamics.Vector {
	rx := r.Mul3x1(m.refPoint)
	return dynamics.Vector{
		rx[0] - coords[0],
		rx[1] - coords[1],
		rx[2] - coords[2],
	}
}

// constraintGradient returns B = [-I | -R*skew(X)], 3x6.
func (m *HeavyTop) constraintGradient(r mgl64.Mat3) *mat.Dense {
	rx := r.Mul3(skew(m.refPoint))

	b := mat.NewDense(3, 6, nil)
	for i := 0; i < 3; i++ {
		b.Set(i, i, -1.)
		for j := 0; j < 3; j++ {
			b.Set(i, 3+j, -rx.At(i, j))
		}
	}
	return b
}

// tangentDamping returns Ct: zero except the lower-right 3x3 block
// skew(omega)*J - skew(J*omega).
func (m *HeavyTop) tangentDamping(velocity dynamics.Vector) *mat.Dense {
	w := mgl64.Vec3{velocity[3], velocity[4], velocity[5]}
	j := m.mass.Inertia()
	jw := mgl64.Vec3{j[0] * w[0], j[1] * w[1], j[2] * w[2]}

	inertia := mgl64.Diag3(j)
	block := skew(w).Mul3(inertia).Sub(skew(jw))

	ct := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for jj := 0; jj < 3; jj++ {
			ct.Set(3+i, 3+jj, block.At(i, jj))
		}
	}
	return ct
}

// tangentStiffness returns Kt: zero except the lower-right 3x3 block
// skew(X)*skew(R^T*lambda).
func (m *HeavyTop) tangentStiffness(r mgl64.Mat3, multipliers dynamics.Vector) *mat.Dense {
	lambda := mgl64.Vec3{multipliers[0], multipliers[1], multipliers[2]}
	rtl := r.Transpose().Mul3x1(lambda)

	block := skew(m.refPoint).Mul3(skew(rtl))

	kt := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			kt.Set(3+i, 3+j, block.At(i, j))
		}
	}
	return kt
}

// skew returns the cross-product matrix of v.
func skew(v mgl64.Vec3) mgl64.Mat3 {
	return mgl64.Mat3FromRows(
		mgl64.Vec3{0., -v[2], v[1]},
		mgl64.Vec3{v[2], 0., -v[0]},
		mgl64.Vec3{-v[1], v[0], 0.},
	)
}
