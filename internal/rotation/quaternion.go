package rotation

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the tolerance used by CloseTo and by the degenerate-rotation
// branches below.
const Epsilon = 1e-6

// Contract-violation errors. Both signal a caller bug, not a recoverable
// numerical condition.
var (
	ErrZeroLength = errors.New("rotation: quaternion length is zero, cannot normalize")
	ErrNonUnit    = errors.New("rotation: operation requires a unit quaternion")
)

// CloseTo reports whether a and b are within Epsilon of each other.
func CloseTo(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// WrapAngleToPi wraps an angle in radians into (-pi, pi].
func WrapAngleToPi(angle float64) float64 {
	wrapped := math.Mod(angle+math.Pi, 2.*math.Pi)
	if wrapped <= 0. {
		wrapped += 2. * math.Pi
	}
	return wrapped - math.Pi
}

// Quaternion is a scalar-first quaternion (q0, q1, q2, q3). Unit length is a
// derived property: operations that require it check and fail rather than
// normalizing silently.
type Quaternion struct {
	Q0, Q1, Q2, Q3 float64
}

// Identity returns the identity quaternion (1, 0, 0, 0).
func Identity() Quaternion {
	return Quaternion{1., 0., 0., 0.}
}

// Components returns the four components in scalar-first order.
func (q Quaternion) Components() [4]float64 {
	return [4]float64{q.Q0, q.Q1, q.Q2, q.Q3}
}

// Scalar returns the scalar part.
func (q Quaternion) Scalar() float64 { return q.Q0 }

// Vector returns the vector part.
func (q Quaternion) Vector() mgl64.Vec3 { return mgl64.Vec3{q.Q1, q.Q2, q.Q3} }

// Length returns the Euclidean norm of the quaternion.
func (q Quaternion) Length() float64 {
	return math.Sqrt(q.Q0*q.Q0 + q.Q1*q.Q1 + q.Q2*q.Q2 + q.Q3*q.Q3)
}

// IsUnit reports whether the quaternion has unit length within Epsilon.
func (q Quaternion) IsUnit() bool {
	return CloseTo(q.Length(), 1.)
}

// Unit returns the normalized quaternion. A quaternion with length within
// Epsilon of zero cannot be normalized and yields ErrZeroLength.
func (q Quaternion) Unit() (Quaternion, error) {
	length := q.Length()
	if CloseTo(length, 0.) {
		return Quaternion{}, ErrZeroLength
	}
	if CloseTo(length, 1.) {
		return q, nil
	}
	return Quaternion{q.Q0 / length, q.Q1 / length, q.Q2 / length, q.Q3 / length}, nil
}

// Mul returns the Hamilton product q * p.
func (q Quaternion) Mul(p Quaternion) Quaternion {
	return Quaternion{
		q.Q0*p.Q0 - q.Q1*p.Q1 - q.Q2*p.Q2 - q.Q3*p.Q3,
		q.Q0*p.Q1 + q.Q1*p.Q0 + q.Q2*p.Q3 - q.Q3*p.Q2,
		q.Q0*p.Q2 - q.Q1*p.Q3 + q.Q2*p.Q0 + q.Q3*p.Q1,
		q.Q0*p.Q3 + q.Q1*p.Q2 - q.Q2*p.Q1 + q.Q3*p.Q0,
	}
}

// FromRotationVector is the exponential map from a rotation vector
// (axis-angle, magnitude = angle) to a unit quaternion. A rotation vector with
// magnitude within Epsilon of zero maps to the identity quaternion; this
// branch avoids the 0/0 in sin(angle/2)/angle and is exact for the null
// rotation.
func FromRotationVector(v mgl64.Vec3) Quaternion {
	angle := v.Len()
	if CloseTo(angle, 0.) {
		return Identity()
	}

	factor := math.Sin(angle/2.) / angle
	return Quaternion{math.Cos(angle / 2.), v[0] * factor, v[1] * factor, v[2] * factor}
}

// RotationVector is the logarithmic map inverse of FromRotationVector. It uses
// atan2 rather than asin/acos for stability near angles of 0 and pi, and
// returns the zero vector when the vector part vanishes.
func (q Quaternion) RotationVector() mgl64.Vec3 {
	sinSq := q.Q1*q.Q1 + q.Q2*q.Q2 + q.Q3*q.Q3
	if CloseTo(sinSq, 0.) {
		return mgl64.Vec3{}
	}

	sin := math.Sqrt(sinSq)
	k := 2. * math.Atan2(sin, q.Q0) / sin
	return mgl64.Vec3{q.Q1 * k, q.Q2 * k, q.Q3 * k}
}

// FromAngleAxis builds a unit quaternion from a rotation angle about a unit
// axis via the half-angle construction.
func FromAngleAxis(angle float64, axis mgl64.Vec3) Quaternion {
	sin := math.Sin(angle / 2.)
	return Quaternion{math.Cos(angle / 2.), axis[0] * sin, axis[1] * sin, axis[2] * sin}
}

// AngleAxis recovers the rotation angle, wrapped into (-pi, pi], and the unit
// rotation axis. The null rotation returns angle 0 with axis (1, 0, 0).
func (q Quaternion) AngleAxis() (float64, mgl64.Vec3) {
	sin := math.Sqrt(q.Q1*q.Q1 + q.Q2*q.Q2 + q.Q3*q.Q3)
	angle := 2. * math.Atan2(sin, q.Q0)

	if CloseTo(angle, 0.) {
		return 0., mgl64.Vec3{1., 0., 0.}
	}

	angle = WrapAngleToPi(angle)
	k := 1. / sin
	return angle, mgl64.Vec3{q.Q1 * k, q.Q2 * k, q.Q3 * k}.Normalize()
}

// Rotate rotates v by the unit quaternion q using the expanded quaternion
// sandwich product. A non-unit quaternion is a contract violation and yields
// ErrNonUnit.
func (q Quaternion) Rotate(v mgl64.Vec3) (mgl64.Vec3, error) {
	if !q.IsUnit() {
		return mgl64.Vec3{}, ErrNonUnit
	}

	q0, q1, q2, q3 := q.Q0, q.Q1, q.Q2, q.Q3
	return mgl64.Vec3{
		(q0*q0+q1*q1-q2*q2-q3*q3)*v[0] + 2.*(q1*q2-q0*q3)*v[1] + 2.*(q1*q3+q0*q2)*v[2],
		2.*(q1*q2+q0*q3)*v[0] + (q0*q0-q1*q1+q2*q2-q3*q3)*v[1] + 2.*(q2*q3-q0*q1)*v[2],
		2.*(q1*q3-q0*q2)*v[0] + 2.*(q2*q3+q0*q1)*v[1] + (q0*q0-q1*q1-q2*q2+q3*q3)*v[2],
	}, nil
}

// Mat3 converts the unit quaternion to a rotation matrix. A non-unit
// quaternion yields ErrNonUnit.
func (q Quaternion) Mat3() (mgl64.Mat3, error) {
	if !q.IsUnit() {
		return mgl64.Mat3{}, ErrNonUnit
	}

	q0, q1, q2, q3 := q.Q0, q.Q1, q.Q2, q.Q3
	// mgl64.Mat3 is column-major.
	return mgl64.Mat3FromRows(
		mgl64.Vec3{q0*q0 + q1*q1 - q2*q2 - q3*q3, 2. * (q1*q2 - q0*q3), 2. * (q1*q3 + q0*q2)},
		mgl64.Vec3{2. * (q1*q2 + q0*q3), q0*q0 - q1*q1 + q2*q2 - q3*q3, 2. * (q2*q3 - q0*q1)},
		mgl64.Vec3{2. * (q1*q3 - q0*q2), 2. * (q2*q3 + q0*q1), q0*q0 - q1*q1 - q2*q2 + q3*q3},
	), nil
}

// FromMat3 converts a rotation matrix to a unit quaternion using Shepperd's
// method: the branch is selected by the trace, or failing that by the largest
// diagonal entry, so the square root argument is always well away from zero.
// The result is determined up to sign (q and -q encode the same rotation).
func FromMat3(m mgl64.Mat3) Quaternion {
	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m20, m21, m22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	trace := m00 + m11 + m22

	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.)
		return Quaternion{0.25 / s, (m21 - m12) * s, (m02 - m20) * s, (m10 - m01) * s}
	case m00 > m11 && m00 > m22:
		s := 2. * math.Sqrt(1.+m00-m11-m22)
		return Quaternion{(m21 - m12) / s, 0.25 * s, (m01 + m10) / s, (m02 + m20) / s}
	case m11 > m22:
		s := 2. * math.Sqrt(1.+m11-m00-m22)
		return Quaternion{(m02 - m20) / s, (m01 + m10) / s, 0.25 * s, (m12 + m21) / s}
	default:
		s := 2. * math.Sqrt(1.+m22-m00-m11)
		return Quaternion{(m10 - m01) / s, (m02 + m20) / s, (m12 + m21) / s, 0.25 * s}
	}
}
