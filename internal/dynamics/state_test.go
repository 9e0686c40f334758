package dynamics

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestStateDeepCopies(t *testing.T) {
	coords := Vector{0., -1., 0., 1., 0., 0., 0.}
	s := NewState(coords, make(Vector, 6), make(Vector, 6), make(Vector, 6))

	coords[0] = 99.
	if s.GenCoords[0] != 0. {
		t.Error("NewState aliased the caller's coordinate slice")
	}

	c := s.Clone()
	c.Velocity[0] = 5.
	if s.Velocity[0] != 0. {
		t.Error("Clone aliased the original velocity slice")
	}
}

func TestStateIsValid(t *testing.T) {
	s := NewState(Vector{1.}, Vector{2.}, Vector{3.}, Vector{4.})
	if !s.IsValid() {
		t.Error("finite state reported invalid")
	}

	s.Acceleration[0] = math.NaN()
	if s.IsValid() {
		t.Error("NaN state reported valid")
	}
}

func TestVectorNorm(t *testing.T) {
	v := Vector{3., 4.}
	if got := v.Norm(); got != 5. {
		t.Errorf("Norm() = %v, want 5", got)
	}
}

func TestNewMassMatrix(t *testing.T) {
	m, err := NewMassMatrix(15., mgl64.Vec3{0.234375, 0.46875, 0.234375})
	if err != nil {
		t.Fatalf("NewMassMatrix error: %v", err)
	}

	mm := m.Matrix()
	r, c := mm.Dims()
	if r != 6 || c != 6 {
		t.Fatalf("dims = %dx%d, want 6x6", r, c)
	}
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			want := 0.
			switch {
			case i == j && i < 3:
				want = 15.
			case i == j:
				want = m.Inertia()[i-3]
			}
			if got := mm.At(i, j); got != want {
				t.Errorf("M[%d][%d] = %v, want %v", i, j, got, want)
			}
		}
	}
}

func TestNewMassMatrix_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		mass    float64
		inertia mgl64.Vec3
	}{
		{"zero mass", 0., mgl64.Vec3{1., 1., 1.}},
		{"negative mass", -1., mgl64.Vec3{1., 1., 1.}},
		{"zero inertia", 1., mgl64.Vec3{1., 0., 1.}},
		{"negative inertia", 1., mgl64.Vec3{1., 1., -1.}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewMassMatrix(c.mass, c.inertia); !errors.Is(err, ErrInvalidMass) {
				t.Errorf("expected ErrInvalidMass, got %v", err)
			}
		})
	}
}

func TestMassMatrixMulVec(t *testing.T) {
	m, err := NewMassMatrix(2., mgl64.Vec3{3., 4., 5.})
	if err != nil {
		t.Fatalf("NewMassMatrix error: %v", err)
	}

	got := m.MulVec(Vector{1., 1., 1., 1., 1., 1.})
	want := Vector{2., 2., 2., 3., 4., 5.}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MulVec[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGeneralizedForcesVector(t *testing.T) {
	g := NewGeneralizedForces(mgl64.Vec3{1., 2., 3.}, mgl64.Vec3{4., 5., 6.})
	got := g.Vector()
	want := Vector{1., 2., 3., 4., 5., 6.}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Vector()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
