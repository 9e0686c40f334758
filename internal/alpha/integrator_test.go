package alpha

import (
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"

	"github.com/kestrel-sim/alphadyn/internal/dynamics"
	"github.com/kestrel-sim/alphadyn/internal/rotation"
)

// identityModel is the stand-in used by the solver scenarios: the residual is
// always a vector of ones (so the corrector never converges) and the tangent
// is the identity, making every Newton correction exactly -1 per unknown.
type identityModel struct {
	size int
}

func (m identityModel) ComputeResidual(coords, velocity, acceleration, multipliers dynamics.Vector) dynamics.Vector {
	r := make(dynamics.Vector, m.size)
	for i := range r {
		r[i] = 1.
	}
	return r
}

func (m identityModel) ComputeTangent(betaPrime, gammaPrime float64, coords, velocity, multipliers dynamics.Vector, h float64, delta dynamics.Vector) *mat.Dense {
	t := mat.NewDense(m.size, m.size, nil)
	for i := 0; i < m.size; i++ {
		t.Set(i, i, 1.)
	}
	return t
}

// zeroResidualModel converges on the first residual evaluation.
type zeroResidualModel struct {
	size int
}

func (m zeroResidualModel) ComputeResidual(coords, velocity, acceleration, multipliers dynamics.Vector) dynamics.Vector {
	return make(dynamics.Vector, m.size)
}

func (m zeroResidualModel) ComputeTangent(betaPrime, gammaPrime float64, coords, velocity, multipliers dynamics.Vector, h float64, delta dynamics.Vector) *mat.Dense {
	t := mat.NewDense(m.size, m.size, nil)
	for i := 0; i < m.size; i++ {
		t.Set(i, i, 1.)
	}
	return t
}

// singularModel returns an all-zero tangent so the linear solve must fail.
type singularModel struct {
	size int
}

func (m singularModel) ComputeResidual(coords, velocity, acceleration, multipliers dynamics.Vector) dynamics.Vector {
	r := make(dynamics.Vector, m.size)
	for i := range r {
		r[i] = 1.
	}
	return r
}

func (m singularModel) ComputeTangent(betaPrime, gammaPrime float64, coords, velocity, multipliers dynamics.Vector, h float64, delta dynamics.Vector) *mat.Dense {
	return mat.NewDense(m.size, m.size, nil)
}

func quietIntegrator(t *testing.T, cfg Config, startTime, h float64, steps, maxIter int) *Integrator {
	t.Helper()
	stepper, err := dynamics.NewTimeStepper(startTime, h, steps, maxIter)
	if err != nil {
		t.Fatalf("NewTimeStepper error: %v", err)
	}
	integ, err := New(cfg, stepper)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	integ.SetLogger(slog.New(slog.DiscardHandler))
	return integ
}

func zeroState(dof int) dynamics.State {
	return dynamics.NewState(make(dynamics.Vector, dof), make(dynamics.Vector, dof),
		make(dynamics.Vector, dof), make(dynamics.Vector, dof))
}

func expectVector(t *testing.T, name string, got, want dynamics.Vector) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("%s = %v, want %v", name, got, want)
			return
		}
	}
}

func TestNewValidatesParameterRanges(t *testing.T) {
	stepper, err := dynamics.NewTimeStepper(0., 1., 10, 10)
	if err != nil {
		t.Fatalf("NewTimeStepper error: %v", err)
	}

	valid := []Config{
		{AlphaF: 0., AlphaM: 0., Beta: 0., Gamma: 0.},
		{AlphaF: 1., AlphaM: 1., Beta: 0.5, Gamma: 1.},
		{AlphaF: 0.5, AlphaM: 0.5, Beta: 0.25, Gamma: 0.5},
		{AlphaF: 0.11, AlphaM: 0.29, Beta: 0.47, Gamma: 0.93},
	}
	for _, cfg := range valid {
		if _, err := New(cfg, stepper); err != nil {
			t.Errorf("New(%+v) unexpected error: %v", cfg, err)
		}
	}

	invalid := []Config{
		{AlphaF: 1.1, AlphaM: 0.5, Beta: 0.25, Gamma: 0.5},
		{AlphaF: -0.1, AlphaM: 0.5, Beta: 0.25, Gamma: 0.5},
		{AlphaF: 0.5, AlphaM: 1.1, Beta: 0.25, Gamma: 0.5},
		{AlphaF: 0.5, AlphaM: 0.5, Beta: 0.75, Gamma: 0.5},
		{AlphaF: 0.5, AlphaM: 0.5, Beta: -0.25, Gamma: 0.5},
		{AlphaF: 0.5, AlphaM: 0.5, Beta: 0.25, Gamma: 1.1},
	}
	for _, cfg := range invalid {
		if _, err := New(cfg, stepper); !errors.Is(err, dynamics.ErrInvalidConfig) {
			t.Errorf("New(%+v): expected ErrInvalidConfig, got %v", cfg, err)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.AlphaF != 0.5 || cfg.AlphaM != 0.5 || cfg.Beta != 0.25 || cfg.Gamma != 0.5 {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
	if cfg.Precondition {
		t.Error("preconditioning should default to off")
	}
}

func TestIntegrateReturnsStepsPlusOneStates(t *testing.T) {
	integ := quietIntegrator(t, DefaultConfig(), 0., 0.1, 17, 10)
	initial := zeroState(1)

	result, err := integ.Integrate(initial, 0, identityModel{size: 1})
	if err != nil {
		t.Fatalf("Integrate error: %v", err)
	}

	if got := len(result.States); got != 18 {
		t.Errorf("len(States) = %d, want 18", got)
	}
	expectVector(t, "States[0].Velocity", result.States[0].Velocity, initial.Velocity)
	expectVector(t, "States[0].GenCoords", result.States[0].GenCoords, initial.GenCoords)

	// The stored initial state must not alias the caller's.
	initial.Velocity[0] = 42.
	if result.States[0].Velocity[0] != 0. {
		t.Error("history aliased the caller's initial state")
	}

	if got := integ.Stepper().CurrentTime(); math.Abs(got-1.70) > 1e-12 {
		t.Errorf("CurrentTime() = %v, want 1.70", got)
	}
}

func TestCheckConvergence(t *testing.T) {
	tol := ConvergenceTolerance

	if !CheckConvergence(dynamics.Vector{tol * 1e-1, tol * 2e-1, tol * 3e-1}) {
		t.Error("small residual should converge")
	}
	if CheckConvergence(dynamics.Vector{tol * 1e1, tol * 2e1, tol * 3e1}) {
		t.Error("large residual should not converge")
	}

	// Strict inequality: a residual with norm exactly at tolerance fails,
	// and scaling it down by any factor below one passes.
	if CheckConvergence(dynamics.Vector{tol}) {
		t.Error("norm == tolerance must not converge")
	}
	if !CheckConvergence(dynamics.Vector{tol * 0.999999}) {
		t.Error("norm just under tolerance must converge")
	}
}

func TestUpdateGeneralizedCoordinates_RigidBody(t *testing.T) {
	coords := dynamics.Vector{0., -1., 0., 1., 0., 0., 0.}
	delta := dynamics.Vector{1., 1., 1., 1., 2., 3.}

	got := UpdateGeneralizedCoordinates(coords, delta, 1.)

	q := rotation.FromRotationVector(mgl64.Vec3{1., 2., 3.})
	want := dynamics.Vector{1., 0., 1., q.Q0, q.Q1, q.Q2, q.Q3}
	expectVector(t, "UpdateGeneralizedCoordinates", got, want)

	// Pure function: inputs untouched, repeat calls agree.
	expectVector(t, "coords", coords, dynamics.Vector{0., -1., 0., 1., 0., 0., 0.})
	expectVector(t, "second call", UpdateGeneralizedCoordinates(coords, delta, 1.), got)

	// The orientation block stays a unit quaternion.
	norm := math.Sqrt(got[3]*got[3] + got[4]*got[4] + got[5]*got[5] + got[6]*got[6])
	if math.Abs(norm-1.) > 1e-12 {
		t.Errorf("orientation norm = %v, want 1", norm)
	}
}

func TestUpdateGeneralizedCoordinates_ReducedLayout(t *testing.T) {
	coords := dynamics.Vector{1., 2., 3.}
	delta := dynamics.Vector{10., 20., 30.}

	got := UpdateGeneralizedCoordinates(coords, delta, 0.5)
	expectVector(t, "reduced update", got, dynamics.Vector{6., 12., 18.})
}

func TestAlphaStepOneIterationZeroState(t *testing.T) {
	cfg := Config{AlphaF: 0., AlphaM: 0., Beta: 0.5, Gamma: 1.}
	integ := quietIntegrator(t, cfg, 0., 1., 1, 1)

	result, err := integ.Integrate(zeroState(1), 0, identityModel{size: 1})
	if err != nil {
		t.Fatalf("Integrate error: %v", err)
	}

	final := result.States[len(result.States)-1]
	expectVector(t, "GenCoords", final.GenCoords, dynamics.Vector{0.})
	expectVector(t, "Velocity", final.Velocity, dynamics.Vector{-2.})
	expectVector(t, "Acceleration", final.Acceleration, dynamics.Vector{-2.})
	expectVector(t, "AlgoAcceleration", final.AlgoAcceleration, dynamics.Vector{-2.})

	if got := integ.Stepper().Iterations(); got != 1 {
		t.Errorf("Iterations() = %d, want 1", got)
	}
	if got := integ.Stepper().TotalIterations(); got != 1 {
		t.Errorf("TotalIterations() = %d, want 1", got)
	}
}

func TestAlphaStepTwoIterationsZeroState(t *testing.T) {
	cfg := Config{AlphaF: 0., AlphaM: 0., Beta: 0.5, Gamma: 1.}
	integ := quietIntegrator(t, cfg, 0., 1., 1, 2)

	result, err := integ.Integrate(zeroState(1), 0, identityModel{size: 1})
	if err != nil {
		t.Fatalf("Integrate error: %v", err)
	}

	final := result.States[len(result.States)-1]
	expectVector(t, "GenCoords", final.GenCoords, dynamics.Vector{-1.})
	expectVector(t, "Velocity", final.Velocity, dynamics.Vector{-4.})
	expectVector(t, "Acceleration", final.Acceleration, dynamics.Vector{-4.})
	expectVector(t, "AlgoAcceleration", final.AlgoAcceleration, dynamics.Vector{-4.})

	if got := integ.Stepper().TotalIterations(); got != 2 {
		t.Errorf("TotalIterations() = %d, want 2", got)
	}
}

func TestAlphaStepOneIterationNonZeroState(t *testing.T) {
	cfg := Config{AlphaF: 0., AlphaM: 0., Beta: 0.5, Gamma: 1.}
	integ := quietIntegrator(t, cfg, 0., 1., 1, 1)

	v := dynamics.Vector{1., 2., 3.}
	result, err := integ.Integrate(dynamics.NewState(v, v, v, v), 0, identityModel{size: 3})
	if err != nil {
		t.Fatalf("Integrate error: %v", err)
	}

	final := result.States[len(result.States)-1]
	expectVector(t, "GenCoords", final.GenCoords, dynamics.Vector{2., 4., 6.})
	expectVector(t, "Velocity", final.Velocity, dynamics.Vector{-1., 0., 1.})
	expectVector(t, "Acceleration", final.Acceleration, dynamics.Vector{-2., -2., -2.})
	expectVector(t, "AlgoAcceleration", final.AlgoAcceleration, dynamics.Vector{-2., -2., -2.})
}

func TestNonConvergenceIsNotFatal(t *testing.T) {
	integ := quietIntegrator(t, DefaultConfig(), 0., 0.1, 4, 3)

	result, err := integ.Integrate(zeroState(2), 0, identityModel{size: 2})
	if err != nil {
		t.Fatalf("Integrate error: %v", err)
	}

	if got := len(result.States); got != 5 {
		t.Errorf("len(States) = %d, want 5", got)
	}
	if len(result.Steps) != 4 {
		t.Fatalf("len(Steps) = %d, want 4", len(result.Steps))
	}
	for _, info := range result.Steps {
		if info.Converged {
			t.Errorf("step %d unexpectedly converged", info.Step)
		}
		if info.Iterations != 3 {
			t.Errorf("step %d iterations = %d, want 3", info.Step, info.Iterations)
		}
	}
	if result.Converged() {
		t.Error("Result.Converged() should be false")
	}
	if got := result.TotalIterations; got != 12 {
		t.Errorf("TotalIterations = %d, want 12", got)
	}
}

func TestConvergedStepStopsBeforeTangent(t *testing.T) {
	integ := quietIntegrator(t, DefaultConfig(), 0., 0.1, 1, 10)

	result, err := integ.Integrate(zeroState(1), 0, zeroResidualModel{size: 1})
	if err != nil {
		t.Fatalf("Integrate error: %v", err)
	}

	info := result.Steps[0]
	if !info.Converged {
		t.Error("expected convergence")
	}
	if info.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", info.Iterations)
	}
	if !result.Converged() {
		t.Error("Result.Converged() should be true")
	}
}

func TestMultipliersRestartFromZeroEachStep(t *testing.T) {
	integ := quietIntegrator(t, DefaultConfig(), 0., 1., 2, 2)

	result, err := integ.Integrate(zeroState(1), 1, identityModel{size: 2})
	if err != nil {
		t.Fatalf("Integrate error: %v", err)
	}

	if len(result.Multipliers) != 2 {
		t.Fatalf("len(Multipliers) = %d, want 2", len(result.Multipliers))
	}
	// Identical increments every iteration, so carrying multipliers over
	// would double the second step's value.
	expectVector(t, "step multipliers", result.Multipliers[1], result.Multipliers[0])
}

func TestPreconditioningDoesNotChangeTheSolution(t *testing.T) {
	base := Config{AlphaF: 0., AlphaM: 0., Beta: 0.5, Gamma: 1.}
	pre := base
	pre.Precondition = true

	plain := quietIntegrator(t, base, 0., 1., 2, 3)
	scaled := quietIntegrator(t, pre, 0., 1., 2, 3)

	model := identityModel{size: 3} // 2 dof + 1 constraint
	plainResult, err := plain.Integrate(zeroState(2), 1, model)
	if err != nil {
		t.Fatalf("Integrate error: %v", err)
	}
	scaledResult, err := scaled.Integrate(zeroState(2), 1, model)
	if err != nil {
		t.Fatalf("Integrate error: %v", err)
	}

	for i := range plainResult.States {
		expectVector(t, "Velocity", scaledResult.States[i].Velocity, plainResult.States[i].Velocity)
		expectVector(t, "GenCoords", scaledResult.States[i].GenCoords, plainResult.States[i].GenCoords)
	}
	for i := range plainResult.Multipliers {
		expectVector(t, "Multipliers", scaledResult.Multipliers[i], plainResult.Multipliers[i])
	}
}

func TestSingularTangentAbortsRun(t *testing.T) {
	integ := quietIntegrator(t, DefaultConfig(), 0., 0.1, 3, 5)

	result, err := integ.Integrate(zeroState(1), 0, singularModel{size: 1})
	if !errors.Is(err, dynamics.ErrSingularTangent) {
		t.Fatalf("expected ErrSingularTangent, got %v", err)
	}

	var stepErr *dynamics.StepError
	if !errors.As(err, &stepErr) {
		t.Fatal("expected a StepError wrapper")
	}
	if stepErr.Step != 1 {
		t.Errorf("failing step = %d, want 1", stepErr.Step)
	}

	// Only the initial state made it into the history.
	if got := len(result.States); got != 1 {
		t.Errorf("len(States) = %d, want 1", got)
	}
}

func TestResidualDimensionMismatch(t *testing.T) {
	integ := quietIntegrator(t, DefaultConfig(), 0., 0.1, 1, 5)

	// Model sized for 2 unknowns driven with 1 dof and no constraints.
	_, err := integ.Integrate(zeroState(1), 0, identityModel{size: 2})
	if !errors.Is(err, dynamics.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEnsembleRunsIndependentIntegrations(t *testing.T) {
	cfg := Config{AlphaF: 0., AlphaM: 0., Beta: 0.5, Gamma: 1.}
	ensemble := NewEnsemble(cfg, 0., 1., 1, 1)
	ensemble.SetLogger(slog.New(slog.DiscardHandler))

	initials := []dynamics.State{
		zeroState(1),
		dynamics.NewState(dynamics.Vector{1.}, dynamics.Vector{1.}, dynamics.Vector{1.}, dynamics.Vector{1.}),
		dynamics.NewState(dynamics.Vector{2.}, dynamics.Vector{2.}, dynamics.Vector{2.}, dynamics.Vector{2.}),
	}

	results, err := ensemble.Run(initials, 0, identityModel{size: 1})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for i, r := range results {
		if len(r.States) != 2 {
			t.Errorf("run %d: len(States) = %d, want 2", i, len(r.States))
		}
		expectVector(t, "initial state", r.States[0].GenCoords, initials[i].GenCoords)
	}
}
