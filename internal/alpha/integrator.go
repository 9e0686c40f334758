package alpha

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/kestrel-sim/alphadyn/internal/dynamics"
	"github.com/kestrel-sim/alphadyn/internal/rotation"
)

// ConvergenceTolerance is the L2 residual norm below which the Newton-Raphson
// corrector is considered converged.
const ConvergenceTolerance = 1e-6

// Config holds the generalized-alpha parameters. The admissible classical
// ranges are alpha_f, alpha_m in [0,1], beta in [0,0.5], gamma in [0,1].
type Config struct {
	AlphaF       float64
	AlphaM       float64
	Beta         float64
	Gamma        float64
	Precondition bool
}

// DefaultConfig returns the trapezoidal parameter set with no numerical
// damping and preconditioning disabled.
func DefaultConfig() Config {
	return Config{AlphaF: 0.5, AlphaM: 0.5, Beta: 0.25, Gamma: 0.5}
}

func (c Config) validate() error {
	if c.AlphaF < 0. || c.AlphaF > 1. {
		return fmt.Errorf("%w: alpha_f = %v, want [0, 1]", dynamics.ErrInvalidConfig, c.AlphaF)
	}
	if c.AlphaM < 0. || c.AlphaM > 1. {
		return fmt.Errorf("%w: alpha_m = %v, want [0, 1]", dynamics.ErrInvalidConfig, c.AlphaM)
	}
	if c.Beta < 0. || c.Beta > 0.5 {
		return fmt.Errorf("%w: beta = %v, want [0, 0.5]", dynamics.ErrInvalidConfig, c.Beta)
	}
	if c.Gamma < 0. || c.Gamma > 1. {
		return fmt.Errorf("%w: gamma = %v, want [0, 1]", dynamics.ErrInvalidConfig, c.Gamma)
	}
	return nil
}

// StepInfo reports the outcome of one alpha step. Convergence is a per-step
// result value, not integrator state, so a single integrator can be driven
// through several runs without stale flags.
type StepInfo struct {
	Step       int
	Time       float64
	Iterations int
	Converged  bool
}

// Result is the output of one integration run. States has length steps+1 with
// element 0 equal to the initial state; Multipliers and Steps have one entry
// per completed step. Once returned, the contents are never mutated and are
// safe to share.
type Result struct {
	States          []dynamics.State
	Multipliers     []dynamics.Vector
	Steps           []StepInfo
	TotalIterations int
}

// Converged reports whether every step of the run converged.
func (r *Result) Converged() bool {
	for _, s := range r.Steps {
		if !s.Converged {
			return false
		}
	}
	return true
}

// Integrator advances a constrained rigid body through time with the
// generalized-alpha scheme. Instances are not safe for concurrent use because
// the time stepper's counters are mutated during Integrate; run concurrent
// simulations on independent instances (see [Ensemble]).
type Integrator struct {
	cfg       Config
	stepper   *dynamics.TimeStepper
	logger    *slog.Logger
	metrics   []dynamics.Metric
	observers []dynamics.Observer
}

// New validates the parameter ranges and builds an integrator around the
// given time stepper.
func New(cfg Config, stepper *dynamics.TimeStepper) (*Integrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Integrator{cfg: cfg, stepper: stepper, logger: slog.Default()}, nil
}

// SetLogger replaces the diagnostic sink. Logging is informational only and
// never part of the functional contract.
func (g *Integrator) SetLogger(l *slog.Logger) { g.logger = l }

// AddMetric registers a metric observed on every appended state, including
// the initial one.
func (g *Integrator) AddMetric(m dynamics.Metric) { g.metrics = append(g.metrics, m) }

// AddObserver registers an observer notified after every completed step.
func (g *Integrator) AddObserver(o dynamics.Observer) { g.observers = append(g.observers, o) }

// Stepper exposes the time stepper and its iteration counters.
func (g *Integrator) Stepper() *dynamics.TimeStepper { return g.stepper }

// Integrate advances the initial state over the stepper's configured number
// of steps and returns the full state history. Newton non-convergence within
// a step is recorded in the result and logged, but integration continues; a
// singular linear solve aborts the run with the partial history produced so
// far.
func (g *Integrator) Integrate(initial dynamics.State, constraints int, model dynamics.Model) (*Result, error) {
	steps := g.stepper.NumSteps()
	result := &Result{
		States:      make([]dynamics.State, 0, steps+1),
		Multipliers: make([]dynamics.Vector, 0, steps),
		Steps:       make([]StepInfo, 0, steps),
	}

	for _, m := range g.metrics {
		m.Reset()
	}

	result.States = append(result.States, initial.Clone())
	g.observe(result.States[0], g.stepper.CurrentTime())

	for i := 0; i < steps; i++ {
		g.stepper.AdvanceTimeStep()
		g.logger.Debug("integrating step", "step", i+1, "t", g.stepper.CurrentTime())

		next, multipliers, info, err := g.alphaStep(result.States[i], constraints, model)
		if err != nil {
			return result, &dynamics.StepError{Step: i + 1, Time: g.stepper.CurrentTime(), Wrapped: err}
		}

		info.Step = i + 1
		info.Time = g.stepper.CurrentTime()

		result.States = append(result.States, next)
		result.Multipliers = append(result.Multipliers, multipliers)
		result.Steps = append(result.Steps, info)
		result.TotalIterations += info.Iterations

		g.observe(next, info.Time)
		for _, o := range g.observers {
			o.OnStep(next, info.Time)
		}
	}

	return result, nil
}

func (g *Integrator) observe(s dynamics.State, t float64) {
	for _, m := range g.metrics {
		m.Observe(s, t)
	}
}

// alphaStep runs the predictor and the Newton-Raphson corrector for one time
// step and returns the new state, the refined Lagrange multipliers, and the
// step outcome.
func (g *Integrator) alphaStep(state dynamics.State, constraints int, model dynamics.Model) (dynamics.State, dynamics.Vector, StepInfo, error) {
	h := g.stepper.StepSize()
	af, am, beta, gamma := g.cfg.AlphaF, g.cfg.AlphaM, g.cfg.Beta, g.cfg.Gamma

	n := len(state.Velocity)
	size := n + constraints

	q := state.GenCoords.Clone()
	v := state.Velocity.Clone()
	a := state.Acceleration.Clone()
	aa := state.AlgoAcceleration.Clone()
	aaNext := make(dynamics.Vector, n)
	delta := make(dynamics.Vector, n)

	// Predictor, Table 1 of Bruls, Cardona, and Arnold (2012). Elementwise
	// with no cross-index dependency.
	for i := 0; i < n; i++ {
		aaNext[i] = (af*a[i] - am*aa[i]) / (1. - am)
		delta[i] = v[i] + h*(0.5-beta)*aa[i] + h*beta*aaNext[i]
		v[i] += h*(1.-gamma)*aa[i] + h*gamma*aaNext[i]
		aa[i] = aaNext[i]
		a[i] = 0.
	}

	// Multipliers start from zero every step, not from the previous step's
	// values.
	multipliers := make(dynamics.Vector, constraints)

	betaPrime := (1. - am) / (h * h * beta * (1. - af))
	gammaPrime := gamma / (h * beta)

	var dl, dr *mat.DiagDense
	if g.cfg.Precondition {
		dl, dr = preconditioners(n, constraints, beta, h)
	}

	qNext := q
	converged := false

	g.stepper.ResetIterations()
	for g.stepper.Iterations() < g.stepper.MaxIterations() {
		g.stepper.IncrementIterations()

		qNext = UpdateGeneralizedCoordinates(q, delta, h)

		residual := model.ComputeResidual(qNext, v, a, multipliers)
		if len(residual) != size {
			err := fmt.Errorf("%w: residual length %d, want %d", dynamics.ErrDimensionMismatch, len(residual), size)
			return dynamics.State{}, nil, StepInfo{}, err
		}

		if CheckConvergence(residual) {
			converged = true
			break
		}

		tangent := model.ComputeTangent(betaPrime, gammaPrime, qNext, v, multipliers, h, delta)
		if r, c := tangent.Dims(); r != size || c != size {
			err := fmt.Errorf("%w: tangent %dx%d, want %dx%d", dynamics.ErrDimensionMismatch, r, c, size, size)
			return dynamics.State{}, nil, StepInfo{}, err
		}

		if g.cfg.Precondition {
			scaled := mat.NewDense(size, size, nil)
			scaled.Mul(tangent, dr)
			tangent.Mul(dl, scaled)
			scaleResidual(residual, n, beta, h)
		}

		var soln mat.VecDense
		if err := soln.SolveVec(tangent, mat.NewVecDense(size, residual)); err != nil {
			return dynamics.State{}, nil, StepInfo{}, fmt.Errorf("%w: %v", dynamics.ErrSingularTangent, err)
		}

		// The Newton correction opposes the residual.
		for i := 0; i < constraints; i++ {
			dLambda := -soln.AtVec(n + i)
			if g.cfg.Precondition {
				dLambda /= beta * h * h
			}
			multipliers[i] += dLambda
		}

		for i := 0; i < n; i++ {
			dx := -soln.AtVec(i)
			delta[i] += dx / h
			v[i] += gammaPrime * dx
			a[i] += betaPrime * dx
		}
	}

	iterations := g.stepper.Iterations()
	g.stepper.AccumulateTotalIterations(iterations)

	// Final algorithmic acceleration correction after the corrector ends,
	// converged or not.
	for i := 0; i < n; i++ {
		aa[i] += (1. - af) / (1. - am) * a[i]
	}

	if converged {
		g.logger.Debug("newton-raphson converged", "iterations", iterations)
	} else {
		g.logger.Warn("newton-raphson failed to converge", "iterations", iterations)
	}

	next := dynamics.NewState(qNext, v, a, aa)
	return next, multipliers, StepInfo{Iterations: iterations, Converged: converged}, nil
}

// preconditioners builds the diagonal congruence scaling of Bottasso et al
// (2008): the left matrix scales the dof block by beta*h^2 and the right
// matrix scales the constraint block by 1/(beta*h^2), rebalancing
// displacement-like against constraint-force-like unknowns before the solve.
func preconditioners(dof, constraints int, beta, h float64) (*mat.DiagDense, *mat.DiagDense) {
	size := dof + constraints
	left := make([]float64, size)
	right := make([]float64, size)
	for i := 0; i < size; i++ {
		if i < dof {
			left[i] = beta * h * h
			right[i] = 1.
		} else {
			left[i] = 1.
			right[i] = 1. / (beta * h * h)
		}
	}
	return mat.NewDiagDense(size, left), mat.NewDiagDense(size, right)
}

// scaleResidual applies the left scaling to the residual's dof block, capped
// at the 6 rows of a single rigid body. Constraint rows are never scaled.
func scaleResidual(residual dynamics.Vector, dof int, beta, h float64) {
	for i := 0; i < min(6, dof); i++ {
		residual[i] *= beta * h * h
	}
}

// UpdateGeneralizedCoordinates assembles the trial coordinates for the current
// Newton iterate. The 7-coordinate rigid body layout splits into a
// translational block updated by vector addition and an orientation block
// updated by right-composing the incremental rotation exp_map(h*delta_rot)
// expressed in the body frame. Reduced layouts update elementwise. Pure
// function: same inputs, same outputs, no side effects.
func UpdateGeneralizedCoordinates(coords, delta dynamics.Vector, h float64) dynamics.Vector {
	if len(coords) == 7 && len(delta) == 6 {
		r := mgl64.Vec3{coords[0], coords[1], coords[2]}.
			Add(mgl64.Vec3{delta[0], delta[1], delta[2]}.Mul(h))

		orientation := rotation.Quaternion{Q0: coords[3], Q1: coords[4], Q2: coords[5], Q3: coords[6]}
		increment := rotation.FromRotationVector(mgl64.Vec3{delta[3], delta[4], delta[5]}.Mul(h))
		qn := orientation.Mul(increment)

		return dynamics.Vector{r[0], r[1], r[2], qn.Q0, qn.Q1, qn.Q2, qn.Q3}
	}

	next := make(dynamics.Vector, len(coords))
	for i := range coords {
		if i < len(delta) {
			next[i] = coords[i] + h*delta[i]
		} else {
			next[i] = coords[i]
		}
	}
	return next
}

// CheckConvergence reports whether the L2 norm of the residual is strictly
// below the convergence tolerance.
func CheckConvergence(residual dynamics.Vector) bool {
	return floats.Norm(residual, 2) < ConvergenceTolerance
}
