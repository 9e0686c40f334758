package dynamics

import (
	"errors"
	"fmt"
)

// Domain errors for integration runs.
var (
	// ErrInvalidConfig indicates an out-of-range integration parameter.
	ErrInvalidConfig = errors.New("dynamics: invalid integrator configuration")

	// ErrInvalidMass indicates a non-positive mass or inertia entry.
	ErrInvalidMass = errors.New("dynamics: mass and moments of inertia must be positive")

	// ErrInvalidStepCount indicates a non-positive number of time steps.
	ErrInvalidStepCount = errors.New("dynamics: number of steps must be positive")

	// ErrSingularTangent indicates the Newton linear solve hit a singular
	// iteration matrix. The run aborts; there is no internal retry.
	ErrSingularTangent = errors.New("dynamics: singular iteration matrix in linear solve")

	// ErrDimensionMismatch indicates a model callback returned a residual or
	// tangent whose size disagrees with dof+constraints.
	ErrDimensionMismatch = errors.New("dynamics: model output dimension mismatch")
)

// StepError wraps an error with the step at which it occurred.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
