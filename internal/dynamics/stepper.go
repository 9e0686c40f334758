package dynamics

// TimeStepper tracks the simulation clock and Newton iteration counters for
// one integration run. The per-step counter resets at the start of every step
// and increments once per Newton iteration; the cumulative counter only grows.
type TimeStepper struct {
	currentTime     float64
	stepSize        float64
	numSteps        int
	maxIterations   int
	iterations      int
	totalIterations int
}

// NewTimeStepper builds a stepper with a fixed step size. A non-positive step
// count is rejected.
func NewTimeStepper(startTime, stepSize float64, numSteps, maxIterations int) (*TimeStepper, error) {
	if numSteps <= 0 {
		return nil, ErrInvalidStepCount
	}
	return &TimeStepper{
		currentTime:   startTime,
		stepSize:      stepSize,
		numSteps:      numSteps,
		maxIterations: maxIterations,
	}, nil
}

// AdvanceTimeStep moves the clock forward by one fixed step.
func (ts *TimeStepper) AdvanceTimeStep() {
	ts.currentTime += ts.stepSize
}

// CurrentTime returns the simulation time.
func (ts *TimeStepper) CurrentTime() float64 { return ts.currentTime }

// StepSize returns the fixed time step h.
func (ts *TimeStepper) StepSize() float64 { return ts.stepSize }

// NumSteps returns the configured number of steps.
func (ts *TimeStepper) NumSteps() int { return ts.numSteps }

// MaxIterations returns the Newton iteration cutoff per step.
func (ts *TimeStepper) MaxIterations() int { return ts.maxIterations }

// ResetIterations zeroes the per-step Newton counter.
func (ts *TimeStepper) ResetIterations() { ts.iterations = 0 }

// IncrementIterations counts one Newton iteration of the current step.
func (ts *TimeStepper) IncrementIterations() { ts.iterations++ }

// Iterations returns the Newton iterations of the current step.
func (ts *TimeStepper) Iterations() int { return ts.iterations }

// AccumulateTotalIterations adds n to the cumulative counter.
func (ts *TimeStepper) AccumulateTotalIterations(n int) { ts.totalIterations += n }

// TotalIterations returns the Newton iterations across all steps so far.
func (ts *TimeStepper) TotalIterations() int { return ts.totalIterations }
