package alpha

import (
	"log/slog"
	"sync"

	"github.com/kestrel-sim/alphadyn/internal/dynamics"
)

// Ensemble runs one integration per initial state, concurrently, each on an
// independent integrator instance with its own time stepper. This is the
// supported way to batch simulations: a single Integrator must never be
// invoked from multiple goroutines.
type Ensemble struct {
	cfg           Config
	startTime     float64
	stepSize      float64
	numSteps      int
	maxIterations int
	logger        *slog.Logger
}

// SetLogger sets the diagnostic sink handed to every per-run integrator.
func (e *Ensemble) SetLogger(l *slog.Logger) { e.logger = l }

// NewEnsemble builds an ensemble template. Parameter validation happens when
// the per-run integrators are constructed.
func NewEnsemble(cfg Config, startTime, stepSize float64, numSteps, maxIterations int) *Ensemble {
	return &Ensemble{
		cfg:           cfg,
		startTime:     startTime,
		stepSize:      stepSize,
		numSteps:      numSteps,
		maxIterations: maxIterations,
	}
}

// Run integrates every initial state and returns one result per run, in input
// order. The model must be stateless across calls, which holds for all models
// in this repository. The first error encountered is returned alongside the
// results gathered so far.
func (e *Ensemble) Run(initials []dynamics.State, constraints int, model dynamics.Model) ([]*Result, error) {
	results := make([]*Result, len(initials))
	errs := make([]error, len(initials))

	var wg sync.WaitGroup
	for i := range initials {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			stepper, err := dynamics.NewTimeStepper(e.startTime, e.stepSize, e.numSteps, e.maxIterations)
			if err != nil {
				errs[idx] = err
				return
			}
			integ, err := New(e.cfg, stepper)
			if err != nil {
				errs[idx] = err
				return
			}
			if e.logger != nil {
				integ.SetLogger(e.logger)
			}

			results[idx], errs[idx] = integ.Integrate(initials[idx], constraints, model)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
