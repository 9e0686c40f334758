package metrics

import (
	"github.com/kestrel-sim/alphadyn/internal/dynamics"
)

// ConstraintViolation tracks the largest constraint equation norm seen across
// the history. For a converged run this stays near the solver tolerance.
type ConstraintViolation struct {
	model dynamics.ConstraintEvaluator
	max   float64
}

func NewConstraintViolation(model dynamics.ConstraintEvaluator) *ConstraintViolation {
	return &ConstraintViolation{model: model}
}

func (c *ConstraintViolation) Name() string { return "constraint_violation" }

func (c *ConstraintViolation) Observe(s dynamics.State, t float64) {
	norm := c.model.Constraint(s.GenCoords).Norm()
	if norm > c.max {
		c.max = norm
	}
}

func (c *ConstraintViolation) Value() float64 {
	return c.max
}

func (c *ConstraintViolation) Reset() {
	c.max = 0
}
