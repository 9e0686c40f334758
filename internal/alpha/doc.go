// Package alpha implements the generalized-alpha implicit time integrator for
// index-3 differential-algebraic systems, after Bruls, Cardona, and Arnold
// (2012).
//
// Each step runs a linear predictor followed by a Newton-Raphson corrector
// that repeatedly assembles the model residual and tangent, solves a dense
// linear system, and applies the increments to the kinematic unknowns and
// Lagrange multipliers. Orientation updates compose unit quaternions through
// the rotation exponential map, so the corrector works directly on the
// R3 x SO(3) configuration space.
//
// Non-convergence within the iteration cutoff is a soft failure: the
// best-effort state is still appended to the history and the condition is
// reported through [StepInfo] and the logger. A singular iteration matrix
// aborts the run.
package alpha
