// Package solver integrates a scenario's dynamical system over time and
// reduces the run into named scalar measurements and an optional uniformly
// sampled multi-channel trace.
//
// The integrator is a fixed-step implicit trapezoidal method with per-step
// fixed-point iteration; the model's guard nonlinearities are smooth, so a
// handful of iterations per step meets tolerance. Measurement windows that
// fall outside the run or reference unknown signals are silently omitted
// from the result; downstream reporting tolerates sparse rows.
package solver

import (
	"errors"
	"fmt"
)

// System is the dynamical-system contract the transient integrator consumes.
// Eval returns the state derivative at (t, state) together with a snapshot of
// the system's named output signals.
type System interface {
	StateDim() int
	InitialState() []float64
	Eval(t float64, state []float64) (deriv []float64, signals map[string]float64, err error)
}

// Config holds the integration settings. The defaults mirror the reference
// configuration: fixed 10 us steps, reltol 1e-4, abstol 1e-8.
type Config struct {
	Step    float64 // fixed step size in seconds
	RelTol  float64
	AbsTol  float64
	MaxIter int // per-step corrector iteration budget
}

// DefaultConfig returns the reference integration settings.
func DefaultConfig() Config {
	return Config{Step: 10e-6, RelTol: 1e-4, AbsTol: 1e-8, MaxIter: 50}
}

// Reduction selects how a measurement window folds samples into a scalar.
type Reduction int

const (
	Average Reduction = iota
	Max
	Min
	At // point-sample nearest the requested time
)

// Window is a named measurement request: a reduction applied to one signal
// over [From, To], or at the single instant AtTime for the At reduction.
type Window struct {
	Name   string
	Signal string
	Reduce Reduction
	From   float64
	To     float64
	AtTime float64
}

// Request describes one transient run: total duration, the scalar
// measurements to extract and the signals to trace.
type Request struct {
	Duration float64
	Windows  []Window
	Trace    []string
}

// Result carries the scalar measurement mapping (sparse: requests that could
// not be satisfied are absent) and the sampled trace when one was requested.
type Result struct {
	Measurements map[string]float64
	Trace        *Trace
}

var (
	// ErrBadRequest indicates a non-positive duration or step size.
	ErrBadRequest = errors.New("solver: invalid request")

	// ErrDiverged indicates the per-step corrector exhausted its iteration
	// budget without meeting tolerance.
	ErrDiverged = errors.New("solver: corrector iteration diverged")
)

// SimulationError reports a transient run that did not complete, with the
// solver's diagnostic text and the step/time it failed at.
type SimulationError struct {
	Time    float64
	Step    int
	Diag    string
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("solver: simulation failed at t=%.6e (step %d): %s", e.Time, e.Step, e.Diag)
}

func (e *SimulationError) Unwrap() error { return e.Wrapped }
