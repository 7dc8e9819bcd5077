package solver

import (
	"context"
	"fmt"
	"math"
)

// window accumulator state, one per requested Window.
type windowAcc struct {
	w      Window
	seen   bool
	sum    float64
	count  int
	max    float64
	min    float64
	atVal  float64
	atDist float64
}

func newWindowAcc(w Window) *windowAcc {
	return &windowAcc{w: w, max: math.Inf(-1), min: math.Inf(1), atDist: math.Inf(1)}
}

func (a *windowAcc) observe(t, v float64) {
	switch a.w.Reduce {
	case At:
		if d := math.Abs(t - a.w.AtTime); d < a.atDist {
			a.atDist = d
			a.atVal = v
			a.seen = true
		}
	default:
		if t < a.w.From || t > a.w.To {
			return
		}
		a.seen = true
		a.count++
		a.sum += v
		if v > a.max {
			a.max = v
		}
		if v < a.min {
			a.min = v
		}
	}
}

// value reports the reduced scalar; ok is false when the window produced no
// usable samples (out-of-range window, unknown signal, point sample too far
// from any step).
func (a *windowAcc) value(step float64) (float64, bool) {
	if !a.seen {
		return 0, false
	}
	switch a.w.Reduce {
	case Average:
		return a.sum / float64(a.count), true
	case Max:
		return a.max, true
	case Min:
		return a.min, true
	case At:
		if a.atDist > step {
			return 0, false
		}
		return a.atVal, true
	}
	return 0, false
}

// Transient integrates sys over [0, req.Duration] and reduces the run into
// measurements and an optional trace. The context bounds the wall-clock time
// of the run; expiry surfaces as a SimulationError.
func Transient(ctx context.Context, sys System, cfg Config, req Request) (*Result, error) {
	if req.Duration <= 0 || cfg.Step <= 0 {
		return nil, fmt.Errorf("%w: duration=%v step=%v", ErrBadRequest, req.Duration, cfg.Step)
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = DefaultConfig().MaxIter
	}

	dim := sys.StateDim()
	state := make([]float64, dim)
	copy(state, sys.InitialState())

	accs := make([]*windowAcc, len(req.Windows))
	for i, w := range req.Windows {
		accs[i] = newWindowAcc(w)
	}

	var trace *Trace
	if len(req.Trace) > 0 {
		trace = NewTrace(req.Trace...)
	}

	deriv, signals, err := sys.Eval(0, state)
	if err != nil {
		return nil, &SimulationError{Time: 0, Step: 0, Diag: err.Error(), Wrapped: err}
	}
	record(accs, trace, 0, signals)

	steps := int(math.Ceil(req.Duration/cfg.Step - 1e-9))
	next := make([]float64, dim)
	corr := make([]float64, dim)

	for n := 1; n <= steps; n++ {
		if n%512 == 0 {
			if cerr := ctx.Err(); cerr != nil {
				return nil, &SimulationError{
					Time: float64(n) * cfg.Step, Step: n,
					Diag:    fmt.Sprintf("run aborted: %v", cerr),
					Wrapped: cerr,
				}
			}
		}

		t0 := float64(n-1) * cfg.Step
		t1 := float64(n) * cfg.Step
		if t1 > req.Duration {
			t1 = req.Duration
		}
		h := t1 - t0

		// Explicit Euler predictor.
		for i := 0; i < dim; i++ {
			next[i] = state[i] + h*deriv[i]
		}

		// Trapezoidal corrector, iterated to tolerance.
		var (
			d1   []float64
			sig1 map[string]float64
		)
		converged := false
		for iter := 0; iter < cfg.MaxIter; iter++ {
			d1, sig1, err = sys.Eval(t1, next)
			if err != nil {
				return nil, &SimulationError{Time: t1, Step: n, Diag: err.Error(), Wrapped: err}
			}
			done := true
			for i := 0; i < dim; i++ {
				corr[i] = state[i] + 0.5*h*(deriv[i]+d1[i])
				if math.Abs(corr[i]-next[i]) > cfg.AbsTol+cfg.RelTol*math.Abs(corr[i]) {
					done = false
				}
				next[i] = corr[i]
			}
			if done {
				converged = true
				break
			}
		}
		if !converged {
			return nil, &SimulationError{
				Time: t1, Step: n,
				Diag:    fmt.Sprintf("corrector exceeded %d iterations", cfg.MaxIter),
				Wrapped: ErrDiverged,
			}
		}

		copy(state, next)
		deriv = d1
		record(accs, trace, t1, sig1)
	}

	res := &Result{Measurements: make(map[string]float64, len(accs)), Trace: trace}
	for _, a := range accs {
		if v, ok := a.value(cfg.Step); ok {
			res.Measurements[a.w.Name] = v
		}
	}
	return res, nil
}

func record(accs []*windowAcc, trace *Trace, t float64, signals map[string]float64) {
	for _, a := range accs {
		if v, ok := signals[a.w.Signal]; ok {
			a.observe(t, v)
		}
	}
	if trace != nil {
		trace.Append(t, signals)
	}
}
