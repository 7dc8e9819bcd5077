package solver

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decay is x' = -lambda*x, x(0)=1, with named probe signals.
type decay struct {
	lambda float64
}

func (d *decay) StateDim() int           { return 1 }
func (d *decay) InitialState() []float64 { return []float64{1} }
func (d *decay) Eval(t float64, state []float64) ([]float64, map[string]float64, error) {
	x := state[0]
	return []float64{-d.lambda * x}, map[string]float64{"x": x, "ramp": 2 * t}, nil
}

func TestTransient_ExponentialAccuracy(t *testing.T) {
	sys := &decay{lambda: 1}
	cfg := Config{Step: 1e-3, RelTol: 1e-6, AbsTol: 1e-12, MaxIter: 50}
	req := Request{
		Duration: 1,
		Windows: []Window{
			{Name: "X_END", Signal: "x", Reduce: At, AtTime: 1},
			{Name: "X_MIN", Signal: "x", Reduce: Min, From: 0, To: 1},
		},
	}

	res, err := Transient(context.Background(), sys, cfg, req)
	require.NoError(t, err)

	xEnd, ok := res.Measurements["X_END"]
	require.True(t, ok)
	assert.InDelta(t, math.Exp(-1), xEnd, 1e-5, "trapezoidal solution of x'=-x at t=1")
	assert.InDelta(t, math.Exp(-1), res.Measurements["X_MIN"], 1e-5, "decay is monotone, min is the endpoint")
}

func TestTransient_WindowReductions(t *testing.T) {
	sys := &decay{lambda: 0}
	cfg := DefaultConfig()
	cfg.Step = 1e-2
	req := Request{
		Duration: 1,
		Windows: []Window{
			{Name: "R_AVG", Signal: "ramp", Reduce: Average, From: 0, To: 1},
			{Name: "R_MAX", Signal: "ramp", Reduce: Max, From: 0, To: 1},
			{Name: "R_MIN", Signal: "ramp", Reduce: Min, From: 0, To: 1},
			{Name: "R_MID", Signal: "ramp", Reduce: At, AtTime: 0.5},
		},
	}

	res, err := Transient(context.Background(), sys, cfg, req)
	require.NoError(t, err)

	// ramp = 2t sampled uniformly over [0,1] including both endpoints
	assert.InDelta(t, 1.0, res.Measurements["R_AVG"], 1e-12)
	assert.InDelta(t, 2.0, res.Measurements["R_MAX"], 1e-12)
	assert.InDelta(t, 0.0, res.Measurements["R_MIN"], 1e-12)
	assert.InDelta(t, 1.0, res.Measurements["R_MID"], 1e-12)
}

func TestTransient_MissingMeasurementsOmitted(t *testing.T) {
	sys := &decay{lambda: 1}
	cfg := DefaultConfig()
	cfg.Step = 1e-3
	req := Request{
		Duration: 0.1,
		Windows: []Window{
			{Name: "OUT_OF_RANGE", Signal: "x", Reduce: Average, From: 2, To: 3},
			{Name: "NO_SUCH_SIGNAL", Signal: "bogus", Reduce: Max, From: 0, To: 0.1},
			{Name: "FAR_POINT", Signal: "x", Reduce: At, AtTime: 5},
			{Name: "GOOD", Signal: "x", Reduce: Max, From: 0, To: 0.1},
		},
	}

	res, err := Transient(context.Background(), sys, cfg, req)
	require.NoError(t, err)

	_, ok := res.Measurements["OUT_OF_RANGE"]
	assert.False(t, ok, "window beyond the run must be absent, not zero")
	_, ok = res.Measurements["NO_SUCH_SIGNAL"]
	assert.False(t, ok, "unknown signal fails silently")
	_, ok = res.Measurements["FAR_POINT"]
	assert.False(t, ok, "point sample farther than a step is absent")
	assert.InDelta(t, 1.0, res.Measurements["GOOD"], 1e-9)
}

func TestTransient_TraceChannels(t *testing.T) {
	sys := &decay{lambda: 1}
	cfg := DefaultConfig()
	cfg.Step = 1e-3
	req := Request{Duration: 0.01, Trace: []string{"x", "missing"}}

	res, err := Transient(context.Background(), sys, cfg, req)
	require.NoError(t, err)
	require.NotNil(t, res.Trace)

	assert.Equal(t, 11, res.Trace.Len(), "initial sample plus one per step")
	x, ok := res.Trace.Channel("x")
	require.True(t, ok)
	assert.Equal(t, 1.0, x[0])
	_, ok = res.Trace.Channel("missing")
	assert.False(t, ok, "unproduced channel is absent from the trace")
}

func TestTransient_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sys := &decay{lambda: 1}
	cfg := DefaultConfig()
	cfg.Step = 1e-4
	_, err := Transient(ctx, sys, cfg, Request{Duration: 1})
	require.Error(t, err)

	var simErr *SimulationError
	require.ErrorAs(t, err, &simErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, simErr.Error(), "aborted")
}

func TestTransient_BadRequest(t *testing.T) {
	sys := &decay{lambda: 1}
	_, err := Transient(context.Background(), sys, DefaultConfig(), Request{Duration: 0})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = Transient(context.Background(), sys, Config{Step: 0}, Request{Duration: 1})
	assert.ErrorIs(t, err, ErrBadRequest)
}

// blowup reports an evaluation error partway into the run.
type blowup struct{}

func (b *blowup) StateDim() int           { return 1 }
func (b *blowup) InitialState() []float64 { return []float64{0} }
func (b *blowup) Eval(t float64, state []float64) ([]float64, map[string]float64, error) {
	if t > 0.5 {
		return nil, nil, errors.New("model exploded")
	}
	return []float64{1}, map[string]float64{"x": state[0]}, nil
}

func TestTransient_ModelErrorBecomesSimulationError(t *testing.T) {
	_, err := Transient(context.Background(), &blowup{}, Config{Step: 0.1, RelTol: 1e-4, AbsTol: 1e-8, MaxIter: 10}, Request{Duration: 1})
	require.Error(t, err)

	var simErr *SimulationError
	require.ErrorAs(t, err, &simErr)
	assert.Contains(t, simErr.Diag, "model exploded", "diagnostic text is preserved")
	assert.Greater(t, simErr.Time, 0.5)
}
