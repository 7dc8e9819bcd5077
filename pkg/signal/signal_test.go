package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSine(t *testing.T) {
	s := Sine(2, 1000)
	assert.InDelta(t, 0, s(0), 1e-12)
	assert.InDelta(t, 2, s(0.25e-3), 1e-9, "quarter period should hit the peak")
	assert.InDelta(t, 0, s(0.5e-3), 1e-9)
	assert.InDelta(t, -2, s(0.75e-3), 1e-9)
}

func TestPWL_InterpolatesAndHolds(t *testing.T) {
	f := PWL(
		Point{T: 1, V: 10},
		Point{T: 3, V: 30},
		Point{T: 5, V: 30},
	)
	assert.Equal(t, 10.0, f(0), "holds first value before first knot")
	assert.Equal(t, 10.0, f(1))
	assert.InDelta(t, 20.0, f(2), 1e-12, "linear between knots")
	assert.Equal(t, 30.0, f(4), "flat segment")
	assert.Equal(t, 30.0, f(9), "holds last value after last knot")
}

func TestPWL_Empty(t *testing.T) {
	assert.Equal(t, 0.0, PWL()(1))
}

func TestSteps(t *testing.T) {
	f := Steps(Level{T: 0, V: 1.6}, Level{T: 15e-3, V: 0.8})
	assert.Equal(t, 1.6, f(-1), "first level applies before its start")
	assert.Equal(t, 1.6, f(14.9e-3))
	assert.Equal(t, 0.8, f(15e-3), "switch boundary is inclusive")
	assert.Equal(t, 0.8, f(1))
}

func TestMulGatesAmplitude(t *testing.T) {
	gate := Steps(Level{T: 0, V: 0.6}, Level{T: 10e-3, V: 1.4})
	ref := Mul(Sine(1, 1000), gate)
	// quarter period inside each gate window
	assert.InDelta(t, 0.6, ref(0.25e-3), 1e-9)
	assert.InDelta(t, 1.4, ref(10.25e-3), 1e-9)
}

func TestConst(t *testing.T) {
	c := Const(1.6)
	for _, tt := range []float64{0, 1, math.Pi} {
		assert.Equal(t, 1.6, c(tt))
	}
}
