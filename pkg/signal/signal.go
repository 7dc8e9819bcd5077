// Package signal provides the scalar driving waveforms a scenario feeds the
// transient solver: reference tones, piecewise-linear rail profiles and
// switched load profiles. A waveform is just a func(t) float64; the
// constructors here cover everything the validation suite needs.
package signal

import "math"

// Func is a real-valued signal of time (seconds).
type Func func(t float64) float64

// Const returns a constant signal.
func Const(v float64) Func {
	return func(float64) float64 { return v }
}

// Sine returns amp*sin(2*pi*freq*t).
func Sine(amp, freq float64) Func {
	w := 2 * math.Pi * freq
	return func(t float64) float64 { return amp * math.Sin(w*t) }
}

// Point is one (time, value) knot of a piecewise-linear profile.
type Point struct {
	T float64
	V float64
}

// PWL returns a piecewise-linear interpolation through the given points,
// holding the first value before the first knot and the last value after the
// last knot. Points must be in ascending time order.
func PWL(pts ...Point) Func {
	return func(t float64) float64 {
		if len(pts) == 0 {
			return 0
		}
		if t <= pts[0].T {
			return pts[0].V
		}
		for i := 1; i < len(pts); i++ {
			if t <= pts[i].T {
				p0, p1 := pts[i-1], pts[i]
				if p1.T == p0.T {
					return p1.V
				}
				frac := (t - p0.T) / (p1.T - p0.T)
				return p0.V + frac*(p1.V-p0.V)
			}
		}
		return pts[len(pts)-1].V
	}
}

// Level is one step of a piecewise-constant profile: value V from time T
// onward, until the next level begins.
type Level struct {
	T float64
	V float64
}

// Steps returns a piecewise-constant signal. Levels must be in ascending time
// order; the first level's value also applies before its start time.
func Steps(levels ...Level) Func {
	return func(t float64) float64 {
		if len(levels) == 0 {
			return 0
		}
		v := levels[0].V
		for _, l := range levels {
			if t >= l.T {
				v = l.V
			}
		}
		return v
	}
}

// Mul returns the pointwise product of two signals. Used for amplitude-gated
// references such as the clipping-recovery tone.
func Mul(a, b Func) Func {
	return func(t float64) float64 { return a(t) * b(t) }
}
