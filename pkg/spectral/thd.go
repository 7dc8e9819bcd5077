// Package spectral computes total-harmonic-distortion and RMS figures from
// sampled output waveforms. The fundamental frequency is known exactly from
// the driving tone, so a windowed FFT with nearest-bin magnitude lookup is
// sufficient; no frequency tracking is attempted.
package spectral

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrShortSeries indicates too few samples for spectral analysis.
	ErrShortSeries = errors.New("spectral: series too short")

	// ErrBadArgs indicates a non-positive fundamental or harmonic count < 2.
	ErrBadArgs = errors.New("spectral: invalid arguments")
)

// THD returns the total harmonic distortion of x sampled at times t, in
// percent, summing harmonics 2..nHarm against the fundamental f0 (Hz).
//
// The sample step is taken as the median of consecutive time differences, so
// minor solver step jitter is tolerated. The signal is de-meaned and Hann
// windowed before the transform. A fundamental magnitude at or below 1e-12
// makes the ratio undefined: the result is NaN, never an error.
func THD(t, x []float64, f0 float64, nHarm int) (float64, error) {
	if len(t) != len(x) {
		return 0, fmt.Errorf("%w: len(t)=%d len(x)=%d", ErrBadArgs, len(t), len(x))
	}
	if len(x) < 4 {
		return 0, fmt.Errorf("%w: %d samples", ErrShortSeries, len(x))
	}
	if f0 <= 0 || nHarm < 2 {
		return 0, fmt.Errorf("%w: f0=%v nHarm=%d", ErrBadArgs, f0, nHarm)
	}

	dt := medianStep(t)
	if dt <= 0 {
		return 0, fmt.Errorf("%w: non-increasing time base", ErrBadArgs)
	}

	n := len(x)
	xw := make([]float64, n)
	copy(xw, x)
	floats.AddConst(-stat.Mean(xw, nil), xw)
	window.Hann(xw)

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, xw)

	ampAt := func(f float64) float64 {
		best, bestDist := 0, math.Inf(1)
		for i := range coeffs {
			if d := math.Abs(fft.Freq(i)/dt - f); d < bestDist {
				best, bestDist = i, d
			}
		}
		return cmplx.Abs(coeffs[best])
	}

	a1 := ampAt(f0)
	if a1 <= 1e-12 {
		return math.NaN(), nil
	}
	var ss float64
	for k := 2; k <= nHarm; k++ {
		h := ampAt(float64(k) * f0)
		ss += h * h
	}
	return 100 * math.Sqrt(ss) / a1, nil
}

// RMS returns the root-mean-square of x, or 0 for an empty series.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// Trailing returns the steady-state tail of the series: all samples with
// t >= max(t) - span. Used to keep startup transients out of distortion and
// RMS measurements.
func Trailing(t, x []float64, span float64) (tt, tx []float64) {
	if len(t) == 0 || len(t) != len(x) {
		return nil, nil
	}
	cut := t[len(t)-1] - span
	for i := range t {
		if t[i] >= cut {
			return t[i:], x[i:]
		}
	}
	return t, x
}

func medianStep(t []float64) float64 {
	diffs := make([]float64, 0, len(t)-1)
	for i := 1; i < len(t); i++ {
		diffs = append(diffs, t[i]-t[i-1])
	}
	sort.Float64s(diffs)
	return stat.Quantile(0.5, stat.Empirical, diffs, nil)
}
