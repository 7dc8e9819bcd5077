// Package suite orchestrates the validation runs: it drives the transient
// solver through the scenario set, applies spectral analysis to the
// distortion sweep and aggregates everything into a single summary for the
// report writer. Scenario runs share nothing mutable, so they may execute
// sequentially or in parallel.
package suite

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ja7ad/ampsuite/pkg/amp"
	"github.com/ja7ad/ampsuite/pkg/scenario"
	"github.com/ja7ad/ampsuite/pkg/solver"
	"github.com/ja7ad/ampsuite/pkg/spectral"
)

// Result is one scenario's outcome: the sparse measurement mapping and the
// sampled trace when one was requested.
type Result struct {
	Name         string             `json:"test"`
	Measurements map[string]float64 `json:"measurements"`
	Trace        *solver.Trace      `json:"-"`
}

// ThdPoint is one distortion-sweep row. ThdPercent is NaN when the
// fundamental was effectively silent.
type ThdPoint struct {
	VRefPk     float64 `json:"vref_pk"`
	VOutRMS    float64 `json:"vout_rms"`
	POutW      float64 `json:"p_out_w"`
	ThdPercent float64 `json:"thd_percent"`
}

// MarshalJSON renders NaN fields as null so an undefined distortion result
// stays representable in the aggregate document.
func (p ThdPoint) MarshalJSON() ([]byte, error) {
	f := func(v float64) string {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "null"
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := fmt.Sprintf(`{"vref_pk":%s,"vout_rms":%s,"p_out_w":%s,"thd_percent":%s}`,
		f(p.VRefPk), f(p.VOutRMS), f(p.POutW), f(p.ThdPercent))
	return []byte(s), nil
}

// Summary is the final aggregate handed to the report writer: scenario
// results in canonical order plus the sweep points in ascending amplitude
// order.
type Summary struct {
	Results   []Result   `json:"tests"`
	ThdPoints []ThdPoint `json:"thd_vs_power"`
}

// Runner executes the suite for one parameter set.
type Runner struct {
	Par        amp.Params
	Timeout    time.Duration // per-scenario wall-clock bound; 0 = unbounded
	Parallel   bool
	Harmonics  int     // harmonic count for THD (default 10)
	SteadySpan float64 // trailing window for sweep analysis (default 10 ms)
}

// NewRunner returns a Runner with the reference analysis settings.
func NewRunner(p amp.Params) *Runner {
	return &Runner{Par: p, Harmonics: 10, SteadySpan: 10e-3}
}

// Run executes the five metric scenarios and the distortion sweep. Any
// simulation failure aborts the suite with an error naming the failing
// scenario; sparse measurements are not failures.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if err := r.Par.Validate(); err != nil {
		return nil, err
	}

	scs := scenario.Suite(r.Par)
	amps := scenario.SweepAmplitudes()

	results := make([]Result, len(scs))
	points := make([]ThdPoint, len(amps))
	errs := make([]error, len(scs)+len(amps))

	runOne := func(i int) {
		res, err := r.RunScenario(ctx, scs[i])
		if err != nil {
			errs[i] = err
			return
		}
		results[i] = res
	}
	runPoint := func(j int) {
		pt, err := r.runSweepPoint(ctx, amps[j])
		if err != nil {
			errs[len(scs)+j] = err
			return
		}
		points[j] = pt
	}

	if r.Parallel {
		var wg sync.WaitGroup
		for i := range scs {
			wg.Add(1)
			go func(i int) { defer wg.Done(); runOne(i) }(i)
		}
		for j := range amps {
			wg.Add(1)
			go func(j int) { defer wg.Done(); runPoint(j) }(j)
		}
		wg.Wait()
	} else {
		for i := range scs {
			runOne(i)
		}
		for j := range amps {
			runPoint(j)
		}
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &Summary{Results: results, ThdPoints: points}, nil
}

// RunScenario executes a single scenario and applies its derived
// measurements.
func (r *Runner) RunScenario(ctx context.Context, sc scenario.Scenario) (Result, error) {
	if err := sc.Par.Validate(); err != nil {
		return Result{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	tctx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cfg := solver.DefaultConfig()
	cfg.Step = sc.Step

	start := time.Now()
	res, err := solver.Transient(tctx, sc.Model(), cfg, sc.Request())
	if err != nil {
		return Result{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	slog.Info("scenario complete", "name", sc.Name,
		"measurements", len(res.Measurements), "elapsed", time.Since(start))

	out := Result{Name: sc.Name, Measurements: res.Measurements, Trace: res.Trace}
	derive(sc.Kind, out.Measurements)
	return out, nil
}

// derive fills measurements computed from others, tolerating absent inputs.
func derive(kind scenario.Kind, m map[string]float64) {
	if kind != scenario.LowImpedance {
		return
	}
	pos, okPos := m["I_POS"]
	neg, okNeg := m["I_NEG"]
	if okPos && okNeg {
		m["I_MAX"] = math.Max(pos, -neg)
	}
}

func (r *Runner) runSweepPoint(ctx context.Context, amplitude float64) (ThdPoint, error) {
	sc := scenario.Sweep(r.Par, amplitude)
	res, err := r.RunScenario(ctx, sc)
	if err != nil {
		return ThdPoint{}, err
	}

	pt := ThdPoint{VRefPk: amplitude, POutW: math.NaN(), ThdPercent: math.NaN()}
	if p, ok := res.Measurements["P_OUT"]; ok {
		pt.POutW = p
	}

	vout, ok := res.Trace.Channel("vout")
	if !ok {
		return pt, fmt.Errorf("scenario %s: trace has no vout channel", sc.Name)
	}
	tt, tx := spectral.Trailing(res.Trace.Time, vout, r.SteadySpan)
	pt.VOutRMS = spectral.RMS(tx)

	thd, err := spectral.THD(tt, tx, scenario.BaseFreq, r.Harmonics)
	if err != nil {
		return ThdPoint{}, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	pt.ThdPercent = thd
	return pt, nil
}
