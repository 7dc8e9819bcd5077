// Package scenario defines the six canonical stress scenarios of the
// amplifier validation suite as data: each scenario is a parameter variant,
// a set of driving signals, a duration and the measurement windows to
// extract. The shared control law lives in pkg/amp; nothing here duplicates
// it.
package scenario

import (
	"fmt"

	"github.com/ja7ad/ampsuite/pkg/amp"
	"github.com/ja7ad/ampsuite/pkg/signal"
	"github.com/ja7ad/ampsuite/pkg/solver"
)

// BaseFreq is the suite's audio test tone frequency in Hz.
const BaseFreq = 1000.0

// Kind tags the scenario variants.
type Kind int

const (
	LoadStep Kind = iota
	RailSag
	LowImpedance
	ClippingRecovery
	ThermalFoldback
	DistortionSweep
)

func (k Kind) String() string {
	switch k {
	case LoadStep:
		return "step_load_change"
	case RailSag:
		return "rail_sag"
	case LowImpedance:
		return "load_0p25_stability"
	case ClippingRecovery:
		return "hard_clipping_recovery"
	case ThermalFoldback:
		return "thermal_foldback"
	case DistortionSweep:
		return "thd_vs_power"
	}
	return fmt.Sprintf("scenario(%d)", int(k))
}

// Scenario is one run of the suite: amplifier parameters (possibly a
// per-scenario variant), current-limit scope, driving signals, duration and
// the measurement/trace requests handed to the solver.
type Scenario struct {
	Kind     Kind
	Name     string
	Par      amp.Params
	Scope    amp.LimitScope
	Ref      signal.Func
	Rail     signal.Func // nil = self-regulating supply
	Load     signal.Func // load resistance profile (Ohm)
	Duration float64
	Step     float64
	Windows  []solver.Window
	Trace    []string

	// Amplitude is the reference peak for distortion-sweep points; zero
	// elsewhere.
	Amplitude float64
}

// Model binds the scenario into the dynamical system the solver integrates.
func (s Scenario) Model() *amp.Model {
	return &amp.Model{Par: s.Par, Scope: s.Scope, Ref: s.Ref, Rail: s.Rail, Load: s.Load}
}

// Request returns the solver request for this scenario.
func (s Scenario) Request() solver.Request {
	return solver.Request{Duration: s.Duration, Windows: s.Windows, Trace: s.Trace}
}

const ms = 1e-3

// Suite returns the five metric scenarios in canonical order. The distortion
// sweep is built separately per amplitude via Sweep.
func Suite(p amp.Params) []Scenario {
	return []Scenario{
		loadStep(p),
		railSag(p),
		lowImpedance(p),
		clippingRecovery(p),
		thermalFoldback(p),
	}
}

func loadStep(p amp.Params) Scenario {
	// Load resistance halves at 15 ms: a second 1.6 Ohm branch switches in
	// parallel with the base load.
	return Scenario{
		Kind:     LoadStep,
		Name:     LoadStep.String(),
		Par:      p,
		Scope:    amp.LimitAggregate,
		Ref:      signal.Sine(0.95, BaseFreq),
		Load:     signal.Steps(signal.Level{T: 0, V: 1.6}, signal.Level{T: 15 * ms, V: 0.8}),
		Duration: 30 * ms,
		Step:     10e-6,
		Windows: []solver.Window{
			{Name: "P_OUT_PRE", Signal: "p_out", Reduce: solver.Average, From: 10 * ms, To: 14 * ms},
			{Name: "P_OUT_POST", Signal: "p_out", Reduce: solver.Average, From: 20 * ms, To: 29 * ms},
			{Name: "I_MAX", Signal: "isense", Reduce: solver.Max, From: 0, To: 30 * ms},
		},
		Trace: []string{"ref", "vout", "ueff", "isense"},
	}
}

func railSag(p amp.Params) Scenario {
	// Forced rail profile: 100 V holding, dipping to 75 V between 14 and
	// 20 ms, recovered by 22 ms. This run models a single output module with
	// full wiring resistance and the per-module current limit.
	p.NPar = 1
	return Scenario{
		Kind:  RailSag,
		Name:  RailSag.String(),
		Par:   p,
		Scope: amp.LimitPerModule,
		Ref:   signal.Sine(0.95, BaseFreq),
		Rail: signal.PWL(
			signal.Point{T: 0, V: 100},
			signal.Point{T: 12 * ms, V: 100},
			signal.Point{T: 14 * ms, V: 75},
			signal.Point{T: 20 * ms, V: 75},
			signal.Point{T: 22 * ms, V: 100},
			signal.Point{T: 35 * ms, V: 100},
		),
		Load:     signal.Const(1.6),
		Duration: 35 * ms,
		Step:     10e-6,
		Windows: []solver.Window{
			{Name: "P_OUT_PRE", Signal: "p_out", Reduce: solver.Average, From: 8 * ms, To: 12 * ms},
			{Name: "P_OUT_POST", Signal: "p_out", Reduce: solver.Average, From: 16 * ms, To: 20 * ms},
			{Name: "U_MAX", Signal: "ueff", Reduce: solver.Max, From: 0, To: 35 * ms},
		},
		Trace: []string{"vcc", "vout", "ueff", "isense"},
	}
}

func lowImpedance(p amp.Params) Scenario {
	return Scenario{
		Kind:     LowImpedance,
		Name:     LowImpedance.String(),
		Par:      p,
		Scope:    amp.LimitAggregate,
		Ref:      signal.Sine(0.95, BaseFreq),
		Load:     signal.Const(0.25),
		Duration: 25 * ms,
		Step:     10e-6,
		Windows: []solver.Window{
			{Name: "U_MIN", Signal: "ueff", Reduce: solver.Min, From: 10 * ms, To: 25 * ms},
			{Name: "U_MAX", Signal: "ueff", Reduce: solver.Max, From: 10 * ms, To: 25 * ms},
			{Name: "I_POS", Signal: "isense", Reduce: solver.Max, From: 10 * ms, To: 25 * ms},
			{Name: "I_NEG", Signal: "isense", Reduce: solver.Min, From: 10 * ms, To: 25 * ms},
			{Name: "P_OUT", Signal: "p_out", Reduce: solver.Average, From: 10 * ms, To: 25 * ms},
		},
		Trace: []string{"vout", "ueff", "isense"},
	}
}

func clippingRecovery(p amp.Params) Scenario {
	// Reference amplitude gated 0.6 -> 1.4 -> 0.6 at 10 and 20 ms: the middle
	// window drives the loop well past saturation.
	gate := signal.Steps(
		signal.Level{T: 0, V: 0.6},
		signal.Level{T: 10 * ms, V: 1.4},
		signal.Level{T: 20 * ms, V: 0.6},
	)
	return Scenario{
		Kind:     ClippingRecovery,
		Name:     ClippingRecovery.String(),
		Par:      p,
		Scope:    amp.LimitAggregate,
		Ref:      signal.Mul(signal.Sine(1, BaseFreq), gate),
		Load:     signal.Const(1.6),
		Duration: 35 * ms,
		Step:     10e-6,
		Windows: []solver.Window{
			{Name: "P_OUT_CLIP", Signal: "p_out", Reduce: solver.Average, From: 12 * ms, To: 19 * ms},
			{Name: "P_OUT_RECOVER", Signal: "p_out", Reduce: solver.Average, From: 24 * ms, To: 33 * ms},
			{Name: "U_MAX", Signal: "ueff", Reduce: solver.Max, From: 0, To: 35 * ms},
		},
		Trace: []string{"ref", "vout", "ueff", "isense"},
	}
}

func thermalFoldback(p amp.Params) Scenario {
	// Thermal variant: heavier thermal resistance and a lighter thermal mass
	// so the temperature crosses the foldback threshold inside the 60 ms run.
	p.RTh = 25
	p.CTh = 0.002
	return Scenario{
		Kind:     ThermalFoldback,
		Name:     ThermalFoldback.String(),
		Par:      p,
		Scope:    amp.LimitAggregate,
		Ref:      signal.Sine(0.95, BaseFreq),
		Load:     signal.Const(1.6),
		Duration: 60 * ms,
		Step:     10e-6,
		Windows: []solver.Window{
			{Name: "TEMP_MAX", Signal: "temp", Reduce: solver.Max, From: 0, To: 60 * ms},
			{Name: "TEMP_END", Signal: "temp", Reduce: solver.At, AtTime: 60 * ms},
			{Name: "P_OUT_PRE", Signal: "p_out", Reduce: solver.Average, From: 10 * ms, To: 20 * ms},
			{Name: "P_OUT_POST", Signal: "p_out", Reduce: solver.Average, From: 45 * ms, To: 58 * ms},
		},
		Trace: []string{"temp", "vout", "ueff", "ftemp", "isense"},
	}
}

// SweepAmplitudes returns the distortion sweep's reference peaks, ascending.
func SweepAmplitudes() []float64 {
	return []float64{0.20, 0.30, 0.40, 0.50, 0.60, 0.70, 0.80, 0.90, 1.00}
}

// Sweep builds one distortion-sweep point: a steady tone at the given
// reference amplitude, traced for spectral analysis.
func Sweep(p amp.Params, amplitude float64) Scenario {
	name := fmt.Sprintf("thd_power_%.2f", amplitude)
	return Scenario{
		Kind:      DistortionSweep,
		Name:      name,
		Par:       p,
		Scope:     amp.LimitAggregate,
		Ref:       signal.Sine(amplitude, BaseFreq),
		Load:      signal.Const(1.6),
		Duration:  30 * ms,
		Step:      5e-6,
		Amplitude: amplitude,
		Windows: []solver.Window{
			{Name: "P_OUT", Signal: "p_out", Reduce: solver.Average, From: 10 * ms, To: 30 * ms},
		},
		Trace: []string{"vout"},
	}
}
