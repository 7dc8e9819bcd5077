// Package amp defines the closed-loop, current- and temperature-limited
// amplifier model the validation suite integrates: a PI feedback law around a
// saturating differential output stage, with smooth (tanh-knee) current and
// thermal foldback gains and a first-order thermal network.
//
// The model carries two continuous states, the feedback integrator
// accumulator and the heatsink temperature. Everything electrical is
// algebraic: at a given instant the drive, rail and sensed current form a
// single feedback loop that is solved as a one-dimensional root problem in
// the sensed current.
package amp

import (
	"errors"
	"fmt"
	"math"

	"github.com/ja7ad/ampsuite/pkg/signal"
)

// ErrNoConvergence indicates the operating-point iteration exhausted its
// iteration budget without meeting tolerance.
var ErrNoConvergence = errors.New("amp: operating point did not converge")

// Saturate clamps the raw drive command to [-umax, umax]. The clamp is
// continuous in value; inside the band it is the identity.
func Saturate(u, umax float64) float64 {
	if u > umax {
		return umax
	}
	if u < -umax {
		return -umax
	}
	return u
}

// Foldback is the smooth guard gain 0.5*(1 - tanh((x-knee)/width)). It runs
// from ~1 well below the knee to ~0 well above it and is monotonically
// non-increasing in x. Width must be strictly positive.
func Foldback(x, knee, width float64) float64 {
	return 0.5 * (1 - math.Tanh((x-knee)/width))
}

// Model binds a parameter set and a scenario's driving signals into the
// dynamical system handed to the transient solver.
//
// Rail == nil selects the self-regulating supply
// Vrail = VRailNom*EtaDC - |Isense|*RSag; otherwise Rail(t) forces the rail.
// Load(t) is the load resistance profile in Ohms.
type Model struct {
	Par   Params
	Scope LimitScope
	Ref   signal.Func
	Rail  signal.Func
	Load  signal.Func
}

// Operating is the solved electrical/thermal operating point at one instant.
type Operating struct {
	Ref    float64 // reference input
	VRail  float64 // supply rail magnitude
	VOut   float64 // differential output voltage across wiring+load
	Err    float64 // feedback error
	URaw   float64 // PI output before saturation
	USat   float64 // saturated drive
	FLim   float64 // current soft-limit gain [0,1]
	FTemp  float64 // thermal foldback gain [0,1]
	UEff   float64 // effective drive after both guard gains
	ISense float64 // sensed load current
	POut   float64 // instantaneous output power VOut*ISense
	Heat   float64 // scaled heat input to the thermal network
}

// StateDim reports the continuous state order: integrator and temperature.
func (m *Model) StateDim() int { return 2 }

// InitialState returns the scenario-start state: integrator at zero,
// temperature at ambient.
func (m *Model) InitialState() []float64 {
	return []float64{0, m.Par.TAmb}
}

// ChannelNames lists every signal the model can expose to measurement
// windows and traces.
func ChannelNames() []string {
	return []string{"ref", "vcc", "vout", "err", "ueff", "isense", "temp", "ftemp", "flim", "p_out"}
}

// Eval solves the operating point at time t for the given state [ui, temp]
// and returns the state derivatives together with the named signal snapshot.
func (m *Model) Eval(t float64, state []float64) ([]float64, map[string]float64, error) {
	ui, temp := state[0], state[1]

	op, err := m.OperatingPoint(t, ui, temp)
	if err != nil {
		return nil, nil, err
	}

	p := m.Par
	deriv := []float64{
		op.Err - ui/p.LeakTau,
		(op.Heat - temp/p.RTh) / p.CTh,
	}

	signals := map[string]float64{
		"ref":    op.Ref,
		"vcc":    op.VRail,
		"vout":   op.VOut,
		"err":    op.Err,
		"ueff":   op.UEff,
		"isense": op.ISense,
		"temp":   temp,
		"ftemp":  op.FTemp,
		"flim":   op.FLim,
		"p_out":  op.POut,
	}
	return deriv, signals, nil
}

// OperatingPoint resolves the algebraic feedback loop at time t given the
// integrator value and temperature. The loop has one independent unknown,
// the sensed current: rail sag, the feedback error and the current limiter
// all close through it. The residual i - 2*ueff(i)*vrail(i)/Rtot is
// guaranteed bracketed because |ueff| <= UMax and the rail is bounded, so a
// safeguarded secant/bisection always lands inside tolerance.
func (m *Model) OperatingPoint(t, ui, temp float64) (Operating, error) {
	p := m.Par
	ref := m.Ref(t)
	rload := m.Load(t)
	rwire := p.RWire / float64(p.NPar)
	rTot := 2*p.ROut + 2*rwire + rload
	rSense := 2*rwire + rload

	ftemp := Foldback(temp, p.TFold, p.TSoft)
	ilimTot := p.LimitTotal(m.Scope)

	var railMax float64
	if m.Rail != nil {
		railMax = math.Abs(m.Rail(t))
	} else {
		railMax = p.VRailNom * p.EtaDC
	}

	at := func(i float64) Operating {
		var vrail float64
		if m.Rail != nil {
			vrail = m.Rail(t)
		} else {
			vrail = p.VRailNom*p.EtaDC - math.Abs(i)*p.RSag
			if vrail < 0 {
				vrail = 0
			}
		}
		vout := i * rSense
		ferr := ref - p.KFB*vout
		uraw := p.KP*ferr + p.KI*ui
		usat := Saturate(uraw, p.UMax)
		flim := Foldback(math.Abs(i), ilimTot, p.ISoft)
		ueff := usat * flim * ftemp
		return Operating{
			Ref:    ref,
			VRail:  vrail,
			VOut:   vout,
			Err:    ferr,
			URaw:   uraw,
			USat:   usat,
			FLim:   flim,
			FTemp:  ftemp,
			UEff:   ueff,
			ISense: i,
			POut:   vout * i,
		}
	}
	resid := func(op Operating) float64 {
		return op.ISense - 2*op.UEff*op.VRail/rTot
	}

	// Bracket: |2*ueff*vrail/Rtot| <= bound-1 by construction.
	bound := 2*p.UMax*railMax/rTot + 1
	lo, hi := -bound, bound
	flo := resid(at(lo))

	const maxIter = 200
	tol := 1e-10 * (1 + bound)

	xPrev, fPrev := lo, flo
	x := 0.0
	op := at(x)
	f := resid(op)

	for iter := 0; iter < maxIter; iter++ {
		if math.Abs(f) <= tol || hi-lo <= tol {
			op.Heat = (math.Abs(op.VOut*op.ISense) + op.ISense*op.ISense*p.RWire) / p.PthScale
			return op, nil
		}
		// Maintain the bracket.
		if (f < 0) == (flo < 0) {
			lo, flo = x, f
		} else {
			hi = x
		}
		// Secant proposal, bisection fallback when it leaves the bracket.
		next := x - f*(x-xPrev)/(f-fPrev)
		if !(next > lo && next < hi) || math.IsNaN(next) {
			next = 0.5 * (lo + hi)
		}
		xPrev, fPrev = x, f
		x = next
		op = at(x)
		f = resid(op)
	}
	return Operating{}, fmt.Errorf("%w: t=%.6e residual=%.3e", ErrNoConvergence, t, f)
}
