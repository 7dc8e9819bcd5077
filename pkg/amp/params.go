package amp

import (
	"errors"
	"fmt"
)

// ErrBadParam indicates a Params field outside its valid range.
var ErrBadParam = errors.New("amp: invalid parameter")

// Params holds the amplifier model coefficients.
// Units:
//   - VRailNom/VBattNom: Volts
//   - EtaDC: dimensionless conversion efficiency (0..1]
//   - RSag/RWire/ROut: Ohms
//   - TAmb/TFold/TSoft: degrees Celsius
//   - RTh: K/W, CTh: J/K, PthScale: W per unit heat
//   - KFB/KP/KI/UMax: dimensionless control gains and drive ceiling
//   - ILim: Amperes per module, ISoft: Amperes (knee width)
//   - LeakTau: seconds (integrator leak time constant)
type Params struct {
	VRailNom float64
	VBattNom float64
	EtaDC    float64
	RSag     float64
	RWire    float64
	ROut     float64
	NPar     int

	TAmb     float64
	TFold    float64
	TSoft    float64
	RTh      float64
	CTh      float64
	PthScale float64

	KFB  float64
	KP   float64
	KI   float64
	UMax float64

	ILim  float64
	ISoft float64

	LeakTau float64
}

// Default returns the suite's nominal 10 kW class-D parameter set.
func Default() Params {
	return Params{
		VRailNom: 100,
		VBattNom: 14.4,
		EtaDC:    0.92,
		RSag:     0.03,
		RWire:    0.01,
		ROut:     0.02,
		NPar:     6,

		TAmb:     25,
		TFold:    85,
		TSoft:    6,
		RTh:      0.02,
		CTh:      1,
		PthScale: 2500,

		KFB:  0.0028,
		KP:   2.8,
		KI:   450,
		UMax: 0.98,

		ILim:  110,
		ISoft: 5,

		LeakTau: 1e9,
	}
}

// Validate rejects parameter sets the model cannot run with. Soft-knee widths
// and the thermal network values appear as denominators, so they must be
// strictly positive.
func (p Params) Validate() error {
	pos := map[string]float64{
		"VRailNom": p.VRailNom,
		"EtaDC":    p.EtaDC,
		"RSag":     p.RSag,
		"RWire":    p.RWire,
		"ROut":     p.ROut,
		"TSoft":    p.TSoft,
		"RTh":      p.RTh,
		"CTh":      p.CTh,
		"PthScale": p.PthScale,
		"KFB":      p.KFB,
		"UMax":     p.UMax,
		"ILim":     p.ILim,
		"ISoft":    p.ISoft,
		"LeakTau":  p.LeakTau,
	}
	for name, v := range pos {
		if !(v > 0) {
			return fmt.Errorf("%w: %s must be > 0, got %v", ErrBadParam, name, v)
		}
	}
	if p.EtaDC > 1 {
		return fmt.Errorf("%w: EtaDC must be <= 1, got %v", ErrBadParam, p.EtaDC)
	}
	if p.NPar < 1 {
		return fmt.Errorf("%w: NPar must be >= 1, got %d", ErrBadParam, p.NPar)
	}
	if p.KP < 0 || p.KI < 0 {
		return fmt.Errorf("%w: PI gains must be >= 0", ErrBadParam)
	}
	return nil
}

// LimitScope selects how the per-module current limit scales to the sensed
// aggregate current. Multi-module runs limit the summed current at
// ILim*NPar; single-module runs apply ILim directly.
type LimitScope int

const (
	// LimitAggregate applies ILim * NPar to the summed output current.
	LimitAggregate LimitScope = iota
	// LimitPerModule applies ILim directly (single-module runs).
	LimitPerModule
)

// LimitTotal returns the current-limit threshold seen by the soft limiter.
func (p Params) LimitTotal(scope LimitScope) float64 {
	if scope == LimitPerModule {
		return p.ILim
	}
	return p.ILim * float64(p.NPar)
}
