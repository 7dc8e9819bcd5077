package amp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/ampsuite/pkg/signal"
)

func TestFoldback_Asymptotes(t *testing.T) {
	const knee, width = 660.0, 5.0
	assert.InDelta(t, 1, Foldback(0, knee, width), 1e-9, "far below the knee the gain is ~1")
	assert.InDelta(t, 0, Foldback(knee+20*width, knee, width), 1e-9, "far above the knee the gain is ~0")
	assert.InDelta(t, 0.5, Foldback(knee, knee, width), 1e-12, "gain is exactly 1/2 at the knee")
}

func TestFoldback_MonotoneNonIncreasing(t *testing.T) {
	const knee, width = 85.0, 6.0
	prev := math.Inf(1)
	for x := -50.0; x <= 250; x += 0.5 {
		g := Foldback(x, knee, width)
		assert.True(t, g <= prev+1e-15, "gain increased at x=%v", x)
		assert.True(t, g >= 0 && g <= 1, "gain outside [0,1] at x=%v", x)
		prev = g
	}
}

func TestSaturate(t *testing.T) {
	const umax = 0.98
	assert.Equal(t, 0.5, Saturate(0.5, umax), "identity inside the band")
	assert.Equal(t, -0.98, Saturate(-0.98, umax))
	assert.Equal(t, umax, Saturate(3, umax))
	assert.Equal(t, -umax, Saturate(-3, umax))
}

func TestParams_Validate(t *testing.T) {
	require.NoError(t, Default().Validate())

	bad := Default()
	bad.ISoft = 0
	err := bad.Validate()
	require.Error(t, err, "zero soft-limit width is a denominator")
	assert.ErrorIs(t, err, ErrBadParam)

	bad = Default()
	bad.NPar = 0
	assert.ErrorIs(t, bad.Validate(), ErrBadParam)

	bad = Default()
	bad.EtaDC = 1.2
	assert.ErrorIs(t, bad.Validate(), ErrBadParam)
}

func TestLimitTotal(t *testing.T) {
	p := Default()
	assert.Equal(t, p.ILim*float64(p.NPar), p.LimitTotal(LimitAggregate))
	assert.Equal(t, p.ILim, p.LimitTotal(LimitPerModule))
}

func testModel(p Params) *Model {
	return &Model{
		Par:  p,
		Ref:  signal.Const(0.5),
		Load: signal.Const(1.6),
	}
}

func TestOperatingPoint_NetworkConsistency(t *testing.T) {
	p := Default()
	m := testModel(p)

	op, err := m.OperatingPoint(1e-3, 0, p.TAmb)
	require.NoError(t, err)

	rwire := p.RWire / float64(p.NPar)
	rTot := 2*p.ROut + 2*rwire + 1.6
	rSense := 2*rwire + 1.6

	assert.InDelta(t, 2*op.UEff*op.VRail/rTot, op.ISense, 1e-6, "loop residual closes")
	assert.InDelta(t, op.ISense*rSense, op.VOut, 1e-9, "output voltage spans wiring+load")
	assert.InDelta(t, 0.5-p.KFB*op.VOut, op.Err, 1e-12)
	assert.InDelta(t, op.USat*op.FLim*op.FTemp, op.UEff, 1e-12)
	assert.LessOrEqual(t, math.Abs(op.USat), p.UMax)
	assert.InDelta(t, p.VRailNom*p.EtaDC-math.Abs(op.ISense)*p.RSag, op.VRail, 1e-9,
		"self-regulating rail sags with sensed current")
	assert.Greater(t, op.POut, 0.0, "positive drive delivers power")
	assert.InDelta(t,
		(math.Abs(op.VOut*op.ISense)+op.ISense*op.ISense*p.RWire)/p.PthScale,
		op.Heat, 1e-12)
}

func TestOperatingPoint_ForcedRail(t *testing.T) {
	p := Default()
	m := testModel(p)
	m.Rail = signal.Const(75)

	op, err := m.OperatingPoint(0, 0, p.TAmb)
	require.NoError(t, err)
	assert.Equal(t, 75.0, op.VRail, "forced rail is not self-regulating")
}

func TestOperatingPoint_ThermalFoldbackKillsDrive(t *testing.T) {
	p := Default()
	m := testModel(p)

	hot, err := m.OperatingPoint(0, 0, p.TFold+20*p.TSoft)
	require.NoError(t, err)
	assert.InDelta(t, 0, hot.UEff, 1e-6, "drive rolls to zero far above T_fold")
	assert.InDelta(t, 0, hot.ISense, 1e-4)

	cold, err := m.OperatingPoint(0, 0, p.TAmb)
	require.NoError(t, err)
	assert.Greater(t, math.Abs(cold.UEff), math.Abs(hot.UEff))
}

func TestOperatingPoint_CurrentLimitEngages(t *testing.T) {
	p := Default()
	// A low-impedance load under the per-module limit drives the sensed
	// current into the knee; the soft gain must stay inside (0,1) there.
	m := &Model{Par: p, Scope: LimitPerModule, Ref: signal.Const(0.95), Load: signal.Const(0.25)}

	op, err := m.OperatingPoint(0.25e-3, 0, p.TAmb)
	require.NoError(t, err)
	assert.Less(t, op.FLim, 0.99, "limiter is engaged")
	assert.Greater(t, op.FLim, 0.0)
	assert.Less(t, math.Abs(op.ISense), p.LimitTotal(LimitPerModule)+10*p.ISoft,
		"soft limiter bounds the runaway current")
}

func TestEval_DerivativesAndSignals(t *testing.T) {
	p := Default()
	m := testModel(p)

	ui, temp := 1e-4, 30.0
	deriv, signals, err := m.Eval(2e-3, []float64{ui, temp})
	require.NoError(t, err)
	require.Len(t, deriv, 2)

	op, err := m.OperatingPoint(2e-3, ui, temp)
	require.NoError(t, err)
	assert.InDelta(t, op.Err-ui/p.LeakTau, deriv[0], 1e-9, "integrator derivative")
	assert.InDelta(t, (op.Heat-temp/p.RTh)/p.CTh, deriv[1], 1e-9, "thermal RC derivative")

	for _, name := range ChannelNames() {
		_, ok := signals[name]
		assert.True(t, ok, "missing channel %s", name)
	}
	assert.Equal(t, temp, signals["temp"])
}

func TestInitialState(t *testing.T) {
	p := Default()
	m := testModel(p)
	st := m.InitialState()
	require.Len(t, st, m.StateDim())
	assert.Equal(t, 0.0, st[0], "integrator starts at zero")
	assert.Equal(t, p.TAmb, st[1], "temperature starts at ambient")
}
