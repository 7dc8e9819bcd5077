package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ja7ad/ampsuite/pkg/amp"
	"github.com/ja7ad/ampsuite/pkg/report"
	"github.com/ja7ad/ampsuite/pkg/suite"
)

type opts struct {
	// execution
	outDir   string
	timeout  time.Duration
	parallel bool
	plots    bool

	// analysis
	harmonics int

	// model overrides (zero = keep default)
	vrailNom float64
	etaDC    float64
	rSag     float64
	rWire    float64
	nPar     int
	tFold    float64
	tSoft    float64
	rTh      float64
	cTh      float64
	pthScale float64
	kFB      float64
	kP       float64
	kI       float64
	uMax     float64
	iLim     float64
	iSoft    float64
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "ampsuite",
		Short: "Closed-loop amplifier validation suite",
		Long: `ampsuite drives a current- and temperature-limited amplifier model
through six stress scenarios (load step, rail sag, low-impedance stability,
clipping recovery, thermal foldback, THD vs power) with an in-process
transient solver, then writes CSV/JSON/markdown artifacts and optional plots.

Examples:
  ampsuite -o results/amp_validation_suite
  ampsuite --parallel --plots --t-fold 95 --ilim 120`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVarP(&o.outDir, "out", "o", "results/amp_validation_suite", "artifact output directory")
	root.Flags().DurationVar(&o.timeout, "timeout", time.Minute, "per-scenario wall-clock limit (0 = unbounded)")
	root.Flags().BoolVar(&o.parallel, "parallel", false, "run scenarios concurrently")
	root.Flags().BoolVar(&o.plots, "plots", false, "render PNG plots alongside the tables")
	root.Flags().IntVar(&o.harmonics, "harmonics", 10, "harmonic count for THD analysis")

	root.Flags().Float64Var(&o.vrailNom, "vrail-nom", 0, "nominal rail voltage (V)")
	root.Flags().Float64Var(&o.etaDC, "eta-dc", 0, "DC conversion efficiency (0..1]")
	root.Flags().Float64Var(&o.rSag, "r-sag", 0, "supply sag resistance (Ohm)")
	root.Flags().Float64Var(&o.rWire, "r-wire", 0, "total wiring resistance (Ohm)")
	root.Flags().IntVar(&o.nPar, "npar", 0, "parallel output module count")
	root.Flags().Float64Var(&o.tFold, "t-fold", 0, "thermal foldback threshold (C)")
	root.Flags().Float64Var(&o.tSoft, "t-soft", 0, "thermal knee width (C)")
	root.Flags().Float64Var(&o.rTh, "rth", 0, "thermal resistance (K/W)")
	root.Flags().Float64Var(&o.cTh, "cth", 0, "thermal capacitance (J/K)")
	root.Flags().Float64Var(&o.pthScale, "pth-scale", 0, "power-to-thermal scale factor")
	root.Flags().Float64Var(&o.kFB, "kfb", 0, "feedback gain")
	root.Flags().Float64Var(&o.kP, "kp", 0, "proportional gain")
	root.Flags().Float64Var(&o.kI, "ki", 0, "integral gain")
	root.Flags().Float64Var(&o.uMax, "umax", 0, "output saturation limit")
	root.Flags().Float64Var(&o.iLim, "ilim", 0, "per-module current limit (A)")
	root.Flags().Float64Var(&o.iSoft, "isoft", 0, "current soft-limit width (A)")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	par := mergeParams(o)
	if err := par.Validate(); err != nil {
		return err
	}
	if o.harmonics < 2 {
		return fmt.Errorf("harmonics must be >= 2")
	}

	r := suite.NewRunner(par)
	r.Timeout = o.timeout
	r.Parallel = o.parallel
	r.Harmonics = o.harmonics

	fmt.Println("Running amplifier validation suite...")
	start := time.Now()
	sum, err := r.Run(ctx)
	if err != nil {
		return err
	}

	w := report.NewWriter(o.outDir)
	w.Plots = o.plots
	paths, err := w.WriteAll(sum)
	if err != nil {
		return err
	}

	printSummary(sum)
	fmt.Printf("\nCompleted in %s. Artifacts:\n", time.Since(start).Round(time.Millisecond))
	for _, p := range paths {
		fmt.Printf("- %s\n", p)
	}
	return nil
}

// mergeParams applies positive CLI overrides onto the default parameter set,
// leaving zero/unset flags at their defaults.
func mergeParams(o opts) amp.Params {
	p := amp.Default()
	setIf := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	setIf(&p.VRailNom, o.vrailNom)
	setIf(&p.EtaDC, o.etaDC)
	setIf(&p.RSag, o.rSag)
	setIf(&p.RWire, o.rWire)
	if o.nPar > 0 {
		p.NPar = o.nPar
	}
	setIf(&p.TFold, o.tFold)
	setIf(&p.TSoft, o.tSoft)
	setIf(&p.RTh, o.rTh)
	setIf(&p.CTh, o.cTh)
	setIf(&p.PthScale, o.pthScale)
	setIf(&p.KFB, o.kFB)
	setIf(&p.KP, o.kP)
	setIf(&p.KI, o.kI)
	setIf(&p.UMax, o.uMax)
	setIf(&p.ILim, o.iLim)
	setIf(&p.ISoft, o.iSoft)
	return p
}

func printSummary(sum *suite.Summary) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "\nSCENARIO\tMEASUREMENT\tVALUE")
	fmt.Fprintln(tw, "--------\t-----------\t-----")
	for _, r := range sum.Results {
		keys := make([]string, 0, len(r.Measurements))
		for k := range r.Measurements {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(tw, "%s\t%s\t%.4f\n", r.Name, k, r.Measurements[k])
		}
	}
	tw.Flush()

	fmt.Fprintln(tw, "\nVREF_PK\tVOUT_RMS\tP_OUT (W)\tTHD (%)")
	fmt.Fprintln(tw, "-------\t--------\t---------\t-------")
	for _, p := range sum.ThdPoints {
		thd := "nan"
		if !math.IsNaN(p.ThdPercent) {
			thd = fmt.Sprintf("%.3f", p.ThdPercent)
		}
		fmt.Fprintf(tw, "%.2f\t%.3f\t%.1f\t%s\n", p.VRefPk, p.VOutRMS, p.POutW, thd)
	}
	tw.Flush()
}
