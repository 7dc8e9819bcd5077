package report

import (
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ja7ad/ampsuite/pkg/suite"
)

// writePlots renders the THD-vs-power curve and one output-trace plot per
// scenario. Sweep points with undefined THD are skipped on the curve.
func (w *Writer) writePlots(sum *suite.Summary) ([]string, error) {
	var paths []string

	p, err := w.thdPlot(sum)
	if err != nil {
		return nil, err
	}
	if p != "" {
		paths = append(paths, p)
	}

	for _, r := range sum.Results {
		if r.Trace == nil {
			continue
		}
		vout, ok := r.Trace.Channel("vout")
		if !ok {
			continue
		}
		path := filepath.Join(w.Dir, FileName(r.Name)+".png")
		title := fmt.Sprintf("%s: output voltage", r.Name)
		if err := saveLinePlot(path, title, "time (s)", "vout (V)", r.Trace.Time, vout); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (w *Writer) thdPlot(sum *suite.Summary) (string, error) {
	var xs, ys []float64
	for _, pt := range sum.ThdPoints {
		if math.IsNaN(pt.POutW) || math.IsNaN(pt.ThdPercent) {
			continue
		}
		xs = append(xs, pt.POutW)
		ys = append(ys, pt.ThdPercent)
	}
	if len(xs) == 0 {
		return "", nil
	}
	path := filepath.Join(w.Dir, "thd_vs_power.png")
	return path, saveLinePlot(path, "THD vs output power", "P_out (W)", "THD (%)", xs, ys)
}

func saveLinePlot(path, title, xlabel, ylabel string, xs, ys []float64) error {
	if len(xs) != len(ys) || len(xs) == 0 {
		return fmt.Errorf("report: plot data invalid for %s", path)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line)
	p.Add(plotter.NewGrid())

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}
