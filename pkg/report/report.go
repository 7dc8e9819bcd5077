// Package report serializes a suite summary into the artifact set: a sparse
// per-scenario metrics CSV, the distortion-sweep CSV, a structured JSON
// aggregate, a human-readable markdown report, per-scenario trace tables and
// optional rendered plots.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ja7ad/ampsuite/pkg/suite"
)

// Writer emits suite artifacts into Dir, creating it as needed. Distinct
// scenarios write distinct file names, so concurrent writers sharing a
// directory do not collide.
type Writer struct {
	Dir   string
	Plots bool
}

// NewWriter returns a Writer targeting dir.
func NewWriter(dir string) *Writer { return &Writer{Dir: dir} }

// WriteAll emits every artifact and returns the written paths.
func (w *Writer) WriteAll(sum *suite.Summary) ([]string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	steps := []func(*suite.Summary) (string, error){
		w.writeMetricsCSV,
		w.writeTHDCSV,
		w.writeJSON,
		w.writeMarkdown,
	}
	for _, step := range steps {
		p, err := step(sum)
		if err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}

	tracePaths, err := w.writeTraces(sum)
	if err != nil {
		return paths, err
	}
	paths = append(paths, tracePaths...)

	if w.Plots {
		plotPaths, err := w.writePlots(sum)
		if err != nil {
			return paths, err
		}
		paths = append(paths, plotPaths...)
	}
	return paths, nil
}

// writeMetricsCSV writes one row per scenario with the sorted union of all
// measurement names as columns; cells for measurements a scenario did not
// produce stay empty.
func (w *Writer) writeMetricsCSV(sum *suite.Summary) (string, error) {
	keySet := make(map[string]struct{})
	for _, r := range sum.Results {
		for k := range r.Measurements {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	path := filepath.Join(w.Dir, "suite_metrics.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(append([]string{"test"}, keys...)); err != nil {
		return "", err
	}
	for _, r := range sum.Results {
		row := make([]string, 0, len(keys)+1)
		row = append(row, r.Name)
		for _, k := range keys {
			if v, ok := r.Measurements[k]; ok {
				row = append(row, fmtFloat(v))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}
	cw.Flush()
	return path, cw.Error()
}

func (w *Writer) writeTHDCSV(sum *suite.Summary) (string, error) {
	path := filepath.Join(w.Dir, "thd_vs_power.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"vref_pk", "vout_rms", "p_out_w", "thd_percent"}); err != nil {
		return "", err
	}
	for _, p := range sum.ThdPoints {
		row := []string{fmtFloat(p.VRefPk), fmtFloat(p.VOutRMS), fmtFloat(p.POutW), fmtFloat(p.ThdPercent)}
		if err := cw.Write(row); err != nil {
			return "", err
		}
	}
	cw.Flush()
	return path, cw.Error()
}

func (w *Writer) writeJSON(sum *suite.Summary) (string, error) {
	path := filepath.Join(w.Dir, "suite_summary.json")
	b, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, append(b, '\n'), 0o644)
}

func (w *Writer) writeMarkdown(sum *suite.Summary) (string, error) {
	var b strings.Builder
	b.WriteString("# Amplifier Validation Suite\n\n")
	for _, r := range sum.Results {
		fmt.Fprintf(&b, "## %s\n", r.Name)
		keys := make([]string, 0, len(r.Measurements))
		for k := range r.Measurements {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", strings.ToLower(k), fmtFloat(r.Measurements[k]))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "## THD vs Power\n- points: %d\n- csv: `thd_vs_power.csv`\n\n", len(sum.ThdPoints))
	b.WriteString("## Artifacts\n")
	for _, a := range []string{"suite_metrics.csv", "thd_vs_power.csv", "suite_summary.json", "suite_report.md"} {
		fmt.Fprintf(&b, "- `%s`\n", a)
	}

	path := filepath.Join(w.Dir, "suite_report.md")
	return path, os.WriteFile(path, []byte(b.String()), 0o644)
}

func (w *Writer) writeTraces(sum *suite.Summary) ([]string, error) {
	var paths []string
	for _, r := range sum.Results {
		if r.Trace == nil || r.Trace.Len() == 0 {
			continue
		}
		path := filepath.Join(w.Dir, FileName(r.Name)+".csv")
		if err := r.Trace.WriteFile(path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// FileName maps a scenario name onto a filesystem-safe stem (dots become
// "p", as in thd_power_0p20).
func FileName(name string) string {
	return strings.ReplaceAll(name, ".", "p")
}

func fmtFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
