package solver

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Trace is a uniformly sampled multi-channel time series. On disk it uses
// the pair-column layout transient tooling writes: every channel occupies
// two columns, the independent variable repeated and then the value, with
// the time base itself as the leading pair.
type Trace struct {
	Time  []float64
	order []string
	data  map[string][]float64
}

// NewTrace prepares an empty trace recording the named channels.
func NewTrace(channels ...string) *Trace {
	return &Trace{
		order: append([]string(nil), channels...),
		data:  make(map[string][]float64, len(channels)),
	}
}

// Append records one sample row. Requested channels missing from the signal
// snapshot are skipped; a channel only counts as present when it has a value
// for every row.
func (tr *Trace) Append(t float64, signals map[string]float64) {
	tr.Time = append(tr.Time, t)
	for _, name := range tr.order {
		if v, ok := signals[name]; ok {
			tr.data[name] = append(tr.data[name], v)
		}
	}
}

// Channel returns the samples for name. ok is false when the channel was not
// produced for the full run.
func (tr *Trace) Channel(name string) ([]float64, bool) {
	v, ok := tr.data[name]
	if !ok || len(v) != len(tr.Time) {
		return nil, false
	}
	return v, true
}

// Names returns the column names as laid out on disk: the time base first,
// then every complete channel in request order.
func (tr *Trace) Names() []string {
	names := []string{"time"}
	for _, n := range tr.order {
		if _, ok := tr.Channel(n); ok {
			names = append(names, n)
		}
	}
	return names
}

// Len reports the number of sample rows.
func (tr *Trace) Len() int { return len(tr.Time) }

// WriteTo writes the trace in pair-column form: (time,time) then
// (time,value) per channel.
func (tr *Trace) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	cols := tr.Names()
	for row := 0; row < len(tr.Time); row++ {
		for ci, name := range cols {
			v := tr.Time[row]
			if name != "time" {
				v = tr.data[name][row]
			}
			sep := " "
			if ci == 0 {
				sep = ""
			}
			n, err := fmt.Fprintf(bw, "%s% .9e % .9e", sep, tr.Time[row], v)
			written += int64(n)
			if err != nil {
				return written, err
			}
		}
		n, err := fmt.Fprintln(bw)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, bw.Flush()
}

// WriteFile writes the trace to path.
func (tr *Trace) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := tr.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadTrace parses a pair-column trace, mapping names onto the value columns
// (column 2*i+1 for names[i]). Names whose value column is beyond the table
// width are simply absent from the result; a short table is not an error.
func ReadTrace(r io.Reader, names []string) (map[string][]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var rows [][]float64
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		row := make([]float64, 0, len(fields))
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("solver: malformed trace value %q: %w", f, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	out := make(map[string][]float64, len(names))
	for i, name := range names {
		col := 2*i + 1
		vals := make([]float64, 0, len(rows))
		present := len(rows) > 0
		for _, row := range rows {
			if col >= len(row) {
				present = false
				break
			}
			vals = append(vals, row[col])
		}
		if present {
			out[name] = vals
		}
	}
	return out, nil
}

// ReadTraceFile parses the trace table at path.
func ReadTraceFile(path string, names []string) (map[string][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTrace(f, names)
}
