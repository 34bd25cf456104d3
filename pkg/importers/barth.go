package importers

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

const barthMarker = "4002-TLP Waveform Data"

var blankLineRe = regexp.MustCompile(`\n[ \t]*\n+`)

// Window is the part of a pulse, as fractions of its length, averaged to
// obtain one TLP curve point.
type Window struct {
	Start float64
	End   float64
}

// DefaultBarthWindow averages 70 % to 90 % of each pulse.
var DefaultBarthWindow = Window{Start: 0.7, End: 0.9}

// Validate checks 0 <= Start < End <= 1.
func (w Window) Validate() error {
	if w.Start < 0 || w.End > 1 || w.Start >= w.End {
		return fmt.Errorf("importers: averaging window [%g, %g] must satisfy 0 <= start < end <= 1", w.Start, w.End)
	}
	return nil
}

// bounds returns the sample range of the window for a pulse of n samples.
// It is never empty when n > 0.
func (w Window) bounds(n int) (int, int) {
	lo := int(math.Floor(w.Start * float64(n)))
	hi := int(math.Ceil(w.End * float64(n)))
	lo = max(0, min(lo, n-1))
	hi = max(lo+1, min(hi, n))
	return lo, hi
}

// Barth decodes the .twf waveform file of Barth 4002 testers. The file has
// no reduced curve; each TLP point is the mean of its pulse over Window.
type Barth struct {
	base
	window Window
}

func NewBarth(log *zap.Logger, window Window) *Barth {
	return &Barth{base: newBase("Barth", log), window: window}
}

func (d *Barth) FilePattern() string { return "*.twf" }

// barthChannel is one header block and its sample matrix.
type barthChannel struct {
	deltaT float64
	valim  []float64
	// pulses[i] is column i of the matrix
	pulses [][]float64
}

func (d *Barth) Decode(p string) (*tlp.RawData, error) {
	file := basePath(p) + ".twf"
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, d.formatErr(file, "cannot read waveform file", err)
	}
	text := strings.TrimSpace(normalize(data))
	blocks := blankLineRe.Split(text, -1)
	first, _, _ := strings.Cut(blocks[0], "\n")
	if strings.TrimSpace(first) != barthMarker {
		return nil, d.formatErr(file, fmt.Sprintf("not a %q file", barthMarker), nil)
	}
	if len(blocks) < 5 {
		return nil, d.formatErr(file, fmt.Sprintf("%d blocks, want 5", len(blocks)), nil)
	}

	v, err := parseBarthChannel(blocks[1], blocks[2])
	if err != nil {
		return nil, d.formatErr(file, "malformed voltage waveforms", err)
	}
	c, err := parseBarthChannel(blocks[3], blocks[4])
	if err != nil {
		return nil, d.formatErr(file, "malformed current waveforms", err)
	}

	n := len(v.pulses)
	if len(v.valim) != n {
		return nil, d.consistencyErr(file, "voltage supply values", len(v.valim), n)
	}
	if len(c.pulses) != n {
		return nil, d.consistencyErr(file, "current waveform count", len(c.pulses), n)
	}
	if n > 0 && len(c.pulses[0]) != len(v.pulses[0]) {
		return nil, d.consistencyErr(file, "current waveform length", len(c.pulses[0]), len(v.pulses[0]))
	}
	if v.deltaT != c.deltaT {
		return nil, d.formatErr(file, fmt.Sprintf("voltage and current sample spacing differ (%g, %g)", v.deltaT, c.deltaT), nil)
	}

	raw := d.newRaw(file)
	raw.Voltage = make([]float64, n)
	raw.Current = make([]float64, n)
	wfs := make([]waveform, n)
	for i := 0; i < n; i++ {
		length := len(v.pulses[i])
		lo, hi := d.window.bounds(length)
		if length > 0 {
			raw.Voltage[i] = stat.Mean(v.pulses[i][lo:hi], nil)
			raw.Current[i] = stat.Mean(c.pulses[i][lo:hi], nil)
		}
		t := make([]float64, length)
		if length > 1 {
			floats.Span(t, 0, float64(length-1)*v.deltaT*nanosecond)
		}
		wfs[i] = waveform{time: t, voltage: v.pulses[i], current: c.pulses[i], valim: v.valim[i]}
	}
	set, err := d.buildSet(file, wfs)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		set.SetDelta(v.deltaT * nanosecond)
	}
	raw.Pulses = set
	d.log.Debug("format stores no leakage data")

	d.log.Info("decoded", zap.String("path", raw.SourcePath), zap.Int("steps", n))
	return raw, nil
}

// parseBarthChannel reads a header block (tab-separated first line with
// the sample spacing in ns as third field, supply voltages on the second
// line) and the matrix block that follows it. Matrix rows are samples,
// columns are pulses.
func parseBarthChannel(header, matrix string) (barthChannel, error) {
	var ch barthChannel
	lines := strings.Split(header, "\n")
	if len(lines) < 2 {
		return ch, fmt.Errorf("header has %d lines, want 2", len(lines))
	}
	fields := strings.Split(lines[0], "\t")
	if len(fields) < 3 {
		return ch, fmt.Errorf("header has %d fields, want 3", len(fields))
	}
	dt, err := parseFloat(fields[2])
	if err != nil {
		return ch, fmt.Errorf("sample spacing: %w", err)
	}
	ch.deltaT = dt
	if ch.valim, err = fieldsFloat(lines[1], 0); err != nil {
		return ch, fmt.Errorf("supply voltages: %w", err)
	}

	for r, line := range strings.Split(matrix, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, err := fieldsFloat(line, 0)
		if err != nil {
			return ch, fmt.Errorf("row %d: %w", r+1, err)
		}
		if ch.pulses == nil {
			ch.pulses = make([][]float64, len(row))
		}
		if len(row) != len(ch.pulses) {
			return ch, fmt.Errorf("row %d has %d columns, want %d", r+1, len(row), len(ch.pulses))
		}
		for j, x := range row {
			ch.pulses[j] = append(ch.pulses[j], x)
		}
	}
	return ch, nil
}
