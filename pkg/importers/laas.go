package importers

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

const (
	laasIdentification = "Identification :"
	laasValim          = "Valim (V)"
	laasStaticMarker   = "Premiere mesure statique"
)

// LAAS decodes the single .mes text file of the LAAS TLP bench. Times in
// the pulse blocks are already in seconds.
type LAAS struct {
	base
}

func NewLAAS(log *zap.Logger) *LAAS {
	return &LAAS{base: newBase("LAAS", log)}
}

func (d *LAAS) FilePattern() string { return "*.mes" }

// lineReader walks the lines of a .mes file.
type lineReader struct {
	lines []string
	pos   int
}

func (r *lineReader) next() (string, bool) {
	if r.pos >= len(r.lines) {
		return "", false
	}
	line := r.lines[r.pos]
	r.pos++
	return line, true
}

// rows reads whitespace-separated rows up to the next blank line or the
// end of the file. Rows keep at most three fields, need at least want of
// them and must all have the same width.
func (r *lineReader) rows(want int) ([][]float64, error) {
	var out [][]float64
	for {
		line, ok := r.next()
		if !ok || strings.TrimSpace(line) == "" {
			return out, nil
		}
		n := min(len(strings.Fields(line)), 3)
		if n < want {
			return nil, fmt.Errorf("line %d has %d fields, want %d", r.pos, n, want)
		}
		if len(out) > 0 && n != len(out[0]) {
			return nil, fmt.Errorf("line %d has %d fields, previous rows %d", r.pos, n, len(out[0]))
		}
		row, err := fieldsFloat(line, n)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.pos, err)
		}
		out = append(out, row)
	}
}

// valimLine parses "Valim (V)=<v>".
func valimLine(line string) (float64, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok || strings.TrimSpace(key) != laasValim {
		return 0, false
	}
	v, err := parseFloat(value)
	if err != nil {
		return 0, false
	}
	return v, true
}

func column(rows [][]float64, j int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r[j]
	}
	return out
}

func (d *LAAS) Decode(p string) (*tlp.RawData, error) {
	file := basePath(p) + ".mes"
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, d.formatErr(file, "cannot read measurement file", err)
	}
	r := &lineReader{lines: strings.Split(normalize(data), "\n")}

	first, _ := r.next()
	if !strings.HasPrefix(first, laasIdentification) {
		return nil, d.formatErr(file, "missing identification line", nil)
	}
	raw := d.newRaw(file)
	if id := strings.TrimSpace(strings.TrimPrefix(first, laasIdentification)); id != "" {
		raw.DeviceName = id
	}

	// column header of the TLP table
	r.next()
	curve, err := r.rows(3)
	if err != nil {
		return nil, d.formatErr(file, "malformed TLP table", err)
	}
	raw.Voltage, raw.Current = column(curve, 1), column(curve, 2)
	steps := len(curve)

	var wfs []waveform
	var line string
	for {
		var ok bool
		line, ok = r.next()
		if !ok {
			break
		}
		valim, ok := valimLine(line)
		if !ok {
			break
		}
		r.next()
		rows, err := r.rows(3)
		if err != nil {
			return nil, d.formatErr(file, fmt.Sprintf("malformed pulse block %d", len(wfs)), err)
		}
		wfs = append(wfs, waveform{
			time:    column(rows, 0),
			voltage: column(rows, 1),
			current: column(rows, 2),
			valim:   valim,
		})
	}

	if len(wfs) == 0 {
		d.degrade(raw, SectionWaveforms, "no pulse blocks")
		raw.Pulses = pulses.Empty(steps)
	} else {
		if len(wfs) != steps {
			return nil, d.consistencyErr(file, "pulse block count", len(wfs), steps)
		}
		set, err := d.buildSet(file, wfs)
		if err != nil {
			return nil, err
		}
		raw.Pulses = set
	}

	ivs, err := d.readLeakCurves(file, r, line)
	if err != nil {
		return nil, err
	}
	if ivs == nil {
		d.degrade(raw, SectionLeakIVs, "no static measurement section")
	} else {
		if err := d.checkLeakCount(file, ivs, steps); err != nil {
			return nil, err
		}
		raw.LeakIVs = ivs
	}

	d.log.Info("decoded", zap.String("path", raw.SourcePath),
		zap.String("device", raw.DeviceName), zap.Int("steps", steps))
	return raw, nil
}

// readLeakCurves finds the static measurement section, starting with the
// already consumed line, and reads the reference sweep followed by one
// sweep per "Valim (V)=" block.
func (d *LAAS) readLeakCurves(file string, r *lineReader, line string) ([]tlp.IVCurve, error) {
	found := strings.TrimSpace(line) == laasStaticMarker
	for !found {
		next, ok := r.next()
		if !ok {
			return nil, nil
		}
		found = strings.TrimSpace(next) == laasStaticMarker
	}
	r.next()

	var ivs []tlp.IVCurve
	for {
		rows, err := r.rows(2)
		if err != nil {
			return nil, d.formatErr(file, fmt.Sprintf("malformed leakage block %d", len(ivs)), err)
		}
		ivs = append(ivs, laasSweep(rows))

		next, ok := r.next()
		if !ok {
			break
		}
		if _, ok := valimLine(next); !ok {
			break
		}
		r.next()
	}
	return ivs, nil
}

// laasSweep maps rows of "V I" or "index V I" to a sweep.
func laasSweep(rows [][]float64) tlp.IVCurve {
	if len(rows) > 0 && len(rows[0]) >= 3 {
		return tlp.IVCurve{Voltage: column(rows, 1), Current: column(rows, 2)}
	}
	return tlp.IVCurve{Voltage: column(rows, 0), Current: column(rows, 1)}
}
