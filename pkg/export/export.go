package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

// Format selects an export writer.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatXLSX    Format = "xlsx"
)

// ErrFormat is returned for an unknown export format.
var ErrFormat = errors.New("export: unknown format")

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatCSV, FormatParquet, FormatXLSX}
}

// ParseFormat accepts a format name or a file extension such as ".xlsx".
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case FormatCSV, FormatParquet, FormatXLSX:
		return f, nil
	case "pq":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("%w %q", ErrFormat, s)
}

// Write dispatches to the writer for f.
func Write(w io.Writer, d *tlp.Droplet, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, d)
	case FormatParquet:
		return WriteParquet(w, d)
	case FormatXLSX:
		return WriteXLSX(w, d)
	}
	return fmt.Errorf("%w %q", ErrFormat, string(f))
}

// point is one step of the TLP curve.
type point struct {
	Step     int64    `parquet:"step"`
	Voltage  float64  `parquet:"voltage"`
	Current  float64  `parquet:"current"`
	LeakEvol *float64 `parquet:"leak_evol,optional"`
}

// points flattens the curve of d. LeakEvol is set only when d carries a
// leakage evolution and the series reaches that step.
func points(d *tlp.Droplet) []point {
	curve := d.TLPCurve()
	var evol []float64
	if d.HasLeakageEvolution() {
		evol = d.LeakEvol()
	}
	out := make([]point, curve.Len())
	for i := range out {
		v, c := curve.Point(i)
		out[i] = point{Step: int64(i), Voltage: v, Current: c}
		if i < len(evol) {
			e := evol[i]
			out[i].LeakEvol = &e
		}
	}
	return out
}

func header(d *tlp.Droplet) []string {
	h := []string{"step", "voltage", "current"}
	if d.HasLeakageEvolution() {
		h = append(h, "leak_evol")
	}
	return h
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes the TLP curve of d as comma separated values with a
// header row. The leak_evol column is present only when d has a leakage
// evolution.
func WriteCSV(w io.Writer, d *tlp.Droplet) error {
	cw := csv.NewWriter(w)
	withEvol := d.HasLeakageEvolution()
	if err := cw.Write(header(d)); err != nil {
		return fmt.Errorf("export: csv: %w", err)
	}
	for _, p := range points(d) {
		rec := []string{strconv.FormatInt(p.Step, 10), ftoa(p.Voltage), ftoa(p.Current)}
		if withEvol {
			if p.LeakEvol != nil {
				rec = append(rec, ftoa(*p.LeakEvol))
			} else {
				rec = append(rec, "")
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: csv: %w", err)
	}
	return nil
}
