package importers

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

const (
	nanosecond = 1e-9

	// lines before the samples in an Oryx .wfm file
	oryxWaveformHeader = 13
	// rest of the [DATA] line plus two column header lines
	oryxLeakHeader = 3
)

var (
	oryxTableRe  = regexp.MustCompile(`(?ms)^"\[=====Test Result Table.*?\]"\n(.*?)\n"\[EOF\]"`)
	oryxMemberRe = regexp.MustCompile(`_(Tlp[A-Za-z0-9]+)_([-+]?\d+(?:\.\d+)?)V\.wfm$`)
)

// Oryx result table layouts, as column indexes of Vdut, Idut and leakage.
var (
	oryxCompact  = []int{2, 3, 4} // index, Vsupply, Vdut, Idut, leak
	oryxExtended = []int{3, 4, 5} // index, Vsupply, Ipulse, Vdut, Idut, leak
)

// Oryx decodes the .tsr/.ctr/.wfm files written by Oryx testers.
type Oryx struct {
	base
}

func NewOryx(log *zap.Logger) *Oryx {
	return &Oryx{base: newBase("Oryx", log)}
}

func (d *Oryx) FilePattern() string { return "*.tsr" }

func (d *Oryx) Decode(p string) (*tlp.RawData, error) {
	stem := basePath(p)
	tsr := stem + ".tsr"
	data, err := os.ReadFile(tsr)
	if err != nil {
		return nil, d.formatErr(tsr, "cannot read result file", err)
	}

	raw := d.newRaw(tsr)
	if err := d.readResultTable(tsr, normalize(data), raw); err != nil {
		return nil, err
	}
	steps := len(raw.Voltage)

	ivs, err := d.readLeakCurves(stem + ".ctr")
	switch {
	case errors.Is(err, fs.ErrNotExist):
		d.degrade(raw, SectionLeakIVs, "no .ctr file")
	case err != nil:
		d.degrade(raw, SectionLeakIVs, err.Error())
	default:
		if err := d.checkLeakCount(tsr, ivs, steps); err != nil {
			return nil, err
		}
		raw.LeakIVs = ivs
	}

	set, err := d.readWaveforms(tsr, stem, raw)
	if err != nil {
		return nil, err
	}
	if set == nil {
		raw.Pulses = pulses.Empty(steps)
	} else {
		raw.Pulses = set
	}

	d.log.Info("decoded", zap.String("path", raw.SourcePath), zap.Int("steps", steps))
	return raw, nil
}

func (d *Oryx) readResultTable(tsr, text string, raw *tlp.RawData) error {
	m := oryxTableRe.FindStringSubmatch(text)
	if m == nil {
		return d.formatErr(tsr, "missing test result table", nil)
	}
	block := m[1]
	rec, err := firstRecord(block)
	if err != nil {
		return d.formatErr(tsr, "empty test result table", err)
	}

	var layout []int
	switch {
	case len(rec) == 5:
		layout = oryxCompact
	case len(rec) >= 6:
		layout = oryxExtended
	default:
		return d.formatErr(tsr, fmt.Sprintf("test result table has %d columns", len(rec)), nil)
	}

	cols, err := csvColumns(block, 0, layout...)
	if err != nil {
		return d.formatErr(tsr, "malformed test result table", err)
	}
	raw.Voltage, raw.Current, raw.LeakEvol = cols[0], cols[1], cols[2]
	return nil
}

// readLeakCurves parses the [DATA] blocks of a .ctr file. Rows are
// index,V,I.
func (d *Oryx) readLeakCurves(ctr string) ([]tlp.IVCurve, error) {
	data, err := os.ReadFile(ctr)
	if err != nil {
		return nil, err
	}
	blocks := strings.Split(normalize(data), "[DATA]")
	var ivs []tlp.IVCurve
	for i, blk := range blocks[1:] {
		lines := strings.Split(blk, "\n")
		if len(lines) < oryxLeakHeader {
			return nil, fmt.Errorf("leakage block %d is truncated", i)
		}
		cols, err := csvColumns(numericPrefix(lines[oryxLeakHeader:]), 0, 1, 2)
		if err != nil {
			return nil, fmt.Errorf("leakage block %d: %w", i, err)
		}
		ivs = append(ivs, tlp.IVCurve{Voltage: cols[0], Current: cols[1]})
	}
	return ivs, nil
}

// oryxMember accepts the voltage and current waveform members.
func oryxMember(name string) bool {
	m := oryxMemberRe.FindStringSubmatch(path.Base(name))
	return m != nil && (m[1] == "TlpVolt" || m[1] == "TlpCurr")
}

// readWaveforms returns nil when no waveform store is present.
func (d *Oryx) readWaveforms(tsr, stem string, raw *tlp.RawData) (*pulses.Set[float64], error) {
	src, where, err := d.locate(oryxMember, stem, stem+".zip")
	if err != nil {
		d.degrade(raw, SectionWaveforms, err.Error())
		return nil, nil
	}
	if src == nil {
		d.degrade(raw, SectionWaveforms, "no waveform directory or archive")
		return nil, nil
	}
	defer src.Close()

	var volt, curr []keyed
	for _, name := range src.Names() {
		m := oryxMemberRe.FindStringSubmatch(path.Base(name))
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		switch m[1] {
		case "TlpVolt":
			volt = append(volt, keyed{name: name, key: v})
		case "TlpCurr":
			curr = append(curr, keyed{name: name, key: v})
		}
	}
	if len(volt) == 0 && len(curr) == 0 {
		d.degrade(raw, SectionWaveforms, "no waveform members in "+where)
		return nil, nil
	}
	sortKeyed(volt)
	sortKeyed(curr)
	if len(curr) != len(volt) {
		return nil, d.consistencyErr(tsr, "current waveform count", len(curr), len(volt))
	}
	for i := range volt {
		if volt[i].key != curr[i].key {
			return nil, d.consistencyErr(tsr, fmt.Sprintf("supply voltage of current waveform %d", i),
				int(math.Round(curr[i].key)), int(math.Round(volt[i].key)))
		}
	}

	wfs := make([]waveform, len(volt))
	for i := range volt {
		t, v, err := d.readWaveform(src, volt[i].name)
		if err != nil {
			d.degrade(raw, SectionWaveforms, err.Error())
			return nil, nil
		}
		_, c, err := d.readWaveform(src, curr[i].name)
		if err != nil {
			d.degrade(raw, SectionWaveforms, err.Error())
			return nil, nil
		}
		floats.Scale(nanosecond, t)
		wfs[i] = waveform{time: t, voltage: v, current: c, valim: volt[i].key}
	}
	return d.buildSet(tsr, wfs)
}

func (d *Oryx) readWaveform(src memberSource, name string) (t, v []float64, err error) {
	data, err := src.ReadFile(name)
	if err != nil {
		return nil, nil, err
	}
	lines := strings.Split(normalize(data), "\n")
	if len(lines) <= oryxWaveformHeader {
		return nil, nil, fmt.Errorf("%s: waveform has no samples", name)
	}
	cols, err := csvColumns(numericPrefix(lines[oryxWaveformHeader:]), 0, 0, 1)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return cols[0], cols[1], nil
}
