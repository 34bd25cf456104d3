package importers

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

// HPPI result block columns: Vsupply, Vdut, Idut, leakage.
var hppiLayout = []int{1, 2, 3, 8}

// HPPI waveform columns.
const (
	hppiTime    = 0
	hppiCurrent = 1
	hppiVoltage = 3
)

var hppiWaveformStores = []string{"wfm", "HV-Pulse", "transients.zip"}

// HPPI decodes the result .csv and transient files of HPPI testers. The
// format has no leakage sweeps.
type HPPI struct {
	base
}

func NewHPPI(log *zap.Logger) *HPPI {
	return &HPPI{base: newBase("HPPI", log)}
}

func (d *HPPI) FilePattern() string { return "*.csv" }

func (d *HPPI) Decode(p string) (*tlp.RawData, error) {
	file := basePath(p) + ".csv"
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, d.formatErr(file, "cannot read result file", err)
	}
	block, ok := resultBlock(normalize(data))
	if !ok {
		return nil, d.formatErr(file, "missing Index result block", nil)
	}
	cols, err := csvColumns(block, 0, hppiLayout...)
	if err != nil {
		return nil, d.formatErr(file, "malformed result block", err)
	}

	raw := d.newRaw(file)
	raw.Voltage, raw.Current, raw.LeakEvol = cols[1], cols[2], cols[3]
	steps := len(raw.Voltage)

	set, err := d.readWaveforms(file, filepath.Dir(file), raw)
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

func (d *HPPI) readWaveforms(file, dir string, raw *tlp.RawData) (*pulses.Set[float64], error) {
	candidates := make([]string, len(hppiWaveformStores))
	for i, name := range hppiWaveformStores {
		candidates[i] = filepath.Join(dir, name)
	}
	src, where, err := d.locate(csvMember, candidates...)
	if err != nil {
		d.degrade(raw, SectionWaveforms, err.Error())
		return nil, nil
	}
	if src == nil {
		d.degrade(raw, SectionWaveforms, "no waveform directory or archive")
		return nil, nil
	}
	defer src.Close()

	var members []keyed
	for _, name := range src.Names() {
		if !csvMember(name) {
			continue
		}
		k, ok := firstInt(path.Base(name))
		if !ok {
			d.degrade(raw, SectionWaveforms, fmt.Sprintf("member %s has no index", name))
			return nil, nil
		}
		members = append(members, keyed{name: name, key: float64(k)})
	}
	if len(members) == 0 {
		d.degrade(raw, SectionWaveforms, "no waveform members in "+where)
		return nil, nil
	}
	sortKeyed(members)

	wfs := make([]waveform, len(members))
	for i, m := range members {
		valim, ok := voltSuffix(m.name)
		if !ok {
			d.degrade(raw, SectionWaveforms, fmt.Sprintf("member %s has no supply voltage", m.name))
			return nil, nil
		}
		data, err := src.ReadFile(m.name)
		if err != nil {
			d.degrade(raw, SectionWaveforms, err.Error())
			return nil, nil
		}
		cols, err := csvColumns(normalize(data), 1, hppiTime, hppiCurrent, hppiVoltage)
		if err != nil {
			d.degrade(raw, SectionWaveforms, fmt.Sprintf("%s: %v", m.name, err))
			return nil, nil
		}
		floats.Scale(nanosecond, cols[0])
		wfs[i] = waveform{time: cols[0], current: cols[1], voltage: cols[2], valim: valim}
	}
	return d.buildSet(file, wfs)
}
