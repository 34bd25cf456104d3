package importers

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

var (
	sermaVersionRe = regexp.MustCompile(`(?mi)^[ \t]*"?Version"?(?:[ \t]*[,:=][ \t]*|[ \t]+|$)"?([^",\r\n]*)`)
	sermaMajorRe   = regexp.MustCompile(`^[vV]?(\d+)`)
)

// sermaLayouts maps the major format version to the columns of Vsupply,
// Vdut, Idut and leakage. Version 0 stands for files without a version line.
var sermaLayouts = map[int][]int{
	0: {1, 2, 3, 4},
	1: {1, 2, 3, 4},
	2: {1, 3, 2, 4},
}

var (
	sermaWaveformDirs = []string{"WFM", "HV-Pulse"}
	sermaLeakStores   = []string{"IV-FILE", "Leak-Curve", "leakages.zip", "leakages.tar.gz"}
)

// resultBlock returns the rows following the "Index,...]" header of a
// SERMA or HPPI result file.
func resultBlock(text string) (string, bool) {
	return blockAfter(text, func(line string) bool {
		return strings.HasPrefix(line, "Index,") && strings.HasSuffix(line, "]")
	})
}

// SERMA decodes the result .csv and the waveform and leakage stores
// written next to it by SERMA testers.
type SERMA struct {
	base
}

func NewSERMA(log *zap.Logger) *SERMA {
	return &SERMA{base: newBase("SERMA", log)}
}

func (d *SERMA) FilePattern() string { return "*.csv" }

// sermaFormatVersion returns the major version declared in the header, or
// 0 when the file has no version line. A version line whose value does not
// start with a number is an error.
func sermaFormatVersion(text string) (int, error) {
	m := sermaVersionRe.FindStringSubmatch(text)
	if m == nil {
		return 0, nil
	}
	value := strings.TrimSpace(m[1])
	mm := sermaMajorRe.FindStringSubmatch(value)
	if mm == nil {
		return 0, fmt.Errorf("unrecognized format version %q", value)
	}
	v, err := strconv.Atoi(mm[1])
	if err != nil {
		return 0, fmt.Errorf("unrecognized format version %q: %w", value, err)
	}
	return v, nil
}

func (d *SERMA) Decode(p string) (*tlp.RawData, error) {
	file := basePath(p) + ".csv"
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, d.formatErr(file, "cannot read result file", err)
	}
	text := normalize(data)

	version, err := sermaFormatVersion(text)
	if err != nil {
		return nil, d.formatErr(file, err.Error(), nil)
	}
	layout, ok := sermaLayouts[version]
	if !ok {
		return nil, d.formatErr(file, fmt.Sprintf("unsupported format version %d", version), nil)
	}
	block, ok := resultBlock(text)
	if !ok {
		return nil, d.formatErr(file, "missing Index result block", nil)
	}
	cols, err := csvColumns(block, 0, layout...)
	if err != nil {
		return nil, d.formatErr(file, "malformed result block", err)
	}

	raw := d.newRaw(file)
	vsupply := cols[0]
	raw.Voltage, raw.Current, raw.LeakEvol = cols[1], cols[2], cols[3]
	steps := len(raw.Voltage)
	d.log.Debug("result block", zap.Int("version", version), zap.Int("steps", steps))

	dir := filepath.Dir(file)
	set, err := d.readWaveforms(file, dir, vsupply, raw)
	if err != nil {
		return nil, err
	}
	if set == nil {
		raw.Pulses = pulses.Empty(steps)
	} else {
		raw.Pulses = set
	}

	ivs, err := d.readLeakCurves(file, dir, raw)
	if err != nil {
		return nil, err
	}
	if len(ivs) == steps && steps > 0 {
		// no reference sweep was stored: the first sweep stands in for it
		ivs = append([]tlp.IVCurve{{
			Voltage: append([]float64(nil), ivs[0].Voltage...),
			Current: append([]float64(nil), ivs[0].Current...),
		}}, ivs...)
	}
	if err := d.checkLeakCount(file, ivs, steps); err != nil {
		return nil, err
	}
	raw.LeakIVs = ivs

	d.log.Info("decoded", zap.String("path", raw.SourcePath), zap.Int("steps", steps))
	return raw, nil
}

// sermaCandidates lists the waveform stores in probe order: the fixed
// directories, then any entry whose name contains "transients".
func sermaCandidates(dir string) []string {
	var out []string
	for _, name := range sermaWaveformDirs {
		out = append(out, filepath.Join(dir, name))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	var extra []string
	for _, e := range entries {
		if !e.IsDir() && strings.Contains(e.Name(), "transients") {
			extra = append(extra, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

// sermaMembers returns the .csv members of src ordered by the integer of
// their third dot-separated field.
func (d *SERMA) sermaMembers(file string, src memberSource, what string) ([]string, error) {
	var members []keyed
	for _, name := range src.Names() {
		if !csvMember(name) {
			continue
		}
		k, ok := dottedFieldInt(name)
		if !ok {
			return nil, d.formatErr(file, fmt.Sprintf("%s member %s has no index", what, name), nil)
		}
		members = append(members, keyed{name: name, key: float64(k)})
	}
	sortKeyed(members)
	return keyedNames(members), nil
}

func (d *SERMA) readWaveforms(file, dir string, vsupply []float64, raw *tlp.RawData) (*pulses.Set[float64], error) {
	src, where, err := d.locate(csvMember, sermaCandidates(dir)...)
	if err != nil {
		d.degrade(raw, SectionWaveforms, err.Error())
		return nil, nil
	}
	if src == nil {
		d.degrade(raw, SectionWaveforms, "no waveform directory or archive")
		return nil, nil
	}
	defer src.Close()

	names, err := d.sermaMembers(file, src, "waveform")
	if err != nil {
		d.degrade(raw, SectionWaveforms, err.Error())
		return nil, nil
	}
	if len(names) == 0 {
		d.degrade(raw, SectionWaveforms, "no waveform members in "+where)
		return nil, nil
	}

	// The waveform files carry no supply voltage. Use the result block's
	// when it has one row per waveform.
	useSupply := len(vsupply) == len(names)
	if !useSupply {
		d.log.Debug("supply voltages unavailable for waveforms",
			zap.Int("waveforms", len(names)), zap.Int("steps", len(vsupply)))
	}

	wfs := make([]waveform, len(names))
	for i, name := range names {
		data, err := src.ReadFile(name)
		if err != nil {
			d.degrade(raw, SectionWaveforms, err.Error())
			return nil, nil
		}
		cols, err := csvColumns(normalize(data), 1, 0, 1, 2)
		if err != nil {
			d.degrade(raw, SectionWaveforms, fmt.Sprintf("%s: %v", name, err))
			return nil, nil
		}
		floats.Scale(nanosecond, cols[0])
		wfs[i] = waveform{time: cols[0], voltage: cols[1], current: cols[2]}
		if useSupply {
			wfs[i].valim = vsupply[i]
		}
	}
	return d.buildSet(file, wfs)
}

func (d *SERMA) readLeakCurves(file, dir string, raw *tlp.RawData) ([]tlp.IVCurve, error) {
	candidates := make([]string, len(sermaLeakStores))
	for i, name := range sermaLeakStores {
		candidates[i] = filepath.Join(dir, name)
	}
	src, where, err := d.locate(csvMember, candidates...)
	if err != nil {
		d.degrade(raw, SectionLeakIVs, err.Error())
		return nil, nil
	}
	if src == nil {
		d.degrade(raw, SectionLeakIVs, "no leakage directory or archive")
		return nil, nil
	}
	defer src.Close()

	names, err := d.sermaMembers(file, src, "leakage")
	if err != nil {
		d.degrade(raw, SectionLeakIVs, err.Error())
		return nil, nil
	}
	if len(names) == 0 {
		d.degrade(raw, SectionLeakIVs, "no leakage members in "+where)
		return nil, nil
	}
	ivs := make([]tlp.IVCurve, len(names))
	for i, name := range names {
		data, err := src.ReadFile(name)
		if err != nil {
			d.degrade(raw, SectionLeakIVs, err.Error())
			return nil, nil
		}
		cols, err := csvColumns(normalize(data), 1, 0, 1)
		if err != nil {
			d.degrade(raw, SectionLeakIVs, fmt.Sprintf("%s: %v", name, err))
			return nil, nil
		}
		ivs[i] = tlp.IVCurve{Voltage: cols[0], Current: cols[1]}
	}
	return ivs, nil
}
