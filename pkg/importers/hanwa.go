package importers

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

// HANWA .sbd result columns: Vdut, Idut, leakage.
var hanwaLayout = []int{2, 3, 4}

var hanwaLeakRe = regexp.MustCompile(`^Leak_(\d+)\.tld$`)

// HANWA decodes a .tcf test configuration together with the Result/*.sbd
// curve and Leak/*.tld sweeps written next to it. HANWA files carry no
// usable transient data.
type HANWA struct {
	base
}

func NewHANWA(log *zap.Logger) *HANWA {
	return &HANWA{base: newBase("HANWA", log)}
}

func (d *HANWA) FilePattern() string { return "*.tcf" }

func (d *HANWA) Decode(p string) (*tlp.RawData, error) {
	stem := basePath(p)
	tcfPath := stem + ".tcf"
	f, err := os.Open(tcfPath)
	if err != nil {
		return nil, d.formatErr(tcfPath, "cannot read test configuration", err)
	}
	cfg, err := parseTCF(tcfPath, f)
	f.Close()
	if err != nil {
		return nil, d.formatErr(tcfPath, "malformed test configuration", err)
	}
	user, ok := cfg["UserName"]
	if !ok {
		return nil, d.formatErr(tcfPath, "missing UserName", nil)
	}

	dir, tail := filepath.Split(stem)
	sbd := filepath.Join(dir, "Result", tail+"_"+user+"_"+tail+".sbd")
	data, err := os.ReadFile(sbd)
	if err != nil {
		return nil, d.formatErr(sbd, "cannot read result file", err)
	}
	block, ok := blockAfter(normalize(data), func(line string) bool {
		return strings.HasPrefix(line, "Point,") && strings.HasSuffix(strings.ToLower(line), "current")
	})
	if !ok {
		return nil, d.formatErr(sbd, "missing Point result block", nil)
	}
	cols, err := csvColumns(block, 0, hanwaLayout...)
	if err != nil {
		return nil, d.formatErr(sbd, "malformed result block", err)
	}

	raw := d.newRaw(tcfPath)
	raw.Voltage, raw.Current, raw.LeakEvol = cols[0], cols[1], cols[2]
	steps := len(raw.Voltage)

	if point, ok := cfg["LeakSelectPoint"]; ok {
		v, err := cfg.Voltage(point)
		if err != nil {
			d.log.Warn("leak evaluation voltage unreadable", zap.Error(err))
		} else {
			raw.LeakVoltage = &v
		}
	}

	raw.Pulses = pulses.Empty(steps)
	raw.Missing = append(raw.Missing, SectionWaveforms)
	d.log.Debug("format stores no transient waveforms", zap.String("path", raw.SourcePath))

	ivs, err := d.readLeakCurves(tcfPath, filepath.Join(dir, "Leak"), raw)
	if err != nil {
		return nil, err
	}
	if err := d.checkLeakCount(tcfPath, ivs, steps); err != nil {
		return nil, err
	}
	raw.LeakIVs = ivs

	d.log.Info("decoded", zap.String("path", raw.SourcePath), zap.Int("steps", steps))
	return raw, nil
}

// readLeakCurves reads Leak_0.tld, Leak_1.tld, ... in index order. A gap
// in the numbering is a consistency error.
func (d *HANWA) readLeakCurves(tcfPath, leakDir string, raw *tlp.RawData) ([]tlp.IVCurve, error) {
	entries, err := os.ReadDir(leakDir)
	if err != nil {
		d.degrade(raw, SectionLeakIVs, "no Leak directory")
		return nil, nil
	}
	var members []keyed
	for _, e := range entries {
		m := hanwaLeakRe.FindStringSubmatch(e.Name())
		if m == nil || !e.Type().IsRegular() {
			continue
		}
		i, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		members = append(members, keyed{name: e.Name(), key: float64(i)})
	}
	if len(members) == 0 {
		d.degrade(raw, SectionLeakIVs, "no Leak_<n>.tld files")
		return nil, nil
	}
	sortKeyed(members)

	ivs := make([]tlp.IVCurve, len(members))
	for i, m := range members {
		if int(m.key) != i {
			return nil, d.consistencyErr(tcfPath, "leakage file index", int(m.key), i)
		}
		data, err := os.ReadFile(filepath.Join(leakDir, m.name))
		if err != nil {
			d.degrade(raw, SectionLeakIVs, err.Error())
			return nil, nil
		}
		cols, err := csvColumns(normalize(data), 0, 0, 1)
		if err != nil {
			d.degrade(raw, SectionLeakIVs, fmt.Sprintf("%s: %v", m.name, err))
			return nil, nil
		}
		ivs[i] = tlp.IVCurve{Voltage: cols[0], Current: cols[1]}
	}
	return ivs, nil
}
