package importers

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

// Decoder turns the files written by one TLP tester into RawData.
type Decoder interface {
	// Label is the short tester name, e.g. "Oryx".
	Label() string
	// FilePattern is a glob for file pickers. It plays no part in parsing.
	FilePattern() string
	// Decode reads the measurement whose primary file is path.
	Decode(path string) (*tlp.RawData, error)
}

// UnknownDevice is the device name used when a format carries none.
const UnknownDevice = "unknown"

// Names of the secondary sections reported in RawData.Missing.
const (
	SectionWaveforms = "transient waveforms"
	SectionLeakIVs   = "leakage IV curves"
)

// base holds what every decoder shares.
type base struct {
	label string
	log   *zap.Logger
}

func newBase(label string, log *zap.Logger) base {
	if log == nil {
		log = zap.NewNop()
	}
	return base{label: label, log: log.With(zap.String("tester", label))}
}

func (b base) Label() string { return b.label }

func (b base) formatErr(path, reason string, err error) error {
	return &FormatError{Tester: b.label, Path: path, Reason: reason, Err: err}
}

func (b base) consistencyErr(path, what string, got, want int) error {
	return &ConsistencyError{Tester: b.label, Path: path, What: what, Got: got, Want: want}
}

// degrade records an absent secondary section.
func (b base) degrade(raw *tlp.RawData, section string, reason string) {
	b.log.Warn("secondary data unavailable",
		zap.String("section", section),
		zap.String("path", raw.SourcePath),
		zap.String("reason", reason))
	raw.Missing = append(raw.Missing, section)
}

// newRaw fills the fields every decoder sets the same way.
func (b base) newRaw(path string) *tlp.RawData {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &tlp.RawData{
		DeviceName: UnknownDevice,
		TesterName: b.label,
		SourcePath: abs,
	}
}

// checkLeakCount enforces one reference sweep plus one sweep per step.
func (b base) checkLeakCount(path string, ivs []tlp.IVCurve, steps int) error {
	if len(ivs) == 0 {
		return nil
	}
	if len(ivs) != steps+1 {
		return b.consistencyErr(path, "leakage curve count", len(ivs), steps+1)
	}
	return nil
}

// basePath strips the extension from path.
func basePath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// waveform is one decoded transient in seconds.
type waveform struct {
	time    []float64
	voltage []float64
	current []float64
	valim   float64
}

// buildSet assembles decoded waveforms into a time-domain set. All
// waveforms must have the same length; the sample spacing is taken from the
// first one.
func (b base) buildSet(path string, wfs []waveform) (*pulses.Set[float64], error) {
	if len(wfs) == 0 {
		return pulses.Empty(0), nil
	}
	length := len(wfs[0].voltage)
	v := make([][]float64, len(wfs))
	c := make([][]float64, len(wfs))
	valim := make([]float64, len(wfs))
	offsets := make([]float64, len(wfs))
	for i, wf := range wfs {
		if len(wf.voltage) != length {
			return nil, b.consistencyErr(path, "voltage waveform length", len(wf.voltage), length)
		}
		if len(wf.current) != length {
			return nil, b.consistencyErr(path, "current waveform length", len(wf.current), length)
		}
		v[i], c[i] = wf.voltage, wf.current
		valim[i] = wf.valim
		if len(wf.time) > 0 {
			offsets[i] = wf.time[0]
		}
	}

	deltaT := 0.0
	if t := wfs[0].time; len(t) > 1 {
		deltaT = t[1] - t[0]
	}
	set := pulses.NewTimeSet(pulses.BasisIV, len(wfs), length, deltaT)
	if err := set.SetChannel(pulses.VoltageChannel, v); err != nil {
		return nil, err
	}
	if err := set.SetChannel(pulses.CurrentChannel, c); err != nil {
		return nil, err
	}
	if err := set.SetValim(valim); err != nil {
		return nil, err
	}
	if err := set.SetOffsets(offsets); err != nil {
		return nil, err
	}
	return set, nil
}
