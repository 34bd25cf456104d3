package tlp

import (
	"fmt"
	"math"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
)

// PulseSource is the read surface of a time-domain waveform set. It is
// implemented by *pulses.Set[float64] and by the lazy view returned from a
// container.
type PulseSource interface {
	PulsesNb() int
	PulsesLength() int
	DeltaT() float64
	Valim() []float64
	Offsets() []float64
	Pulse(i int, c pulses.Channel) ([]float64, error)
}

var _ PulseSource = (*pulses.Set[float64])(nil)

// RawData is what a vendor decoder hands back before validation.
type RawData struct {
	DeviceName string
	TesterName string
	SourcePath string

	// Pulses may be nil or empty when the tester stored no waveforms.
	Pulses PulseSource

	// Voltage and Current form the TLP curve.
	Voltage []float64
	Current []float64

	// LeakIVs is nil when no leakage sweeps were found.
	LeakIVs []IVCurve
	// LeakEvol is nil when the tester reports no leakage evolution.
	LeakEvol []float64
	// LeakVoltage is the bias at which the leakage evolution is evaluated,
	// or nil when the tester does not report it.
	LeakVoltage *float64

	// Missing lists the secondary sections that could not be found.
	Missing []string
}

// Droplet is a validated measurement record. Presence flags are computed
// once by NewDroplet.
type Droplet struct {
	deviceName string
	testerName string
	sourcePath string

	curve     Curve
	pulses    PulseSource
	ivLeak    []IVCurve
	leakEvol  []float64
	evolState EvolutionState

	leakVoltage    float64
	hasLeakVoltage bool

	hasPulses bool
}

// NewDroplet validates raw and builds a Droplet. It never returns a
// partially valid record.
func NewDroplet(raw *RawData) (*Droplet, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: nil raw data", ErrInvalid)
	}
	curve, err := NewCurve(raw.Voltage, raw.Current)
	if err != nil {
		return nil, err
	}

	d := &Droplet{
		deviceName: raw.DeviceName,
		testerName: raw.TesterName,
		sourcePath: raw.SourcePath,
		curve:      curve,
	}

	if err := d.setPulses(raw.Pulses); err != nil {
		return nil, err
	}

	for i, iv := range raw.LeakIVs {
		if len(iv.Voltage) != len(iv.Current) {
			return nil, fmt.Errorf("%w: leakage curve %d has %d voltages and %d currents",
				ErrInvalid, i, len(iv.Voltage), len(iv.Current))
		}
		if j, bad := firstNonFinite(iv.Voltage); bad {
			return nil, fmt.Errorf("%w: leakage curve %d voltage %d is %v", ErrInvalid, i, j, iv.Voltage[j])
		}
		if j, bad := firstNonFinite(iv.Current); bad {
			return nil, fmt.Errorf("%w: leakage curve %d current %d is %v", ErrInvalid, i, j, iv.Current[j])
		}
		d.ivLeak = append(d.ivLeak, iv.clone())
	}

	if j, bad := firstNonFinite(raw.LeakEvol); bad {
		return nil, fmt.Errorf("%w: leakage evolution %d is %v", ErrInvalid, j, raw.LeakEvol[j])
	}
	if v := raw.LeakVoltage; v != nil {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			return nil, fmt.Errorf("%w: leakage bias is %v", ErrInvalid, *v)
		}
		d.leakVoltage, d.hasLeakVoltage = *v, true
	}

	d.evolState = ClassifyEvolution(raw.LeakEvol)
	if d.evolState != EvolutionAbsent {
		d.leakEvol = append([]float64(nil), raw.LeakEvol...)
	}
	return d, nil
}

func (d *Droplet) setPulses(p PulseSource) error {
	if p == nil {
		d.pulses = pulses.Empty(d.curve.Len())
		return nil
	}
	nb, length := p.PulsesNb(), p.PulsesLength()
	if nb < 0 || length < 0 {
		return fmt.Errorf("%w: pulse set is %dx%d", ErrInvalid, nb, length)
	}
	d.pulses = p
	if nb == 0 || length == 0 {
		return nil
	}
	if n := len(p.Valim()); n != nb {
		return fmt.Errorf("%w: %d supply voltages for %d pulses", ErrInvalid, n, nb)
	}
	if n := len(p.Offsets()); n != nb {
		return fmt.Errorf("%w: %d offsets for %d pulses", ErrInvalid, n, nb)
	}
	if dt := p.DeltaT(); math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 {
		return fmt.Errorf("%w: sample spacing %v", ErrInvalid, dt)
	}
	d.hasPulses = true
	return nil
}

func (d *Droplet) DeviceName() string       { return d.deviceName }
func (d *Droplet) TesterName() string       { return d.testerName }
func (d *Droplet) OriginalFilePath() string { return d.sourcePath }

// TLPCurve returns the reduced curve.
func (d *Droplet) TLPCurve() Curve { return d.curve }

// Pulses returns the transient pulses. It is never nil; check
// HasTransientPulses before reading samples.
func (d *Droplet) Pulses() PulseSource { return d.pulses }

// IVLeak returns a copy of the leakage sweeps, or nil when absent.
func (d *Droplet) IVLeak() []IVCurve {
	if len(d.ivLeak) == 0 {
		return nil
	}
	out := make([]IVCurve, len(d.ivLeak))
	for i, iv := range d.ivLeak {
		out[i] = iv.clone()
	}
	return out
}

// LeakEvol returns a copy of the leakage-evolution series, or nil when the
// tester reported none. An all-zero series is returned as measured.
func (d *Droplet) LeakEvol() []float64 {
	if d.leakEvol == nil {
		return nil
	}
	return append([]float64(nil), d.leakEvol...)
}

func (d *Droplet) HasTransientPulses() bool { return d.hasPulses }
func (d *Droplet) HasLeakageIVs() bool      { return len(d.ivLeak) > 0 }

// HasLeakageEvolution reports a non-zero leakage-evolution series. An
// all-zero series reports false; use LeakEvolState to tell it apart from a
// missing one.
func (d *Droplet) HasLeakageEvolution() bool { return d.evolState == EvolutionPresent }

func (d *Droplet) LeakEvolState() EvolutionState { return d.evolState }

// LeakVoltage returns the bias at which the leakage evolution is evaluated.
// ok is false when the tester does not report it.
func (d *Droplet) LeakVoltage() (v float64, ok bool) {
	return d.leakVoltage, d.hasLeakVoltage
}

// Raw returns the droplet's content as RawData, sharing the pulse source.
func (d *Droplet) Raw() *RawData {
	raw := &RawData{
		DeviceName: d.deviceName,
		TesterName: d.testerName,
		SourcePath: d.sourcePath,
		Pulses:     d.pulses,
		Voltage:    d.curve.Voltage(),
		Current:    d.curve.Current(),
		LeakIVs:    d.IVLeak(),
		LeakEvol:   d.LeakEvol(),
	}
	if d.hasLeakVoltage {
		v := d.leakVoltage
		raw.LeakVoltage = &v
	}
	return raw
}
