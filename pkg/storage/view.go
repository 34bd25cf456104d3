package storage

import (
	"fmt"
	"math"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

// PulseView is the stored waveform block of a record. Its metadata is
// loaded with the record; samples are read and decompressed one pulse
// channel at a time, so memory stays bounded for large containers. A view
// is usable until its container is closed.
type PulseView struct {
	c      *Container
	group  string
	ds     *dataset
	legacy bool

	nb, length int
	deltaT     float64
	valim      []float64
	offsets    []float64
}

var _ tlp.PulseSource = (*PulseView)(nil)

func (c *Container) pulseView(g *group, schema int) (*PulseView, error) {
	ds, err := checkDataset(g, dsIVTime, dtypeFloat64, 3)
	if err != nil {
		return nil, err
	}
	v := &PulseView{c: c, group: g.name, ds: ds, legacy: schema == schemaLegacy}
	if v.legacy {
		if ds.shape[0] != 2 {
			return nil, structErr(g.name, "%s is %v, want [2 N L]", dsIVTime, ds.shape)
		}
		v.nb = ds.shape[1]
	} else {
		if ds.shape[1] != 2 {
			return nil, structErr(g.name, "%s is %v, want [N 2 L]", dsIVTime, ds.shape)
		}
		v.nb = ds.shape[0]
	}
	v.length = ds.shape[2]

	a, ok := g.attrs[attrDeltaT]
	if !ok {
		return nil, structErr(g.name, "missing attribute %s", attrDeltaT)
	}
	switch a.kind {
	case attrFloat:
		v.deltaT = a.f
	case attrInt:
		v.deltaT = float64(a.i)
	default:
		return nil, structErr(g.name, "attribute %s is not a number", attrDeltaT)
	}
	if math.IsNaN(v.deltaT) || math.IsInf(v.deltaT, 0) || v.deltaT < 0 {
		return nil, structErr(g.name, "attribute %s is %v", attrDeltaT, v.deltaT)
	}

	if v.valim, err = c.perPulse(g, dsValim, v.nb); err != nil {
		return nil, err
	}
	if v.legacy {
		v.offsets = make([]float64, v.nb)
	} else if v.offsets, err = c.perPulse(g, dsOffsets, v.nb); err != nil {
		return nil, err
	}
	return v, nil
}

// perPulse loads a rank 1 dataset holding one value per pulse.
func (c *Container) perPulse(g *group, name string, nb int) ([]float64, error) {
	d, err := checkDataset(g, name, dtypeFloat64, 1)
	if err != nil {
		return nil, err
	}
	if d.shape[0] != nb {
		return nil, structErr(g.name, "dataset %s has %d values for %d pulses", name, d.shape[0], nb)
	}
	return c.readFloats(g.name, d, 0)
}

func (v *PulseView) PulsesNb() int     { return v.nb }
func (v *PulseView) PulsesLength() int { return v.length }
func (v *PulseView) DeltaT() float64   { return v.deltaT }

func (v *PulseView) Valim() []float64 {
	return append([]float64(nil), v.valim...)
}

func (v *PulseView) Offsets() []float64 {
	return append([]float64(nil), v.offsets...)
}

// Pulse reads the samples of one channel of pulse i.
func (v *PulseView) Pulse(i int, c pulses.Channel) ([]float64, error) {
	if v.c.closed {
		return nil, ErrClosed
	}
	if i < 0 || i >= v.nb {
		return nil, fmt.Errorf("%w: pulse %d of %d", pulses.ErrRange, i, v.nb)
	}
	if c != pulses.Channel1 && c != pulses.Channel2 {
		return nil, fmt.Errorf("%w: channel %d", pulses.ErrRange, c)
	}
	row := 2*i + int(c)
	if v.legacy {
		row = int(c)*v.nb + i
	}
	if err := v.c.flushBuffer(); err != nil {
		return nil, err
	}
	b, err := v.c.readRow(v.group, v.ds, row)
	if err != nil {
		return nil, err
	}
	return decodeFloats(b), nil
}

// Load reads the whole block into an in-memory set, e.g. for transforms.
func (v *PulseView) Load() (*pulses.Set[float64], error) {
	set := pulses.NewTimeSet(pulses.BasisIV, v.nb, v.length, v.deltaT)
	for _, c := range []pulses.Channel{pulses.Channel1, pulses.Channel2} {
		rows := make([][]float64, v.nb)
		for i := range rows {
			s, err := v.Pulse(i, c)
			if err != nil {
				return nil, err
			}
			rows[i] = s
		}
		if err := set.SetChannel(c, rows); err != nil {
			return nil, err
		}
	}
	if err := set.SetValim(v.Valim()); err != nil {
		return nil, err
	}
	if err := set.SetOffsets(v.Offsets()); err != nil {
		return nil, err
	}
	return set, nil
}
