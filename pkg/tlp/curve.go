// Package tlp models one TLP measurement: the reduced stress curve, the
// optional leakage data and the transient pulses, bundled as a Droplet.
package tlp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalid is wrapped by every validation failure of this package.
var ErrInvalid = errors.New("tlp: invalid measurement")

// Curve is the reduced TLP curve, one (voltage, current) point per stress
// step. It is read-only once built.
type Curve struct {
	voltage []float64
	current []float64
}

// NewCurve validates and copies the two arrays.
func NewCurve(voltage, current []float64) (Curve, error) {
	if len(voltage) != len(current) {
		return Curve{}, fmt.Errorf("%w: tlp curve has %d voltages and %d currents",
			ErrInvalid, len(voltage), len(current))
	}
	if i, ok := firstNonFinite(voltage); ok {
		return Curve{}, fmt.Errorf("%w: tlp curve voltage %d is %v", ErrInvalid, i, voltage[i])
	}
	if i, ok := firstNonFinite(current); ok {
		return Curve{}, fmt.Errorf("%w: tlp curve current %d is %v", ErrInvalid, i, current[i])
	}
	return Curve{
		voltage: append([]float64(nil), voltage...),
		current: append([]float64(nil), current...),
	}, nil
}

// Len returns the number of stress steps.
func (c Curve) Len() int { return len(c.voltage) }

// Voltage returns a copy of the DUT voltages.
func (c Curve) Voltage() []float64 { return append([]float64(nil), c.voltage...) }

// Current returns a copy of the DUT currents.
func (c Curve) Current() []float64 { return append([]float64(nil), c.current...) }

// Point returns step i.
func (c Curve) Point(i int) (v, cur float64) { return c.voltage[i], c.current[i] }

func firstNonFinite(v []float64) (int, bool) {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return i, true
		}
	}
	return 0, false
}
