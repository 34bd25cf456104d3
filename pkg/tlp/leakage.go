package tlp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// IVCurve is one DC leakage sweep.
type IVCurve struct {
	Voltage []float64
	Current []float64
}

// Len returns the number of sweep points.
func (c IVCurve) Len() int { return len(c.Voltage) }

func (c IVCurve) clone() IVCurve {
	return IVCurve{
		Voltage: append([]float64(nil), c.Voltage...),
		Current: append([]float64(nil), c.Current...),
	}
}

// EvolutionState distinguishes a missing leakage-evolution series from one
// that was measured and is all zero.
type EvolutionState int

const (
	EvolutionAbsent EvolutionState = iota
	EvolutionZero
	EvolutionPresent
)

func (s EvolutionState) String() string {
	switch s {
	case EvolutionAbsent:
		return "absent"
	case EvolutionZero:
		return "zero"
	case EvolutionPresent:
		return "present"
	default:
		return fmt.Sprintf("EvolutionState(%d)", int(s))
	}
}

// ClassifyEvolution reports whether a leakage-evolution series is absent
// (nil or empty), all zero, or carries data.
func ClassifyEvolution(evol []float64) EvolutionState {
	if len(evol) == 0 {
		return EvolutionAbsent
	}
	for _, v := range evol {
		if v != 0 {
			return EvolutionPresent
		}
	}
	return EvolutionZero
}

// PointEvolution returns the voltage and current of sample k of every
// leakage curve, in step order.
func PointEvolution(ivs []IVCurve, k int) (voltage, current []float64, err error) {
	voltage = make([]float64, len(ivs))
	current = make([]float64, len(ivs))
	for i, iv := range ivs {
		if k < 0 || k >= iv.Len() || k >= len(iv.Current) {
			return nil, nil, fmt.Errorf("%w: leakage curve %d has no point %d", ErrInvalid, i, k)
		}
		voltage[i] = iv.Voltage[k]
		current[i] = iv.Current[k]
	}
	return voltage, current, nil
}

// SumVariation returns, for every leakage curve, the variation in percent of
// sum(log(|v|+1e-60)) relative to the first curve. The first curve's sum
// must not be zero.
func SumVariation(ivs []IVCurve) ([]float64, error) {
	if len(ivs) == 0 {
		return nil, nil
	}
	sums := make([]float64, len(ivs))
	for i, iv := range ivs {
		logs := make([]float64, iv.Len())
		for k, v := range iv.Voltage {
			logs[k] = math.Log(math.Abs(v) + 1e-60)
		}
		sums[i] = floats.Sum(logs)
	}
	ref := sums[0]
	if ref == 0 {
		return nil, fmt.Errorf("%w: reference leakage curve sums to zero", ErrInvalid)
	}
	floats.AddConst(-ref, sums)
	floats.Scale(100/math.Abs(ref), sums)
	return sums, nil
}
