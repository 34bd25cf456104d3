package tlp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyEvolution(t *testing.T) {
	assert.Equal(t, EvolutionAbsent, ClassifyEvolution(nil))
	assert.Equal(t, EvolutionAbsent, ClassifyEvolution([]float64{}))
	assert.Equal(t, EvolutionZero, ClassifyEvolution([]float64{0, 0}))
	assert.Equal(t, EvolutionPresent, ClassifyEvolution([]float64{0, -1e-12}))
	assert.Equal(t, "zero", EvolutionZero.String())
}

func TestPointEvolution(t *testing.T) {
	ivs := []IVCurve{
		{Voltage: []float64{0, 1, 2}, Current: []float64{0, 1e-9, 2e-9}},
		{Voltage: []float64{0, 1, 2}, Current: []float64{0, 3e-9, 5e-9}},
	}

	v, c, err := PointEvolution(ivs, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2}, v)
	assert.Equal(t, []float64{2e-9, 5e-9}, c)

	_, _, err = PointEvolution(ivs, 3)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSumVariation(t *testing.T) {
	ivs := []IVCurve{
		{Voltage: []float64{math.E, math.E}},
		{Voltage: []float64{math.E, math.E}},
		{Voltage: []float64{math.E * math.E, math.E}},
	}

	got, err := SumVariation(ivs)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.InDelta(t, 0, got[0], 1e-9)
	assert.InDelta(t, 0, got[1], 1e-9)
	// sums are 2, 2 and 3
	assert.InDelta(t, 50, got[2], 1e-9)

	got, err = SumVariation(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSumVariationZeroReference(t *testing.T) {
	tests := []struct {
		name string
		ref  IVCurve
	}{
		{"empty curve", IVCurve{}},
		{"unit voltages", IVCurve{Voltage: []float64{1, -1}, Current: []float64{0, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SumVariation([]IVCurve{tt.ref, {Voltage: []float64{math.E}}})
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Nil(t, got)
		})
	}
}
