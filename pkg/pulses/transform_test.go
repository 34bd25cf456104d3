package pulses

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// squarePulse builds a set with a rectangular voltage pulse and a current
// proportional to it.
func squarePulse(t *testing.T, nb, length int) *Set[float64] {
	t.Helper()
	s := NewTimeSet(BasisIV, nb, length, 1e-9)
	v := make([][]float64, nb)
	c := make([][]float64, nb)
	valim := make([]float64, nb)
	offsets := make([]float64, nb)
	for i := range v {
		v[i] = make([]float64, length)
		c[i] = make([]float64, length)
		for k := length / 4; k < 3*length/4; k++ {
			v[i][k] = float64(10 * (i + 1))
			c[i][k] = float64(i+1) * 0.1
		}
		// a small ripple so no two samples are identical
		for k := range v[i] {
			v[i][k] += 0.01 * math.Sin(float64(k))
		}
		valim[i] = float64(10 * (i + 1))
		offsets[i] = -2e-9 * float64(i)
	}
	require.NoError(t, s.SetChannel(VoltageChannel, v))
	require.NoError(t, s.SetChannel(CurrentChannel, c))
	require.NoError(t, s.SetValim(valim))
	require.NoError(t, s.SetOffsets(offsets))
	return s
}

func assertSameSet(t *testing.T, want, got *Set[float64], tol float64) {
	t.Helper()
	require.Equal(t, want.PulsesNb(), got.PulsesNb())
	require.Equal(t, want.PulsesLength(), got.PulsesLength())
	assert.InDelta(t, want.DeltaT(), got.DeltaT(), 1e-21)
	assert.Equal(t, want.Valim(), got.Valim())
	assert.Equal(t, want.Offsets(), got.Offsets())
	for _, c := range []Channel{Channel1, Channel2} {
		w, g := want.Channel(c), got.Channel(c)
		for i := range w {
			assert.True(t, floats.EqualApprox(w[i], g[i], tol), "channel %d pulse %d", c, i)
		}
	}
}

func TestFreqRoundTrip(t *testing.T) {
	for _, length := range []int{1, 2, 7, 8, 10, 64, 101} {
		s := squarePulse(t, 3, length)

		f := ToFreq(s)
		assert.Equal(t, Frequency, f.Domain())
		assert.Equal(t, length/2+1, f.PulsesLength())
		assert.Equal(t, length, f.TimeLength())
		assert.InDelta(t, 1/(1e-9*float64(length)), f.DeltaF(), 1e-3)

		back := ToTime(f)
		assertSameSet(t, s, back, 1e-9)
	}
}

func TestToFreqDCBin(t *testing.T) {
	s := NewTimeSet(BasisIV, 1, 4, 1)
	require.NoError(t, s.SetChannel(VoltageChannel, [][]float64{{1, 1, 1, 1}}))

	f := ToFreq(s)
	bins, err := f.Pulse(0, VoltageChannel)
	require.NoError(t, err)
	require.Len(t, bins, 3)
	assert.InDelta(t, 4, real(bins[0]), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(bins[1]), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(bins[2]), 1e-12)
}

func TestToTimeWithoutTimeLength(t *testing.T) {
	s := squarePulse(t, 1, 16)
	f := ToFreq(s)

	stripped := NewFreqSet(f.Basis(), f.PulsesNb(), f.PulsesLength(), f.DeltaF(), 0)
	require.NoError(t, stripped.SetChannel(Channel1, f.Channel(Channel1)))
	require.NoError(t, stripped.SetChannel(Channel2, f.Channel(Channel2)))
	require.NoError(t, stripped.SetValim(f.Valim()))
	require.NoError(t, stripped.SetOffsets(f.Offsets()))

	assert.Equal(t, 16, stripped.TimeLength())
	assertSameSet(t, s, ToTime(stripped), 1e-9)
}

func TestIncRefRoundTrip(t *testing.T) {
	s := squarePulse(t, 2, 32)

	ir, err := ToIncRef(s)
	require.NoError(t, err)
	assert.Equal(t, BasisIncRef, ir.Basis())

	inc := ir.Incident()
	ref := ir.Reflected()
	v := s.Voltage()
	c := s.Current()
	for i := range inc {
		for k := range inc[i] {
			assert.InDelta(t, (v[i][k]+50*c[i][k])/2, inc[i][k], 1e-12)
			assert.InDelta(t, v[i][k], inc[i][k]+ref[i][k], 1e-12)
		}
	}

	iv, err := ToIV(ir)
	require.NoError(t, err)
	assertSameSet(t, s, iv, 1e-9)
}

func TestIncRefFrequencyDomain(t *testing.T) {
	s := squarePulse(t, 2, 20)

	viaFreq, err := ToIncRef(ToFreq(s))
	require.NoError(t, err)
	viaTime, err := ToIncRef(s)
	require.NoError(t, err)

	assertSameSet(t, viaTime, ToTime(viaFreq), 1e-9)
}

func TestABRoundTrip(t *testing.T) {
	s := squarePulse(t, 2, 16)

	ab, err := ToAB(s)
	require.NoError(t, err)
	a := ab.A()
	v := s.Voltage()
	c := s.Current()
	assert.InDelta(t, (v[1][8]+50*c[1][8])/(2*math.Sqrt(50)), a[1][8], 1e-12)

	iv, err := FromAB(ab)
	require.NoError(t, err)
	assertSameSet(t, s, iv, 1e-9)
}

func TestWrongBasis(t *testing.T) {
	s := squarePulse(t, 1, 4)

	_, err := ToIV(s)
	assert.ErrorIs(t, err, ErrBasis)
	_, err = FromAB(s)
	assert.ErrorIs(t, err, ErrBasis)

	ir, err := ToIncRef(s)
	require.NoError(t, err)
	_, err = ToIncRef(ir)
	assert.ErrorIs(t, err, ErrBasis)
	_, err = ToAB(ir)
	assert.ErrorIs(t, err, ErrBasis)
}
