package pulses

import (
	"github.com/mjibson/go-dsp/fft"
)

// ToFreq computes the one-sided real FFT of every pulse and channel. The
// result keeps bins 0..L/2 and remembers L so that ToTime is exact.
func ToFreq(s *Set[float64]) *Set[complex128] {
	n := s.length
	m := 0
	if n > 0 {
		m = n/2 + 1
	}
	deltaF := 0.0
	if n > 0 && s.delta > 0 {
		deltaF = 1 / (s.delta * float64(n))
	}

	out := NewFreqSet(s.basis, s.nb, m, deltaF, n)
	copy(out.valim, s.valim)
	copy(out.offsets, s.offsets)
	if n == 0 {
		return out
	}
	for c := range s.data {
		for i, row := range s.data[c] {
			spectrum := fft.FFTReal(row)
			copy(out.data[c][i], spectrum[:m])
		}
	}
	return out
}

// ToTime rebuilds the time-domain pulses from a one-sided spectrum.
func ToTime(s *Set[complex128]) *Set[float64] {
	n := s.TimeLength()
	deltaT := 0.0
	if n > 0 && s.delta > 0 {
		deltaT = 1 / (float64(n) * s.delta)
	}

	out := NewTimeSet(s.basis, s.nb, n, deltaT)
	copy(out.valim, s.valim)
	copy(out.offsets, s.offsets)
	if n == 0 {
		return out
	}
	for c := range s.data {
		for i, row := range s.data[c] {
			copy(out.data[c][i], inverseReal(row, n))
		}
	}
	return out
}

// inverseReal expands a one-sided spectrum to its Hermitian full spectrum
// of length n and returns the real part of the inverse FFT. Bins missing
// from half are treated as zero.
func inverseReal(half []complex128, n int) []float64 {
	full := make([]complex128, n)
	for k := 0; k <= n/2 && k < len(half); k++ {
		full[k] = half[k]
	}
	// DC and Nyquist bins of a real signal are real.
	if len(half) > 0 {
		full[0] = complex(real(half[0]), 0)
	}
	if n%2 == 0 && n/2 < len(half) {
		full[n/2] = complex(real(half[n/2]), 0)
	}
	for k := n/2 + 1; k < n; k++ {
		if j := n - k; j < len(half) {
			full[k] = complex(real(half[j]), -imag(half[j]))
		}
	}

	inv := fft.IFFT(full)
	out := make([]float64, n)
	for k, v := range inv {
		out[k] = real(v)
	}
	return out
}
