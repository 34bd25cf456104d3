package pulses

import (
	"errors"
	"fmt"
)

// Sample is the element type of a pulse set. float64 selects the time
// domain, complex128 the frequency domain.
type Sample interface {
	float64 | complex128
}

// Domain tells whether samples are indexed by time or by frequency.
type Domain int

const (
	Time Domain = iota
	Frequency
)

func (d Domain) String() string {
	switch d {
	case Time:
		return "time"
	case Frequency:
		return "frequency"
	default:
		return fmt.Sprintf("Domain(%d)", int(d))
	}
}

// Basis identifies the physical meaning of the two channels.
type Basis int

const (
	// BasisIV stores voltage in channel 1 and current in channel 2.
	BasisIV Basis = iota
	// BasisIncRef stores incident and reflected voltage waves.
	BasisIncRef
	// BasisAB stores forward (a) and backward (b) power waves.
	BasisAB
)

func (b Basis) String() string {
	switch b {
	case BasisIV:
		return "voltage/current"
	case BasisIncRef:
		return "incident/reflected"
	case BasisAB:
		return "a/b"
	default:
		return fmt.Sprintf("Basis(%d)", int(b))
	}
}

// ChannelNames returns the names of the two channels for the basis.
func (b Basis) ChannelNames() (string, string) {
	switch b {
	case BasisIncRef:
		return "Incident", "Reflected"
	case BasisAB:
		return "A", "B"
	default:
		return "Voltage", "Current"
	}
}

// Channel selects one of the two channels of a pulse.
type Channel int

const (
	Channel1 Channel = 0
	Channel2 Channel = 1
)

// Aliases for the IV basis.
const (
	VoltageChannel = Channel1
	CurrentChannel = Channel2
)

var (
	// ErrShape reports an array whose shape does not match the set.
	ErrShape = errors.New("pulses: shape mismatch")
	// ErrBasis reports a conversion applied to the wrong basis.
	ErrBasis = errors.New("pulses: wrong basis")
	// ErrRange reports a pulse or channel index out of range.
	ErrRange = errors.New("pulses: index out of range")
)

// Set is a fixed-shape table of N pulses of L samples.
type Set[S Sample] struct {
	basis  Basis
	nb     int
	length int
	// delta is delta_t for time-domain sets and delta_f for
	// frequency-domain sets.
	delta float64
	// timeLength is the length of the time series a frequency-domain set
	// was computed from. Zero when unknown.
	timeLength int
	valim      []float64
	offsets    []float64
	data       [2][][]S
}

func newSet[S Sample](basis Basis, nb, length int, delta float64) *Set[S] {
	if nb < 0 || length < 0 {
		panic(fmt.Sprintf("pulses: negative set size %dx%d", nb, length))
	}
	s := &Set[S]{
		basis:   basis,
		nb:      nb,
		length:  length,
		delta:   delta,
		valim:   make([]float64, nb),
		offsets: make([]float64, nb),
	}
	for c := range s.data {
		rows := make([][]S, nb)
		for i := range rows {
			rows[i] = make([]S, length)
		}
		s.data[c] = rows
	}
	return s
}

// NewTimeSet allocates a zeroed time-domain set.
func NewTimeSet(basis Basis, nb, length int, deltaT float64) *Set[float64] {
	return newSet[float64](basis, nb, length, deltaT)
}

// NewFreqSet allocates a zeroed frequency-domain set. timeLength is the
// length of the time series the spectrum belongs to; pass 0 when unknown.
func NewFreqSet(basis Basis, nb, length int, deltaF float64, timeLength int) *Set[complex128] {
	s := newSet[complex128](basis, nb, length, deltaF)
	s.timeLength = timeLength
	return s
}

// Empty returns the "no transient data" set used when a measurement has a
// TLP curve of the given length but no waveforms.
func Empty(length int) *Set[float64] {
	return NewTimeSet(BasisIV, 0, length, 0)
}

// Domain reports the sample domain of the set.
func (s *Set[S]) Domain() Domain {
	var zero S
	if _, ok := any(zero).(complex128); ok {
		return Frequency
	}
	return Time
}

// Basis reports the channel basis of the set.
func (s *Set[S]) Basis() Basis { return s.basis }

// PulsesNb returns N.
func (s *Set[S]) PulsesNb() int { return s.nb }

// PulsesLength returns L.
func (s *Set[S]) PulsesLength() int { return s.length }

// IsEmpty reports whether the set holds no samples at all.
func (s *Set[S]) IsEmpty() bool { return s.nb == 0 || s.length == 0 }

// TimeLength returns the number of time samples the set represents. For a
// frequency-domain set built without that information it falls back to the
// even length 2*(L-1).
func (s *Set[S]) TimeLength() int {
	if s.Domain() == Time {
		return s.length
	}
	if s.timeLength > 0 {
		return s.timeLength
	}
	if s.length == 0 {
		return 0
	}
	return 2 * (s.length - 1)
}

// DeltaT returns the sample spacing in seconds. For a frequency-domain set
// it is the spacing of the corresponding time series.
func (s *Set[S]) DeltaT() float64 {
	if s.Domain() == Time {
		return s.delta
	}
	n := s.TimeLength()
	if n == 0 || s.delta == 0 {
		return 0
	}
	return 1 / (float64(n) * s.delta)
}

// DeltaF returns the frequency resolution in hertz.
func (s *Set[S]) DeltaF() float64 {
	if s.Domain() == Frequency {
		return s.delta
	}
	if s.length == 0 || s.delta == 0 {
		return 0
	}
	return 1 / (s.delta * float64(s.length))
}

// SetDelta replaces delta_t (time domain) or delta_f (frequency domain).
func (s *Set[S]) SetDelta(v float64) { s.delta = v }

// Valim returns a copy of the per-pulse supply voltages.
func (s *Set[S]) Valim() []float64 { return append([]float64(nil), s.valim...) }

// SetValim replaces the per-pulse supply voltages.
func (s *Set[S]) SetValim(v []float64) error {
	if len(v) != s.nb {
		return fmt.Errorf("%w: valim has %d values, set has %d pulses", ErrShape, len(v), s.nb)
	}
	copy(s.valim, v)
	return nil
}

// Offsets returns a copy of the per-pulse start-time offsets in seconds.
func (s *Set[S]) Offsets() []float64 { return append([]float64(nil), s.offsets...) }

// SetOffsets replaces the per-pulse start-time offsets.
func (s *Set[S]) SetOffsets(v []float64) error {
	if len(v) != s.nb {
		return fmt.Errorf("%w: offsets have %d values, set has %d pulses", ErrShape, len(v), s.nb)
	}
	copy(s.offsets, v)
	return nil
}

// Channel returns a copy of one channel as an N x L array.
func (s *Set[S]) Channel(c Channel) [][]S {
	if c != Channel1 && c != Channel2 {
		return nil
	}
	out := make([][]S, s.nb)
	for i, row := range s.data[c] {
		out[i] = append([]S(nil), row...)
	}
	return out
}

// SetChannel replaces one channel. data must be exactly N x L.
func (s *Set[S]) SetChannel(c Channel, data [][]S) error {
	if c != Channel1 && c != Channel2 {
		return fmt.Errorf("%w: channel %d", ErrRange, c)
	}
	if len(data) != s.nb {
		return fmt.Errorf("%w: %d pulses given, set has %d", ErrShape, len(data), s.nb)
	}
	for i, row := range data {
		if len(row) != s.length {
			return fmt.Errorf("%w: pulse %d has %d samples, set has %d", ErrShape, i, len(row), s.length)
		}
	}
	for i, row := range data {
		copy(s.data[c][i], row)
	}
	return nil
}

// Pulse returns a copy of channel c of pulse i.
func (s *Set[S]) Pulse(i int, c Channel) ([]S, error) {
	if i < 0 || i >= s.nb {
		return nil, fmt.Errorf("%w: pulse %d of %d", ErrRange, i, s.nb)
	}
	if c != Channel1 && c != Channel2 {
		return nil, fmt.Errorf("%w: channel %d", ErrRange, c)
	}
	return append([]S(nil), s.data[c][i]...), nil
}

// Voltage returns the voltage channel, or nil if the set is not in the IV basis.
func (s *Set[S]) Voltage() [][]S { return s.named(BasisIV, Channel1) }

// Current returns the current channel, or nil if the set is not in the IV basis.
func (s *Set[S]) Current() [][]S { return s.named(BasisIV, Channel2) }

// Incident returns the incident wave, or nil outside the incident/reflected basis.
func (s *Set[S]) Incident() [][]S { return s.named(BasisIncRef, Channel1) }

// Reflected returns the reflected wave, or nil outside the incident/reflected basis.
func (s *Set[S]) Reflected() [][]S { return s.named(BasisIncRef, Channel2) }

// A returns the forward power wave, or nil outside the a/b basis.
func (s *Set[S]) A() [][]S { return s.named(BasisAB, Channel1) }

// B returns the backward power wave, or nil outside the a/b basis.
func (s *Set[S]) B() [][]S { return s.named(BasisAB, Channel2) }

func (s *Set[S]) named(b Basis, c Channel) [][]S {
	if s.basis != b {
		return nil
	}
	return s.Channel(c)
}

// like allocates a set with the same shape and tags but a new basis.
func (s *Set[S]) like(basis Basis) *Set[S] {
	out := newSet[S](basis, s.nb, s.length, s.delta)
	out.timeLength = s.timeLength
	copy(out.valim, s.valim)
	copy(out.offsets, s.offsets)
	return out
}

func (s *Set[S]) String() string {
	return fmt.Sprintf("%d pulses x %d samples (%s, %s)", s.nb, s.length, s.Domain(), s.basis)
}
