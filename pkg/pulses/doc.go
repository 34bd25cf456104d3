// Package pulses holds the transient waveforms captured during a TLP
// measurement.
//
// A Set stores N pulses of L samples each. Every pulse carries two
// correlated channels (voltage/current, incident/reflected or a/b power
// waves), a supply-voltage tag and a start-time offset. The sample type
// selects the domain: Set[float64] is a time-domain set with a uniform
// delta_t, Set[complex128] is a frequency-domain set with a uniform delta_f.
//
// # Conversions
//
// Domain and basis conversions are free functions so that any combination
// of domain and basis can be converted without a type per combination:
//
//	freq := pulses.ToFreq(iv)          // real FFT of every pulse
//	back := pulses.ToTime(freq)        // inverse real FFT, exact delta_t
//	incref, err := pulses.ToIncRef(iv) // Inc=(V+50I)/2, Ref=(V-50I)/2
//	iv2, err := pulses.ToIV(incref)    // V=Inc+Ref, I=(Inc-Ref)/50
//
// All conversions are exact inverses of one another up to floating-point
// precision.
//
// # Empty sets
//
// A set with zero pulses or zero samples is valid and means that no
// transient data is available for a measurement.
package pulses
