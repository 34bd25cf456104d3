// Package importers decodes the files written by TLP testers into
// tlp.RawData.
//
// Each supported tester has a Decoder:
//
//	Oryx   *.tsr  result table, .ctr leakage sweeps, .wfm waveforms
//	SERMA  *.csv  versioned result block, WFM/ or transients archive
//	HPPI   *.csv  result block, wfm/ or transients.zip
//	HANWA  *.tcf  configuration, Result/*.sbd curve, Leak/*.tld sweeps
//	LAAS   *.mes  single text file with curve, pulses and sweeps
//	Barth  *.twf  voltage and current waveform matrices
//
// Decoders are collected in a Registry built by NewRegistry:
//
//	reg := importers.NewRegistry(log)
//	dec, err := reg.Lookup("oryx")
//	raw, err := dec.Decode("/data/run1.tsr")
//
// # Failure semantics
//
// Only the primary curve file can fail a decode, with a *FormatError.
// Paired data that disagree (voltage vs current waveform counts, leakage
// sweep count vs stress steps) fail with a *ConsistencyError. Waveforms or
// leakage sweeps that are absent or unreadable are logged at warn level and
// listed in RawData.Missing; the decode still succeeds with an empty pulse
// set.
//
// # Waveform stores
//
// Waveform and leakage members may be loose files in a directory, a ZIP, or
// a TAR optionally compressed with gzip. Candidates are probed in a fixed
// order per tester and archives are recognized by signature, not by file
// extension. Members are ordered by the number embedded in their name, so
// that 9 < 10 < 90. Every archive opened by a decoder is closed before
// Decode returns.
package importers
