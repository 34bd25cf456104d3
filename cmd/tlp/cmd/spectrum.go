package cmd

import (
	"fmt"
	"math/cmplx"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/pulses"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/storage"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

var (
	spectrumPulse int
	spectrumBasis string
	spectrumLimit int
)

var spectrumCmd = &cobra.Command{
	Use:   "spectrum <container> <name>",
	Short: "Print the spectrum of one transient pulse",
	Long: `Compute the one-sided FFT of a stored transient pulse and print the
magnitude of both channels for each frequency bin.

The waveforms can first be converted to incident/reflected waves or to
power waves with --basis.

Examples:
  tlp spectrum bench.oef run1 --pulse 3
  tlp spectrum bench.oef run1 --pulse 3 --basis incref --limit 20`,
	Args: cobra.ExactArgs(2),
	RunE: runSpectrum,
}

func init() {
	rootCmd.AddCommand(spectrumCmd)

	spectrumCmd.Flags().IntVarP(&spectrumPulse, "pulse", "p", 0,
		"pulse index")
	spectrumCmd.Flags().StringVar(&spectrumBasis, "basis", "iv",
		"iv, incref or ab")
	spectrumCmd.Flags().IntVar(&spectrumLimit, "limit", 0,
		"print at most this many bins (0 = all)")
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	c, d, err := openRecord(args[0], args[1])
	if err != nil {
		return err
	}
	defer c.Close()

	if !d.HasTransientPulses() {
		return fmt.Errorf("record %s has no transient pulses", args[1])
	}
	set, err := loadPulses(d.Pulses())
	if err != nil {
		return err
	}
	if spectrumPulse < 0 || spectrumPulse >= set.PulsesNb() {
		return fmt.Errorf("pulse %d out of range [0, %d)", spectrumPulse, set.PulsesNb())
	}
	if set, err = toBasis(set, spectrumBasis); err != nil {
		return err
	}

	freq := pulses.ToFreq(set)
	ch1, err := freq.Pulse(spectrumPulse, pulses.Channel1)
	if err != nil {
		return err
	}
	ch2, err := freq.Pulse(spectrumPulse, pulses.Channel2)
	if err != nil {
		return err
	}

	n1, n2 := freq.Basis().ChannelNames()
	fmt.Printf("Pulse %d of %s, valim %g V, df %g Hz\n",
		spectrumPulse, args[1], freq.Valim()[spectrumPulse], freq.DeltaF())
	fmt.Printf("%14s %14s %14s\n", "FREQ", "|"+n1+"|", "|"+n2+"|")
	bins := len(ch1)
	if spectrumLimit > 0 && spectrumLimit < bins {
		bins = spectrumLimit
	}
	for k := 0; k < bins; k++ {
		fmt.Printf("%14.6g %14.6g %14.6g\n", float64(k)*freq.DeltaF(), cmplx.Abs(ch1[k]), cmplx.Abs(ch2[k]))
	}
	return nil
}

// loadPulses materializes a pulse source as an in-memory set.
func loadPulses(src tlp.PulseSource) (*pulses.Set[float64], error) {
	switch p := src.(type) {
	case *pulses.Set[float64]:
		return p, nil
	case *storage.PulseView:
		return p.Load()
	}
	return nil, fmt.Errorf("unsupported pulse source %T", src)
}

func toBasis(set *pulses.Set[float64], name string) (*pulses.Set[float64], error) {
	switch strings.ToLower(name) {
	case "iv":
		return set, nil
	case "incref":
		return pulses.ToIncRef(set)
	case "ab":
		return pulses.ToAB(set)
	}
	return nil, fmt.Errorf("unknown basis %q (want iv, incref or ab)", name)
}
