package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/storage"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

var showJSON bool

// RecordDetail is the full content of a record, except its waveforms.
type RecordDetail struct {
	RecordSummary
	DeltaT   float64       `json:"delta_t,omitempty"`
	Valim    []float64     `json:"valim,omitempty"`
	Voltage  []float64     `json:"voltage"`
	Current  []float64     `json:"current"`
	LeakEvol []float64     `json:"leak_evol,omitempty"`
	LeakBias *float64      `json:"leak_voltage,omitempty"`
	IVLeak   []tlp.IVCurve `json:"iv_leak,omitempty"`
}

var showCmd = &cobra.Command{
	Use:   "show <container> <name>",
	Short: "Show one record",
	Long: `Show the metadata and TLP curve of a record.

Examples:
  tlp show bench.oef run1
  tlp show --json bench.oef run1`,
	Args: cobra.ExactArgs(2),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().BoolVar(&showJSON, "json", false,
		"output as JSON")
}

// openRecord opens a container read-only and reads one record from it.
// The container must be closed by the caller.
func openRecord(path, name string) (*storage.Container, *tlp.Droplet, error) {
	c, err := storage.Open(path, storage.ReadOnly, storage.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	d, err := c.Read(name)
	if err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, d, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	c, d, err := openRecord(args[0], args[1])
	if err != nil {
		return err
	}
	defer c.Close()

	detail := RecordDetail{
		RecordSummary: summarize(c, args[1], d, nil),
		Voltage:       d.TLPCurve().Voltage(),
		Current:       d.TLPCurve().Current(),
		LeakEvol:      d.LeakEvol(),
		IVLeak:        d.IVLeak(),
	}
	if d.HasTransientPulses() {
		detail.DeltaT = d.Pulses().DeltaT()
		detail.Valim = d.Pulses().Valim()
	}
	if v, ok := d.LeakVoltage(); ok {
		detail.LeakBias = &v
	}

	if showJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	}

	fmt.Printf("Record:    %s\n", detail.Name)
	fmt.Printf("Tester:    %s\n", detail.Tester)
	fmt.Printf("Device:    %s\n", detail.Device)
	fmt.Printf("Source:    %s\n", detail.Source)
	if detail.UUID != "" {
		fmt.Printf("UUID:      %s\n", detail.UUID)
	}
	fmt.Printf("Schema:    %d\n", detail.Schema)
	if d.HasTransientPulses() {
		fmt.Printf("Pulses:    %d x %d samples, dt %g s\n", detail.Pulses, d.Pulses().PulsesLength(), detail.DeltaT)
	} else {
		fmt.Printf("Pulses:    none\n")
	}
	fmt.Printf("Leak IVs:  %d\n", detail.LeakIVs)
	if detail.LeakBias != nil {
		fmt.Printf("Leak bias: %g V\n", *detail.LeakBias)
	}
	fmt.Printf("Evolution: %s\n\n", detail.Evolution)

	withEvol := d.HasLeakageEvolution()
	if withEvol {
		fmt.Printf("%5s %14s %14s %14s\n", "STEP", "VOLTAGE", "CURRENT", "LEAK")
	} else {
		fmt.Printf("%5s %14s %14s\n", "STEP", "VOLTAGE", "CURRENT")
	}
	for i := range detail.Voltage {
		fmt.Printf("%5d %14.6g %14.6g", i, detail.Voltage[i], detail.Current[i])
		if withEvol && i < len(detail.LeakEvol) {
			fmt.Printf(" %14.6g", detail.LeakEvol[i])
		}
		fmt.Println()
	}
	return nil
}
