package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/storage"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

var outputJSON bool

// RecordSummary is one line of the list output.
type RecordSummary struct {
	Name      string `json:"name"`
	UUID      string `json:"uuid,omitempty"`
	Schema    int    `json:"schema"`
	Tester    string `json:"tester"`
	Device    string `json:"device"`
	Source    string `json:"source"`
	Steps     int    `json:"steps"`
	Pulses    int    `json:"pulses"`
	LeakIVs   int    `json:"leak_ivs"`
	Evolution string `json:"leak_evolution"`
	Error     string `json:"error,omitempty"`
}

var listCmd = &cobra.Command{
	Use:   "list <container>",
	Short: "List the records of a container",
	Long: `List every record of an OEF container in insertion order.

Records that cannot be decoded are listed with their error; the others
are still shown.

Examples:
  tlp list bench.oef
  tlp list --json bench.oef`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVar(&outputJSON, "json", false,
		"output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := storage.Open(args[0], storage.ReadOnly, storage.WithLogger(logger))
	if err != nil {
		return err
	}
	defer c.Close()

	var records []RecordSummary
	err = c.Walk(func(name string, d *tlp.Droplet, err error) error {
		records = append(records, summarize(c, name, d, err))
		return nil
	})
	if err != nil {
		return err
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	fmt.Printf("%s: %d record(s), %s\n", c.Path(), c.Len(), c.Compression())
	if len(records) == 0 {
		return nil
	}
	fmt.Printf("%-20s %-6s %-16s %6s %6s %8s %-8s\n", "NAME", "TESTER", "DEVICE", "STEPS", "PULSES", "LEAK IVS", "EVOL")
	for _, r := range records {
		if r.Error != "" {
			fmt.Printf("%-20s error: %s\n", r.Name, r.Error)
			continue
		}
		fmt.Printf("%-20s %-6s %-16s %6d %6d %8d %-8s\n",
			r.Name, r.Tester, r.Device, r.Steps, r.Pulses, r.LeakIVs, r.Evolution)
		if verbose {
			fmt.Printf("  uuid %s, schema %d, source %s\n", r.UUID, r.Schema, r.Source)
		}
	}
	return nil
}

func summarize(c *storage.Container, name string, d *tlp.Droplet, err error) RecordSummary {
	s := RecordSummary{Name: name}
	if info, ierr := c.Info(name); ierr == nil {
		s.Schema = info.Schema
		if info.UUID != uuid.Nil {
			s.UUID = info.UUID.String()
		}
	}
	if err != nil {
		s.Error = err.Error()
		return s
	}
	s.Tester = d.TesterName()
	s.Device = d.DeviceName()
	s.Source = d.OriginalFilePath()
	s.Steps = d.TLPCurve().Len()
	if d.HasTransientPulses() {
		s.Pulses = d.Pulses().PulsesNb()
	}
	s.LeakIVs = len(d.IVLeak())
	s.Evolution = d.LeakEvolState().String()
	return s
}
