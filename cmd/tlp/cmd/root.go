package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceTLP/internal/config"
	"github.com/OpenTraceLab/OpenTraceTLP/internal/logging"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/importers"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "tlp",
	Short: "TLP ESD tester data importer",
	Long: `Import the measurement files of Transmission Line Pulse testers into
an OEF container and inspect, export or analyse the stored records.

Examples:
  tlp testers                                       # List supported testers
  tlp import oryx run1.tsr -o bench.oef             # Import a measurement
  tlp list bench.oef                                # List stored records
  tlp export bench.oef run1 --format xlsx -o run1.xlsx`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
}

// setup loads the configuration and builds the logger for every command.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		c.Log.Level = "debug"
	}
	l, err := logging.New(c.Log.Level, c.Log.Format)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

func newRegistry() *importers.Registry {
	return importers.NewRegistry(logger, importers.WithBarthWindow(cfg.BarthWindow()))
}
