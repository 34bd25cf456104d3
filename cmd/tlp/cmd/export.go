package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/export"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <container> <name>",
	Short: "Export the TLP curve of a record",
	Long: `Write the TLP curve of a record to CSV, Parquet or XLSX. XLSX workbooks
carry one extra sheet per leakage sweep.

The format defaults to the extension of the output file.

Examples:
  tlp export bench.oef run1 -o run1.csv
  tlp export bench.oef run1 --format parquet -o run1.pq`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "",
		"csv, parquet or xlsx")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"output file")

	exportCmd.MarkFlagRequired("output")
}

func runExport(cmd *cobra.Command, args []string) error {
	name := exportFormat
	if name == "" {
		name = filepath.Ext(exportOutput)
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		return err
	}

	c, d, err := openRecord(args[0], args[1])
	if err != nil {
		return err
	}
	defer c.Close()

	f, err := os.Create(exportOutput)
	if err != nil {
		return err
	}
	if err := export.Write(f, d, format); err != nil {
		return errors.Join(err, f.Close(), os.Remove(exportOutput))
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Debug("record exported", zap.String("name", args[1]), zap.String("format", string(format)))
	fmt.Printf("Exported %s to %s (%s)\n", args[1], exportOutput, format)
	return nil
}
