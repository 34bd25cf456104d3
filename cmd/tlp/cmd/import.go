package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/storage"
)

var (
	containerPath string
	recordName    string
	compression   string
)

var importCmd = &cobra.Command{
	Use:   "import <tester> <file>...",
	Short: "Import measurement files into a container",
	Long: `Decode the files written by a TLP tester and append one record per file
to an OEF container. The container is created if it does not exist.

Records are named after their source file unless --name is given, which
is only allowed with a single file.

Examples:
  tlp import oryx run1.tsr -o bench.oef
  tlp import serma dut.tlp --name dut-a -o bench.oef
  tlp import barth *.twf -o bench.oef --compression lz4`,
	Args: cobra.MinimumNArgs(2),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVarP(&containerPath, "output", "o", "",
		"container file")
	importCmd.Flags().StringVarP(&recordName, "name", "n", "",
		"record name (single file only)")
	importCmd.Flags().StringVar(&compression, "compression", "",
		"codec of new chunks (default from configuration)")

	importCmd.MarkFlagRequired("output")
}

func runImport(cmd *cobra.Command, args []string) error {
	files := args[1:]
	if recordName != "" && len(files) > 1 {
		return fmt.Errorf("--name needs a single file, got %d", len(files))
	}

	dec, err := newRegistry().Lookup(args[0])
	if err != nil {
		return err
	}

	codec, err := cfg.Compression()
	if compression != "" {
		codec, err = storage.ParseCompression(compression)
	}
	if err != nil {
		return err
	}

	c, err := openOrCreate(containerPath, codec)
	if err != nil {
		return err
	}

	var failed int
	for _, file := range files {
		raw, err := dec.Decode(file)
		if err != nil {
			logger.Error("import failed", zap.String("file", file), zap.Error(err))
			failed++
			continue
		}
		name, err := c.Append(recordName, raw)
		if err != nil {
			logger.Error("append failed", zap.String("file", file), zap.Error(err))
			failed++
			continue
		}
		logger.Info("record imported",
			zap.String("file", file),
			zap.String("name", name),
			zap.Strings("missing", raw.Missing))
		fmt.Printf("%s -> %s\n", file, name)
		for _, m := range raw.Missing {
			fmt.Printf("  no %s\n", m)
		}
	}

	if err := c.Close(); err != nil {
		return fmt.Errorf("failed to close container: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) could not be imported", failed, len(files))
	}
	return nil
}

// openOrCreate opens path for appending, creating it when absent.
func openOrCreate(path string, codec storage.Compression) (*storage.Container, error) {
	opts := []storage.Option{storage.WithCompression(codec), storage.WithLogger(logger)}
	c, err := storage.Open(path, storage.ReadWrite, opts...)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("creating container", zap.String("path", path))
		return storage.Create(path, opts...)
	}
	return c, err
}
