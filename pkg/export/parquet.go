package export

import (
	"fmt"
	"io"

	parquet "github.com/parquet-go/parquet-go"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

// WriteParquet writes the TLP curve of d as a zstd compressed Parquet file
// with columns step, voltage, current and an optional leak_evol.
func WriteParquet(w io.Writer, d *tlp.Droplet) error {
	pw := parquet.NewGenericWriter[point](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(points(d)); err != nil {
		_ = pw.Close()
		return fmt.Errorf("export: parquet: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("export: parquet: %w", err)
	}
	return nil
}
