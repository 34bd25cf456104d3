package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/tlp"
)

const curveSheet = "TLP"

// LeakSheet names the sheet holding leakage sweep k.
func LeakSheet(k int) string {
	return fmt.Sprintf("Leak %d", k)
}

// WriteXLSX writes a workbook with the TLP curve on the first sheet and one
// sheet per leakage sweep.
func WriteXLSX(w io.Writer, d *tlp.Droplet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", curveSheet); err != nil {
		return fmt.Errorf("export: xlsx: %w", err)
	}
	if err := writeCurveSheet(f, d); err != nil {
		return fmt.Errorf("export: xlsx: %w", err)
	}
	for k, iv := range d.IVLeak() {
		if err := writeLeakSheet(f, LeakSheet(k), iv); err != nil {
			return fmt.Errorf("export: xlsx: %w", err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: xlsx: %w", err)
	}
	return nil
}

func writeCurveSheet(f *excelize.File, d *tlp.Droplet) error {
	h := header(d)
	row := make([]interface{}, len(h))
	for i, s := range h {
		row[i] = s
	}
	if err := f.SetSheetRow(curveSheet, "A1", &row); err != nil {
		return err
	}
	for i, p := range points(d) {
		row := []interface{}{p.Step, p.Voltage, p.Current}
		if p.LeakEvol != nil {
			row = append(row, *p.LeakEvol)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(curveSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeLeakSheet(f *excelize.File, name string, iv tlp.IVCurve) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	if err := f.SetSheetRow(name, "A1", &[]interface{}{"voltage", "current"}); err != nil {
		return err
	}
	for i := 0; i < iv.Len(); i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &[]interface{}{iv.Voltage[i], iv.Current[i]}); err != nil {
			return err
		}
	}
	return nil
}
