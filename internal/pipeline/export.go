package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"recmerge/internal/table"
)

// ExportTable writes t to outputPath as XLSX when the extension is .xlsx and
// as CSV otherwise.
func ExportTable(t *table.Table, outputPath string) (int, error) {
	if strings.EqualFold(filepath.Ext(outputPath), ".xlsx") {
		return ExportTableToXLSX(t, outputPath)
	}
	return t.ExportCSV(outputPath)
}

// ExportRows writes already rendered rows, such as a stored snapshot, picking
// the format from the extension the same way ExportTable does.
func ExportRows(header []string, rows [][]string, outputPath string) error {
	if strings.EqualFold(filepath.Ext(outputPath), ".xlsx") {
		return WriteRowsToXLSX(header, rows, outputPath)
	}
	return table.WriteCSVFile(outputPath, header, rows)
}

func ExportTableToXLSX(t *table.Table, outputPath string) (int, error) {
	if t.Len() == 0 {
		return 0, table.ErrNothingToExport
	}
	header, rows := t.Rows()
	if err := WriteRowsToXLSX(header, rows, outputPath); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// WriteRowsToXLSX writes a header and rows to the first sheet of a new
// workbook. Every cell is written as text.
func WriteRowsToXLSX(header []string, rows [][]string, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	set := func(r int, values []string) error {
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	if err := set(1, header); err != nil {
		return fmt.Errorf("export xlsx %s: %w", outputPath, err)
	}
	for i, row := range rows {
		if err := set(i+2, row); err != nil {
			return fmt.Errorf("export xlsx %s: %w", outputPath, err)
		}
	}

	err := table.WriteFileAtomic(outputPath, func(fh *os.File) error {
		return f.Write(fh)
	})
	if err != nil {
		return fmt.Errorf("export xlsx %s: %w", outputPath, err)
	}
	return nil
}
