package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNothingToExport = errors.New("no records to export")

// ExportCSV writes the sorted table to path and returns the number of records
// written. An empty table returns ErrNothingToExport and leaves path alone.
// The file is written next to path and renamed into place, so a failed export
// never leaves a partial file behind.
func (t *Table) ExportCSV(path string) (int, error) {
	if t.Len() == 0 {
		return 0, ErrNothingToExport
	}
	header, rows := t.Rows()
	if err := WriteCSVFile(path, header, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// WriteCSVFile atomically writes header and rows to path as CSV.
func WriteCSVFile(path string, header []string, rows [][]string) error {
	err := WriteFileAtomic(path, func(f *os.File) error {
		return writeCSV(f, header, rows)
	})
	if err != nil {
		return fmt.Errorf("export csv %s: %w", path, err)
	}
	return nil
}

func writeCSV(f *os.File, header []string, rows [][]string) error {
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

// WriteFileAtomic runs write against a temp file in path's directory and
// renames it over path once write and close both succeed.
func WriteFileAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
