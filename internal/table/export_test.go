package table

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCSVEmptyTableLeavesFileAlone(t *testing.T) {
	out := filepath.Join(t.TempDir(), "combined.csv")
	require.NoError(t, os.WriteFile(out, []byte("keep me\n"), 0o644))

	n, err := New("ID", "").ExportCSV(out)
	assert.True(t, errors.Is(err, ErrNothingToExport))
	assert.Zero(t, n)

	blob, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "keep me\n", string(blob))

	missing := filepath.Join(t.TempDir(), "never.csv")
	_, _ = New("ID", "").ExportCSV(missing)
	_, err = os.Stat(missing)
	assert.True(t, os.IsNotExist(err))
}

func TestExportCSVMergedSources(t *testing.T) {
	tbl := New("ID", "")
	tbl.UpdateColumns([]string{"ID", "NAME"})
	tbl.Upsert(rec("ID", "1", "NAME", "Alice"))
	tbl.Upsert(rec("ID", "2", "NAME", "Bob"))
	tbl.UpdateColumns([]string{"ID", "PHONE"})
	tbl.Upsert(rec("ID", "2", "PHONE", "555-1212"))
	tbl.Upsert(rec("ID", "3", "PHONE", "Carol"))

	out := filepath.Join(t.TempDir(), "combined.csv")
	n, err := tbl.ExportCSV(out)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	blob, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID,NAME,PHONE\n1,Alice,\n2,Bob,555-1212\n3,,Carol\n", string(blob))
}

func TestExportCSVIsRepeatable(t *testing.T) {
	tbl := New("ID", "N/A")
	tbl.UpdateColumns([]string{"NAME", "ID", "CITY"})
	for i := 20; i > 0; i-- {
		tbl.Upsert(rec("ID", strconv.Itoa(i), "NAME", "n"+strconv.Itoa(i)))
	}
	dir := t.TempDir()
	first := filepath.Join(dir, "a.csv")
	second := filepath.Join(dir, "b.csv")

	_, err := tbl.ExportCSV(first)
	require.NoError(t, err)
	_, err = tbl.ExportCSV(second)
	require.NoError(t, err)

	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	assert.Equal(t, string(a), string(b))

	lines := strings.Split(strings.TrimSpace(string(a)), "\n")
	require.Len(t, lines, 21)
	assert.Equal(t, "ID,NAME,CITY", lines[0])
	assert.Equal(t, "1,n1,N/A", lines[1])
	assert.Equal(t, "10,n10,N/A", lines[2])
}

func TestExportCSVQuotesDelimiters(t *testing.T) {
	tbl := New("ID", "")
	tbl.UpdateColumns([]string{"ID", "ADDRESS"})
	tbl.Upsert(rec("ID", "1", "ADDRESS", "1 Main St, Springfield"))

	out := filepath.Join(t.TempDir(), "out.csv")
	_, err := tbl.ExportCSV(out)
	require.NoError(t, err)

	blob, _ := os.ReadFile(out)
	assert.Equal(t, "ID,ADDRESS\n1,\"1 Main St, Springfield\"\n", string(blob))
}

func TestExportCSVFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "combined.csv")
	require.NoError(t, os.WriteFile(out, []byte("old\n"), 0o644))

	err := WriteFileAtomic(out, func(f *os.File) error {
		_, _ = f.WriteString("partial")
		return errors.New("disk full")
	})
	require.Error(t, err)

	blob, _ := os.ReadFile(out)
	assert.Equal(t, "old\n", string(blob))

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}
