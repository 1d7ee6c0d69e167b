package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"recmerge/internal/table"
)

func field(t *testing.T, tbl *table.Table, id, name string) string {
	t.Helper()
	r, err := tbl.Record(id)
	if err != nil {
		t.Fatal(err)
	}
	v, _ := r.Field(name)
	return v
}

func TestParseCSVUppercasesHeaders(t *testing.T) {
	g, err := parseCSV("people.csv", []byte("\xef\xbb\xbfid, Name \n1,\"Alice\"\n"), "utf-8")
	if err != nil {
		t.Fatal(err)
	}
	if len(g.headers) != 2 || g.headers[0] != "ID" || g.headers[1] != "NAME" {
		t.Fatalf("headers=%q", g.headers)
	}
	if len(g.rows) != 1 || g.rowNos[0] != 2 {
		t.Fatalf("rows=%q rowNos=%v", g.rows, g.rowNos)
	}
}

func TestParseCSVEmptyFile(t *testing.T) {
	_, err := parseCSV("empty.csv", nil, "")
	if !errors.Is(err, ErrNoHeader) {
		t.Fatalf("err=%v", err)
	}
}

func TestParseCSVWindows1251(t *testing.T) {
	// "ID,ИМЯ\n1,Иван\n" in cp1251
	blob := []byte{'I', 'D', ',', 0xc8, 0xcc, 0xdf, '\n', '1', ',', 0xc8, 0xe2, 0xe0, 0xed, '\n'}
	tbl := table.New("ID", "")
	if _, err := NewCSVAdapter("windows-1251").Parse(context.Background(), "legacy.csv", blob, tbl); err != nil {
		t.Fatal(err)
	}
	if got := field(t, tbl, "1", "ИМЯ"); got != "Иван" {
		t.Fatalf("got %q", got)
	}
}

func TestParseCSVUnknownEncoding(t *testing.T) {
	if _, err := parseCSV("x.csv", []byte("ID\n1\n"), "ebcdic"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCSVShortRowIsAdmitted(t *testing.T) {
	tbl := table.New("ID", "")
	res, err := NewCSVAdapter("").Parse(context.Background(), "short.csv", []byte("ID,NAME,PHONE\n1,Alice\n2,Bob,555,extra\n\n"), tbl)
	if err != nil {
		t.Fatal(err)
	}
	if res.Rows != 2 || res.Inserted != 2 || len(res.Issues) != 2 {
		t.Fatalf("res=%+v", res)
	}
	if res.Issues[0].RowNo != 2 || res.Issues[0].Cells != 2 {
		t.Fatalf("issue=%+v", res.Issues[0])
	}
	r, _ := tbl.Record("1")
	if _, ok := r.Field("PHONE"); ok {
		t.Fatal("PHONE should be absent")
	}
	if got := field(t, tbl, "2", "PHONE"); got != "555" {
		t.Fatalf("got %q", got)
	}
}

func TestParseHTMLTables(t *testing.T) {
	html := `<table><tr><th> ID </th><th>Phone&nbsp;</th></tr><tr><td>"2"</td><td>555&nbsp;1212</td></tr></table>
<table><tr><td>ID</td><td>CITY</td></tr><tr><td>9</td><td>Oslo</td></tr></table>`
	grids, err := parseHTMLTables("page.html", []byte(html))
	if err != nil {
		t.Fatal(err)
	}
	if len(grids) != 2 {
		t.Fatalf("len=%d", len(grids))
	}
	if grids[0].headers[0] != "ID" || grids[0].headers[1] != "Phone" {
		t.Fatalf("headers=%q", grids[0].headers)
	}
	if grids[1].headers[1] != "CITY" || len(grids[1].rows) != 1 {
		t.Fatalf("second grid=%+v", grids[1])
	}

	tbl := table.New("ID", "")
	if _, err := applyGrids(context.Background(), tbl, grids); err != nil {
		t.Fatal(err)
	}
	if got := field(t, tbl, "2", "Phone"); got != "5551212" {
		t.Fatalf("got %q", got)
	}
}

func TestParseHTMLNestedTableRowsStayInner(t *testing.T) {
	html := `<table>
<tr><th>ID</th><th>NOTES</th></tr>
<tr><td>1</td><td><table><tr><th>ID</th><th>CITY</th></tr><tr><td>7</td><td>Oslo</td></tr></table></td></tr>
</table>`
	grids, err := parseHTMLTables("nested.html", []byte(html))
	if err != nil {
		t.Fatal(err)
	}
	if len(grids) != 2 {
		t.Fatalf("len=%d", len(grids))
	}
	if len(grids[0].rows) != 1 || grids[0].rows[0][0] != "1" {
		t.Fatalf("outer rows=%q", grids[0].rows)
	}
	if len(grids[1].rows) != 1 || grids[1].rows[0][1] != "Oslo" {
		t.Fatalf("inner rows=%q", grids[1].rows)
	}
}

func TestParseHTMLRowHeaderCell(t *testing.T) {
	html := `<table>
<tr><th>ID</th><th>NAME</th></tr>
<tr><th scope="row">1</th><td>Alice</td></tr>
</table>`
	grids, err := parseHTMLTables("rows.html", []byte(html))
	if err != nil {
		t.Fatal(err)
	}
	tbl := table.New("ID", "")
	if _, err := applyGrids(context.Background(), tbl, grids); err != nil {
		t.Fatal(err)
	}
	if got := field(t, tbl, "1", "NAME"); got != "Alice" {
		t.Fatalf("got %q", got)
	}
}

func TestParseHTMLWithoutTable(t *testing.T) {
	_, err := parseHTMLTables("plain.html", []byte("<p>nothing here</p>"))
	if !errors.Is(err, ErrNoTable) {
		t.Fatalf("err=%v", err)
	}
}

func mkXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	blob := mkXLSX(t, [][]any{
		{"ID", "NAME", "PHONE"},
		{"1", "Alice"},
		{"2", "Bob", "555"},
	})
	grids, err := parseXLSX("book.xlsx", blob)
	if err != nil {
		t.Fatal(err)
	}
	if len(grids) != 1 || len(grids[0].rows) != 2 {
		t.Fatalf("grids=%+v", grids)
	}
	if grids[0].rowNos[0] != 2 {
		t.Fatalf("rowNos=%v", grids[0].rowNos)
	}

	tbl := table.New("ID", "")
	res, err := applyGrids(context.Background(), tbl, grids)
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 2 || len(res.Issues) != 0 {
		t.Fatalf("res=%+v", res)
	}
}

func TestParseEmail(t *testing.T) {
	blob, err := os.ReadFile(filepath.Join("testdata", "directory.eml"))
	if err != nil {
		t.Fatal(err)
	}
	tbl := table.New("ID", "")
	res, err := NewEmailAdapter("").Parse(context.Background(), "directory.eml", blob, tbl)
	if err != nil {
		t.Fatal(err)
	}
	if res.Grids != 2 || res.Rows != 4 || res.Inserted != 3 || res.Merged != 1 {
		t.Fatalf("res=%+v", res)
	}
	if got := field(t, tbl, "1", "OFFICE"); got != "Oslo" {
		t.Fatalf("office=%q", got)
	}
	if got := field(t, tbl, "1", "TITLE"); got != "Engineer" {
		t.Fatalf("title=%q", got)
	}
}

func TestAdapterFor(t *testing.T) {
	cases := map[string]string{
		"a.csv":   "csv",
		"B.HTML":  "html",
		"c.htm":   "html",
		"d.xlsx":  "xlsx",
		"e.eml":   "eml",
		"f.txt":   "",
		"noext":   "",
		"g.csv.b": "",
	}
	for path, want := range cases {
		a := AdapterFor(path, "")
		got := ""
		if a != nil {
			got = string(a.Kind())
		}
		if got != want {
			t.Fatalf("%s: got %q want %q", path, got, want)
		}
	}
}

func TestApplyGridCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := grid{name: "g", headers: []string{"ID"}}
	g.addRow(2, []string{"1"})
	if _, err := applyGrid(ctx, table.New("ID", ""), g); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}
