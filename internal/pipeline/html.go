package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"recmerge/internal"
	"recmerge/internal/table"
)

// HTMLAdapter reads every <table> in a document. The first row of a table
// holds its column names; header case is kept as written.
type HTMLAdapter struct{}

func NewHTMLAdapter() *HTMLAdapter { return &HTMLAdapter{} }

func (a *HTMLAdapter) Kind() internal.SourceKind { return internal.SourceHTML }

func (a *HTMLAdapter) Parse(ctx context.Context, name string, content []byte, t *table.Table) (internal.SourceResult, error) {
	grids, err := parseHTMLTables(name, content)
	if err != nil {
		return internal.SourceResult{}, err
	}
	return applyGrids(ctx, t, grids)
}

func parseHTMLTables(name string, content []byte) ([]grid, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: parse html: %w", name, err)
	}

	tables := doc.Find("table")
	if tables.Length() == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoTable)
	}

	var out []grid
	tables.Each(func(i int, tbl *goquery.Selection) {
		// Rows of nested tables belong to those tables.
		rows := tbl.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
			return tr.Closest("table").IsSelection(tbl)
		})
		if rows.Length() == 0 {
			return
		}

		headers := []string{}
		headerCells := rows.First().ChildrenFiltered("th")
		if headerCells.Length() == 0 {
			headerCells = rows.First().ChildrenFiltered("td")
		}
		headerCells.Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, cell.Text())
		})
		if len(headers) == 0 {
			return
		}

		g := grid{name: fmt.Sprintf("%s table %d", name, i+1), headers: normalizeHeaders(headers, false)}
		rows.Slice(1, rows.Length()).Each(func(j int, row *goquery.Selection) {
			// A row may lead with a <th scope="row"> label; keep document order.
			cellSel := row.ChildrenFiltered("th, td")
			if row.ChildrenFiltered("td").Length() == 0 {
				return
			}
			cells := make([]string, 0, cellSel.Length())
			cellSel.Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, cell.Text())
			})
			g.addRow(j+2, cells)
		})
		out = append(out, g)
	})

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoHeader)
	}
	return out, nil
}
