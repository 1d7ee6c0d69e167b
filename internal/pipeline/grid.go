package pipeline

import (
	"context"
	"fmt"
	"strings"

	"recmerge/internal"
	"recmerge/internal/table"
	"recmerge/internal/util"
)

// contextCheckInterval is how often, in rows, a grid checks for cancellation.
const contextCheckInterval = 100

// grid is one header row plus the data rows under it, as extracted from a
// single CSV file, HTML table or spreadsheet.
type grid struct {
	name    string
	headers []string
	rows    [][]string
	// rowNos holds the 1-based source row number of each entry in rows.
	rowNos []int
}

func (g *grid) addRow(rowNo int, cells []string) {
	g.rows = append(g.rows, cells)
	g.rowNos = append(g.rowNos, rowNo)
}

func normalizeHeaders(raw []string, upper bool) []string {
	out := util.NormalizeFields(raw)
	if upper {
		for i := range out {
			out[i] = strings.ToUpper(out[i])
		}
	}
	return out
}

// applyGrid registers the grid's columns with t and merges every non-blank
// row into it. Rows with fewer cells than headers are merged with the cells
// they have and reported.
func applyGrid(ctx context.Context, t *table.Table, g grid) (internal.SourceResult, error) {
	res := internal.SourceResult{Grids: 1}
	t.UpdateColumns(g.headers)

	for i, cells := range g.rows {
		if i%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return res, fmt.Errorf("%s: cancelled at row %d: %w", g.name, g.rowNos[i], err)
			}
		}
		if util.IsBlank(cells) {
			continue
		}
		res.Rows++

		switch {
		case len(cells) < len(g.headers):
			res.Issues = append(res.Issues, internal.RowIssue{
				Grid: g.name, RowNo: g.rowNos[i], Cells: len(cells), Columns: len(g.headers),
				Message: fmt.Sprintf("row has %d values, expected %d", len(cells), len(g.headers)),
			})
		case len(cells) > len(g.headers):
			res.Issues = append(res.Issues, internal.RowIssue{
				Grid: g.name, RowNo: g.rowNos[i], Cells: len(cells), Columns: len(g.headers),
				Message: fmt.Sprintf("row has %d values, expected %d; extra values ignored", len(cells), len(g.headers)),
			})
		}

		if t.Upsert(table.RecordFrom(g.headers, cells)) {
			res.Merged++
		} else {
			res.Inserted++
		}
	}
	return res, nil
}

func applyGrids(ctx context.Context, t *table.Table, grids []grid) (internal.SourceResult, error) {
	total := internal.SourceResult{}
	for _, g := range grids {
		res, err := applyGrid(ctx, t, g)
		total.Add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
