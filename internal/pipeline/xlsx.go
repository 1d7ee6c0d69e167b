package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"recmerge/internal"
	"recmerge/internal/table"
	"recmerge/internal/util"
)

// XLSXAdapter reads every sheet of a workbook. The first non-blank row of a
// sheet holds its column names.
type XLSXAdapter struct{}

func NewXLSXAdapter() *XLSXAdapter { return &XLSXAdapter{} }

func (a *XLSXAdapter) Kind() internal.SourceKind { return internal.SourceXLSX }

func (a *XLSXAdapter) Parse(ctx context.Context, name string, content []byte, t *table.Table) (internal.SourceResult, error) {
	grids, err := parseXLSX(name, content)
	if err != nil {
		return internal.SourceResult{}, err
	}
	return applyGrids(ctx, t, grids)
}

func parseXLSX(name string, content []byte) ([]grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: open workbook: %w", name, err)
	}
	defer f.Close()

	var out []grid
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%s: read sheet %s: %w", name, sheet, err)
		}

		g := grid{name: fmt.Sprintf("%s sheet %s", name, sheet)}
		for i, row := range rows {
			if g.headers == nil {
				if util.IsBlank(row) {
					continue
				}
				g.headers = normalizeHeaders(row, false)
				continue
			}
			g.addRow(i+1, padRow(row, len(g.headers)))
		}
		if g.headers != nil {
			out = append(out, g)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoHeader)
	}
	return out, nil
}

// padRow restores the trailing empty cells GetRows drops, so a row is only
// short when it is really shorter than the header.
func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
