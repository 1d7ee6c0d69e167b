package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"recmerge/internal"
	"recmerge/internal/table"
)

// EmailAdapter reads a MIME message: tables in the HTML body, then CSV, HTML
// and XLSX attachments in the order they appear.
type EmailAdapter struct {
	csvEncoding string
}

func NewEmailAdapter(csvEncoding string) *EmailAdapter {
	return &EmailAdapter{csvEncoding: csvEncoding}
}

func (a *EmailAdapter) Kind() internal.SourceKind { return internal.SourceEmail }

func (a *EmailAdapter) Parse(ctx context.Context, name string, content []byte, t *table.Table) (internal.SourceResult, error) {
	grids, err := a.parseEmail(name, content)
	if err != nil {
		return internal.SourceResult{}, err
	}
	return applyGrids(ctx, t, grids)
}

func (a *EmailAdapter) parseEmail(name string, content []byte) ([]grid, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%s: read message: %w", name, err)
	}

	var out []grid
	if strings.TrimSpace(env.HTML) != "" {
		body, err := parseHTMLTables(name+" body", []byte(env.HTML))
		if err != nil && !isNoTable(err) {
			return nil, err
		}
		out = append(out, body...)
	}

	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attName := name + " " + filename

		switch strings.ToLower(filepath.Ext(filename)) {
		case ".csv":
			g, err := parseCSV(attName, att.Content, a.csvEncoding)
			if err != nil {
				return nil, err
			}
			out = append(out, g)
		case ".html", ".htm":
			extra, err := parseHTMLTables(attName, att.Content)
			if err != nil && !isNoTable(err) {
				return nil, err
			}
			out = append(out, extra...)
		case ".xlsx":
			extra, err := parseXLSX(attName, att.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, extra...)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoTable)
	}
	return out, nil
}

func isNoTable(err error) bool {
	return errors.Is(err, ErrNoTable) || errors.Is(err, ErrNoHeader)
}
