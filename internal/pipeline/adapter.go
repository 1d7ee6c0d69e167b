package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"recmerge/internal"
	"recmerge/internal/table"
)

var (
	ErrNoHeader = errors.New("no header row found")
	ErrNoTable  = errors.New("no table found")
)

// Adapter turns one input source into rows and merges them into the shared
// table. Every adapter registers its columns before merging its rows.
type Adapter interface {
	Kind() internal.SourceKind
	Parse(ctx context.Context, name string, content []byte, t *table.Table) (internal.SourceResult, error)
}

// AdapterFor selects an adapter by file extension. It returns nil for
// unsupported extensions.
func AdapterFor(path, csvEncoding string) Adapter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVAdapter(csvEncoding)
	case ".html", ".htm":
		return NewHTMLAdapter()
	case ".xlsx":
		return NewXLSXAdapter()
	case ".eml":
		return NewEmailAdapter(csvEncoding)
	default:
		return nil
	}
}
