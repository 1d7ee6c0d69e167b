package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"recmerge/internal"
	"recmerge/internal/table"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// CSVAdapter reads comma separated files. Header names are upper-cased.
type CSVAdapter struct {
	encoding string
}

func NewCSVAdapter(encoding string) *CSVAdapter {
	return &CSVAdapter{encoding: encoding}
}

func (a *CSVAdapter) Kind() internal.SourceKind { return internal.SourceCSV }

func (a *CSVAdapter) Parse(ctx context.Context, name string, content []byte, t *table.Table) (internal.SourceResult, error) {
	g, err := parseCSV(name, content, a.encoding)
	if err != nil {
		return internal.SourceResult{}, err
	}
	return applyGrid(ctx, t, g)
}

func parseCSV(name string, content []byte, enc string) (grid, error) {
	decoded, err := decodeContent(content, enc)
	if err != nil {
		return grid{}, fmt.Errorf("%s: %w", name, err)
	}
	decoded = bytes.TrimPrefix(decoded, utf8BOM)

	r := csv.NewReader(bytes.NewReader(decoded))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	g := grid{name: name}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return grid{}, fmt.Errorf("%s: parse csv: %w", name, err)
		}
		line, _ := r.FieldPos(0)
		if g.headers == nil {
			g.headers = normalizeHeaders(record, true)
			continue
		}
		g.addRow(line, record)
	}
	if g.headers == nil {
		return grid{}, fmt.Errorf("%s: %w", name, ErrNoHeader)
	}
	return g, nil
}

func decodeContent(content []byte, enc string) ([]byte, error) {
	var decoder *encoding.Decoder
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", "utf-8", "utf8":
		return content, nil
	case "windows-1251", "cp1251":
		decoder = charmap.Windows1251.NewDecoder()
	case "windows-1252", "cp1252":
		decoder = charmap.Windows1252.NewDecoder()
	case "koi8-r":
		decoder = charmap.KOI8R.NewDecoder()
	case "iso-8859-1", "latin1":
		decoder = charmap.ISO8859_1.NewDecoder()
	case "cp866":
		decoder = charmap.CodePage866.NewDecoder()
	default:
		return nil, fmt.Errorf("unsupported csv encoding: %s", enc)
	}
	out, _, err := transform.Bytes(decoder, content)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", enc, err)
	}
	return out, nil
}
