package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"recmerge/internal"
	"recmerge/internal/config"
	"recmerge/internal/table"
	"recmerge/internal/util"
)

// Merger feeds input files, in the order given, into one shared table.
type Merger struct {
	cfg   config.Config
	log   *slog.Logger
	table *table.Table
}

func NewMerger(cfg config.Config, logger *slog.Logger) *Merger {
	return &Merger{
		cfg:   cfg,
		log:   logger,
		table: table.New(cfg.IDField, cfg.Placeholder),
	}
}

func (m *Merger) Table() *table.Table {
	return m.table
}

// MergeFiles processes every path in order. A source that cannot be read or
// parsed is logged, recorded as failed and skipped; the remaining sources
// still run. Only cancellation of ctx stops the loop early.
func (m *Merger) MergeFiles(ctx context.Context, paths []string) ([]internal.SourceResult, error) {
	results := make([]internal.SourceResult, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, m.MergeFile(ctx, path))
	}
	return results, nil
}

func (m *Merger) MergeFile(ctx context.Context, path string) internal.SourceResult {
	adapter := AdapterFor(path, m.cfg.CSVEncoding)
	if adapter == nil {
		m.log.Warn("unsupported file type, skipping", "path", path)
		return internal.SourceResult{Path: path, Status: internal.StatusSkipped, Error: "unsupported file type"}
	}

	res := internal.SourceResult{Path: path, Kind: adapter.Kind()}
	content, err := os.ReadFile(path)
	if err != nil {
		return m.failed(res, fmt.Errorf("read source: %w", err))
	}
	res.Hash = util.ContentHash(content)

	parsed, err := adapter.Parse(ctx, path, content, m.table)
	res.Add(parsed)
	if err != nil {
		return m.failed(res, err)
	}
	res.Status = internal.StatusMerged

	for _, issue := range res.Issues {
		m.log.Warn("row shape mismatch", "path", path, "grid", issue.Grid, "row", issue.RowNo, "detail", issue.Message)
	}
	m.log.Info("source merged",
		"path", path, "kind", res.Kind, "rows", res.Rows,
		"inserted", res.Inserted, "merged", res.Merged, "issues", len(res.Issues))
	return res
}

func (m *Merger) failed(res internal.SourceResult, err error) internal.SourceResult {
	res.Status = internal.StatusFailed
	res.Error = err.Error()
	m.log.Error("source skipped", "path", res.Path, "error", err)
	return res
}

// Export writes the table to path, choosing the format by extension.
func (m *Merger) Export(path string) (int, error) {
	return ExportTable(m.table, path)
}
