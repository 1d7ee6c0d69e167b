package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"recmerge/internal"
	"recmerge/internal/config"
	"recmerge/internal/storage"
	"recmerge/internal/table"
)

type RunResult struct {
	RunID    string
	Sources  []internal.SourceResult
	Records  int
	Columns  int
	Exported int
	// Empty is set when no source produced a record; nothing was written.
	Empty bool
}

// RunOnce merges paths into a fresh table, exports it to outputPath and, when
// db is not nil, stores the run as a snapshot. Only cancellation and export
// failures are returned; a snapshot that cannot be saved is logged and leaves
// RunID empty.
func RunOnce(ctx context.Context, cfg config.Config, logger *slog.Logger, db *storage.DB, paths []string, outputPath string) (RunResult, error) {
	merger := NewMerger(cfg, logger)
	sources, err := merger.MergeFiles(ctx, paths)
	res := RunResult{Sources: sources}
	if err != nil {
		return res, err
	}

	t := merger.Table()
	res.Records = t.Len()

	exported, err := merger.Export(outputPath)
	if errors.Is(err, table.ErrNothingToExport) {
		logger.Warn("no records found to export", "output", outputPath)
		res.Empty = true
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Exported = exported

	header, rows := t.Rows()
	res.Columns = len(header)
	logger.Info("records exported", "output", outputPath, "records", exported, "columns", len(header))

	if db != nil {
		runID, err := db.SaveSnapshot(storage.Snapshot{
			OutputPath:  outputPath,
			IDField:     t.IDField(),
			Placeholder: t.Placeholder(),
			Columns:     header,
			Rows:        rows,
			Sources:     sources,
		})
		if err != nil {
			logger.Error("save snapshot failed", "output", outputPath, "error", err)
			return res, nil
		}
		res.RunID = runID
		logger.Info("snapshot saved", "run", runID)
	}
	return res, nil
}
