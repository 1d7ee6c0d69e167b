// Package listener re-runs the merge whenever one of its input files changes.
package listener

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"recmerge/internal/config"
	"recmerge/internal/pipeline"
	"recmerge/internal/storage"
	"recmerge/internal/util"
)

const watchedOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

type Service struct {
	db  *storage.DB
	cfg config.Config
	log *slog.Logger

	// last holds the source hashes of the previous cycle of this Run; nil
	// until the first cycle, which always merges.
	last map[string]string
}

func NewService(cfg config.Config, db *storage.DB, logger *slog.Logger) *Service {
	return &Service{db: db, cfg: cfg, log: logger}
}

// Run merges paths into outputPath once, then again after every change to an
// input file, until ctx is done. File events are debounced by the settle
// interval; a poll interval catches changes the watcher misses.
func (s *Service) Run(ctx context.Context, paths []string, outputPath string) error {
	abs, err := absPaths(paths)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range parentDirs(abs) {
		if err := watcher.Add(dir); err != nil {
			s.log.Warn("cannot watch directory, relying on polling", "dir", dir, "error", err)
		}
	}

	if s.db != nil {
		prev, err := s.db.LatestSourceHashes()
		if err != nil {
			return fmt.Errorf("load previous run: %w", err)
		}
		if len(prev) > 0 && maps.Equal(prev, s.currentHashes(abs)) {
			s.log.Info("inputs unchanged since the latest stored run", "output", outputPath)
		}
	}

	if err := s.runCycle(ctx, abs, outputPath); err != nil {
		s.log.Error("merge cycle failed", "error", err)
	}

	poll := time.NewTicker(time.Duration(max(s.cfg.WatchIntervalSec, 1)) * time.Second)
	defer poll.Stop()
	settleDelay := time.Duration(max(s.cfg.WatchSettleMs, 0)) * time.Millisecond
	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	watched := map[string]struct{}{}
	for _, p := range abs {
		watched[p] = struct{}{}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, hit := watched[filepath.Clean(ev.Name)]; !hit || ev.Op&watchedOps == 0 {
				continue
			}
			s.log.Debug("input changed", "path", ev.Name, "op", ev.Op.String())
			settle.Reset(settleDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watcher error", "error", err)
		case <-settle.C:
			if err := s.runCycle(ctx, abs, outputPath); err != nil {
				s.log.Error("merge cycle failed", "error", err)
			}
		case <-poll.C:
			if err := s.runCycle(ctx, abs, outputPath); err != nil {
				s.log.Error("merge cycle failed", "error", err)
			}
		}
	}
}

// runCycle merges and exports unless no input changed since the previous
// cycle and the output is still in place.
func (s *Service) runCycle(ctx context.Context, paths []string, outputPath string) error {
	hashes := s.currentHashes(paths)
	if s.last != nil && maps.Equal(hashes, s.last) && outputExists(outputPath) {
		s.log.Debug("inputs unchanged, skipping cycle")
		return nil
	}

	res, err := pipeline.RunOnce(ctx, s.cfg, s.log, s.db, paths, outputPath)
	if err != nil {
		return err
	}
	s.last = hashes

	s.log.Info("merge cycle done", "sources", len(res.Sources), "records", res.Records, "exported", res.Exported, "run", res.RunID)
	return nil
}

// currentHashes hashes every input an adapter would read. Unreadable and
// unsupported inputs map to the empty hash, as they do in stored runs.
func (s *Service) currentHashes(paths []string) map[string]string {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		out[p] = ""
		if pipeline.AdapterFor(p, s.cfg.CSVEncoding) == nil {
			continue
		}
		blob, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		out[p] = util.ContentHash(blob)
	}
	return out
}

func outputExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func absPaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out = append(out, filepath.Clean(a))
	}
	return out, nil
}

func parentDirs(paths []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range paths {
		dir := filepath.Dir(p)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		out = append(out, dir)
	}
	return out
}
