package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"recmerge/internal"
)

var ErrRunNotFound = errors.New("run not found")

type DB struct {
	conn *sql.DB
}

// Snapshot is the complete merged table of one run together with what each
// source contributed.
type Snapshot struct {
	RunID       string
	CreatedAt   string
	OutputPath  string
	IDField     string
	Placeholder string
	Columns     []string
	Rows        [][]string
	Sources     []internal.SourceResult
}

type RunRow struct {
	ID         string
	CreatedAt  string
	OutputPath string
	Records    int
	Columns    int
	Sources    int
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  createdAt TEXT NOT NULL,
  outputPath TEXT NOT NULL,
  idField TEXT NOT NULL,
  placeholder TEXT NOT NULL,
  recordCount INTEGER NOT NULL,
  columnCount INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_createdAt ON runs(createdAt);

CREATE TABLE IF NOT EXISTS run_sources (
  runId TEXT NOT NULL,
  position INTEGER NOT NULL,
  path TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL,
  hash TEXT NOT NULL,
  rowsRead INTEGER NOT NULL,
  inserted INTEGER NOT NULL,
  merged INTEGER NOT NULL,
  issuesJson TEXT NOT NULL,
  error TEXT NOT NULL,
  PRIMARY KEY(runId, position),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS run_columns (
  runId TEXT NOT NULL,
  position INTEGER NOT NULL,
  name TEXT NOT NULL,
  PRIMARY KEY(runId, position),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS run_records (
  runId TEXT NOT NULL,
  position INTEGER NOT NULL,
  recordId TEXT NOT NULL,
  valuesJson TEXT NOT NULL,
  PRIMARY KEY(runId, position),
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_run_records_recordId ON run_records(recordId);
`

	_, err := d.conn.Exec(schema)
	return err
}

// SaveSnapshot stores s as a new run and returns its id. Runs are never
// updated after they are written.
func (d *DB) SaveSnapshot(s Snapshot) (string, error) {
	runID := s.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	createdAt := s.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339Nano)
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
INSERT INTO runs (id, createdAt, outputPath, idField, placeholder, recordCount, columnCount)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, runID, createdAt, s.OutputPath, s.IDField, s.Placeholder, len(s.Rows), len(s.Columns)); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	srcStmt, err := tx.Prepare(`
INSERT INTO run_sources (runId, position, path, kind, status, hash, rowsRead, inserted, merged, issuesJson, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer srcStmt.Close()
	for i, src := range s.Sources {
		issues := src.Issues
		if issues == nil {
			issues = []internal.RowIssue{}
		}
		issuesJSON, _ := json.Marshal(issues)
		if _, err := srcStmt.Exec(runID, i, src.Path, string(src.Kind), string(src.Status), src.Hash,
			src.Rows, src.Inserted, src.Merged, string(issuesJSON), src.Error); err != nil {
			return "", fmt.Errorf("insert source %s: %w", src.Path, err)
		}
	}

	colStmt, err := tx.Prepare(`INSERT INTO run_columns (runId, position, name) VALUES (?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer colStmt.Close()
	for i, name := range s.Columns {
		if _, err := colStmt.Exec(runID, i, name); err != nil {
			return "", fmt.Errorf("insert column %s: %w", name, err)
		}
	}

	recStmt, err := tx.Prepare(`INSERT INTO run_records (runId, position, recordId, valuesJson) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer recStmt.Close()
	idIdx := indexOf(s.Columns, s.IDField)
	for i, row := range s.Rows {
		recordID := ""
		if idIdx >= 0 && idIdx < len(row) {
			recordID = row[idIdx]
		}
		valuesJSON, err := json.Marshal(row)
		if err != nil {
			return "", err
		}
		if _, err := recStmt.Exec(runID, i, recordID, string(valuesJSON)); err != nil {
			return "", fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

func (d *DB) ListRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT r.id, r.createdAt, r.outputPath, r.recordCount, r.columnCount,
       (SELECT COUNT(*) FROM run_sources s WHERE s.runId = r.id)
FROM runs r ORDER BY r.createdAt DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.OutputPath, &r.Records, &r.Columns, &r.Sources); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) LoadSnapshot(runID string) (Snapshot, error) {
	s := Snapshot{RunID: runID}
	err := d.conn.QueryRow(`
SELECT createdAt, outputPath, idField, placeholder FROM runs WHERE id = ?
`, runID).Scan(&s.CreatedAt, &s.OutputPath, &s.IDField, &s.Placeholder)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Snapshot{}, err
	}

	if s.Columns, err = d.loadColumns(runID); err != nil {
		return Snapshot{}, err
	}
	if s.Rows, err = d.loadRows(runID); err != nil {
		return Snapshot{}, err
	}
	if s.Sources, err = d.loadSources(runID); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (d *DB) loadColumns(runID string) ([]string, error) {
	rows, err := d.conn.Query(`SELECT name FROM run_columns WHERE runId = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (d *DB) loadRows(runID string) ([][]string, error) {
	rows, err := d.conn.Query(`SELECT valuesJson FROM run_records WHERE runId = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var values []string
		if err := json.Unmarshal([]byte(blob), &values); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

func (d *DB) loadSources(runID string) ([]internal.SourceResult, error) {
	rows, err := d.conn.Query(`
SELECT path, kind, status, hash, rowsRead, inserted, merged, issuesJson, error
FROM run_sources WHERE runId = ? ORDER BY position
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SourceResult
	for rows.Next() {
		var src internal.SourceResult
		var kind, status, issuesJSON string
		if err := rows.Scan(&src.Path, &kind, &status, &src.Hash, &src.Rows, &src.Inserted, &src.Merged, &issuesJSON, &src.Error); err != nil {
			return nil, err
		}
		src.Kind = internal.SourceKind(kind)
		src.Status = internal.SourceStatus(status)
		_ = json.Unmarshal([]byte(issuesJSON), &src.Issues)
		out = append(out, src)
	}
	return out, rows.Err()
}

// LatestSourceHashes returns path -> content hash for the sources of the most
// recent run. It returns an empty map when no run exists.
func (d *DB) LatestSourceHashes() (map[string]string, error) {
	rows, err := d.conn.Query(`
SELECT path, hash FROM run_sources
WHERE runId = (SELECT id FROM runs ORDER BY createdAt DESC LIMIT 1)
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		out[path] = hash
	}
	return out, rows.Err()
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}
