package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/persona-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_passes (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	pass           INTEGER NOT NULL,
	chunk_size     INTEGER NOT NULL,
	pending_before INTEGER NOT NULL,
	pending_after  INTEGER NOT NULL,
	started_at     DATETIME NOT NULL,
	PRIMARY KEY (run_id, pass)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_passes_run_id ON run_passes(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.NewString(),
		Source:    source,
		Status:    model.RunStatusRunning,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Source, string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		string(status), runID,
	)
	return eris.Wrap(err, "sqlite: update run status")
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, updated_at = datetime('now') WHERE id = ?`,
		string(data), runID,
	)
	return eris.Wrap(err, "sqlite: update run result")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, source, status, result, created_at, updated_at FROM runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func (s *SQLiteStore) RecordPass(ctx context.Context, stats model.PassStats) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_passes (run_id, pass, chunk_size, pending_before, pending_after, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		stats.RunID, stats.Pass, stats.ChunkSize, stats.PendingBefore, stats.PendingAfter, stats.StartedAt,
	)
	return eris.Wrap(err, "sqlite: record pass")
}

func (s *SQLiteStore) ListPasses(ctx context.Context, runID string) ([]model.PassStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, pass, chunk_size, pending_before, pending_after, started_at
		 FROM run_passes WHERE run_id = ? ORDER BY pass`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list passes")
	}
	defer rows.Close()

	var passes []model.PassStats
	for rows.Next() {
		var p model.PassStats
		if err := rows.Scan(&p.RunID, &p.Pass, &p.ChunkSize, &p.PendingBefore, &p.PendingAfter, &p.StartedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pass")
		}
		passes = append(passes, p)
	}
	return passes, eris.Wrap(rows.Err(), "sqlite: list passes")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var status string
	var result sql.NullString
	if err := row.Scan(&run.ID, &run.Source, &status, &result, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	if result.Valid && result.String != "" {
		var r model.RunResult
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return nil, err
		}
		run.Result = &r
	}
	return &run, nil
}
