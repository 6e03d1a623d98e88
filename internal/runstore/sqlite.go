package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/beamsim/beamsim/internal/sim"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// SQLiteStore keeps runs in a SQLite database. Each run is one row holding
// the full JSON record; the id column is UNIQUE so a run is stored once.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	// mu serializes appends the same way FileStore does; SQLite would
	// serialize writers anyway but this keeps busy-timeouts out of the path.
	mu sync.Mutex
}

// OpenSQLiteStore opens (or creates) the database at path and runs
// migrations. A file that is not a usable database is moved aside to
// <path>.corrupt and replaced with an empty one.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("sqlite store: create data dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s, err := openSQLite(path, logger)
	if err == nil || errors.Is(err, errOpen) {
		return s, err
	}

	logger.Warn("run database unusable, starting empty", "path", path, "error", err)
	if rerr := os.Rename(path, path+".corrupt"); rerr != nil {
		return nil, fmt.Errorf("sqlite store: moving corrupt database aside: %w", rerr)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return openSQLite(path, logger)
}

// errOpen marks driver-level open failures, which are not recoverable by
// discarding the file.
var errOpen = errors.New("open database")

func openSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: %w: %v", errOpen, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite store: pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: migration: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT    NOT NULL UNIQUE,
			created_at TEXT    NOT NULL,
			beam_width INTEGER NOT NULL,
			max_steps  INTEGER NOT NULL,
			seed       INTEGER NOT NULL,
			scoring    TEXT    NOT NULL,
			best_score REAL    NOT NULL,
			record     TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);
	`)
	return err
}

// Backend implements Store.
func (s *SQLiteStore) Backend() string {
	return BackendSQLite
}

// Append inserts a run. A duplicate id yields ErrRunExists.
func (s *SQLiteStore) Append(ctx context.Context, run *sim.Run) error {
	record, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("%w: marshaling run: %v", sim.ErrInternal, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, beam_width, max_steps, seed, scoring, best_score, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.CreatedAt, run.BeamWidth, run.MaxSteps, run.Seed, run.Scoring,
		run.BestResult.Score, string(record),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrRunExists, run.RunID)
		}
		return fmt.Errorf("%w: inserting run: %v", sim.ErrInternal, err)
	}
	return nil
}

// Get loads one run by id.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (*sim.Run, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM runs WHERE id = ?`, runID).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, notFound(runID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading run: %v", sim.ErrInternal, err)
	}

	var run sim.Run
	if err := json.Unmarshal([]byte(record), &run); err != nil {
		s.logger.Warn("run record undecodable", "run_id", runID, "error", err)
		return nil, notFound(runID)
	}
	return &run, nil
}

// List returns summaries in append order.
func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, beam_width, max_steps, seed, scoring, best_score
		 FROM runs ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing runs: %v", sim.ErrInternal, err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.RunID, &sum.CreatedAt, &sum.BeamWidth, &sum.MaxSteps,
			&sum.Seed, &sum.Scoring, &sum.BestScore); err != nil {
			return nil, fmt.Errorf("%w: scanning run: %v", sim.ErrInternal, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: listing runs: %v", sim.ErrInternal, err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
