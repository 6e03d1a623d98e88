// Package runstore persists completed simulation runs.
//
// Runs are append-only: the engine creates a run once, the store records
// it once, and every later access is a read. Two backends implement Store:
// FileStore (a single JSON file rewritten atomically) and SQLiteStore.
package runstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/beamsim/beamsim/internal/sim"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrRunExists is returned by Append when the run id is already stored.
var ErrRunExists = errors.New("run already stored")

// Store defines the persistence interface for runs.
// Abstracted so the service can run against either backend (DIP).
type Store interface {
	Append(ctx context.Context, run *sim.Run) error
	Get(ctx context.Context, runID string) (*sim.Run, error)
	List(ctx context.Context) ([]Summary, error)
	Backend() string
	Close() error
}

// Summary is the compact listing view of a stored run.
type Summary struct {
	RunID     string  `json:"run_id"`
	CreatedAt string  `json:"created_at"`
	BeamWidth int     `json:"beam_width"`
	MaxSteps  int     `json:"max_steps"`
	Seed      int64   `json:"seed"`
	Scoring   string  `json:"scoring"`
	BestScore float64 `json:"best_score"`
}

// Summarize builds the listing view of a run.
func Summarize(run *sim.Run) Summary {
	return Summary{
		RunID:     run.RunID,
		CreatedAt: run.CreatedAt,
		BeamWidth: run.BeamWidth,
		MaxSteps:  run.MaxSteps,
		Seed:      run.Seed,
		Scoring:   run.Scoring,
		BestScore: run.BestResult.Score,
	}
}

// Config selects and locates a backend.
type Config struct {
	Backend string
	Path    string
}

// Open creates the configured backend.
func Open(cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case "", BackendFile:
		return OpenFileStore(cfg.Path, logger)
	case BackendSQLite:
		return OpenSQLiteStore(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q: must be one of: file, sqlite", cfg.Backend)
	}
}

func notFound(runID string) error {
	return fmt.Errorf("%w: simulation %q", sim.ErrNotFound, runID)
}
