package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/beamsim/beamsim/internal/sim"
)

// fileFormatVersion is written into every store file.
const fileFormatVersion = 1

// fileData is the on-disk layout: runs in append order.
type fileData struct {
	Version int        `json:"version"`
	Runs    []*sim.Run `json:"runs"`
}

// FileStore keeps every run in one JSON file. Each Append re-reads the
// file, adds the run in memory and replaces the file via temp file +
// rename, all under one lock, so a crash never leaves a half-written store
// and concurrent appends never lose updates.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	runs  []*sim.Run
	index map[string]int
}

// OpenFileStore loads path, creating its directory if needed. A missing,
// corrupted or unreadable file yields an empty store.
func OpenFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("file store: creating directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	fs := &FileStore{path: path, logger: logger}
	runs, err := fs.load()
	if err != nil {
		logger.Warn("run store unusable, starting empty", "path", path, "error", err)
	}
	fs.setRuns(runs)
	return fs, nil
}

// Backend implements Store.
func (fs *FileStore) Backend() string {
	return BackendFile
}

// Append adds a run and flushes the whole set atomically.
func (fs *FileStore) Append(ctx context.Context, run *sim.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Pick up runs another process may have written since the last flush.
	// A file that went bad after startup must not erase what this store
	// already holds, so fall back to the in-memory set.
	runs, err := fs.load()
	if err != nil {
		fs.logger.Warn("run store unreadable, rewriting from memory", "path", fs.path, "runs", len(fs.runs), "error", err)
		runs = make([]*sim.Run, len(fs.runs))
		copy(runs, fs.runs)
	}
	for _, r := range runs {
		if r.RunID == run.RunID {
			fs.setRuns(runs)
			return fmt.Errorf("%w: %s", ErrRunExists, run.RunID)
		}
	}
	runs = append(runs, run)

	if err := fs.flush(runs); err != nil {
		return fmt.Errorf("%w: writing run store: %v", sim.ErrInternal, err)
	}
	fs.setRuns(runs)
	return nil
}

// Get returns a stored run.
func (fs *FileStore) Get(ctx context.Context, runID string) (*sim.Run, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	i, ok := fs.index[runID]
	if !ok {
		return nil, notFound(runID)
	}
	return fs.runs[i], nil
}

// List returns summaries in append order.
func (fs *FileStore) List(ctx context.Context) ([]Summary, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make([]Summary, len(fs.runs))
	for i, r := range fs.runs {
		out[i] = Summarize(r)
	}
	return out, nil
}

// Close implements Store. The file is always consistent on disk.
func (fs *FileStore) Close() error {
	return nil
}

// load reads the file. A missing or empty file is an empty set; an
// unreadable or undecodable one is an error.
func (fs *FileStore) load() ([]*sim.Run, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", fs.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", fs.path, err)
	}

	runs := fd.Runs[:0]
	for _, r := range fd.Runs {
		if r == nil || r.RunID == "" {
			continue
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// flush writes runs to a temp file in the same directory and renames it
// over the store file.
func (fs *FileStore) flush(runs []*sim.Run) error {
	data, err := json.MarshalIndent(fileData{Version: fileFormatVersion, Runs: runs}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling runs: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), "."+filepath.Base(fs.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		cleanup()
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}

// setRuns replaces the in-memory view. Caller holds mu for writing (or
// is the constructor).
func (fs *FileStore) setRuns(runs []*sim.Run) {
	index := make(map[string]int, len(runs))
	for i, r := range runs {
		index[r.RunID] = i
	}
	fs.runs = runs
	fs.index = index
}
