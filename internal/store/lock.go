package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// DataDirLock is a cross-process exclusive lock guarding a data directory,
// preventing two hybridsearch processes from writing the same SQLite/Bleve/
// HNSW state concurrently. Adapted from the teacher's embed.FileLock.
type DataDirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDataDirLock creates a lock file at <dataDir>/.hybridsearch.lock.
func NewDataDirLock(dataDir string) *DataDirLock {
	path := filepath.Join(dataDir, ".hybridsearch.lock")
	return &DataDirLock{path: path, flock: flock.New(path)}
}

// TryLock attempts to acquire the lock without blocking.
func (l *DataDirLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("data dir lock: create dir: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("data dir lock: acquire: %w", err)
	}
	l.locked = ok
	return ok, nil
}

// Unlock releases the lock; safe to call multiple times.
func (l *DataDirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("data dir lock: release: %w", err)
	}
	l.locked = false
	return nil
}
