package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryDelay is how often a blocked writer retries the lock file.
const lockRetryDelay = 20 * time.Millisecond

// FileStorage keeps one file per key in a directory.
//
// Writes go to a temporary file that is renamed over the target, so readers
// observe either the old or the new value, never a partial one. Writers in
// different processes are serialized through a lock file in the directory.
type FileStorage struct {
	dir  string
	lock *flock.Flock
}

// NewFileStorage creates dir if needed and returns a FileStorage rooted there.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStorage{
		dir:  dir,
		lock: flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

// Dir returns the storage directory.
func (f *FileStorage) Dir() string {
	return f.dir
}

// Path returns the file that holds key.
func (f *FileStorage) Path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// Retrieve reads the file for key.
func (f *FileStorage) Retrieve(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, readError(fmt.Sprintf("could not read %s", key), err)
	}
	return data, true, nil
}

// Store atomically replaces the file for key.
// Blocks until the directory lock is acquired or ctx is done.
func (f *FileStorage) Store(ctx context.Context, key string, value []byte) error {
	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return writeError(fmt.Sprintf("could not lock %s", f.dir), err)
	}
	if !locked {
		return writeError(fmt.Sprintf("could not lock %s", f.dir), ctx.Err())
	}
	defer f.lock.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return writeError(fmt.Sprintf("could not write %s", key), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return writeError(fmt.Sprintf("could not write %s", key), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return writeError(fmt.Sprintf("could not sync %s", key), err)
	}
	if err := tmp.Close(); err != nil {
		return writeError(fmt.Sprintf("could not write %s", key), err)
	}
	if err := os.Rename(tmpName, f.Path(key)); err != nil {
		return writeError(fmt.Sprintf("could not replace %s", key), err)
	}
	return nil
}
