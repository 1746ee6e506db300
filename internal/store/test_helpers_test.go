package store

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a new on-disk SQLite store for testing.
func createTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns one fresh instance of every persistent backend.
func backends(t *testing.T) map[string]Storage {
	t.Helper()
	fs, err := NewFileStorage(filepath.Join(t.TempDir(), "files"))
	if err != nil {
		t.Fatalf("NewFileStorage() failed: %v", err)
	}
	return map[string]Storage{
		"memory": NewMemoryStorage(),
		"file":   fs,
		"sqlite": createTestStore(t),
	}
}
