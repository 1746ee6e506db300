package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
)

// Storage stores and retrieves opaque values by key.
type Storage interface {
	// Retrieve returns the value stored under key.
	// A missing key yields (nil, false, nil).
	Retrieve(ctx context.Context, key string) ([]byte, bool, error)

	// Store replaces the value stored under key.
	Store(ctx context.Context, key string, value []byte) error
}

// Key returns the storage key of a bucket/collection pair.
func Key(bucket, collection string) string {
	return fmt.Sprintf("%s/%s:collection", bucket, collection)
}

// StorageErrorKind categorizes storage failures.
type StorageErrorKind string

const (
	// KindRead indicates the backend could not read a value.
	KindRead StorageErrorKind = "READ_ERROR"

	// KindWrite indicates the backend could not write a value.
	KindWrite StorageErrorKind = "WRITE_ERROR"
)

// StorageError is returned by every backend in this package.
type StorageError struct {
	Kind StorageErrorKind
	Name string
	Err  error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Name)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}

func readError(name string, err error) *StorageError {
	return &StorageError{Kind: KindRead, Name: name, Err: err}
}

func writeError(name string, err error) *StorageError {
	return &StorageError{Kind: KindWrite, Name: name, Err: err}
}

// IsReadError reports whether err is a KindRead storage error.
// Uses errors.As to handle wrapped errors.
func IsReadError(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind == KindRead
	}
	return false
}

// IsWriteError reports whether err is a KindWrite storage error.
func IsWriteError(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind == KindWrite
	}
	return false
}

// DummyStorage discards writes and never finds anything.
// With DummyStorage every Get triggers a synchronization.
type DummyStorage struct{}

// Retrieve always reports absence.
func (DummyStorage) Retrieve(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

// Store discards value.
func (DummyStorage) Store(context.Context, string, []byte) error {
	return nil
}

// MemoryStorage keeps values in a process-local map.
//
// Thread-safety: MemoryStorage is safe for concurrent use via internal mutex.
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

// Retrieve returns a copy of the stored value.
func (m *MemoryStorage) Retrieve(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Store keeps a copy of value.
func (m *MemoryStorage) Store(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string][]byte)
	}
	m.values[key] = bytes.Clone(value)
	return nil
}
