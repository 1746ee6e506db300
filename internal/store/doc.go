// Package store persists encoded collections as opaque byte blobs.
//
// Every backend implements Storage. The key of a collection is produced by
// Key and has the form "{bucket}/{collection}:collection".
//
// Backends:
//   - DummyStorage: stores nothing, every lookup is absent
//   - MemoryStorage: process-local map, copies values in and out
//   - FileStorage: one file per key, atomic rename writes serialized across
//     processes with a lock file
//   - SQLiteStorage: single table keyed by storage key
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Retrieve distinguishes "absent" (found=false, err=nil) from a failed read
// (*StorageError of kind KindRead). Store failures are KindWrite.
package store
