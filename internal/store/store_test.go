package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Store(ctx, Key("main", "cfr"), []byte("payload")))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	v, found, err := s2.Retrieve(ctx, Key("main", "cfr"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("payload"), v)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_MigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE entries (key TEXT PRIMARY KEY, value BLOB NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO entries (key, value) VALUES ('main/old:collection', X'6f6c64')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	has, err := hasColumn(s.DB(), "entries", "updated_at")
	require.NoError(t, err)
	assert.True(t, has)

	v, found, err := s.Retrieve(context.Background(), "main/old:collection")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("old"), v)

	ts, found, err := s.UpdatedAt(context.Background(), "main/old:collection")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(0), ts)
}

func TestSQLiteStorage_UpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	fixed := time.UnixMilli(1700000000123)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Store(ctx, "k", []byte("v")))

	ts, found, err := s.UpdatedAt(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1700000000123), ts)

	_, found, err = s.UpdatedAt(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStorage_ClosedDatabase(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, _, err = s.Retrieve(ctx, "k")
	assert.True(t, IsReadError(err))

	err = s.Store(ctx, "k", []byte("v"))
	assert.True(t, IsWriteError(err))
}

func TestSQLiteStorage_CloseNil(t *testing.T) {
	var s SQLiteStorage
	assert.NoError(t, s.Close())
}

func newMockStorage(t *testing.T) (*SQLiteStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStorage(db), mock
}

func TestSQLiteStorage_RetrieveQueryError(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectQuery(`SELECT value FROM entries WHERE key = \?`).
		WithArgs("main/cfr:collection").
		WillReturnError(errors.New("disk I/O error"))

	_, found, err := s.Retrieve(context.Background(), "main/cfr:collection")
	require.Error(t, err)
	assert.False(t, found)
	assert.True(t, IsReadError(err))
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStorage_RetrieveRow(t *testing.T) {
	s, mock := newMockStorage(t)
	mock.ExpectQuery(`SELECT value FROM entries WHERE key = \?`).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte("v")))

	v, found, err := s.Retrieve(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStorage_StoreExecError(t *testing.T) {
	s, mock := newMockStorage(t)
	s.now = func() time.Time { return time.UnixMilli(42) }
	mock.ExpectExec(`INSERT INTO entries`).
		WithArgs("k", []byte("v"), int64(42)).
		WillReturnError(errors.New("database is locked"))

	err := s.Store(context.Background(), "k", []byte("v"))
	require.Error(t, err)
	assert.True(t, IsWriteError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStorage_StoreUpsert(t *testing.T) {
	s, mock := newMockStorage(t)
	s.now = func() time.Time { return time.UnixMilli(7) }
	mock.ExpectExec(`ON CONFLICT\(key\) DO UPDATE SET`).
		WithArgs("k", []byte{}, int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.Store(context.Background(), "k", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
