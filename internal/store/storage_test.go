package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "main/search-config:collection", Key("main", "search-config"))
	assert.Equal(t, "security-state/onecrl:collection", Key("security-state", "onecrl"))
}

func TestBackends_RetrieveMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			v, found, err := s.Retrieve(context.Background(), Key("main", "absent"))
			require.NoError(t, err)
			assert.False(t, found)
			assert.Nil(t, v)
		})
	}
}

func TestBackends_StoreRetrieve(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := Key("main", "cfr")
			require.NoError(t, s.Store(ctx, key, []byte(`{"v":1}`)))

			v, found, err := s.Retrieve(ctx, key)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte(`{"v":1}`), v)
		})
	}
}

func TestBackends_StoreReplaces(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := Key("main", "cfr")
			require.NoError(t, s.Store(ctx, key, []byte("first")))
			require.NoError(t, s.Store(ctx, key, []byte("second")))

			v, found, err := s.Retrieve(ctx, key)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, []byte("second"), v)
		})
	}
}

func TestBackends_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Store(ctx, Key("main", "a"), []byte("a")))
			require.NoError(t, s.Store(ctx, Key("main", "b"), []byte("b")))

			v, _, err := s.Retrieve(ctx, Key("main", "a"))
			require.NoError(t, err)
			assert.Equal(t, []byte("a"), v)

			_, found, err := s.Retrieve(ctx, "main/a")
			require.NoError(t, err)
			assert.False(t, found, "raw bucket/collection is not the storage key")
		})
	}
}

func TestBackends_EmptyValue(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := Key("main", "empty")
			require.NoError(t, s.Store(ctx, key, []byte{}))

			v, found, err := s.Retrieve(ctx, key)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Empty(t, v)
		})
	}
}

func TestDummyStorage(t *testing.T) {
	ctx := context.Background()
	var s Storage = DummyStorage{}

	require.NoError(t, s.Store(ctx, "k", []byte("v")))
	v, found, err := s.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)
}

func TestMemoryStorage_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	in := []byte("abc")
	require.NoError(t, s.Store(ctx, "k", in))
	in[0] = 'X'

	out, _, err := s.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)

	out[0] = 'Y'
	again, _, err := s.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStorage_ZeroValueUsable(t *testing.T) {
	var s MemoryStorage
	require.NoError(t, s.Store(context.Background(), "k", []byte("v")))
	_, found, err := s.Retrieve(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestStorageErrorHelpers(t *testing.T) {
	cause := errors.New("disk on fire")
	re := readError("could not read k", cause)
	we := writeError("could not write k", nil)

	assert.True(t, IsReadError(re))
	assert.False(t, IsWriteError(re))
	assert.True(t, IsWriteError(we))
	assert.ErrorIs(t, re, cause)
	assert.Equal(t, "READ_ERROR: could not read k: disk on fire", re.Error())
	assert.Equal(t, "WRITE_ERROR: could not write k", we.Error())
	assert.False(t, IsReadError(cause))
}
