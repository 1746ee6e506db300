package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/settingsync/internal/ir"
)

func ids(records []ir.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID())
	}
	return out
}

func TestMergeChanges_ReverseOrder(t *testing.T) {
	local := []ir.Record{record("A", 10, "field", "before")}
	changes := []ir.Record{
		record("A", 20, "field", "after"),
		record("B", 15, "field", "new"),
		ir.NewTombstone("A", 0),
	}

	merged := MergeChanges(local, changes)

	// Reversed: the tombstone removes A, B is inserted, then A@20 is re-inserted.
	require.Equal(t, []string{"A", "B"}, ids(merged))
	assert.Equal(t, uint64(20), merged[0].LastModified())
	assert.Equal(t, ir.IRString("after"), merged[0].Field("field"))
	assert.Equal(t, ir.IRString("new"), merged[1].Field("field"))
}

func TestMergeChanges_FirstDuplicateWins(t *testing.T) {
	changes := []ir.Record{
		record("A", 30, "v", "first"),
		record("A", 20, "v", "second"),
	}

	merged := MergeChanges(nil, changes)
	require.Len(t, merged, 1)
	assert.Equal(t, ir.IRString("first"), merged[0].Field("v"))
}

func TestMergeChanges_TombstoneBeforeContentDeletes(t *testing.T) {
	changes := []ir.Record{
		ir.NewTombstone("A", 30),
		record("A", 20),
	}

	assert.Empty(t, MergeChanges([]ir.Record{record("A", 10)}, changes))
}

func TestMergeChanges_DisjointIsUnion(t *testing.T) {
	local := []ir.Record{record("a", 1), record("c", 3)}
	changes := []ir.Record{record("b", 2), record("d", 4)}

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(MergeChanges(local, changes)))
}

func TestMergeChanges_TombstoneForAbsentIDIsNoOp(t *testing.T) {
	local := []ir.Record{record("a", 1)}
	changes := []ir.Record{ir.NewTombstone("zzz", 5)}

	assert.Equal(t, local, MergeChanges(local, changes))
}

func TestMergeChanges_TombstoneRemovesLocal(t *testing.T) {
	local := []ir.Record{record("a", 1), record("b", 2)}
	changes := []ir.Record{ir.NewTombstone("a", 5)}

	assert.Equal(t, []string{"b"}, ids(MergeChanges(local, changes)))
}

func TestMergeChanges_KeepsUntouchedLocal(t *testing.T) {
	untouched := record("keep", 1, "payload", "same")
	local := []ir.Record{untouched, record("x", 2)}
	changes := []ir.Record{record("x", 3)}

	merged := MergeChanges(local, changes)
	require.Len(t, merged, 2)
	assert.Equal(t, untouched, merged[0])
}

func TestMergeChanges_Idempotent(t *testing.T) {
	tests := []struct {
		name    string
		local   []ir.Record
		changes []ir.Record
	}{
		{"empty", nil, nil},
		{"inserts", nil, []ir.Record{record("a", 1), record("b", 2)}},
		{"overwrite and delete", []ir.Record{record("a", 1), record("b", 1)},
			[]ir.Record{record("a", 5, "v", 1), ir.NewTombstone("b", 5)}},
		{"duplicates", []ir.Record{record("a", 1)},
			[]ir.Record{record("a", 9), ir.NewTombstone("a", 8), record("a", 7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := MergeChanges(tt.local, tt.changes)
			twice := MergeChanges(once, tt.changes)
			assert.Equal(t, once, twice)
		})
	}
}

func TestMergeChanges_DoesNotModifyInputs(t *testing.T) {
	local := []ir.Record{record("b", 1), record("a", 1)}
	changes := []ir.Record{ir.NewTombstone("b", 2)}

	_ = MergeChanges(local, changes)

	assert.Equal(t, []string{"b", "a"}, ids(local))
	assert.Equal(t, []string{"b"}, ids(changes))
}

func TestMergeChanges_EmptyResultIsNotNil(t *testing.T) {
	merged := MergeChanges(nil, nil)
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
}
