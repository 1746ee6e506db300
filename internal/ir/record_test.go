package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	obj := IRObject{
		"id":            IRString("abc"),
		"last_modified": IRInt(1600000000000),
		"name":          IRString("x"),
	}

	r, err := NewRecord(obj)
	require.NoError(t, err)

	assert.Equal(t, "abc", r.ID())
	assert.Equal(t, uint64(1600000000000), r.LastModified())
	assert.False(t, r.Deleted())

	name, ok := r.String("name")
	assert.True(t, ok)
	assert.Equal(t, "x", name)

	obj["name"] = IRString("changed")
	name, _ = r.String("name")
	assert.Equal(t, "x", name, "record must not alias the input object")
}

func TestNewRecordInvalid(t *testing.T) {
	tests := []struct {
		name string
		obj  IRObject
	}{
		{"nil", nil},
		{"missing id", IRObject{"last_modified": IRInt(1)}},
		{"empty id", IRObject{"id": IRString(""), "last_modified": IRInt(1)}},
		{"numeric id", IRObject{"id": IRInt(1), "last_modified": IRInt(1)}},
		{"missing last_modified", IRObject{"id": IRString("a")}},
		{"string last_modified", IRObject{"id": IRString("a"), "last_modified": IRString("1")}},
		{"float last_modified", IRObject{"id": IRString("a"), "last_modified": IRFloat(1.5)}},
		{"negative last_modified", IRObject{"id": IRString("a"), "last_modified": IRInt(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecord(tt.obj)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestRecordDeleted(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]any
		deleted bool
	}{
		{"no field", map[string]any{}, false},
		{"true", map[string]any{"deleted": true}, true},
		{"false", map[string]any{"deleted": false}, false},
		{"non-boolean", map[string]any{"deleted": "foo"}, false},
		{"typo field", map[string]any{"delete": true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := map[string]any{"id": "a", "last_modified": 1}
			for k, v := range tt.fields {
				fields[k] = v
			}
			assert.Equal(t, tt.deleted, MustRecord(fields).Deleted())
		})
	}
}

func TestNewTombstone(t *testing.T) {
	r := NewTombstone("gone", 42)

	assert.Equal(t, "gone", r.ID())
	assert.Equal(t, uint64(42), r.LastModified())
	assert.True(t, r.Deleted())
}

func TestNewTombstoneTimestampCeiling(t *testing.T) {
	r := NewTombstone("max", MaxTimestamp)
	assert.Equal(t, uint64(MaxTimestamp), r.LastModified())

	assert.Panics(t, func() { NewTombstone("wrapped", MaxTimestamp+1) })
}

func TestRecordField(t *testing.T) {
	r := MustRecord(map[string]any{"id": "a", "last_modified": 1, "n": 2})

	assert.Equal(t, IRInt(2), r.Field("n"))
	assert.Equal(t, IRNull{}, r.Field("missing"))

	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRecordJSON(t *testing.T) {
	r := MustRecord(map[string]any{"id": "a", "last_modified": 1, "z": true, "b": nil})

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"b":null,"id":"a","last_modified":1,"z":true}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.Object(), back.Object())
}

func TestRecordUnmarshalValidates(t *testing.T) {
	for _, input := range []string{`{"id":"a"}`, `[]`, `null`, `{"id":"a","last_modified":-5}`} {
		t.Run(input, func(t *testing.T) {
			var r Record
			err := json.Unmarshal([]byte(input), &r)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestZeroRecordMarshalFails(t *testing.T) {
	_, err := json.Marshal(Record{})
	require.Error(t, err)
}
