package ir

import (
	"errors"
	"fmt"
	"math"
)

// Record field names every synchronized record carries.
const (
	FieldID           = "id"
	FieldLastModified = "last_modified"
	FieldDeleted      = "deleted"
)

// MaxTimestamp is the largest last_modified or collection timestamp.
// Timestamps are held as IRInt, so anything above int64 is rejected rather
// than wrapped.
const MaxTimestamp = math.MaxInt64

// ErrInvalidRecord reports a record without a usable id or last_modified.
// Such input is data corruption, never a valid record or tombstone.
var ErrInvalidRecord = errors.New("invalid record")

// Record is one entry of a collection.
//
// A Record is backed by an arbitrary JSON object. The id and last_modified
// fields are validated at construction, so ID and LastModified never fail.
// A record whose deleted field is true is a tombstone.
type Record struct {
	data IRObject
}

// NewRecord validates obj and wraps it as a Record.
// The object is deep-copied; later changes to obj are not visible.
func NewRecord(obj IRObject) (Record, error) {
	if obj == nil {
		return Record{}, fmt.Errorf("%w: not an object", ErrInvalidRecord)
	}
	id, ok := obj.String(FieldID)
	if !ok || id == "" {
		return Record{}, fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidRecord, FieldID)
	}
	ts, ok := obj.Int(FieldLastModified)
	if !ok || ts < 0 {
		return Record{}, fmt.Errorf("%w: %q of record %q must be a non-negative integer", ErrInvalidRecord, FieldLastModified, id)
	}
	return Record{data: obj.Clone()}, nil
}

// MustRecord is like NewRecord but builds from a map literal and panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRecord(m map[string]any) Record {
	r, err := NewRecord(MustObject(m))
	if err != nil {
		panic(err)
	}
	return r
}

// NewTombstone builds a deletion marker for id.
// Panics if lastModified exceeds MaxTimestamp.
func NewTombstone(id string, lastModified uint64) Record {
	if lastModified > MaxTimestamp {
		panic(fmt.Sprintf("tombstone %q: last_modified %d exceeds %d", id, lastModified, uint64(MaxTimestamp)))
	}
	return Record{data: IRObject{
		FieldID:           IRString(id),
		FieldLastModified: IRInt(lastModified),
		FieldDeleted:      IRBool(true),
	}}
}

// ID returns the record id.
func (r Record) ID() string {
	id, _ := r.data.String(FieldID)
	return id
}

// LastModified returns the server-assigned record timestamp.
// NewRecord guarantees it is in [0, MaxTimestamp].
func (r Record) LastModified() uint64 {
	ts, _ := r.data.Int(FieldLastModified)
	return uint64(ts)
}

// Deleted reports whether the record is a tombstone.
// Only the boolean true counts; "deleted": "foo" is not a tombstone.
func (r Record) Deleted() bool {
	b, ok := r.data.Bool(FieldDeleted)
	return ok && b
}

// Get returns a field value. A missing field yields (nil, false).
func (r Record) Get(key string) (IRValue, bool) {
	return r.data.Get(key)
}

// Field returns a field value, or IRNull{} when the field is absent.
func (r Record) Field(key string) IRValue {
	if v, ok := r.data[key]; ok {
		return v
	}
	return IRNull{}
}

// String returns a string field, if present and a string.
func (r Record) String(key string) (string, bool) {
	return r.data.String(key)
}

// Object returns a copy of the backing object.
func (r Record) Object() IRObject {
	return r.data.Clone()
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.data == nil {
		return nil, fmt.Errorf("%w: zero Record", ErrInvalidRecord)
	}
	return r.data.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler and enforces the record invariant.
func (r *Record) UnmarshalJSON(data []byte) error {
	var obj IRObject
	if err := obj.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	rec, err := NewRecord(obj)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
