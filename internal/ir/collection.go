package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Collection is the synchronized unit: every record of one bucket/collection
// pair, the signed metadata envelope, and the timestamp the data reflects.
//
// A Collection is built once (decoded from storage or assembled after a
// merge) and never mutated afterwards.
type Collection struct {
	Bid       string   `json:"bid"`
	Cid       string   `json:"cid"`
	Metadata  IRObject `json:"metadata"`
	Records   []Record `json:"records"`
	Timestamp uint64   `json:"timestamp"`
}

// ErrMalformedCollection reports persisted bytes that do not decode into a
// Collection.
var ErrMalformedCollection = errors.New("malformed collection")

// persistedCollection mirrors Collection with every field optional so that
// missing fields can be told apart from zero values.
type persistedCollection struct {
	Bid       *string           `json:"bid"`
	Cid       *string           `json:"cid"`
	Metadata  json.RawMessage   `json:"metadata"`
	Records   []json.RawMessage `json:"records"`
	Timestamp *uint64           `json:"timestamp"`
}

// EncodeCollection serializes c to its persisted JSON representation.
// Nil metadata and nil records are written as {} and [].
func EncodeCollection(c *Collection) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("encode collection: nil collection")
	}
	if c.Timestamp > MaxTimestamp {
		return nil, fmt.Errorf("encode collection: timestamp %d exceeds %d", c.Timestamp, uint64(MaxTimestamp))
	}
	out := *c
	if out.Metadata == nil {
		out.Metadata = IRObject{}
	}
	if out.Records == nil {
		out.Records = []Record{}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode collection: %w", err)
	}
	return data, nil
}

// DecodeCollection parses the persisted JSON representation.
// Every field is required, metadata must be an object, and every record
// must satisfy the record invariant.
func DecodeCollection(data []byte) (*Collection, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedCollection)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	var p persistedCollection
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCollection, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedCollection)
	}

	var missing []string
	if p.Bid == nil {
		missing = append(missing, "bid")
	}
	if p.Cid == nil {
		missing = append(missing, "cid")
	}
	if p.Metadata == nil {
		missing = append(missing, "metadata")
	}
	if p.Records == nil {
		missing = append(missing, "records")
	}
	if p.Timestamp == nil {
		missing = append(missing, "timestamp")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedCollection, strings.Join(missing, ", "))
	}

	if *p.Timestamp > MaxTimestamp {
		return nil, fmt.Errorf("%w: timestamp %d exceeds %d", ErrMalformedCollection, *p.Timestamp, uint64(MaxTimestamp))
	}

	var metadata IRObject
	if err := metadata.UnmarshalJSON(p.Metadata); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrMalformedCollection, err)
	}

	records := make([]Record, 0, len(p.Records))
	for i, raw := range p.Records {
		var r Record
		if err := r.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("%w: records[%d]: %v", ErrMalformedCollection, i, err)
		}
		records = append(records, r)
	}

	return &Collection{
		Bid:       *p.Bid,
		Cid:       *p.Cid,
		Metadata:  metadata,
		Records:   records,
		Timestamp: *p.Timestamp,
	}, nil
}

// SortRecordsByID returns a copy of records ordered by id.
func SortRecordsByID(records []Record) []Record {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b Record) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return sorted
}

// canonicalObject is the order-independent view used for fingerprints.
func (c *Collection) canonicalObject() IRObject {
	records := SortRecordsByID(c.Records)
	arr := make(IRArray, len(records))
	for i, r := range records {
		arr[i] = r.data
	}
	metadata := c.Metadata
	if metadata == nil {
		metadata = IRObject{}
	}
	return IRObject{
		"bid":       IRString(c.Bid),
		"cid":       IRString(c.Cid),
		"metadata":  metadata,
		"records":   arr,
		"timestamp": IRInt(c.Timestamp),
	}
}
