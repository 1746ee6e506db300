package testutil

import (
	"context"
	"sync"

	"github.com/roach88/settingsync/internal/ir"
	"github.com/roach88/settingsync/internal/kinto"
)

// ChangesetCall records the arguments of one StubRemote.Changeset call.
type ChangesetCall struct {
	Bucket     string
	Collection string
	Expected   uint64
	Since      *uint64
}

// StubRemote is an in-process remote that serves canned answers and counts
// calls. It has the method set of engine.Remote.
//
// Thread-safety: all methods are safe for concurrent use.
type StubRemote struct {
	mu sync.Mutex

	// Timestamp is returned by LatestChangeTimestamp unless TimestampErr is set.
	Timestamp    uint64
	TimestampErr error

	// Metadata, Changes and ChangesetTimestamp make up the changeset
	// returned unless ChangesetErr is set.
	Metadata           ir.IRObject
	Changes            []ir.Record
	ChangesetTimestamp uint64
	ChangesetErr       error

	timestampCalls int
	changesetCalls []ChangesetCall
}

// LatestChangeTimestamp returns the canned timestamp.
func (r *StubRemote) LatestChangeTimestamp(_ context.Context, _, _ string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timestampCalls++
	if r.TimestampErr != nil {
		return 0, r.TimestampErr
	}
	return r.Timestamp, nil
}

// Changeset returns the canned changeset.
func (r *StubRemote) Changeset(_ context.Context, bid, cid string, expected uint64, since *uint64) (*kinto.Changeset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := ChangesetCall{Bucket: bid, Collection: cid, Expected: expected}
	if since != nil {
		s := *since
		call.Since = &s
	}
	r.changesetCalls = append(r.changesetCalls, call)

	if r.ChangesetErr != nil {
		return nil, r.ChangesetErr
	}
	metadata := r.Metadata
	if metadata == nil {
		metadata = ir.IRObject{}
	}
	return &kinto.Changeset{
		Metadata:  metadata,
		Changes:   append([]ir.Record(nil), r.Changes...),
		Timestamp: r.ChangesetTimestamp,
	}, nil
}

// TimestampCalls returns how many times LatestChangeTimestamp was called.
func (r *StubRemote) TimestampCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timestampCalls
}

// ChangesetCalls returns the recorded Changeset calls in order.
func (r *StubRemote) ChangesetCalls() []ChangesetCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChangesetCall(nil), r.changesetCalls...)
}
