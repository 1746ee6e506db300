package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/settingsync/internal/engine"
	"github.com/roach88/settingsync/internal/ir"
	"github.com/roach88/settingsync/internal/kinto"
	"github.com/roach88/settingsync/internal/signatures"
	"github.com/roach88/settingsync/internal/store"
	"github.com/roach88/settingsync/internal/testutil"
)

// syncID is the sync id of every scenario run, keeping logs deterministic.
const syncID = "scenario-sync"

// Run executes a scenario against a real engine.Client backed by memory
// storage and a stub remote.
//
// Call failures expected by the scenario are not errors: they are compared
// against the flow's expect clauses and recorded in the result. Run returns
// an error only when the scenario itself cannot be set up.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	result := NewResult()

	bucket := scenario.Bucket
	if bucket == "" {
		bucket = engine.DefaultBucketName
	}

	// Seed storage before fault injection so that failing reads still
	// have something to hide.
	memory := store.NewMemoryStorage()
	if scenario.Stored != nil {
		data, err := encodeStored(bucket, scenario.Collection, scenario.Stored)
		if err != nil {
			return nil, fmt.Errorf("stored: %w", err)
		}
		if err := memory.Store(ctx, store.Key(bucket, scenario.Collection), data); err != nil {
			return nil, fmt.Errorf("stored: %w", err)
		}
	}
	storage := &faultyStorage{
		inner:      memory,
		failReads:  scenario.Storage.FailReads,
		failWrites: scenario.Storage.FailWrites,
	}

	remote, err := buildRemote(bucket, scenario.Collection, scenario.Remote)
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}

	client := engine.New(scenario.Collection,
		engine.WithBucket(bucket),
		engine.WithStorage(storage),
		engine.WithRemote(remote),
		engine.WithVerifier(buildVerifier(scenario)),
		engine.WithTrustLocal(boolOr(scenario.TrustLocal, true)),
		engine.WithSyncIfEmpty(boolOr(scenario.SyncIfEmpty, true)),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithSyncIDGenerator(testutil.NewFixedSyncIDGenerator(syncID)),
	)

	for i, step := range scenario.Flow {
		event := runStep(ctx, client, step)
		result.AddTrace(event)
		if err := checkExpect(i, step, event); err != nil {
			result.AddError(err.Error())
		}
	}

	result.Stored = readStored(ctx, memory, client.StorageKey())
	result.TimestampCalls = remote.TimestampCalls()
	result.ChangesetCalls = remote.ChangesetCalls()

	for _, assertion := range scenario.Assertions {
		if err := checkAssertion(result, assertion); err != nil {
			result.AddError(err.Error())
		}
	}

	return result, nil
}

func runStep(ctx context.Context, client *engine.Client, step FlowStep) TraceEvent {
	event := TraceEvent{Type: step.Op, Expected: step.Expected, Records: []string{}}

	var records []ir.Record
	var err error
	switch step.Op {
	case OpGet:
		records, err = client.Get(ctx)
	case OpSync:
		var collection *ir.Collection
		collection, err = client.Sync(ctx, step.Expected)
		if collection != nil {
			records = collection.Records
			ts := collection.Timestamp
			event.Timestamp = &ts
		}
	}

	for _, r := range records {
		event.Records = append(event.Records, r.ID())
	}
	if err != nil {
		event.Error = errorKind(err)
	}
	return event
}

// errorKind returns the engine error kind of err, or its message for
// errors outside the engine taxonomy.
func errorKind(err error) string {
	switch {
	case engine.IsVerificationError(err):
		return string(engine.KindVerification)
	case engine.IsStorageError(err):
		return string(engine.KindStorage)
	case engine.IsAPIError(err):
		return string(engine.KindAPI)
	default:
		return err.Error()
	}
}

func checkExpect(index int, step FlowStep, event TraceEvent) error {
	if step.Expect == nil {
		if event.Error != "" {
			return fmt.Errorf("flow[%d] %s: unexpected error %s", index, step.Op, event.Error)
		}
		return nil
	}

	if event.Error != step.Expect.Error {
		return fmt.Errorf("flow[%d] %s: expected error %q, got %q", index, step.Op, step.Expect.Error, event.Error)
	}
	if step.Expect.Records != nil && !equalStrings(event.Records, step.Expect.Records) {
		return fmt.Errorf("flow[%d] %s: expected records %v, got %v", index, step.Op, step.Expect.Records, event.Records)
	}
	if step.Expect.Timestamp != nil {
		if event.Timestamp == nil {
			return fmt.Errorf("flow[%d] %s: expected timestamp %d, got none", index, step.Op, *step.Expect.Timestamp)
		}
		if *event.Timestamp != *step.Expect.Timestamp {
			return fmt.Errorf("flow[%d] %s: expected timestamp %d, got %d", index, step.Op, *step.Expect.Timestamp, *event.Timestamp)
		}
	}
	return nil
}

func encodeStored(bucket, collection string, s *StoredState) ([]byte, error) {
	if s.Raw != "" {
		return []byte(s.Raw), nil
	}
	metadata, err := toObject(s.Metadata)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	records, err := toRecords(s.Records)
	if err != nil {
		return nil, err
	}
	return ir.EncodeCollection(&ir.Collection{
		Bid:       bucket,
		Cid:       collection,
		Metadata:  metadata,
		Records:   ir.SortRecordsByID(records),
		Timestamp: s.Timestamp,
	})
}

func buildRemote(bucket, collection string, r RemoteState) (*testutil.StubRemote, error) {
	metadata, err := toObject(r.Changeset.Metadata)
	if err != nil {
		return nil, fmt.Errorf("changeset metadata: %w", err)
	}
	changes, err := toRecords(r.Changeset.Changes)
	if err != nil {
		return nil, fmt.Errorf("changeset: %w", err)
	}
	return &testutil.StubRemote{
		Timestamp:          r.Timestamp,
		TimestampErr:       remoteError(bucket, collection, r.Error),
		Metadata:           metadata,
		Changes:            changes,
		ChangesetTimestamp: r.Changeset.Timestamp,
		ChangesetErr:       remoteError(bucket, collection, r.Changeset.Error),
	}, nil
}

// remoteError builds the remote failure named by kind, or nil.
func remoteError(bucket, collection, kind string) error {
	switch kind {
	case RemoteErrorServer:
		return &kinto.Error{
			Kind: kinto.KindServer,
			Name: "server error 503",
			Response: &kinto.ErrorResponse{
				Code:    503,
				Errno:   201,
				Error:   "Service Unavailable",
				Message: "backoff",
			},
		}
	case RemoteErrorContent:
		return &kinto.Error{Kind: kinto.KindContent, Name: "changeset has no timestamp"}
	case RemoteErrorUnknownCollection:
		return &kinto.Error{
			Kind:       kinto.KindUnknownCollection,
			Name:       fmt.Sprintf("unknown collection %s/%s", bucket, collection),
			Bucket:     bucket,
			Collection: collection,
		}
	default:
		return nil
	}
}

func buildVerifier(s *Scenario) signatures.Verifier {
	switch s.Verifier {
	case VerifierReject:
		return testutil.FailingVerifier{}
	case VerifierRejectStored:
		// Collections still at the seeded timestamp are rejected.
		var storedTS uint64
		if s.Stored != nil {
			storedTS = s.Stored.Timestamp
		}
		return &testutil.RecordingVerifier{Fn: func(c *ir.Collection) error {
			if c.Timestamp == storedTS {
				return signatures.NewInvalidSignatureError(testutil.InvalidSignatureName)
			}
			return nil
		}}
	default:
		return signatures.DummyVerifier{}
	}
}

func readStored(ctx context.Context, s store.Storage, key string) *ir.Collection {
	data, ok, err := s.Retrieve(ctx, key)
	if err != nil || !ok {
		return nil
	}
	c, err := ir.DecodeCollection(data)
	if err != nil {
		return nil
	}
	return c
}

func toObject(m map[string]any) (ir.IRObject, error) {
	if m == nil {
		return ir.IRObject{}, nil
	}
	v, err := ir.ToIRValue(m)
	if err != nil {
		return nil, err
	}
	return v.(ir.IRObject), nil
}

func toRecords(entries []map[string]any) ([]ir.Record, error) {
	records := make([]ir.Record, 0, len(entries))
	for i, entry := range entries {
		obj, err := toObject(entry)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		r, err := ir.NewRecord(obj)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// faultyStorage wraps a storage backend with on-demand failures.
type faultyStorage struct {
	inner      store.Storage
	failReads  bool
	failWrites bool
}

func (f *faultyStorage) Retrieve(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failReads {
		return nil, false, &store.StorageError{Kind: store.KindRead, Name: "injected read failure"}
	}
	return f.inner.Retrieve(ctx, key)
}

func (f *faultyStorage) Store(ctx context.Context, key string, value []byte) error {
	if f.failWrites {
		return &store.StorageError{Kind: store.KindWrite, Name: "injected write failure"}
	}
	return f.inner.Store(ctx, key, value)
}
