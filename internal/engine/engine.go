package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/settingsync/internal/ir"
	"github.com/roach88/settingsync/internal/kinto"
	"github.com/roach88/settingsync/internal/signatures"
	"github.com/roach88/settingsync/internal/store"
)

const (
	// DefaultServerURL is the production Remote Settings server.
	DefaultServerURL = "https://firefox.settings.services.mozilla.com/v1"

	// DefaultBucketName is the bucket used when none is configured.
	DefaultBucketName = "main"
)

// Remote is the source of authoritative collection data.
// Implemented by *kinto.Client.
type Remote interface {
	// LatestChangeTimestamp returns the current timestamp of bid/cid.
	LatestChangeTimestamp(ctx context.Context, bid, cid string) (uint64, error)

	// Changeset returns the changes of bid/cid, all of them when since is nil.
	Changeset(ctx context.Context, bid, cid string, expected uint64, since *uint64) (*kinto.Changeset, error)
}

// Client keeps one collection in local storage in sync with the remote.
//
// Client holds no state between calls beyond what is persisted in storage.
// Every Get and Sync reloads local state from scratch.
//
// Thread-safety: calls do not share in-memory state, but concurrent Sync
// calls against the same storage key race at the storage layer. Callers
// needing mutual exclusion must serialize calls themselves.
type Client struct {
	serverURL    string
	bucket       string
	collection   string
	verifier     signatures.Verifier
	storage      store.Storage
	remote       Remote
	syncIfEmpty  bool
	trustLocal   bool
	logger       *slog.Logger
	syncIDGen    SyncIDGenerator
	remoteCustom bool
}

// Option configures a Client.
type Option func(*Client)

// WithServerURL sets the Remote Settings server root.
// Ignored when WithRemote is also given.
func WithServerURL(u string) Option {
	return func(c *Client) {
		c.serverURL = u
	}
}

// WithBucket sets the bucket name.
//
// Default: "main" (DefaultBucketName)
func WithBucket(bucket string) Option {
	return func(c *Client) {
		c.bucket = bucket
	}
}

// WithVerifier sets the verifier used to establish trust in collections.
//
// Default: signatures.DummyVerifier, which accepts everything.
func WithVerifier(v signatures.Verifier) Option {
	return func(c *Client) {
		c.verifier = v
	}
}

// WithStorage sets the persistence backend.
//
// Default: store.DummyStorage, which stores nothing.
func WithStorage(s store.Storage) Option {
	return func(c *Client) {
		c.storage = s
	}
}

// WithRemote replaces the HTTP remote.
func WithRemote(r Remote) Option {
	return func(c *Client) {
		c.remote = r
		c.remoteCustom = true
	}
}

// WithSyncIfEmpty controls whether Get performs a full sync when there is
// no usable local state.
//
// Default: true
func WithSyncIfEmpty(b bool) Option {
	return func(c *Client) {
		c.syncIfEmpty = b
	}
}

// WithTrustLocal controls whether Get returns stored records without
// verifying them.
//
// Default: true
func WithTrustLocal(b bool) Option {
	return func(c *Client) {
		c.trustLocal = b
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSyncIDGenerator sets the generator of per-call sync ids.
//
// Default: UUIDv7Generator
func WithSyncIDGenerator(g SyncIDGenerator) Option {
	return func(c *Client) {
		c.syncIDGen = g
	}
}

// New creates a Client for the named collection.
func New(collection string, opts ...Option) *Client {
	c := &Client{
		serverURL:   DefaultServerURL,
		bucket:      DefaultBucketName,
		collection:  collection,
		verifier:    signatures.DummyVerifier{},
		storage:     store.DummyStorage{},
		syncIfEmpty: true,
		trustLocal:  true,
		logger:      slog.Default(),
		syncIDGen:   UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if !c.remoteCustom {
		c.remote = kinto.NewClient(c.serverURL, kinto.WithLogger(c.logger))
	}
	return c
}

// ServerURL returns the configured server root.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// Collection returns the collection name.
func (c *Client) Collection() string {
	return c.collection
}

// StorageKey returns the key under which the collection is persisted.
func (c *Client) StorageKey() string {
	return store.Key(c.bucket, c.collection)
}

// Get returns the best available trusted records.
//
// Stored records are returned without a network round trip. When nothing
// usable is stored, Get performs a full Sync if sync-if-empty is enabled and
// returns an empty slice otherwise.
//
// When trust-local is disabled, stored records are verified first and a
// verification failure is returned as is, without refreshing.
func (c *Client) Get(ctx context.Context) ([]ir.Record, error) {
	logger := c.logger.With("sync_id", c.syncIDGen.Generate(), "key", c.StorageKey())

	local := c.loadLocal(ctx, logger)
	if local != nil {
		if !c.trustLocal {
			if err := c.verifier.Verify(ctx, local); err != nil {
				logger.Debug("stored collection failed verification", "error", err)
				return nil, fromVerifier(err)
			}
		}
		logger.Debug("returning stored records", "count", len(local.Records), "timestamp", local.Timestamp)
		return local.Records, nil
	}

	if !c.syncIfEmpty {
		logger.Debug("no stored collection and sync-if-empty disabled")
		return []ir.Record{}, nil
	}

	logger.Debug("no stored collection, syncing")
	collection, err := c.sync(ctx, logger, nil)
	if collection == nil {
		return nil, err
	}
	return collection.Records, err
}

// Sync reconciles local state with the remote.
//
// expected is the timestamp the caller knows the collection to be at; nil
// queries the remote for it. The merged collection is verified before it is
// stored, so storage always holds either the previous value or a verified
// one.
//
// A failure to store the verified collection is returned together with the
// collection: the returned data is valid even though caching it failed.
func (c *Client) Sync(ctx context.Context, expected *uint64) (*ir.Collection, error) {
	logger := c.logger.With("sync_id", c.syncIDGen.Generate(), "key", c.StorageKey())
	return c.sync(ctx, logger, expected)
}

func (c *Client) sync(ctx context.Context, logger *slog.Logger, expected *uint64) (*ir.Collection, error) {
	local := c.loadLocal(ctx, logger)

	var target uint64
	if expected != nil {
		target = *expected
	} else {
		ts, err := c.remote.LatestChangeTimestamp(ctx, c.bucket, c.collection)
		if err != nil {
			logger.Debug("could not fetch latest timestamp", "error", err)
			return nil, fromRemote(err)
		}
		target = ts
	}

	if local != nil && local.Timestamp == target {
		err := c.verifier.Verify(ctx, local)
		if err == nil {
			logger.Debug("stored collection is up to date", "timestamp", target)
			return local, nil
		}
		logger.Debug("stored collection is current but untrusted, refetching", "error", err)
	}

	var since *uint64
	var localRecords []ir.Record
	if local != nil {
		since = Expect(local.Timestamp)
		localRecords = local.Records
	}

	cs, err := c.remote.Changeset(ctx, c.bucket, c.collection, target, since)
	if err != nil {
		logger.Debug("could not fetch changeset", "error", err)
		return nil, fromRemote(err)
	}

	logger.Debug("merging changes",
		"local", len(localRecords),
		"changes", len(cs.Changes),
		"timestamp", cs.Timestamp)

	collection := &ir.Collection{
		Bid:       c.bucket,
		Cid:       c.collection,
		Metadata:  cs.Metadata,
		Records:   MergeChanges(localRecords, cs.Changes),
		Timestamp: cs.Timestamp,
	}

	if err := c.verifier.Verify(ctx, collection); err != nil {
		logger.Debug("merged collection failed verification", "error", err)
		return nil, fromVerifier(err)
	}

	data, err := ir.EncodeCollection(collection)
	if err != nil {
		return collection, fromCodec(err)
	}
	if err := c.storage.Store(ctx, c.StorageKey(), data); err != nil {
		logger.Warn("could not store verified collection", "error", err)
		return collection, fromStorage(err)
	}

	logger.Debug("stored collection", "records", len(collection.Records), "timestamp", collection.Timestamp)
	return collection, nil
}

// loadLocal returns the stored collection, or nil when nothing usable is
// stored. Read and decode failures are logged, never returned.
func (c *Client) loadLocal(ctx context.Context, logger *slog.Logger) *ir.Collection {
	data, ok, err := c.storage.Retrieve(ctx, c.StorageKey())
	if err != nil {
		logger.Debug("could not read stored collection", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	collection, err := ir.DecodeCollection(data)
	if err != nil {
		logger.Debug("ignoring malformed stored collection", "error", err)
		return nil
	}
	return collection
}

// Expect returns a pointer to ts, for use as the expected timestamp of Sync.
func Expect(ts uint64) *uint64 {
	return &ts
}
