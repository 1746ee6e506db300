package kinto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/roach88/settingsync/internal/ir"
)

// Monitor collection listing the latest timestamp of every collection.
const (
	MonitorBucket     = "monitor"
	MonitorCollection = "changes"
)

// maxBodySize bounds response bodies.
const maxBodySize = 64 << 20

// Changeset is the response of the changeset endpoint.
type Changeset struct {
	Metadata  ir.IRObject
	Changes   []ir.Record
	Timestamp uint64
}

type changesetResponse struct {
	Metadata  json.RawMessage   `json:"metadata"`
	Changes   []json.RawMessage `json:"changes"`
	Timestamp *uint64           `json:"timestamp"`
}

// Client is a Remote Settings HTTP client.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	serverURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a client for the server rooted at serverURL,
// e.g. "https://firefox.settings.services.mozilla.com/v1".
func NewClient(serverURL string, opts ...Option) *Client {
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServerURL returns the server root.
func (c *Client) ServerURL() string {
	return c.serverURL
}

// LatestChangeTimestamp returns the current timestamp of bid/cid as listed
// by the monitor collection.
//
// Returns a KindUnknownCollection error if the listing has no matching entry.
func (c *Client) LatestChangeTimestamp(ctx context.Context, bid, cid string) (uint64, error) {
	cs, err := c.Changeset(ctx, MonitorBucket, MonitorCollection, 0, nil)
	if err != nil {
		return 0, err
	}

	for _, entry := range cs.Changes {
		b, _ := entry.String("bucket")
		col, _ := entry.String("collection")
		if b == bid && col == cid {
			c.logger.Debug("latest change timestamp",
				"bucket", bid,
				"collection", cid,
				"timestamp", entry.LastModified())
			return entry.LastModified(), nil
		}
	}
	return 0, newUnknownCollection(bid, cid)
}

// Changeset fetches the changes of bid/cid.
//
// expected is a cache-busting hint: the timestamp the caller expects the
// server to serve. since, when non-nil, limits the response to changes made
// after that timestamp; nil requests the full dataset.
func (c *Client) Changeset(ctx context.Context, bid, cid string, expected uint64, since *uint64) (*Changeset, error) {
	endpoint, err := url.JoinPath(c.serverURL, "buckets", bid, "collections", cid, "changeset")
	if err != nil {
		return nil, &Error{Kind: KindClient, Name: fmt.Sprintf("invalid server URL %q", c.serverURL), Err: err}
	}

	query := url.Values{}
	query.Set("_expected", strconv.FormatUint(expected, 10))
	if since != nil {
		query.Set("_since", strconv.FormatUint(*since, 10))
	}

	body, err := c.get(ctx, endpoint, query)
	if err != nil {
		return nil, err
	}
	return decodeChangeset(body)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	target := endpoint + "?" + query.Encode()
	c.logger.Debug("fetching", "url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindClient, Name: fmt.Sprintf("could not build request for %s", target), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindServer, Name: fmt.Sprintf("could not reach %s: %v", endpoint, err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{Kind: KindServer, Name: fmt.Sprintf("could not read response from %s", endpoint), Err: err}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &Error{
			Kind:       KindServer,
			Name:       fmt.Sprintf("server error %d from %s", resp.StatusCode, endpoint),
			Response:   decodeErrorResponse(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 400:
		return nil, &Error{
			Kind:     KindClient,
			Name:     fmt.Sprintf("client error %d from %s", resp.StatusCode, endpoint),
			Response: decodeErrorResponse(body),
		}
	case resp.StatusCode != http.StatusOK:
		return nil, newContentError(fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, endpoint), nil)
	}
	return body, nil
}

func decodeChangeset(body []byte) (*Changeset, error) {
	var raw changesetResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, newContentError(fmt.Sprintf("could not parse changeset: %v", err), err)
	}
	if raw.Timestamp == nil {
		return nil, newContentError("changeset has no timestamp", nil)
	}
	if *raw.Timestamp > ir.MaxTimestamp {
		return nil, newContentError(fmt.Sprintf("changeset timestamp %d out of range", *raw.Timestamp), nil)
	}

	metadata := ir.IRObject{}
	if len(bytes.TrimSpace(raw.Metadata)) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Metadata), []byte("null")) {
		if err := metadata.UnmarshalJSON(raw.Metadata); err != nil {
			return nil, newContentError(fmt.Sprintf("could not parse changeset metadata: %v", err), err)
		}
	}

	changes := make([]ir.Record, 0, len(raw.Changes))
	for i, entry := range raw.Changes {
		var r ir.Record
		if err := r.UnmarshalJSON(entry); err != nil {
			return nil, newContentError(fmt.Sprintf("changes[%d]: %v", i, err), err)
		}
		changes = append(changes, r)
	}

	return &Changeset{
		Metadata:  metadata,
		Changes:   changes,
		Timestamp: *raw.Timestamp,
	}, nil
}

// decodeErrorResponse returns nil for bodies not in Kinto's error shape.
func decodeErrorResponse(body []byte) *ErrorResponse {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return nil
	}
	if er.Code == 0 && er.Errno == 0 && er.Error == "" && er.Message == "" {
		return nil
	}
	return &er
}

func parseRetryAfter(v string) *uint64 {
	if v == "" {
		return nil
	}
	secs, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return nil
	}
	return &secs
}
