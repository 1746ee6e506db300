package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/roach88/settingsync/internal/ir"
)

// MonitorEntry is one row of the monitor/changes collection.
type MonitorEntry struct {
	Bucket       string
	Collection   string
	LastModified uint64
}

type cannedResponse struct {
	status int
	header http.Header
	body   []byte
}

// RemoteServer is a fake Remote Settings server.
//
// Responses are registered per bucket/collection pair. Unregistered pairs
// answer 404 with a Kinto error body. Every changeset request is recorded
// so tests can assert on call counts and query parameters.
//
// Thread-safety: all methods are safe for concurrent use.
type RemoteServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]cannedResponse
	requests  map[string][]url.Values
	chain     []byte
	chainHits int
}

// NewRemoteServer starts a server that is closed on test cleanup.
func NewRemoteServer(t testing.TB) *RemoteServer {
	t.Helper()

	s := &RemoteServer{
		responses: make(map[string]cannedResponse),
		requests:  make(map[string][]url.Values),
	}

	r := chi.NewRouter()
	r.Get("/buckets/{bid}/collections/{cid}/changeset", s.handleChangeset)
	r.Get("/chains/chain.pem", s.handleChain)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func key(bid, cid string) string {
	return bid + "/" + cid
}

func (s *RemoteServer) handleChangeset(w http.ResponseWriter, r *http.Request) {
	k := key(chi.URLParam(r, "bid"), chi.URLParam(r, "cid"))

	s.mu.Lock()
	s.requests[k] = append(s.requests[k], r.URL.Query())
	resp, ok := s.responses[k]
	s.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":404,"errno":111,"error":"Not Found","message":"The resource you are looking for could not be found."}`))
		return
	}

	for name, values := range resp.header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body)
}

func (s *RemoteServer) handleChain(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	chain := s.chain
	s.chainHits++
	s.mu.Unlock()

	if chain == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	_, _ = w.Write(chain)
}

// SetResponse registers a raw response for a bucket/collection changeset.
func (s *RemoteServer) SetResponse(bid, cid string, status int, body string, header http.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[key(bid, cid)] = cannedResponse{status: status, header: header, body: []byte(body)}
}

// SetChangeset registers a 200 changeset response.
func (s *RemoteServer) SetChangeset(t testing.TB, bid, cid string, metadata ir.IRObject, changes []ir.Record, timestamp uint64) {
	t.Helper()
	if metadata == nil {
		metadata = ir.IRObject{}
	}
	if changes == nil {
		changes = []ir.Record{}
	}
	body, err := json.Marshal(map[string]any{
		"metadata":  metadata,
		"changes":   changes,
		"timestamp": timestamp,
	})
	require.NoError(t, err)
	s.SetResponse(bid, cid, http.StatusOK, string(body), nil)
}

// SetMonitor registers the monitor/changes listing used to discover the
// latest timestamp of every collection.
func (s *RemoteServer) SetMonitor(t testing.TB, entries ...MonitorEntry) {
	t.Helper()
	changes := make([]ir.Record, 0, len(entries))
	var latest uint64
	for _, e := range entries {
		changes = append(changes, ir.MustRecord(map[string]any{
			"id":            "id-" + e.Bucket + "-" + e.Collection,
			"last_modified": e.LastModified,
			"bucket":        e.Bucket,
			"collection":    e.Collection,
		}))
		latest = max(latest, e.LastModified)
	}
	s.SetChangeset(t, "monitor", "changes", nil, changes, latest)
}

// SetChain sets the PEM served at ChainURL.
func (s *RemoteServer) SetChain(pem []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chain = pem
}

// ChainURL returns the x5u location of the served chain.
func (s *RemoteServer) ChainURL() string {
	return s.URL + "/chains/chain.pem"
}

// ChainHits returns how many times the chain was downloaded.
func (s *RemoteServer) ChainHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainHits
}

// Calls returns how many changeset requests hit bid/cid.
func (s *RemoteServer) Calls(bid, cid string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests[key(bid, cid)])
}

// Requests returns the query parameters of every changeset request to bid/cid.
func (s *RemoteServer) Requests(bid, cid string) []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.requests[key(bid, cid)]))
	copy(out, s.requests[key(bid, cid)])
	return out
}
