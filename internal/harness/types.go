package harness

import (
	"github.com/roach88/settingsync/internal/ir"
	"github.com/roach88/settingsync/internal/testutil"
)

// TraceEvent records one client call made by a scenario flow.
type TraceEvent struct {
	Type      string   `json:"type"` // "get" or "sync"
	Seq       int64    `json:"seq"`
	Expected  *uint64  `json:"expected,omitempty"`
	Records   []string `json:"records"`             // ids of the returned records
	Timestamp *uint64  `json:"timestamp,omitempty"` // sync only
	Error     string   `json:"error,omitempty"`     // engine error kind
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains every client call in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Stored is the collection left in storage, nil if none or malformed.
	Stored *ir.Collection `json:"stored,omitempty"`

	// TimestampCalls and ChangesetCalls record the remote traffic.
	TimestampCalls int                      `json:"timestamp_calls"`
	ChangesetCalls []testutil.ChangesetCall `json:"changeset_calls"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a call to the trace, numbering it from 1.
func (r *Result) AddTrace(event TraceEvent) {
	event.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, event)
}
