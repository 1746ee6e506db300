package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
//
// A scenario seeds storage and a stub remote, runs a flow of Get and Sync
// calls against a real engine.Client, and asserts on the calls' results,
// the remote traffic and the final stored collection.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Bucket defaults to "main".
	Bucket string `yaml:"bucket,omitempty"`

	// Collection is required.
	Collection string `yaml:"collection"`

	// TrustLocal and SyncIfEmpty default to true when omitted.
	TrustLocal  *bool `yaml:"trust_local,omitempty"`
	SyncIfEmpty *bool `yaml:"sync_if_empty,omitempty"`

	// Verifier is one of the Verifier* constants. Defaults to accept.
	Verifier string `yaml:"verifier,omitempty"`

	// Storage configures storage failures.
	Storage StorageState `yaml:"storage,omitempty"`

	// Stored is the collection present in storage before the flow.
	Stored *StoredState `yaml:"stored,omitempty"`

	// Remote is what the stub remote serves.
	Remote RemoteState `yaml:"remote"`

	// Flow contains the client calls with expected results.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate remote traffic and final storage.
	Assertions []Assertion `yaml:"assertions"`
}

// StorageState configures the scenario's memory storage.
type StorageState struct {
	FailReads  bool `yaml:"fail_reads,omitempty"`
	FailWrites bool `yaml:"fail_writes,omitempty"`
}

// StoredState seeds storage.
// Raw, when set, is stored verbatim instead of an encoded collection.
type StoredState struct {
	Raw       string           `yaml:"raw,omitempty"`
	Timestamp uint64           `yaml:"timestamp"`
	Metadata  map[string]any   `yaml:"metadata,omitempty"`
	Records   []map[string]any `yaml:"records,omitempty"`
}

// RemoteState configures the stub remote.
type RemoteState struct {
	// Timestamp is served as the latest change timestamp.
	Timestamp uint64 `yaml:"timestamp"`

	// Error makes the timestamp query fail (one of the RemoteError* constants).
	Error string `yaml:"error,omitempty"`

	Changeset ChangesetState `yaml:"changeset"`
}

// ChangesetState is the changeset served for every fetch.
type ChangesetState struct {
	Timestamp uint64           `yaml:"timestamp"`
	Metadata  map[string]any   `yaml:"metadata,omitempty"`
	Changes   []map[string]any `yaml:"changes,omitempty"`
	Error     string           `yaml:"error,omitempty"`
}

// FlowStep is one client call.
type FlowStep struct {
	// Op is "get" or "sync".
	Op string `yaml:"op"`

	// Expected is the expected timestamp passed to sync; omitted means nil.
	Expected *uint64 `yaml:"expected,omitempty"`

	// Expect validates the call's outcome. If nil, the call must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a call.
type ExpectClause struct {
	// Error is the expected engine error kind, e.g. "API_ERROR".
	Error string `yaml:"error,omitempty"`

	// Records are the expected ids of the returned records, in order.
	// Nil skips the check.
	Records []string `yaml:"records,omitempty"`

	// Timestamp is the expected collection timestamp (sync only).
	Timestamp *uint64 `yaml:"timestamp,omitempty"`
}

// Assertion validates remote traffic or final storage.
type Assertion struct {
	// Type specifies the assertion type:
	// - "calls": remote call counts
	// - "since": the since cursor of one changeset fetch
	// - "stored": the final stored collection
	// - "record": field values of one stored record
	Type string `yaml:"type"`

	// TimestampCalls and ChangesetCalls are expected counts (calls).
	TimestampCalls *int `yaml:"timestamp_calls,omitempty"`
	ChangesetCalls *int `yaml:"changeset_calls,omitempty"`

	// Index selects a changeset fetch, from 0 (since).
	Index int `yaml:"index,omitempty"`

	// Since is the expected cursor; nil means a full fetch (since).
	Since *uint64 `yaml:"since,omitempty"`

	// Absent expects nothing usable in storage (stored).
	Absent bool `yaml:"absent,omitempty"`

	// Timestamp and Records describe the stored collection (stored).
	Timestamp *uint64 `yaml:"timestamp,omitempty"`
	Records   []string `yaml:"records,omitempty"`

	// ID and Expect select a stored record and its expected fields (record).
	// Subset match - only specified fields are validated.
	ID     string         `yaml:"id,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertCalls  = "calls"
	AssertSince  = "since"
	AssertStored = "stored"
	AssertRecord = "record"
)

// Verifier modes.
const (
	VerifierAccept       = "accept"        // accept everything
	VerifierReject       = "reject"        // reject everything
	VerifierRejectStored = "reject_stored" // reject only the initially stored collection
)

// Remote error kinds.
const (
	RemoteErrorServer            = "server"
	RemoteErrorContent           = "content"
	RemoteErrorUnknownCollection = "unknown_collection"
)

// Flow operations.
const (
	OpGet  = "get"
	OpSync = "sync"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Validate required fields
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Collection == "" {
		return fmt.Errorf("collection is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	switch s.Verifier {
	case "", VerifierAccept, VerifierReject, VerifierRejectStored:
	default:
		return fmt.Errorf("unknown verifier %q", s.Verifier)
	}

	for _, e := range []string{s.Remote.Error, s.Remote.Changeset.Error} {
		switch e {
		case "", RemoteErrorServer, RemoteErrorContent, RemoteErrorUnknownCollection:
		default:
			return fmt.Errorf("unknown remote error %q", e)
		}
	}

	// Validate flow steps
	for i, step := range s.Flow {
		if step.Op != OpGet && step.Op != OpSync {
			return fmt.Errorf("flow[%d]: op must be %q or %q, got %q", i, OpGet, OpSync, step.Op)
		}
		if step.Op == OpGet && step.Expected != nil {
			return fmt.Errorf("flow[%d]: expected is only valid for sync", i)
		}
	}

	// Validate assertions
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCalls:
		if a.TimestampCalls == nil && a.ChangesetCalls == nil {
			return fmt.Errorf("assertions[%d]: timestamp_calls or changeset_calls is required for calls", index)
		}
	case AssertSince:
		if a.Index < 0 {
			return fmt.Errorf("assertions[%d]: index must be non-negative for since", index)
		}
	case AssertStored:
		if !a.Absent && a.Timestamp == nil && a.Records == nil {
			return fmt.Errorf("assertions[%d]: absent, timestamp or records is required for stored", index)
		}
	case AssertRecord:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
