package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/settingsync/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	// Full trace for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s", event.Seq, event.Type)
		if event.Expected != nil {
			fmt.Fprintf(&buf, " expected=%d", *event.Expected)
		}
		fmt.Fprintf(&buf, " -> %v", event.Records)
		if event.Error != "" {
			fmt.Fprintf(&buf, " %s", event.Error)
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// checkAssertion dispatches to the assertion's checker.
func checkAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertCalls:
		return assertCalls(result, a)
	case AssertSince:
		return assertSince(result, a)
	case AssertStored:
		return assertStored(result, a)
	case AssertRecord:
		return assertRecord(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertCalls checks the number of remote calls.
func assertCalls(result *Result, a Assertion) error {
	if a.TimestampCalls != nil && *a.TimestampCalls != result.TimestampCalls {
		return &AssertionError{
			Type:     AssertCalls,
			Expected: fmt.Sprintf("%d timestamp call(s)", *a.TimestampCalls),
			Actual:   fmt.Sprintf("%d timestamp call(s)", result.TimestampCalls),
			Trace:    result.Trace,
		}
	}
	if a.ChangesetCalls != nil && *a.ChangesetCalls != len(result.ChangesetCalls) {
		return &AssertionError{
			Type:     AssertCalls,
			Expected: fmt.Sprintf("%d changeset call(s)", *a.ChangesetCalls),
			Actual:   fmt.Sprintf("%d changeset call(s)", len(result.ChangesetCalls)),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertSince checks the since cursor of one changeset fetch.
func assertSince(result *Result, a Assertion) error {
	if a.Index >= len(result.ChangesetCalls) {
		return &AssertionError{
			Type:     AssertSince,
			Expected: fmt.Sprintf("changeset call #%d", a.Index),
			Actual:   fmt.Sprintf("%d changeset call(s)", len(result.ChangesetCalls)),
			Trace:    result.Trace,
		}
	}

	got := result.ChangesetCalls[a.Index].Since
	if formatSince(got) != formatSince(a.Since) {
		return &AssertionError{
			Type:     AssertSince,
			Expected: fmt.Sprintf("changeset call #%d with since=%s", a.Index, formatSince(a.Since)),
			Actual:   fmt.Sprintf("since=%s", formatSince(got)),
			Trace:    result.Trace,
		}
	}
	return nil
}

func formatSince(since *uint64) string {
	if since == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *since)
}

// assertStored checks the final stored collection.
func assertStored(result *Result, a Assertion) error {
	stored := result.Stored
	if a.Absent {
		if stored != nil {
			return &AssertionError{
				Type:     AssertStored,
				Expected: "nothing stored",
				Actual:   fmt.Sprintf("collection at %d with %d record(s)", stored.Timestamp, len(stored.Records)),
				Trace:    result.Trace,
			}
		}
		return nil
	}

	if stored == nil {
		return &AssertionError{
			Type:     AssertStored,
			Expected: "a stored collection",
			Actual:   "nothing stored",
			Trace:    result.Trace,
		}
	}

	if a.Timestamp != nil && stored.Timestamp != *a.Timestamp {
		return &AssertionError{
			Type:     AssertStored,
			Expected: fmt.Sprintf("timestamp %d", *a.Timestamp),
			Actual:   fmt.Sprintf("timestamp %d", stored.Timestamp),
			Trace:    result.Trace,
		}
	}

	if a.Records != nil {
		ids := recordIDs(stored.Records)
		if !equalStrings(ids, a.Records) {
			return &AssertionError{
				Type:     AssertStored,
				Expected: fmt.Sprintf("records %v", a.Records),
				Actual:   fmt.Sprintf("records %v", ids),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertRecord checks field values of one stored record.
// Uses subset semantics: only fields in Expect are compared.
func assertRecord(result *Result, a Assertion) error {
	if result.Stored == nil {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("stored record %q", a.ID),
			Actual:   "nothing stored",
			Trace:    result.Trace,
		}
	}

	var found *ir.Record
	for i := range result.Stored.Records {
		if result.Stored.Records[i].ID() == a.ID {
			found = &result.Stored.Records[i]
			break
		}
	}
	if found == nil {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("stored record %q", a.ID),
			Actual:   fmt.Sprintf("records %v", recordIDs(result.Stored.Records)),
			Trace:    result.Trace,
		}
	}

	for field, want := range a.Expect {
		wantValue, err := ir.ToIRValue(want)
		if err != nil {
			return fmt.Errorf("record %q: field %q: %w", a.ID, field, err)
		}
		got, ok := found.Get(field)
		if !ok || !reflect.DeepEqual(got, wantValue) {
			actual := "missing"
			if ok {
				actual = fmt.Sprintf("%v", got)
			}
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("record %q field %q = %v", a.ID, field, want),
				Actual:   actual,
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func recordIDs(records []ir.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID()
	}
	return ids
}
