package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/settingsync/internal/ir"
)

// TraceSnapshot captures the observable outcome of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	Result       *Result
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type":    event.Type,
			"seq":     event.Seq,
			"records": stringList(event.Records),
		}
		if event.Expected != nil {
			eventMap["expected"] = *event.Expected
		}
		if event.Timestamp != nil {
			eventMap["timestamp"] = *event.Timestamp
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}

	if s.Result != nil {
		changesets := make([]any, len(s.Result.ChangesetCalls))
		for i, call := range s.Result.ChangesetCalls {
			callMap := map[string]any{"expected": call.Expected}
			if call.Since != nil {
				callMap["since"] = *call.Since
			}
			changesets[i] = callMap
		}
		result["remote"] = map[string]any{
			"timestamp_calls": s.Result.TimestampCalls,
			"changesets":      changesets,
		}

		if s.Result.Stored != nil {
			result["stored"] = map[string]any{
				"timestamp": s.Result.Stored.Timestamp,
				"records":   stringList(recordIDs(s.Result.Stored.Records)),
			}
		}
	}
	return result
}

func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Result:       result,
	}

	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
