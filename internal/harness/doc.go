// Package harness runs YAML conformance scenarios against the sync client.
//
// A scenario seeds a memory storage and a stub remote, drives a flow of
// Get and Sync calls through a real engine.Client, and checks three things:
//
//   - each call's outcome (returned record ids, timestamp, error kind)
//   - the remote traffic (timestamp queries, changeset fetches and their
//     since cursors)
//   - the collection left in storage
//
// Scenario files live in testdata/scenarios. Every scenario also has a
// golden snapshot in testdata/golden, compared with goldie:
//
//	go test ./internal/harness -update
//
// regenerates the snapshots.
package harness
