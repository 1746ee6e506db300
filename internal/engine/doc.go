// Package engine keeps a local copy of a Remote Settings collection in sync
// with the server.
//
// ARCHITECTURE:
//
// A Client wires three collaborators together:
//   - Storage (internal/store) persists the encoded collection under
//     "{bucket}/{collection}:collection"
//   - Remote (internal/kinto) serves the latest timestamp and changesets
//   - Verifier (internal/signatures) establishes trust in a collection
//
// Sync Flow:
// 1. Load and decode the stored collection (failures mean "nothing stored")
// 2. Resolve the target timestamp (caller-supplied or queried)
// 3. Return the stored collection if it is at the target and verifies
// 4. Fetch the changeset since the stored timestamp
// 5. Merge changes into the stored records (MergeChanges)
// 6. Verify the merged collection, then store it
//
// Storage is only ever written with a verified collection. A failed
// verification leaves the previous value in place.
//
// Get returns stored records without touching the network, unless nothing
// usable is stored and sync-if-empty is enabled.
//
// ERRORS:
//
// Every error returned by Client is an *Error of kind KindVerification,
// KindStorage or KindAPI. The subsystem error is available via errors.As.
//
// The engine never retries. Retry and polling policy belong to the caller.
package engine
