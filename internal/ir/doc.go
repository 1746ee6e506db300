// Package ir provides the value types shared by every other package of
// settingsync: sealed JSON values, records, collections, and the canonical
// serialization used for signatures and fingerprints.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Numbers decode through json.Number; integers never pass through float64
//   - Every Record has a string id and a non-negative integer last_modified
//   - Collections are values; nothing in ir mutates one after construction
//   - All JSON tags use snake_case
package ir
