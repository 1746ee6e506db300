// Package kinto talks to a Remote Settings (Kinto) server.
//
// Two endpoints are used:
//
//	GET {server}/buckets/monitor/collections/changes/changeset?_expected=0
//	GET {server}/buckets/{bid}/collections/{cid}/changeset?_expected={ts}[&_since={ts}]
//
// The first lists the latest timestamp of every published collection. The
// second returns the changes of one collection since a point in time, plus
// the signed metadata and the timestamp the changeset was computed against.
//
// Every failure is returned as *Error with a Kind describing where it
// happened. Callers must not retry on their own unless the kind is
// KindServer; RetryAfter carries the server's backoff hint when present.
package kinto
