package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
)

// Domain prefixes for digests.
const (
	// DomainContentSignature prefixes every payload signed by the
	// Remote Settings content-signature service.
	DomainContentSignature = "Content-Signature:"

	// DomainCollection prefixes collection fingerprints.
	DomainCollection = "settingsync/collection/v1"
)

// DigestWithDomain computes h(domain + 0x00 + data).
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
//
// Example: DigestWithDomain(sha512.New384(), DomainContentSignature, payload)
func DigestWithDomain(h hash.Hash, domain string, data []byte) []byte {
	h.Reset()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return h.Sum(nil)
}

// Fingerprint returns a stable SHA-256 hex digest of the collection's
// canonical form. Two collections with the same content produce the same
// fingerprint regardless of record order.
func Fingerprint(c *Collection) (string, error) {
	if c.Timestamp > MaxTimestamp {
		return "", fmt.Errorf("fingerprint: timestamp %d exceeds %d", c.Timestamp, uint64(MaxTimestamp))
	}
	canonical, err := MarshalCanonical(c.canonicalObject())
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return hex.EncodeToString(DigestWithDomain(sha256.New(), DomainCollection, canonical)), nil
}
