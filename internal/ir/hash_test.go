package ir

import (
	"crypto/sha256"
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestWithDomainSeparator(t *testing.T) {
	data := []byte(`{"data":[],"last_modified":"1"}`)

	got := DigestWithDomain(sha512.New384(), DomainContentSignature, data)

	want := sha512.Sum384(append([]byte("Content-Signature:\x00"), data...))
	assert.Equal(t, want[:], got)
}

func TestDigestWithDomainResetsHash(t *testing.T) {
	h := sha256.New()
	h.Write([]byte("garbage"))

	first := DigestWithDomain(h, DomainCollection, []byte("x"))
	second := DigestWithDomain(h, DomainCollection, []byte("x"))

	assert.Equal(t, first, second)
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	data := []byte(`{"id":"test","data":42}`)

	h1 := DigestWithDomain(sha256.New(), DomainContentSignature, data)
	h2 := DigestWithDomain(sha256.New(), DomainCollection, data)

	assert.NotEqual(t, h1, h2, "different domains must produce different digests")
}

func TestFingerprintIgnoresRecordOrder(t *testing.T) {
	a := MustRecord(map[string]any{"id": "a", "last_modified": 1})
	b := MustRecord(map[string]any{"id": "b", "last_modified": 2})

	c1 := &Collection{Bid: "main", Cid: "cfr", Records: []Record{a, b}, Timestamp: 2}
	c2 := &Collection{Bid: "main", Cid: "cfr", Records: []Record{b, a}, Timestamp: 2}

	f1, err := Fingerprint(c1)
	require.NoError(t, err)
	f2, err := Fingerprint(c2)
	require.NoError(t, err)

	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintChangesWithContent(t *testing.T) {
	base := &Collection{
		Bid:       "main",
		Cid:       "cfr",
		Metadata:  IRObject{},
		Records:   []Record{MustRecord(map[string]any{"id": "a", "last_modified": 1})},
		Timestamp: 1,
	}
	baseFP, err := Fingerprint(base)
	require.NoError(t, err)

	variants := map[string]*Collection{
		"timestamp": {Bid: "main", Cid: "cfr", Records: base.Records, Timestamp: 2},
		"cid":       {Bid: "main", Cid: "other", Records: base.Records, Timestamp: 1},
		"metadata":  {Bid: "main", Cid: "cfr", Metadata: IRObject{"x": IRInt(1)}, Records: base.Records, Timestamp: 1},
		"records":   {Bid: "main", Cid: "cfr", Timestamp: 1},
	}

	for name, c := range variants {
		t.Run(name, func(t *testing.T) {
			fp, err := Fingerprint(c)
			require.NoError(t, err)
			assert.NotEqual(t, baseFP, fp)
		})
	}
}

func TestFingerprintNilAndEmptyMetadataMatch(t *testing.T) {
	f1, err := Fingerprint(&Collection{Bid: "b", Cid: "c"})
	require.NoError(t, err)
	f2, err := Fingerprint(&Collection{Bid: "b", Cid: "c", Metadata: IRObject{}, Records: []Record{}})
	require.NoError(t, err)

	assert.Equal(t, f1, f2)
}
