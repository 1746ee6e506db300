package engine

import (
	"sync"

	"github.com/google/uuid"
)

// SyncIDGenerator generates the id attached to the log lines of one Get or
// Sync call. Implemented by UUIDv7Generator (production) and FixedGenerator
// (tests).
type SyncIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 sync ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time when grepping logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Format: "550e8400-e29b-41d4-a716-446655440000" (36 characters)
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined sync ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("sync-1", "sync-2")
//	gen.Generate() // "sync-1"
//	gen.Generate() // "sync-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed. This catches tests that make more
// calls than they expect.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
