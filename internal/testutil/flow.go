package testutil

// FixedSyncIDGenerator generates the same sync id every time.
//
// This keeps log output deterministic across runs. Unlike
// engine.FixedGenerator, which returns ids in sequence and panics when
// exhausted, this generator never runs out.
//
// Thread-safety: FixedSyncIDGenerator is stateless and safe for concurrent use.
type FixedSyncIDGenerator struct {
	id string
}

// NewFixedSyncIDGenerator creates a new fixed sync id generator.
//
// If id is empty, Generate() returns "test-sync-default".
func NewFixedSyncIDGenerator(id string) *FixedSyncIDGenerator {
	if id == "" {
		id = "test-sync-default"
	}
	return &FixedSyncIDGenerator{id: id}
}

// Generate returns the fixed sync id.
//
// Implements engine.SyncIDGenerator interface.
func (g *FixedSyncIDGenerator) Generate() string {
	return g.id
}
