package engine

import (
	"github.com/roach88/settingsync/internal/ir"
)

// MergeChanges applies remote changes to local records and returns the new
// record set, sorted by id.
//
// Changes are applied in reverse of the order received. A tombstone removes
// its id (absent ids are a no-op) and any other change inserts or replaces
// the record with its id. Local records whose id does not appear in changes
// are kept as is.
//
// Neither input is modified.
func MergeChanges(local, changes []ir.Record) []ir.Record {
	byID := make(map[string]ir.Record, len(local)+len(changes))
	for _, r := range local {
		byID[r.ID()] = r
	}

	for i := len(changes) - 1; i >= 0; i-- {
		change := changes[i]
		if change.Deleted() {
			delete(byID, change.ID())
			continue
		}
		byID[change.ID()] = change
	}

	merged := make([]ir.Record, 0, len(byID))
	for _, r := range byID {
		merged = append(merged, r)
	}
	return ir.SortRecordsByID(merged)
}
