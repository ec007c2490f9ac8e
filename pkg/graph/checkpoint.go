package graph

import "github.com/OFFIS-RIT/lexgraph/pkg/common"

// Checkpoint is the set of record ids that already have a fragment in the
// store. Records in the set are skipped on resume.
type Checkpoint struct {
	ids map[string]struct{}
}

// AlreadyProcessed derives the processed record ids from stored fragments.
// A fragment counts by its SourceRecordID, or by its first node id when the
// field is absent. Fragments with neither are ignored.
func AlreadyProcessed(frags []common.Fragment) map[string]struct{} {
	ids := make(map[string]struct{}, len(frags))
	for _, f := range frags {
		if id := f.RecordID(); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func NewCheckpoint(frags []common.Fragment) *Checkpoint {
	return &Checkpoint{ids: AlreadyProcessed(frags)}
}

func (c *Checkpoint) Has(id string) bool {
	_, ok := c.ids[id]
	return ok
}

func (c *Checkpoint) Add(id string) {
	if id == "" {
		return
	}
	c.ids[id] = struct{}{}
}

func (c *Checkpoint) Len() int {
	return len(c.ids)
}
