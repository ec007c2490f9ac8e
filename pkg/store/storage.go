package store

import (
	"context"

	"github.com/OFFIS-RIT/lexgraph/pkg/common"
)

// GraphStore is a property graph that accepts idempotent fragment upserts.
//
// Nodes are identified by (label, id) and edges by (source id, target id,
// type). Upserting the same fragment again only overwrites property values.
// Edges whose endpoints do not exist yet are not created and no stub nodes
// are manufactured.
type GraphStore interface {
	// UpsertFragment writes all nodes and then all edges of frag as one
	// atomic unit of work.
	UpsertFragment(ctx context.Context, frag common.Fragment) error
	Close(ctx context.Context) error
}

// SchemaInitializer is implemented by stores that need per-label setup
// such as uniqueness constraints before ingestion.
type SchemaInitializer interface {
	EnsureSchema(ctx context.Context, vocab common.Vocabulary) error
}
