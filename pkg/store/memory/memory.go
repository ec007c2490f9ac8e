// Package memory is a map-backed GraphStore for tests and dry runs.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/store"
)

type nodeKey struct {
	label string
	id    string
}

type edgeKey struct {
	source string
	target string
	typ    string
}

type GraphStore struct {
	mu    sync.RWMutex
	nodes map[nodeKey]map[string]any
	edges map[edgeKey]map[string]any
	ids   map[string]int
}

func New() *GraphStore {
	return &GraphStore{
		nodes: make(map[nodeKey]map[string]any),
		edges: make(map[edgeKey]map[string]any),
		ids:   make(map[string]int),
	}
}

var _ store.GraphStore = (*GraphStore)(nil)

// UpsertFragment applies frag under one lock, so concurrent readers see
// either none or all of it.
func (s *GraphStore) UpsertFragment(ctx context.Context, frag common.Fragment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range frag.Nodes {
		k := nodeKey{label: n.Label, id: n.ID}
		current, ok := s.nodes[k]
		if !ok {
			s.ids[n.ID]++
		}
		s.nodes[k] = store.MergeProperties(current, n.Properties)
	}

	for _, e := range frag.Edges {
		if s.ids[e.SourceID] == 0 || s.ids[e.TargetID] == 0 {
			continue
		}
		k := edgeKey{source: e.SourceID, target: e.TargetID, typ: e.Type}
		s.edges[k] = store.MergeProperties(s.edges[k], e.Properties)
	}
	return nil
}

func (s *GraphStore) Close(ctx context.Context) error {
	return nil
}

// Nodes returns a snapshot ordered by id, then label.
func (s *GraphStore) Nodes() []common.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Node, 0, len(s.nodes))
	for k, props := range s.nodes {
		out = append(out, common.Node{ID: k.id, Label: k.label, Properties: store.MergeProperties(nil, props)})
	}
	slices.SortFunc(out, func(a, b common.Node) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Label, b.Label))
	})
	return out
}

// Edges returns a snapshot ordered by source, target, then type.
func (s *GraphStore) Edges() []common.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]common.Edge, 0, len(s.edges))
	for k, props := range s.edges {
		out = append(out, common.Edge{SourceID: k.source, TargetID: k.target, Type: k.typ, Properties: store.MergeProperties(nil, props)})
	}
	slices.SortFunc(out, func(a, b common.Edge) int {
		return cmp.Or(
			cmp.Compare(a.SourceID, b.SourceID),
			cmp.Compare(a.TargetID, b.TargetID),
			cmp.Compare(a.Type, b.Type),
		)
	})
	return out
}
