package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"testing"

	"github.com/OFFIS-RIT/lexgraph/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nodeRow struct{ label, id string }
type edgeRow struct{ source, target, typ string }

type tables struct {
	nodes map[nodeRow]map[string]any
	edges map[edgeRow]map[string]any
}

func (t tables) clone() tables {
	out := tables{nodes: map[nodeRow]map[string]any{}, edges: map[edgeRow]map[string]any{}}
	for k, v := range t.nodes {
		out.nodes[k] = maps.Clone(v)
	}
	for k, v := range t.edges {
		out.edges[k] = maps.Clone(v)
	}
	return out
}

func (t tables) hasNode(id string) bool {
	for k := range t.nodes {
		if k.id == id {
			return true
		}
	}
	return false
}

// fakeConn applies the two upsert statements to in-memory tables with the
// semantics of the SQL: jsonb || merge on conflict and edges only between
// existing nodes. Each transaction works on a copy that Commit publishes.
type fakeConn struct {
	data      tables
	batches   int
	commits   int
	rollbacks int
	failID    string
}

func newFakeConn() *fakeConn {
	return &fakeConn{data: tables{nodes: map[nodeRow]map[string]any{}, edges: map[edgeRow]map[string]any{}}}
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected Exec")
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, args ...any) pgxv5.Row {
	return countRow{nodes: int64(len(c.data.nodes)), edges: int64(len(c.data.edges))}
}

func (c *fakeConn) Begin(ctx context.Context) (pgxv5.Tx, error) {
	return &fakeTx{conn: c, data: c.data.clone()}, nil
}

type countRow struct{ nodes, edges int64 }

func (r countRow) Scan(dest ...any) error {
	*dest[0].(*int64) = r.nodes
	*dest[1].(*int64) = r.edges
	return nil
}

type fakeTx struct {
	pgxv5.Tx
	conn *fakeConn
	data tables
	done bool
}

func (tx *fakeTx) SendBatch(ctx context.Context, b *pgxv5.Batch) pgxv5.BatchResults {
	tx.conn.batches++
	for _, q := range b.QueuedQueries {
		if err := tx.apply(q.SQL, q.Arguments); err != nil {
			return batchResults{err: err}
		}
	}
	return batchResults{}
}

func (tx *fakeTx) apply(sql string, args []any) error {
	var props map[string]any
	switch sql {
	case upsertNodeSQL:
		if err := json.Unmarshal([]byte(args[2].(string)), &props); err != nil {
			return err
		}
		key := nodeRow{label: args[0].(string), id: args[1].(string)}
		if key.id == tx.conn.failID {
			return fmt.Errorf("constraint violation on %s", key.id)
		}
		tx.data.nodes[key] = merge(tx.data.nodes[key], props)
	case upsertEdgeSQL:
		if err := json.Unmarshal([]byte(args[3].(string)), &props); err != nil {
			return err
		}
		key := edgeRow{source: args[0].(string), target: args[1].(string), typ: args[2].(string)}
		if !tx.data.hasNode(key.source) || !tx.data.hasNode(key.target) {
			return nil
		}
		tx.data.edges[key] = merge(tx.data.edges[key], props)
	default:
		return fmt.Errorf("unexpected statement %q", sql)
	}
	return nil
}

func merge(into, from map[string]any) map[string]any {
	out := maps.Clone(into)
	if out == nil {
		out = map[string]any{}
	}
	maps.Copy(out, from)
	return out
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if tx.done {
		return pgxv5.ErrTxClosed
	}
	tx.done = true
	tx.conn.data = tx.data
	tx.conn.commits++
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgxv5.ErrTxClosed
	}
	tx.done = true
	tx.conn.rollbacks++
	return nil
}

type batchResults struct {
	pgxv5.BatchResults
	err error
}

func (r batchResults) Close() error { return r.err }

func articleFragment() common.Fragment {
	return common.Fragment{
		SourceRecordID: "Article:21A",
		Nodes: []common.Node{
			{ID: "Article:21A", Label: common.LabelArticle, Properties: map[string]any{"number": "21A", "title": "Right to education"}},
			{ID: "Concept:Education", Label: common.LabelConcept},
		},
		Edges: []common.Edge{
			{SourceID: "Article:21A", TargetID: "Concept:Education", Type: common.EdgeMentions, Properties: map[string]any{"snippet": "free and compulsory"}},
		},
	}
}

func TestUpsertFragmentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	s := NewGraphDBStorageWithConnection(conn)

	require.NoError(t, s.UpsertFragment(ctx, articleFragment()))
	first := conn.data.clone()

	require.NoError(t, s.UpsertFragment(ctx, articleFragment()))
	assert.Equal(t, first, conn.data)

	nodes, edges, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nodes)
	assert.Equal(t, int64(1), edges)
	assert.Equal(t, 2, conn.commits)
}

func TestUpsertFragmentMergesProperties(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	s := NewGraphDBStorageWithConnection(conn)

	require.NoError(t, s.UpsertFragment(ctx, articleFragment()))
	require.NoError(t, s.UpsertFragment(ctx, common.Fragment{Nodes: []common.Node{
		{ID: "Article:21A", Label: common.LabelArticle, Properties: map[string]any{"title": "Right to Education", "part": "III"}},
	}}))

	assert.Equal(t,
		map[string]any{"number": "21A", "title": "Right to Education", "part": "III"},
		conn.data.nodes[nodeRow{label: common.LabelArticle, id: "Article:21A"}],
	)
}

func TestUpsertFragmentDanglingEdge(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	s := NewGraphDBStorageWithConnection(conn)

	refersForward := common.Fragment{
		Nodes: []common.Node{{ID: "Article:21A", Label: common.LabelArticle}},
		Edges: []common.Edge{{SourceID: "Article:21A", TargetID: "Article:45", Type: common.EdgeRefersTo}},
	}
	require.NoError(t, s.UpsertFragment(ctx, refersForward))
	assert.Len(t, conn.data.nodes, 1, "no stub node for the missing endpoint")
	assert.Empty(t, conn.data.edges)

	require.NoError(t, s.UpsertFragment(ctx, common.Fragment{Nodes: []common.Node{{ID: "Article:45", Label: common.LabelArticle}}}))
	require.NoError(t, s.UpsertFragment(ctx, refersForward))
	assert.Len(t, conn.data.edges, 1)
}

func TestUpsertFragmentRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConn()
	conn.failID = "Concept:Education"
	s := NewGraphDBStorageWithConnection(conn)

	err := s.UpsertFragment(ctx, articleFragment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert nodes")
	assert.Empty(t, conn.data.nodes, "a failed fragment leaves nothing behind")
	assert.Equal(t, 0, conn.commits)
	assert.Equal(t, 1, conn.rollbacks)
}

func TestUpsertFragmentBatchesLargeFragments(t *testing.T) {
	conn := newFakeConn()
	s := NewGraphDBStorageWithConnection(conn)

	frag := common.Fragment{}
	for i := range 1201 {
		frag.Nodes = append(frag.Nodes, common.Node{ID: fmt.Sprintf("Concept:%d", i), Label: common.LabelConcept})
	}
	frag.Edges = []common.Edge{{SourceID: "Concept:0", TargetID: "Concept:1", Type: common.EdgeRefersTo}}

	require.NoError(t, s.UpsertFragment(context.Background(), frag))
	assert.Equal(t, 4, conn.batches, "three node batches then one edge batch")
	assert.Len(t, conn.data.nodes, 1201)
	assert.Len(t, conn.data.edges, 1)
	assert.Equal(t, 1, conn.commits)
}

func TestUpsertFragmentSanitizesText(t *testing.T) {
	conn := newFakeConn()
	s := NewGraphDBStorageWithConnection(conn)

	require.NoError(t, s.UpsertFragment(context.Background(), common.Fragment{Nodes: []common.Node{
		{ID: "Article:1\x00", Label: common.LabelArticle, Properties: map[string]any{"title": "Equality\x00"}},
	}}))
	assert.Equal(t, map[string]any{"title": "Equality"}, conn.data.nodes[nodeRow{label: common.LabelArticle, id: "Article:1"}])
}
