// Package pgx stores fragments in PostgreSQL tables with JSONB property
// bags, merging properties on conflict.
package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/lexgraph/internal/util"
	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const batchSize = 500

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStore on PostgreSQL. The schema is
// created by Migrate.
type GraphDBStorage struct {
	conn pgxIConn
}

var _ store.GraphStore = (*GraphDBStorage)(nil)

// NewGraphDBStorageWithConnection wraps an existing pool or connection.
func NewGraphDBStorageWithConnection(conn pgxIConn) *GraphDBStorage {
	return &GraphDBStorage{conn: conn}
}

const upsertNodeSQL = `
INSERT INTO graph_nodes (label, id, properties)
VALUES ($1::text, $2::text, $3::jsonb)
ON CONFLICT (label, id) DO UPDATE
SET properties = graph_nodes.properties || EXCLUDED.properties,
    updated_at = now();
`

// Edges only land when both endpoints exist.
const upsertEdgeSQL = `
INSERT INTO graph_edges (source_id, target_id, type, properties)
SELECT $1::text, $2::text, $3::text, $4::jsonb
WHERE EXISTS (SELECT 1 FROM graph_nodes WHERE id = $1::text)
  AND EXISTS (SELECT 1 FROM graph_nodes WHERE id = $2::text)
ON CONFLICT (source_id, target_id, type) DO UPDATE
SET properties = graph_edges.properties || EXCLUDED.properties,
    updated_at = now();
`

// UpsertFragment writes frag in a single transaction: nodes first, then
// edges, each sent in batches.
func (s *GraphDBStorage) UpsertFragment(ctx context.Context, frag common.Fragment) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = store.ChunkRange(len(frag.Nodes), batchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, n := range frag.Nodes[start:end] {
			props, err := store.EncodeProperties(n.Properties)
			if err != nil {
				return fmt.Errorf("encode properties of %s: %w", n.ID, err)
			}
			batch.Queue(upsertNodeSQL,
				util.SanitizePostgresText(n.Label),
				util.SanitizePostgresText(n.ID),
				string(props),
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("upsert nodes: %w", err)
	}

	err = store.ChunkRange(len(frag.Edges), batchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, e := range frag.Edges[start:end] {
			props, err := store.EncodeProperties(e.Properties)
			if err != nil {
				return fmt.Errorf("encode properties of %s->%s: %w", e.SourceID, e.TargetID, err)
			}
			batch.Queue(upsertEdgeSQL,
				util.SanitizePostgresText(e.SourceID),
				util.SanitizePostgresText(e.TargetID),
				util.SanitizePostgresText(e.Type),
				string(props),
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("upsert edges: %w", err)
	}

	return tx.Commit(ctx)
}

// Counts returns the number of stored nodes and edges.
func (s *GraphDBStorage) Counts(ctx context.Context) (nodes int64, edges int64, err error) {
	err = s.conn.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM graph_nodes), (SELECT count(*) FROM graph_edges)`,
	).Scan(&nodes, &edges)
	return nodes, edges, err
}

// Close is a no-op; the pool is owned by the caller.
func (s *GraphDBStorage) Close(ctx context.Context) error {
	return nil
}
