// Package sqlite stores fragments in a local SQLite file. Property bags are
// JSON text merged with json_patch.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/store"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS graph_nodes (
    label       TEXT NOT NULL,
    id          TEXT NOT NULL,
    properties  TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (label, id)
);
CREATE INDEX IF NOT EXISTS graph_nodes_id_idx ON graph_nodes (id);

CREATE TABLE IF NOT EXISTS graph_edges (
    source_id   TEXT NOT NULL,
    target_id   TEXT NOT NULL,
    type        TEXT NOT NULL,
    properties  TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (source_id, target_id, type)
);
`

const upsertNodeSQL = `
INSERT INTO graph_nodes (label, id, properties)
VALUES (?1, ?2, json(?3))
ON CONFLICT (label, id) DO UPDATE
SET properties = json_patch(graph_nodes.properties, excluded.properties),
    updated_at = CURRENT_TIMESTAMP
`

const upsertEdgeSQL = `
INSERT INTO graph_edges (source_id, target_id, type, properties)
SELECT ?1, ?2, ?3, json(?4)
WHERE EXISTS (SELECT 1 FROM graph_nodes WHERE id = ?1)
  AND EXISTS (SELECT 1 FROM graph_nodes WHERE id = ?2)
ON CONFLICT (source_id, target_id, type) DO UPDATE
SET properties = json_patch(graph_edges.properties, excluded.properties),
    updated_at = CURRENT_TIMESTAMP
`

// GraphStore implements store.GraphStore on SQLite.
type GraphStore struct {
	db *sql.DB
}

var _ store.GraphStore = (*GraphStore)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*GraphStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &GraphStore{db: db}, nil
}

// UpsertFragment writes frag inside one transaction.
func (s *GraphStore) UpsertFragment(ctx context.Context, frag common.Fragment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nodeStmt, err := tx.PrepareContext(ctx, upsertNodeSQL)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	for _, n := range frag.Nodes {
		props, err := store.EncodeProperties(n.Properties)
		if err != nil {
			return fmt.Errorf("encode properties of %s: %w", n.ID, err)
		}
		if _, err := nodeStmt.ExecContext(ctx, n.Label, n.ID, string(props)); err != nil {
			return fmt.Errorf("upsert node %s: %w", n.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, upsertEdgeSQL)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, e := range frag.Edges {
		props, err := store.EncodeProperties(e.Properties)
		if err != nil {
			return fmt.Errorf("encode properties of %s->%s: %w", e.SourceID, e.TargetID, err)
		}
		if _, err := edgeStmt.ExecContext(ctx, e.SourceID, e.TargetID, e.Type, string(props)); err != nil {
			return fmt.Errorf("upsert edge %s-[%s]->%s: %w", e.SourceID, e.Type, e.TargetID, err)
		}
	}

	return tx.Commit()
}

// Node returns the stored node, or false when it does not exist.
func (s *GraphStore) Node(ctx context.Context, label, id string) (common.Node, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT properties FROM graph_nodes WHERE label = ? AND id = ?`, label, id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return common.Node{}, false, nil
	}
	if err != nil {
		return common.Node{}, false, err
	}

	n := common.Node{ID: id, Label: label}
	if err := json.Unmarshal([]byte(raw), &n.Properties); err != nil {
		return common.Node{}, false, fmt.Errorf("decode properties of %s: %w", id, err)
	}
	return n, true, nil
}

// Edges returns all stored edges ordered by key.
func (s *GraphStore) Edges(ctx context.Context) ([]common.Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id, target_id, type, properties FROM graph_edges ORDER BY source_id, target_id, type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []common.Edge
	for rows.Next() {
		var e common.Edge
		var raw string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Type, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &e.Properties); err != nil {
			return nil, fmt.Errorf("decode edge properties: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of stored nodes and edges.
func (s *GraphStore) Counts(ctx context.Context) (nodes int64, edges int64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT count(*) FROM graph_nodes), (SELECT count(*) FROM graph_edges)`,
	).Scan(&nodes, &edges)
	return nodes, edges, err
}

func (s *GraphStore) Close(ctx context.Context) error {
	return s.db.Close()
}
