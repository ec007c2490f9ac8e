// Package neo4j stores fragments in a Neo4j database using MERGE upserts.
package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"
	"github.com/OFFIS-RIT/lexgraph/pkg/store"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Config struct {
	URI      string `validate:"required"`
	Username string
	Password string
	Database string
}

type GraphStore struct {
	driver   neo4jv5.DriverWithContext
	database string
}

var (
	_ store.GraphStore        = (*GraphStore)(nil)
	_ store.SchemaInitializer = (*GraphStore)(nil)
)

// New connects to Neo4j and verifies the connection.
func New(ctx context.Context, cfg Config) (*GraphStore, error) {
	auth := neo4jv5.NoAuth()
	if cfg.Username != "" {
		auth = neo4jv5.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4jv5.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", cfg.URI, err)
	}

	return NewWithDriver(driver, cfg.Database), nil
}

func NewWithDriver(driver neo4jv5.DriverWithContext, database string) *GraphStore {
	return &GraphStore{driver: driver, database: database}
}

func (s *GraphStore) session(ctx context.Context) neo4jv5.SessionWithContext {
	return s.driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   neo4jv5.AccessModeWrite,
		DatabaseName: s.database,
	})
}

// EnsureSchema creates a uniqueness constraint on id for every label in
// vocab. Existing constraints are left alone.
func (s *GraphStore) EnsureSchema(ctx context.Context, vocab common.Vocabulary) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	for _, label := range store.DedupeStrings(vocab.Labels) {
		res, err := session.Run(ctx, ConstraintQuery(label), nil)
		if err != nil {
			return fmt.Errorf("create constraint for %s: %w", label, err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("create constraint for %s: %w", label, err)
		}
	}
	logger.Debug("[Neo4j] constraints ensured", "labels", len(vocab.Labels))
	return nil
}

// UpsertFragment runs all node and edge merges of frag in one write
// transaction. Labels and types must already be validated against the
// vocabulary; they are still quoted before being placed in the query.
func (s *GraphStore) UpsertFragment(ctx context.Context, frag common.Fragment) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		for _, n := range frag.Nodes {
			if err := run(ctx, tx, NodeQuery(n.Label), map[string]any{
				"id":    n.ID,
				"props": FlattenProperties(n.Properties),
			}); err != nil {
				return nil, fmt.Errorf("merge node %s: %w", n.ID, err)
			}
		}
		for _, e := range frag.Edges {
			if err := run(ctx, tx, EdgeQuery(e.Type), map[string]any{
				"src":   e.SourceID,
				"tgt":   e.TargetID,
				"props": FlattenProperties(e.Properties),
			}); err != nil {
				return nil, fmt.Errorf("merge edge %s-[%s]->%s: %w", e.SourceID, e.Type, e.TargetID, err)
			}
		}
		return nil, nil
	})
	return err
}

func run(ctx context.Context, tx neo4jv5.ManagedTransaction, query string, params map[string]any) error {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// quote renders name as a backtick-quoted Cypher identifier.
func quote(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func NodeQuery(label string) string {
	return fmt.Sprintf("MERGE (n:%s {id: $id}) SET n += $props", quote(label))
}

// EdgeQuery matches endpoints by id alone. MATCH yields no rows when an
// endpoint is missing, so no relationship and no stub node is created.
func EdgeQuery(edgeType string) string {
	return fmt.Sprintf("MATCH (a {id: $src}), (b {id: $tgt}) MERGE (a)-[r:%s]->(b) SET r += $props", quote(edgeType))
}

func ConstraintQuery(label string) string {
	name := "lexgraph_" + strings.ToLower(constraintSafe(label)) + "_id"
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", quote(name), quote(label))
}

func constraintSafe(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// FlattenProperties makes a property bag storable in Neo4j, which only
// accepts primitives and homogeneous lists of primitives. Nested maps and
// lists containing maps or lists are stored as JSON strings; nil values are
// dropped.
func FlattenProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		switch val := v.(type) {
		case nil:
			continue
		case map[string]any:
			out[k] = jsonString(val)
		case []any:
			if primitiveList(val) {
				out[k] = val
			} else {
				out[k] = jsonString(val)
			}
		default:
			out[k] = val
		}
	}
	return out
}

func primitiveList(list []any) bool {
	for _, item := range list {
		switch item.(type) {
		case map[string]any, []any, nil:
			return false
		}
	}
	return true
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
