package pgx

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file in migrations: %s", name)
		}
	}
	assert.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestMigrationsCreateLockTable(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/000002_app_locks.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "app_locks")
	assert.Contains(t, string(data), "lock_key")
}

func TestUpsertSQLMergesProperties(t *testing.T) {
	assert.Contains(t, upsertNodeSQL, "graph_nodes.properties || EXCLUDED.properties")
	assert.Contains(t, upsertEdgeSQL, "WHERE EXISTS")
	assert.Contains(t, upsertEdgeSQL, "graph_edges.properties || EXCLUDED.properties")
}
