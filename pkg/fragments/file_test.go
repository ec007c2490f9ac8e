package fragments

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/lexgraph/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFragments() []common.Fragment {
	return []common.Fragment{
		{
			SourceRecordID: "Article:21A",
			Nodes: []common.Node{
				{ID: "Article:21A", Label: common.LabelArticle, Properties: map[string]any{"number": "21A"}},
			},
			Edges: []common.Edge{},
		},
		{
			Nodes: []common.Node{{ID: "Article:14", Label: common.LabelArticle}},
			Edges: []common.Edge{{SourceID: "Article:14", TargetID: "Article:21A", Type: common.EdgeRefersTo}},
		},
	}
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "graph_fragments.json"))

	frags, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, frags)
	assert.NotNil(t, frags)
	assert.Empty(t, store.Version())
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "graph_fragments.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(ctx, sampleFragments()))
	savedVersion := store.Version()
	require.NotEmpty(t, savedVersion)

	reloaded := NewFileStore(path)
	frags, err := reloaded.Load(ctx)
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "Article:21A", frags[0].RecordID())
	assert.Equal(t, "Article:14", frags[1].RecordID())
	assert.Equal(t, "21A", frags[0].Nodes[0].Properties["number"])
	assert.Equal(t, savedVersion, reloaded.Version())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreSaveIsIndented(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph_fragments.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(context.Background(), sampleFragments()[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"source_record_id\": \"Article:21A\"")
}

func TestFileStoreSaveNilWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph_fragments.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFileStoreCorruptDocument(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated", content: `[{"nodes":[{"id":"Article:1"`},
		{name: "not an array", content: `{"nodes":[]}`},
		{name: "empty file", content: ``},
		{name: "trailing garbage", content: `[] extra`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "graph_fragments.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			frags, err := NewFileStore(path).Load(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrStoreCorrupt))
			assert.NotNil(t, frags)
			assert.Empty(t, frags)
		})
	}
}

func TestFileStoreNullDocumentIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph_fragments.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))

	frags, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, frags)
}

func TestFileStoreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewFileStore(filepath.Join(t.TempDir(), "graph_fragments.json"))
	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Save(ctx, sampleFragments()), context.Canceled)
}
