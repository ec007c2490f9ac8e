package io

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/OFFIS-RIT/lexgraph/pkg/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSourceLoadsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "constitution_of_india.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"article":"21A","title":"Right to education","description":"..."}]`), 0o644))

	records, err := loader.LoadRecords(context.Background(), NewFileSource(path), loader.DefaultFieldMap(), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "21A", records[0].Identifier)
}

func TestFileSourceCachesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))

	src := NewFileSource(path)
	first, err := src.Read(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	second, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing.json")).Read(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
