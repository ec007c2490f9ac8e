package fragments

import (
	"context"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/lexgraph/internal/storage"
	"github.com/OFFIS-RIT/lexgraph/internal/testutil"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "lexgraph-test"

func startMockS3(t *testing.T) *s3.Client {
	t.Helper()
	return testutil.StartMockS3(t, testBucket).Client
}

func TestS3StoreMissingObjectIsEmpty(t *testing.T) {
	client := startMockS3(t)
	store := NewS3Store(client, testBucket, "runs/graph_fragments.json")

	frags, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, frags)
	assert.Empty(t, store.Version())
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := startMockS3(t)
	store := NewS3Store(client, testBucket, "runs/graph_fragments.json")

	require.NoError(t, store.Save(ctx, sampleFragments()))
	assert.NotEmpty(t, store.Version())

	reloaded := NewS3Store(client, testBucket, "runs/graph_fragments.json")
	frags, err := reloaded.Load(ctx)
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "Article:21A", frags[0].RecordID())
	assert.Equal(t, store.Version(), reloaded.Version())
}

func TestS3StoreCorruptObject(t *testing.T) {
	ctx := context.Background()
	client := startMockS3(t)

	_, err := storage.PutObject(ctx, client, testBucket, "graph_fragments.json", []byte("{not json"), "", "")
	require.NoError(t, err)

	frags, err := NewS3Store(client, testBucket, "graph_fragments.json").Load(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreCorrupt))
	assert.Empty(t, frags)
}
