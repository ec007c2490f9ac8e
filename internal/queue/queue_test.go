package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/fragments"
	"github.com/OFFIS-RIT/lexgraph/pkg/graph"
	"github.com/OFFIS-RIT/lexgraph/pkg/store/memory"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	key string
	msg amqp091.Publishing
}

type fakeChannel struct {
	declared  []string
	published []published
	failWith  error
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	f.declared = append(f.declared, name)
	return amqp091.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, published{key: key, msg: msg})
	return nil
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error { a.acked = true; return nil }
func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}
func (a *fakeAck) Reject(tag uint64, requeue bool) error { return nil }

func delivery(ack *fakeAck, body string, headers amqp091.Table) amqp091.Delivery {
	return amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body), Headers: headers}
}

func TestSetupQueuesDeclaresRetryAndDLQ(t *testing.T) {
	ch := &fakeChannel{}
	require.NoError(t, SetupQueues(ch, []string{IngestQueue}))
	assert.Equal(t, []string{"ingest_queue", "ingest_queue_dlq", "ingest_queue_retry"}, ch.declared)
}

func TestPublishIngest(t *testing.T) {
	ch := &fakeChannel{}
	require.NoError(t, PublishIngest(context.Background(), ch, IngestMessage{FragmentsKey: "graph_fragments.json"}))

	require.Len(t, ch.published, 1)
	assert.Equal(t, IngestQueue, ch.published[0].key)
	assert.Equal(t, amqp091.Persistent, ch.published[0].msg.DeliveryMode)

	msg, err := DecodeIngestMessage(ch.published[0].msg.Body)
	require.NoError(t, err)
	assert.Equal(t, "graph_fragments.json", msg.FragmentsKey)
	assert.False(t, msg.RequestedAt.IsZero())
}

func TestPublishIngestRequiresKey(t *testing.T) {
	ch := &fakeChannel{}
	assert.Error(t, PublishIngest(context.Background(), ch, IngestMessage{}))
	assert.Empty(t, ch.published)
}

func TestHandleAcksOnSuccess(t *testing.T) {
	ch := &fakeChannel{}
	ack := &fakeAck{}
	Handle(context.Background(), ch, delivery(ack, "{}", nil), IngestQueue, func(ctx context.Context, body []byte) error {
		return nil
	})
	assert.True(t, ack.acked)
	assert.Empty(t, ch.published)
}

func TestHandleRetriesThenDeadLetters(t *testing.T) {
	failing := func(ctx context.Context, body []byte) error { return errors.New("neo4j unavailable") }

	ch := &fakeChannel{}
	ack := &fakeAck{}
	Handle(context.Background(), ch, delivery(ack, "{}", amqp091.Table{"x-retries": int64(3)}), IngestQueue, failing)
	require.Len(t, ch.published, 1)
	assert.Equal(t, "ingest_queue_retry", ch.published[0].key)
	assert.Equal(t, 4, RetryCount(ch.published[0].msg.Headers))
	assert.True(t, ack.acked)

	ch = &fakeChannel{}
	ack = &fakeAck{}
	Handle(context.Background(), ch, delivery(ack, "{}", amqp091.Table{"x-retries": int32(MaxRetries)}), IngestQueue, failing)
	require.Len(t, ch.published, 1)
	assert.Equal(t, "ingest_queue_dlq", ch.published[0].key)
	assert.True(t, ack.acked)
}

func TestHandleRequeuesWhenRepublishFails(t *testing.T) {
	ch := &fakeChannel{failWith: errors.New("channel closed")}
	ack := &fakeAck{}
	Handle(context.Background(), ch, delivery(ack, "{}", nil), IngestQueue, func(ctx context.Context, body []byte) error {
		return errors.New("boom")
	})
	assert.False(t, ack.acked)
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeued)
}

func TestIngestProcessor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph_fragments.json")
	frags := []common.Fragment{{
		SourceRecordID: "Article:21A",
		Nodes: []common.Node{
			{ID: "Article:21A", Label: common.LabelArticle},
			{ID: "Concept:Education", Label: common.LabelConcept},
		},
		Edges: []common.Edge{{SourceID: "Article:21A", TargetID: "Concept:Education", Type: common.EdgeHasSubject}},
	}}
	require.NoError(t, fragments.NewFileStore(path).Save(context.Background(), frags))

	gs := memory.New()
	ingestor, err := graph.NewIngestor(graph.NewIngestorParams{Store: gs})
	require.NoError(t, err)

	p := IngestProcessor{
		Open:     func(key string) fragments.Store { return fragments.NewFileStore(filepath.Join(dir, key)) },
		Ingestor: ingestor,
		Keys:     KeyPolicy{Default: "graph_fragments.json"},
	}

	body, err := json.Marshal(IngestMessage{FragmentsKey: "graph_fragments.json", RequestedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, p.Process(context.Background(), body))
	assert.Len(t, gs.Nodes(), 2)
	assert.Len(t, gs.Edges(), 1)
}

func TestIngestProcessorCorruptStoreFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o644))

	ingestor, err := graph.NewIngestor(graph.NewIngestorParams{Store: memory.New()})
	require.NoError(t, err)

	p := IngestProcessor{
		Open:     func(key string) fragments.Store { return fragments.NewFileStore(filepath.Join(dir, key)) },
		Ingestor: ingestor,
		Keys:     KeyPolicy{Default: "bad.json"},
	}
	err = p.Process(context.Background(), []byte(`{"fragments_key":"bad.json"}`))
	assert.ErrorIs(t, err, fragments.ErrStoreCorrupt)
}

func TestIngestProcessorRejectsBadMessage(t *testing.T) {
	p := IngestProcessor{Keys: KeyPolicy{Default: "graph_fragments.json"}}
	assert.ErrorIs(t, p.Process(context.Background(), []byte(`{}`)), ErrRejected)
	assert.ErrorIs(t, p.Process(context.Background(), []byte(`not json`)), ErrRejected)
}

func TestIngestProcessorRejectsForeignKey(t *testing.T) {
	opened := false
	p := IngestProcessor{
		Open: func(key string) fragments.Store {
			opened = true
			return fragments.NewFileStore(key)
		},
		Keys: KeyPolicy{Default: "graph_fragments.json", Prefix: "runs"},
	}

	err := p.Process(context.Background(), []byte(`{"fragments_key":"../../../../root/.secrets/anything.json"}`))
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, ErrKeyNotAllowed)
	assert.False(t, opened, "store must not be opened for a rejected key")
}

func TestHandleSendsRejectedMessagesToDLQ(t *testing.T) {
	ch := &fakeChannel{}
	ack := &fakeAck{}
	p := IngestProcessor{Keys: KeyPolicy{Default: "graph_fragments.json"}}

	Handle(context.Background(), ch, delivery(ack, "not json", nil), IngestQueue, p.Process)
	require.Len(t, ch.published, 1)
	assert.Equal(t, "ingest_queue_dlq", ch.published[0].key)
	assert.True(t, ack.acked)
}

func TestKeyPolicy(t *testing.T) {
	policy := KeyPolicy{Default: "graph_fragments.json", Prefix: "runs/"}

	tests := []struct {
		key string
		ok  bool
	}{
		{key: "graph_fragments.json", ok: true},
		{key: "runs/2026-10-19.json", ok: true},
		{key: "runs/nightly/a.json", ok: true},
		{key: "", ok: false},
		{key: "other.json", ok: false},
		{key: "runs/../secrets.json", ok: false},
		{key: "../../../../root/.secrets/anything.json", ok: false},
		{key: "/etc/passwd", ok: false},
		{key: `runs\..\x.json`, ok: false},
		{key: "runsx/a.json", ok: false},
		{key: "runs", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := policy.Check(tt.key)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrKeyNotAllowed)
			}
		})
	}

	assert.ErrorIs(t, KeyPolicy{Default: "graph_fragments.json"}.Check("runs/a.json"), ErrKeyNotAllowed,
		"without a prefix only the default is allowed")
}
