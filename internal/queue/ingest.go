package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/lexgraph/internal/util"
	"github.com/OFFIS-RIT/lexgraph/pkg/fragments"
	"github.com/OFFIS-RIT/lexgraph/pkg/graph"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"
)

const IngestQueue = "ingest_queue"

// IngestMessage asks a worker to ingest the fragment store at FragmentsKey
// (a file path or object key, depending on the worker's fragment backend).
type IngestMessage struct {
	FragmentsKey string    `json:"fragments_key" validate:"required"`
	RequestedAt  time.Time `json:"requested_at"`
}

func PublishIngest(ctx context.Context, ch Publisher, msg IngestMessage) error {
	if msg.RequestedAt.IsZero() {
		msg.RequestedAt = time.Now().UTC()
	}
	if err := util.ValidateStruct(msg); err != nil {
		return fmt.Errorf("invalid ingest message: %w", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return PublishFIFO(ctx, ch, IngestQueue, data)
}

// DecodeIngestMessage parses and validates body. Its errors wrap ErrRejected.
func DecodeIngestMessage(body []byte) (IngestMessage, error) {
	var msg IngestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: decode ingest message: %w", ErrRejected, err)
	}
	if err := util.ValidateStruct(msg); err != nil {
		return msg, fmt.Errorf("%w: invalid ingest message: %w", ErrRejected, err)
	}
	return msg, nil
}

// FragmentStoreOpener resolves a message's FragmentsKey to a store.
type FragmentStoreOpener func(key string) fragments.Store

// IngestProcessor handles messages from IngestQueue.
type IngestProcessor struct {
	Open     FragmentStoreOpener
	Ingestor *graph.Ingestor
	Keys     KeyPolicy
}

// Process loads the referenced fragments and ingests them. Undecodable
// messages and keys outside Keys are rejected. A corrupt or unreadable store
// fails the message so it is retried. Per-fragment failures do not; they
// are part of the report.
func (p IngestProcessor) Process(ctx context.Context, body []byte) error {
	msg, err := DecodeIngestMessage(body)
	if err != nil {
		return err
	}
	if err := p.Keys.Check(msg.FragmentsKey); err != nil {
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	frags, err := p.Open(msg.FragmentsKey).Load(ctx)
	if err != nil {
		return fmt.Errorf("load fragments %s: %w", msg.FragmentsKey, err)
	}

	report, err := p.Ingestor.Ingest(ctx, frags)
	if err != nil {
		return err
	}
	logger.Info("[Queue] ingest done",
		"fragments_key", msg.FragmentsKey,
		"requested_at", msg.RequestedAt,
		"ingested", report.Ingested,
		"failed", report.Failed,
	)
	return nil
}
