package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/lexgraph/internal/bootstrap"
	"github.com/OFFIS-RIT/lexgraph/internal/queue"
	"github.com/OFFIS-RIT/lexgraph/pkg/graph"
	"github.com/OFFIS-RIT/lexgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"
)

func main() {
	bootstrap.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openFragments, err := bootstrap.FragmentStoreOpener(ctx)
	if err != nil {
		logger.Fatal("Could not open fragment store", "err", err)
	}

	backend, err := bootstrap.OpenGraphBackend(ctx)
	if err != nil {
		logger.Fatal("Could not open graph backend", "err", err)
	}
	defer backend.Close(context.Background())

	ingestor, err := graph.NewIngestor(graph.NewIngestorParams{
		Store:      backend.Store,
		Vocabulary: bootstrap.Vocabulary(),
	})
	if err != nil {
		logger.Fatal("Invalid ingestor configuration", "err", err)
	}

	processor := queue.IngestProcessor{
		Open:     openFragments,
		Ingestor: ingestor,
		Keys:     bootstrap.IngestKeyPolicy(),
	}
	handle := processor.Process
	if backend.Pool != nil {
		locks := leaselock.New(backend.Pool)
		key := bootstrap.IngestLeaseKey(backend.Name)
		handle = func(ctx context.Context, body []byte) error {
			return locks.WithLease(ctx, key, leaselock.Options{Wait: true}, func(ctx context.Context) error {
				return processor.Process(ctx, body)
			})
		}
	}

	conn, err := queue.Init(queue.ConfigFromEnv())
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// prefetch 1: one ingestion at a time
	if err := ch.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.IngestQueue, "backend", backend.Name)
	if err := queue.Consume(ctx, ch, queue.IngestQueue, handle); err != nil {
		logger.Fatal("Consumer stopped", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...")
}
