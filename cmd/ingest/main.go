package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/lexgraph/internal/bootstrap"
	"github.com/OFFIS-RIT/lexgraph/pkg/graph"
	"github.com/OFFIS-RIT/lexgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"

	_ "github.com/lib/pq"
)

func main() {
	bootstrap.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openFragments, err := bootstrap.FragmentStoreOpener(ctx)
	if err != nil {
		logger.Fatal("Could not open fragment store", "err", err)
	}
	fragmentsKey := bootstrap.FragmentsKey()

	frags, err := openFragments(fragmentsKey).Load(ctx)
	if err != nil {
		logger.Fatal("Could not load fragments", "path", fragmentsKey, "err", err)
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

	run := func(ctx context.Context) error {
		report, err := ingestor.Ingest(ctx, frags)
		if report != nil {
			logger.Info("Ingestion report",
				"total", report.Total,
				"ingested", report.Ingested,
				"failed", report.Failed,
				"nodes", report.Nodes,
				"edges", report.Edges,
				"dropped_nodes", report.DroppedNodes,
				"dropped_edges", report.DroppedEdges,
			)
		}
		return err
	}

	if backend.Pool != nil {
		key := bootstrap.IngestLeaseKey(backend.Name)
		err = leaselock.New(backend.Pool).WithLease(ctx, key, leaselock.Options{}, run)
		if errors.Is(err, leaselock.ErrBusy) {
			logger.Fatal("Another ingestion holds the lease", "key", key)
		}
	} else {
		err = run(ctx)
	}
	if err != nil {
		logger.Fatal("Ingestion aborted", "err", err)
	}
}
