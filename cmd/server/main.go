package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/lexgraph/internal/bootstrap"
	"github.com/OFFIS-RIT/lexgraph/internal/queue"
	"github.com/OFFIS-RIT/lexgraph/internal/server"
	mid "github.com/OFFIS-RIT/lexgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/lexgraph/internal/util"
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
	fragmentsKey := bootstrap.FragmentsKey()

	app := &mid.App{
		Fragments:    openFragments(fragmentsKey),
		FragmentsKey: fragmentsKey,
		KeyPrefix:    bootstrap.IngestKeyPolicy().Prefix,
		TotalRecords: util.GetEnvInt("INPUT_TOTAL", 0),
	}

	if cfg := queue.ConfigFromEnv(); cfg.Enabled() {
		conn, err := queue.Init(cfg)
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
		app.Queue = ch
	}

	err = server.Run(ctx, server.Params{
		App:    app,
		Port:   util.GetEnvString("PORT", "8080"),
		APIKey: util.GetEnv("API_KEY"),
	})
	if err != nil {
		logger.Fatal("Server failed", "err", err)
	}
}
