package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/lexgraph/internal/bootstrap"
	"github.com/OFFIS-RIT/lexgraph/internal/queue"
	"github.com/OFFIS-RIT/lexgraph/internal/util"
	"github.com/OFFIS-RIT/lexgraph/pkg/errlog"
	"github.com/OFFIS-RIT/lexgraph/pkg/graph"
	"github.com/OFFIS-RIT/lexgraph/pkg/loader"
	ioloader "github.com/OFFIS-RIT/lexgraph/pkg/loader/io"
	s3loader "github.com/OFFIS-RIT/lexgraph/pkg/loader/s3"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"
)

func main() {
	bootstrap.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiClient, err := bootstrap.NewAIClient()
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}

	src, err := recordSource(ctx)
	if err != nil {
		logger.Fatal("Could not open input", "err", err)
	}
	records, err := loader.LoadRecords(ctx, src, loader.FieldMap{
		ID:    util.GetEnv("INPUT_ID_FIELD"),
		Title: util.GetEnv("INPUT_TITLE_FIELD"),
		Body:  util.GetEnv("INPUT_BODY_FIELD"),
	}, util.GetEnvInt("INPUT_LIMIT", 0))
	if err != nil {
		logger.Fatal("Could not load input records", "err", err)
	}

	openFragments, err := bootstrap.FragmentStoreOpener(ctx)
	if err != nil {
		logger.Fatal("Could not open fragment store", "err", err)
	}
	fragmentsKey := bootstrap.FragmentsKey()

	extractor, err := graph.NewExtractor(graph.NewExtractorParams{
		AIClient:         aiClient,
		Kind:             util.GetEnvString("RECORD_KIND", "Article"),
		Vocabulary:       bootstrap.Vocabulary(),
		MaxRetries:       util.GetEnvInt("EXTRACT_MAX_RETRIES", 3),
		Temperature:      util.GetEnvNumeric("AI_TEMPERATURE", 0),
		StructuredOutput: util.GetEnvBool("AI_STRUCTURED_OUTPUT", false),
		RepairJSON:       util.GetEnvBool("AI_REPAIR_JSON", false),
		SystemPrompt:     util.GetEnv("AI_SYSTEM_PROMPT"),
		Thinking:         util.GetEnv("AI_THINKING"),
		FallbackModel:    util.GetEnv("AI_FALLBACK_MODEL"),
	})
	if err != nil {
		logger.Fatal("Invalid extractor configuration", "err", err)
	}

	pipeline, err := graph.NewPipeline(graph.NewPipelineParams{
		Extractor:   extractor,
		Store:       openFragments(fragmentsKey),
		ErrorLog:    errlog.NewFileLog(util.GetEnvString("ERROR_LOG_PATH", "error_log.txt")),
		Cooldown:    util.GetEnvDuration("EXTRACT_COOLDOWN", time.Second),
		Concurrency: util.GetEnvInt("EXTRACT_CONCURRENCY", 1),
	})
	if err != nil {
		logger.Fatal("Invalid pipeline configuration", "err", err)
	}

	report, err := pipeline.Run(ctx, records)
	bootstrap.LogAIMetrics(aiClient)
	if err != nil {
		logger.Fatal("Extraction aborted", "err", err)
	}
	logger.Info("Extraction report",
		"run_id", report.RunID,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"fragments", report.Fragments,
	)

	if err := publishIngest(ctx, fragmentsKey); err != nil {
		logger.Error("Could not queue ingestion", "err", err)
	}
}

func recordSource(ctx context.Context) (loader.Source, error) {
	path := util.GetEnvString("INPUT_PATH", "constitution_of_india.json")
	if key, ok := strings.CutPrefix(path, "s3://"); ok {
		client, cfg, err := bootstrap.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		bucket, objectKey, found := strings.Cut(key, "/")
		if !found {
			bucket, objectKey = cfg.Bucket, key
		}
		return s3loader.NewS3SourceWithClient(client, bucket, objectKey), nil
	}
	return ioloader.NewFileSource(path), nil
}

// publishIngest hands the store to the ingest worker when a broker is
// configured.
func publishIngest(ctx context.Context, fragmentsKey string) error {
	cfg := queue.ConfigFromEnv()
	if !cfg.Enabled() {
		return nil
	}

	conn, err := queue.Init(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		return err
	}
	if err := queue.PublishIngest(ctx, ch, queue.IngestMessage{FragmentsKey: fragmentsKey}); err != nil {
		return err
	}
	logger.Info("Ingestion queued", "fragments_key", fragmentsKey)
	return nil
}
