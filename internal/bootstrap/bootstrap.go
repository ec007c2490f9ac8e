// Package bootstrap turns environment configuration into the components the
// binaries share: logger, AI client, fragment store and graph backend.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/lexgraph/internal/queue"
	"github.com/OFFIS-RIT/lexgraph/internal/storage"
	"github.com/OFFIS-RIT/lexgraph/internal/timing"
	"github.com/OFFIS-RIT/lexgraph/internal/util"
	"github.com/OFFIS-RIT/lexgraph/pkg/ai"
	oai "github.com/OFFIS-RIT/lexgraph/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/lexgraph/pkg/ai/openai"
	"github.com/OFFIS-RIT/lexgraph/pkg/common"
	"github.com/OFFIS-RIT/lexgraph/pkg/fragments"
	"github.com/OFFIS-RIT/lexgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger"
	"github.com/OFFIS-RIT/lexgraph/pkg/logger/console"
	"github.com/OFFIS-RIT/lexgraph/pkg/store"
	"github.com/OFFIS-RIT/lexgraph/pkg/store/memory"
	neo4jstore "github.com/OFFIS-RIT/lexgraph/pkg/store/neo4j"
	pgxstore "github.com/OFFIS-RIT/lexgraph/pkg/store/pgx"
	"github.com/OFFIS-RIT/lexgraph/pkg/store/sqlite"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
)

func InitLogger() {
	util.LoadEnv()
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
	}))
}

// NewAIClient builds the client selected by AI_ADAPTER (default openai).
func NewAIClient() (ai.GraphAIClient, error) {
	switch util.GetEnvString("AI_ADAPTER", "openai") {
	case "ollama":
		return oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ExtractionModel:       util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			BaseURL:               util.GetEnv("AI_CHAT_URL"),
			ApiKey:                util.GetEnv("AI_CHAT_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("EXTRACT_CONCURRENCY", 1)),
		})
	case "openai":
		params := gai.NewGraphOpenAIClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			ChatURL:         util.GetEnv("AI_CHAT_URL"),
			ChatKey:         util.GetEnv("AI_CHAT_KEY"),
		}
		if err := util.ValidateStruct(params); err != nil {
			return nil, fmt.Errorf("invalid openai config: %w", err)
		}
		return gai.NewGraphOpenAIClient(params), nil
	default:
		return nil, fmt.Errorf("unknown AI_ADAPTER %q", util.GetEnv("AI_ADAPTER"))
	}
}

// LogAIMetrics reports the client's accumulated usage and resets it.
func LogAIMetrics(client ai.GraphAIClient) {
	metrics := client.GetMetrics()
	logger.Info(
		"AI Metrics",
		"requests", metrics.Requests,
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
		"tokens_per_second", metrics.TokenPerSecond,
		"duration", timing.FormatMillis(metrics.DurationMs),
	)
	client.ResetMetrics()
}

// FragmentsBackend reports FRAGMENTS_BACKEND (file or s3).
func FragmentsBackend() string {
	return strings.ToLower(util.GetEnvString("FRAGMENTS_BACKEND", "file"))
}

func NewS3Client(ctx context.Context) (*s3.Client, storage.S3Config, error) {
	cfg := storage.S3ConfigFromEnv()
	if err := util.ValidateStruct(cfg); err != nil {
		return nil, cfg, fmt.Errorf("invalid s3 config: %w", err)
	}
	client, err := storage.NewS3Client(ctx, cfg)
	return client, cfg, err
}

// FragmentStoreOpener returns a function that opens the fragment store for
// a path (file backend) or object key (s3 backend).
func FragmentStoreOpener(ctx context.Context) (func(key string) fragments.Store, error) {
	switch FragmentsBackend() {
	case "file":
		return func(key string) fragments.Store { return fragments.NewFileStore(key) }, nil
	case "s3":
		client, cfg, err := NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		optimistic := util.GetEnvBool("FRAGMENTS_OPTIMISTIC", true)
		return func(key string) fragments.Store {
			s := fragments.NewS3Store(client, cfg.Bucket, key)
			s.Optimistic = optimistic
			return s
		}, nil
	default:
		return nil, fmt.Errorf("unknown FRAGMENTS_BACKEND %q", FragmentsBackend())
	}
}

// FragmentsKey reports FRAGMENTS_PATH, the store extract writes and ingest
// reads by default.
func FragmentsKey() string {
	return util.GetEnvString("FRAGMENTS_PATH", "graph_fragments.json")
}

// IngestKeyPolicy allows FragmentsKey and, with INGEST_KEY_PREFIX set, keys
// below that prefix.
func IngestKeyPolicy() queue.KeyPolicy {
	return queue.KeyPolicy{
		Default: FragmentsKey(),
		Prefix:  util.GetEnv("INGEST_KEY_PREFIX"),
	}
}

// IngestLeaseKey is the lease every ingesting process takes for backend.
// INGEST_TARGET separates graphs that share one lock table.
func IngestLeaseKey(backend string) string {
	return leaselock.IngestKey(backend, util.GetEnv("INGEST_TARGET"))
}

// Vocabulary returns the default vocabulary extended by the comma-separated
// EXTRA_LABELS and EXTRA_EDGE_TYPES.
func Vocabulary() common.Vocabulary {
	return common.DefaultVocabulary().Extend(
		splitList(util.GetEnv("EXTRA_LABELS")),
		splitList(util.GetEnv("EXTRA_EDGE_TYPES")),
	)
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// GraphBackend is an opened graph store. Pool is set for postgres only.
type GraphBackend struct {
	Name  string
	Store store.GraphStore
	Pool  *pgxpool.Pool
}

func (b *GraphBackend) Close(ctx context.Context) {
	if err := b.Store.Close(ctx); err != nil {
		logger.Warn("Failed to close graph store", "backend", b.Name, "err", err)
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
}

// OpenGraphBackend opens the store selected by GRAPH_BACKEND. Postgres
// migrations run before the pool is handed out.
func OpenGraphBackend(ctx context.Context) (*GraphBackend, error) {
	name := strings.ToLower(util.GetEnvString("GRAPH_BACKEND", "neo4j"))

	switch name {
	case "neo4j":
		gs, err := neo4jstore.New(ctx, neo4jstore.Config{
			URI:      util.GetEnvString("NEO4J_URI", "bolt://localhost:7687"),
			Username: util.GetEnvString("NEO4J_USER", "neo4j"),
			Password: util.GetEnv("NEO4J_PASSWORD"),
			Database: util.GetEnv("NEO4J_DATABASE"),
		})
		if err != nil {
			return nil, err
		}
		return &GraphBackend{Name: name, Store: gs}, nil

	case "postgres":
		url := util.GetEnv("DATABASE_URL")
		if url == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
		if err := pgxstore.Migrate(url); err != nil {
			return nil, err
		}
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		return &GraphBackend{Name: name, Store: pgxstore.NewGraphDBStorageWithConnection(pool), Pool: pool}, nil

	case "sqlite":
		gs, err := sqlite.Open(util.GetEnvString("SQLITE_PATH", "lexgraph.db"))
		if err != nil {
			return nil, err
		}
		return &GraphBackend{Name: name, Store: gs}, nil

	case "memory":
		return &GraphBackend{Name: name, Store: memory.New()}, nil

	default:
		return nil, fmt.Errorf("unknown GRAPH_BACKEND %q", name)
	}
}
