package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/core/domain"
	"github.com/finquery/finquery/internal/core/ports"
	"github.com/finquery/finquery/internal/core/usecase"
	"github.com/finquery/finquery/internal/infrastructure/chunking"
	"github.com/finquery/finquery/internal/infrastructure/extractor"
	"github.com/finquery/finquery/internal/infrastructure/extractor/pdfpages"
	"github.com/finquery/finquery/internal/infrastructure/extractor/plaintext"
	"github.com/finquery/finquery/internal/infrastructure/extractor/xlsx"
	"github.com/finquery/finquery/internal/infrastructure/llm/ollama"
	"github.com/finquery/finquery/internal/infrastructure/queue/nats"
	"github.com/finquery/finquery/internal/infrastructure/repository/postgres"
	"github.com/finquery/finquery/internal/infrastructure/resilience"
	"github.com/finquery/finquery/internal/infrastructure/sparse"
	"github.com/finquery/finquery/internal/infrastructure/storage/localfs"
	"github.com/finquery/finquery/internal/infrastructure/vector/qdrant"
	"github.com/finquery/finquery/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Registry ports.DocumentRegistry

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	QueryUC   ports.QueryService
	Retriever *usecase.RetrieveUseCase

	HTTPMetrics   *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	registry := postgres.NewDocumentRepository(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSIngestSubject, cfg.NATSInvalidateSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithExecutor(executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, embedder, qdrant.ClientOptions{
		RequestsPerSecond:  cfg.QdrantRPS,
		ResilienceExecutor: executor,
	})

	builder := chunking.NewBuilder(cfg.ChunkSize, cfg.ChunkOverlap, log)
	pages := extractor.NewResolver(
		pdfpages.NewExtractor(storage),
		xlsx.NewExtractor(storage),
		plaintext.NewExtractor(storage),
	)

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	workerMetrics := metrics.NewWorkerMetrics("worker")

	newIndex := func(chunks []domain.Chunk) ports.SparseIndex {
		return sparse.New(chunks)
	}
	retrieveUC := usecase.NewRetrieveUseCase(vectorDB, registry, newIndex, httpMetrics, cfg.RAGTopK, cfg.RAGFusionK, log)
	ingestUC := usecase.NewIngestDocumentUseCase(registry, storage, queue, vectorDB)
	processUC := usecase.NewProcessDocumentUseCase(registry, pages, builder, vectorDB, queue)
	queryUC := usecase.NewQueryUseCase(retrieveUC, generator)

	return &App{
		Config: cfg,

		Queue:    queue,
		Registry: registry,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,
		Retriever: retrieveUC,

		HTTPMetrics:   httpMetrics,
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
