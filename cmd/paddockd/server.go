package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/paddockd/internal/answer"
	"github.com/fyrsmithlabs/paddockd/internal/config"
	"github.com/fyrsmithlabs/paddockd/internal/embeddings"
	"github.com/fyrsmithlabs/paddockd/internal/generate"
	"github.com/fyrsmithlabs/paddockd/internal/guardrail"
	paddockhttp "github.com/fyrsmithlabs/paddockd/internal/http"
	"github.com/fyrsmithlabs/paddockd/internal/ingest"
	"github.com/fyrsmithlabs/paddockd/internal/logging"
	"github.com/fyrsmithlabs/paddockd/internal/retrieval"
	"github.com/fyrsmithlabs/paddockd/internal/router"
	"github.com/fyrsmithlabs/paddockd/internal/services"
	"github.com/fyrsmithlabs/paddockd/internal/session"
	"github.com/fyrsmithlabs/paddockd/internal/stats"
	"github.com/fyrsmithlabs/paddockd/internal/telemetry"
	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
)

const shutdownTimeout = 10 * time.Second

// run starts the paddockd server and blocks until the context is
// cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger and telemetry
//  3. Open the passage store and embedding service
//  4. Create the LLM, stats, and ingestion collaborators
//  5. Assemble the answer pipeline
//  6. Start the HTTP server
//  7. Perform graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting paddockd",
		zap.Int("port", cfg.Server.Port),
		zap.Int("base_year", cfg.Store.BaseYear),
		zap.String("store_path", cfg.Store.Path),
	)

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	reg, err := initServices(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	defer func() {
		if err := reg.VectorStore().Close(); err != nil {
			logger.Warn("vector store close", zap.Error(err))
		}
	}()

	metrics := paddockhttp.NewMetrics(nil)
	server, err := paddockhttp.NewServer(reg.Answer(), metrics, logger, &paddockhttp.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// initServices builds every collaborator and the answer pipeline.
func initServices(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.Registry, error) {
	embedder, err := embeddings.NewService(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:     cfg.Store.Path,
		Compress: cfg.Store.Compress,
	}, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}

	// The base collection must exist before the first query; regulations
	// are loaded into it by the ingestion tooling.
	baseCollection := answer.BaseCollectionName(cfg.Store.BaseYear)
	exists, err := store.CollectionExists(ctx, baseCollection)
	if err != nil {
		return nil, fmt.Errorf("checking base collection: %w", err)
	}
	if !exists {
		if err := store.CreateCollection(ctx, baseCollection, false); err != nil {
			return nil, fmt.Errorf("creating base collection: %w", err)
		}
		logger.Info("created empty base collection", zap.String("collection", baseCollection))
	}

	generator, err := generate.NewClient(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("generation client: %w", err)
	}

	statsClient, err := stats.NewClient(cfg.Stats)
	if err != nil {
		return nil, fmt.Errorf("stats client: %w", err)
	}

	ingestService, err := ingest.NewService(store, logger)
	if err != nil {
		return nil, fmt.Errorf("ingest service: %w", err)
	}

	retriever, err := retrieval.NewEngine(store, cfg.Retrieval.K, cfg.Retrieval.MaxK, logger)
	if err != nil {
		return nil, fmt.Errorf("retrieval engine: %w", err)
	}

	sessions := session.NewRegistry(baseCollection)
	guard := guardrail.NewEngine(
		guardrail.WithGroundingThreshold(cfg.Guardrail.GroundingThreshold),
		guardrail.WithTopicEnforcement(cfg.Guardrail.EnforceTopic),
	)
	classifier := router.New(generator, logger)

	pipeline, err := answer.NewService(
		sessions,
		guard,
		classifier,
		retriever,
		generator,
		statsClient,
		ingestService,
		answer.Config{BaseYear: cfg.Store.BaseYear, K: cfg.Retrieval.K},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("answer pipeline: %w", err)
	}

	return services.NewRegistry(services.Options{
		Answer:      pipeline,
		Sessions:    sessions,
		Ingest:      ingestService,
		Stats:       statsClient,
		VectorStore: store,
	}), nil
}
