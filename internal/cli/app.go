package cli

import (
	"fmt"

	"finrag/config"
	"finrag/internal/adapter/cache"
	"finrag/internal/adapter/chunker"
	"finrag/internal/adapter/embedding"
	"finrag/internal/adapter/llm"
	"finrag/internal/adapter/store"
	"finrag/internal/port"
	"finrag/internal/usecase"

	"go.uber.org/zap"
)

// app wires the use cases from configuration. One app owns one store
// instance, so backend selection happens at most once per process.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Selector
	answers *cache.AnswerCache
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	sel := store.NewSelector(store.Options{
		Remote: store.RemoteOptions{
			APIKey:    cfg.PineconeAPIKey(),
			IndexName: cfg.Store.IndexName,
			Cloud:     cfg.Store.Cloud,
			Region:    cfg.Store.Region,
			BatchSize: cfg.Store.BatchSize,
			Timeout:   cfg.Store.Timeout,
		},
		LocalPath: cfg.Store.LocalPath,
		Dimension: cfg.Embedding.Dimension,
	}, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   sel,
		answers: cache.NewAnswerCache(cfg.Query.CacheSize, cfg.Query.CacheTTL),
	}
}

func (a *app) embedder() (port.Embedder, error) {
	return embedding.NewGeminiEmbedder(embedding.Config{
		APIKey:      a.cfg.EmbeddingAPIKey(),
		Model:       a.cfg.Embedding.Model,
		Dimension:   a.cfg.Embedding.Dimension,
		Timeout:     a.cfg.Embedding.Timeout,
		MinInterval: a.cfg.Embedding.MinInterval,
		Retry: embedding.RetryPolicy{
			MaxAttempts: a.cfg.Embedding.MaxAttempts,
			BaseDelay:   a.cfg.Embedding.BaseDelay,
			RetryDelay:  a.cfg.Embedding.RetryDelay,
		},
		Logger: a.logger,
	})
}

func (a *app) generator() (port.Generator, error) {
	return llm.NewGroqGenerator(llm.Config{
		APIKey:      a.cfg.GenerationAPIKey(),
		Model:       a.cfg.Generation.Model,
		Temperature: a.cfg.Generation.Temperature,
		MaxTokens:   a.cfg.Generation.MaxTokens,
		Timeout:     a.cfg.Generation.Timeout,
	})
}

func (a *app) ingestUseCase(chunkSize, chunkOverlap int) (*usecase.IngestUseCase, error) {
	if chunkSize <= 0 {
		chunkSize = a.cfg.Chunking.Size
	}
	if chunkOverlap < 0 {
		chunkOverlap = a.cfg.Chunking.Overlap
	}
	ch, err := chunker.NewWindowChunker(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	emb, err := a.embedder()
	if err != nil {
		return nil, fmt.Errorf("embedding not available: %w", err)
	}
	return usecase.NewIngestUseCase(ch, emb, a.store, a.answers,
		a.cfg.Ingest.RequireAllChunks, a.logger), nil
}

func (a *app) queryUseCase() (*usecase.QueryUseCase, error) {
	emb, err := a.embedder()
	if err != nil {
		return nil, fmt.Errorf("embedding not available: %w", err)
	}
	gen, err := a.generator()
	if err != nil {
		return nil, fmt.Errorf("generation not available: %w", err)
	}
	return usecase.NewQueryUseCase(emb, a.store, gen, a.answers,
		a.cfg.Query.TopK, a.logger), nil
}

func (a *app) adminUseCase() *usecase.AdminUseCase {
	return usecase.NewAdminUseCase(a.store, a.answers,
		a.cfg.EmbeddingAPIKey() != "",
		a.cfg.GenerationAPIKey() != "",
		a.logger)
}
