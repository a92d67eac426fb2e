// Package server provides the HTTP API for finrag.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"finrag/config"
	"finrag/internal/usecase"
)

// Server is the HTTP server for the finrag API.
type Server struct {
	ingest  *usecase.IngestUseCase
	query   *usecase.QueryUseCase
	admin   *usecase.AdminUseCase
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *http.Server
	ingests *semaphore.Weighted
}

// NewServer creates a server with the given dependencies. Concurrent
// ingestion requests are bounded by workers to respect the embedding
// provider's rate limits; queries are not bounded.
func NewServer(
	ingest *usecase.IngestUseCase,
	query *usecase.QueryUseCase,
	admin *usecase.AdminUseCase,
	cfg *config.ServerConfig,
	workers int,
	logger *zap.Logger,
) *Server {
	if workers <= 0 {
		workers = 4
	}
	return &Server{
		ingest:  ingest,
		query:   query,
		admin:   admin,
		config:  cfg,
		logger:  logger,
		ingests: semaphore.NewWeighted(int64(workers)),
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Router builds the chi router; split out so handler tests can mount it.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Post("/api/v1/rag/documents", s.handleIngest)
	r.Post("/api/v1/rag/query", s.handleQuery)
	r.Get("/api/v1/rag/status", s.handleStatus)
	r.Delete("/api/v1/rag/clear", s.handleClear)
	r.Get("/health", s.handleHealth)

	return r
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
