package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"finrag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the ingestion and query API over HTTP.

Endpoints:
  POST   /api/v1/rag/documents   ingest extracted text
  POST   /api/v1/rag/query       ask a question
  GET    /api/v1/rag/status      backend status
  DELETE /api/v1/rag/clear       remove all vectors
  GET    /health`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a := newApp(cfg, logger)

	ingestUC, err := a.ingestUseCase(0, -1)
	if err != nil {
		return err
	}
	queryUC, err := a.queryUseCase()
	if err != nil {
		return err
	}

	srv := server.NewServer(ingestUC, queryUC, a.adminUseCase(),
		&cfg.Server, cfg.Ingest.Workers, logger)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-done:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	}
}
