package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/finquery/finquery/internal/adapters/http"
	"github.com/finquery/finquery/internal/bootstrap"
	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/core/domain"
	"github.com/finquery/finquery/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// Every api instance owns its own sparse-index cache; invalidations
	// are fanned out so all of them drop stale indexes.
	go func() {
		err := app.Queue.SubscribeCacheInvalidated(ctx, func(_ context.Context, inv domain.Invalidation) error {
			if inv.DocName == "" {
				app.Retriever.Reset()
				return nil
			}
			app.Retriever.Invalidate(inv.OwnerID, inv.DocName)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("invalidation subscription error", "error", err)
		}
	}()

	router := httpadapter.NewRouter(app.IngestUC, app.QueryUC, app.Registry, app.HTTPMetrics, "api")
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
