// Command webmaster orchestrates the user-facing scenarios across the
// collector and model services.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/cropsignal/yield-feature-service/internal/adapter/client"
	"github.com/cropsignal/yield-feature-service/internal/adapter/httpapi"
	"github.com/cropsignal/yield-feature-service/internal/config"
	"github.com/cropsignal/yield-feature-service/internal/observability"
	"github.com/cropsignal/yield-feature-service/internal/webmaster"
)

func main() {
	cfg, err := config.LoadWebmaster()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	collectorClient := client.NewCollectorClient(cfg.CollectorURL, cfg.LookupTimeout)
	modelClient := client.NewModelClient(cfg.MLURL, cfg.InferenceTimeout)

	mux := httpapi.NewMux(logger, observability.NewHTTPMetrics("yield_webmaster"))
	webmaster.NewHandler(collectorClient, modelClient, logger, clockwork.NewRealClock()).Register(mux)
	srv := httpapi.NewServer(cfg.HTTPAddr, mux, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
