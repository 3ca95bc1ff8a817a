// Command collector serves the feature-assembly pipeline: single-parameter
// series, NDVI-max/yield samples, and normalized model input vectors.
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
	"github.com/cropsignal/yield-feature-service/internal/collector"
	"github.com/cropsignal/yield-feature-service/internal/config"
	"github.com/cropsignal/yield-feature-service/internal/observability"
	"github.com/cropsignal/yield-feature-service/internal/registry"
)

func main() {
	cfg, err := config.LoadCollector()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	reg, degraded, regErr := registry.Load(cfg.RegistryPath)
	if degraded {
		logger.Warn("registry degraded to built-in defaults", "path", cfg.RegistryPath, "reason", regErr)
	} else {
		logger.Info("registry loaded",
			"params", len(reg.Params), "stat_params", len(reg.StatParams), "sequence_length", reg.SequenceLength())
	}

	storage := client.NewStorageClient(cfg.StorageURL, cfg.LookupTimeout)

	mux := httpapi.NewMux(logger, observability.NewHTTPMetrics("yield_collector"))
	collector.NewHandler(reg, storage, logger, clockwork.NewRealClock(), degraded).Register(mux)
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
