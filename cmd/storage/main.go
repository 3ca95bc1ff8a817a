// Command storage serves per-district-year measurement rows and yield
// statistics, optionally ingesting new rows from Kafka.
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

	"github.com/cropsignal/yield-feature-service/internal/adapter/httpapi"
	kafkaadapter "github.com/cropsignal/yield-feature-service/internal/adapter/kafka"
	"github.com/cropsignal/yield-feature-service/internal/config"
	"github.com/cropsignal/yield-feature-service/internal/ingest"
	"github.com/cropsignal/yield-feature-service/internal/observability"
	"github.com/cropsignal/yield-feature-service/internal/registry"
	"github.com/cropsignal/yield-feature-service/internal/storagesvc"
	"github.com/cropsignal/yield-feature-service/internal/store"
)

func main() {
	cfg, err := config.LoadStorage()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	reg, degraded, regErr := registry.Load(cfg.RegistryPath)
	if degraded {
		logger.Warn("registry degraded to built-in defaults", "path", cfg.RegistryPath, "reason", regErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, reg, logger)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	mux := httpapi.NewMux(logger, observability.NewHTTPMetrics("yield_storage"))
	storagesvc.NewHandler(st, logger, clockwork.NewRealClock()).Register(mux)
	srv := httpapi.NewServer(cfg.HTTPAddr, mux, logger)

	var reader *kafkaadapter.Reader
	if cfg.IngestEnabled {
		reader = kafkaadapter.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)
		pipeline := ingest.New(reader, st, reg, logger, observability.NewIngestMetrics("yield_storage"), cfg.IngestBatchSize)

		go func() {
			if err := pipeline.Run(ctx); err != nil {
				logger.Error("ingest error", "error", err)
			}
		}()
		logger.Info("ingest enabled", "topic", cfg.KafkaTopic, "group", cfg.KafkaGroupID)
	}

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
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	logger.Info("shutdown complete")
}

// openStore builds the configured store backend and returns it with its
// cleanup function.
func openStore(ctx context.Context, cfg *config.Storage, reg *registry.Registry, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("postgres store opened")
		return pg, func() {
			if err := pg.Close(); err != nil {
				logger.Error("postgres close error", "error", err)
			}
		}, nil
	default:
		cs, err := store.NewCSVStore(cfg.DataDir, reg.Regions)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("csv store loaded", "dir", cfg.DataDir, "regions", len(reg.Regions))
		return cs, func() {}, nil
	}
}
