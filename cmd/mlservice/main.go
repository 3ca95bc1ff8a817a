// Command mlservice serves yield predictions: a conv regressor over
// assembled feature vectors and a linear-regression baseline.
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
	"github.com/cropsignal/yield-feature-service/internal/config"
	"github.com/cropsignal/yield-feature-service/internal/mlsvc"
	"github.com/cropsignal/yield-feature-service/internal/observability"
)

func main() {
	cfg, err := config.LoadML()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	mux := httpapi.NewMux(logger, observability.NewHTTPMetrics("yield_ml"))
	mlsvc.NewHandler(cfg.ModelPath, logger, clockwork.NewRealClock()).Register(mux)
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
