// Package webmaster orchestrates the four user-facing scenarios across the
// collector and model services and aggregates their health.
package webmaster

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cropsignal/yield-feature-service/internal/adapter/client"
	"github.com/cropsignal/yield-feature-service/internal/adapter/httpapi"
	"github.com/cropsignal/yield-feature-service/internal/stats"
)

// Handler serves the webmaster routes.
type Handler struct {
	collector *client.CollectorClient
	model     *client.ModelClient
	logger    *slog.Logger
	clock     clockwork.Clock
}

// NewHandler creates a webmaster Handler.
func NewHandler(collector *client.CollectorClient, model *client.ModelClient, logger *slog.Logger, clock clockwork.Clock) *Handler {
	return &Handler{collector: collector, model: model, logger: logger, clock: clock}
}

// Register attaches all webmaster routes to the mux.
func (h *Handler) Register(mux *httpapi.Mux) {
	mux.HandleFunc("GET /", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /scenario1", h.handleTimeseries)
	mux.HandleFunc("GET /scenario2", h.handleCorrelation)
	mux.HandleFunc("GET /scenario3", h.handlePredict)
	mux.HandleFunc("GET /scenario4", h.handleRegression)
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"service":   "webmaster",
		"status":    "running",
		"timestamp": h.clock.Now().Format(time.RFC3339),
	})
}

// handleHealth aggregates dependency probes; each degrades to "unavailable"
// without failing the check itself.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "OK",
		"services": map[string]string{
			"collector":  h.collector.Health(r.Context()),
			"ml_service": h.model.Health(r.Context()),
		},
		"timestamp": h.clock.Now().Format(time.RFC3339),
	})
}

// handleTimeseries serves scenario 1: one parameter's daily series.
func (h *Handler) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")
	param := r.URL.Query().Get("param")
	year, ok := httpapi.QueryInt(r, "year", 0)
	if !ok || year == 0 {
		writeBadRequest(w, "year must be a non-zero integer")
		return
	}

	series, err := h.collector.Timeseries(r.Context(), region, district, year, param)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "OK",
		"region":      region,
		"district":    district,
		"year":        year,
		"param":       param,
		"data_length": len(series),
		"timeseries":  series,
	})
}

// handleCorrelation serves scenario 2: NDVI-max/yield samples with the
// Pearson coefficient and fitted trend line.
func (h *Handler) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")

	samples, err := h.collector.Correlation(r.Context(), region, district)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = s.NDVIMax
		ys[i] = s.Productive
	}

	response := map[string]any{
		"status":      "OK",
		"region":      region,
		"district":    district,
		"count":       len(samples),
		"data":        samples,
		"correlation": stats.Pearson(xs, ys),
	}
	if line, err := stats.FitLine(xs, ys); err == nil {
		response["trend_slope"] = line.Slope
		response["trend_intercept"] = line.Intercept
	}
	httpapi.WriteJSON(w, http.StatusOK, response)
}

// handlePredict serves scenario 3: feature assembly chained into the conv
// regressor.
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")
	year, ok := httpapi.QueryInt(r, "year", 0)
	if !ok || year == 0 {
		writeBadRequest(w, "year must be a non-zero integer")
		return
	}

	assembled, err := h.collector.PredictData(r.Context(), region, district, year)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	result, err := h.model.Predict(r.Context(), client.PredictRequest{
		Region:      region,
		District:    district,
		Year:        year,
		Data:        assembled.Data,
		NumOfParams: assembled.NumOfParams,
		Productive:  assembled.Productive,
	})
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "OK",
		"region":        region,
		"district":      district,
		"year":          year,
		"prediction":    result.Prediction,
		"actual":        result.Actual,
		"error":         result.Error,
		"error_percent": result.ErrorPercent,
	})
}

// handleRegression serves scenario 4: sample history chained into the
// linear baseline.
func (h *Handler) handleRegression(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")
	year, ok := httpapi.QueryInt(r, "year", 0)
	if !ok || year == 0 {
		writeBadRequest(w, "year must be a non-zero integer")
		return
	}
	history, ok := httpapi.QueryInt(r, "history", 5)
	if !ok || history < 1 {
		writeBadRequest(w, "history must be a positive integer")
		return
	}

	samples, err := h.collector.RegressionData(r.Context(), region, district, year, history)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	result, err := h.model.Regression(r.Context(), client.RegressionRequest{
		Region:     region,
		District:   district,
		TargetYear: year,
		Data:       samples,
	})
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "OK",
		"region":        region,
		"district":      district,
		"year":          year,
		"history":       history,
		"prediction":    result.Prediction,
		"actual":        result.Actual,
		"error":         result.Error,
		"error_percent": result.ErrorPercent,
		"slope":         result.Slope,
		"intercept":     result.Intercept,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	httpapi.WriteJSON(w, http.StatusBadRequest, map[string]string{
		"status":  "bad_request",
		"message": message,
	})
}
