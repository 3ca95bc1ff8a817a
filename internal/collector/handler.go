// Package collector exposes the feature-assembly pipeline over HTTP. It is
// the only component that understands flat-row layout; storage hands it raw
// rows and it hands the model service finished feature vectors.
package collector

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cropsignal/yield-feature-service/internal/adapter/client"
	"github.com/cropsignal/yield-feature-service/internal/adapter/httpapi"
	"github.com/cropsignal/yield-feature-service/internal/features"
	"github.com/cropsignal/yield-feature-service/internal/registry"
)

// Stat parameter names as supplied by storage's yield statistics.
const (
	statMeanProd = "mean_prod"
	statTrend    = "trend"
	statDisp     = "disp"
)

// Handler serves the collector routes.
type Handler struct {
	reg       *registry.Registry
	asm       *features.Assembler
	storage   *client.StorageClient
	logger    *slog.Logger
	clock     clockwork.Clock
	degraded  bool
}

// NewHandler creates a collector Handler. degraded marks a registry running
// on built-in defaults; it is surfaced through /health so operators can tell
// a properly configured instance from one limping on defaults.
func NewHandler(reg *registry.Registry, storage *client.StorageClient, logger *slog.Logger, clock clockwork.Clock, degraded bool) *Handler {
	return &Handler{
		reg:      reg,
		asm:      features.NewAssembler(reg),
		storage:  storage,
		logger:   logger,
		clock:    clock,
		degraded: degraded,
	}
}

// Register attaches all collector routes to the mux.
func (h *Handler) Register(mux *httpapi.Mux) {
	mux.HandleFunc("GET /", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /params", h.handleParams)
	mux.HandleFunc("GET /timeseries", h.handleTimeseries)
	mux.HandleFunc("GET /correlation", h.handleCorrelation)
	mux.HandleFunc("GET /predict_data", h.handlePredictData)
	mux.HandleFunc("GET /regression_data", h.handleRegressionData)
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"service":   "collector",
		"status":    "running",
		"degraded":  h.degraded,
		"timestamp": h.clock.Now().Format(time.RFC3339),
	})
}

// handleHealth reports collector health plus a storage probe; the probe
// degrades to "unavailable" instead of failing the health check itself.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "OK",
		"degraded":       h.degraded,
		"storage_status": h.storage.Health(r.Context()),
		"timestamp":      h.clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleParams(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"params":      h.reg.ParamNames(),
		"stat_params": h.reg.StatParamNames(),
	})
}

// handleTimeseries extracts one parameter's daily series from a stored row
// (single-series scenario).
func (h *Handler) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")
	param := r.URL.Query().Get("param")
	year, ok := httpapi.QueryInt(r, "year", 0)
	if !ok || year == 0 {
		writeBadRequest(w, "year must be a non-zero integer")
		return
	}

	// Reject unknown parameters before the storage round-trip.
	if h.reg.ParamIndex(param) < 0 {
		httpapi.WriteError(w, h.logger, &features.UnknownParameterError{Name: param})
		return
	}

	row, err := h.storage.Row(r.Context(), region, district, year)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}
	series, err := h.asm.Extract(row, param)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":     "OK",
		"region":     region,
		"district":   district,
		"year":       year,
		"param":      param,
		"timeseries": series,
	})
}

// handleCorrelation returns (year, ndvi_max, productive) samples for every
// stored year of a district, year ascending (correlation scenario).
func (h *Handler) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")

	rows, err := h.storage.AllYears(r.Context(), region, district)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	samples := make([]features.Sample, 0, len(rows))
	for _, row := range rows {
		ndviMax, err := h.asm.NDVIMax(row.Meteo)
		if err != nil {
			httpapi.WriteError(w, h.logger, err)
			return
		}
		samples = append(samples, features.Sample{
			Year:       row.Year,
			NDVIMax:    ndviMax,
			Productive: row.Productive,
		})
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "OK",
		"region":   region,
		"district": district,
		"count":    len(samples),
		"data":     samples,
	})
}

// handlePredictData assembles the model input for one district-year:
// merge the two-year rows, broadcast the yield statistics, normalize, cut
// the day window, and flatten (prediction-feature scenario).
func (h *Handler) handlePredictData(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")
	year, ok := httpapi.QueryInt(r, "year", 0)
	if !ok || year == 0 {
		writeBadRequest(w, "year must be a non-zero integer")
		return
	}

	lookup, err := h.storage.WithYield(r.Context(), region, district, year)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	merged, err := h.asm.MergeTwoYears(lookup.MeteoPrev, lookup.Meteo)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	withStats := h.asm.AddStatParams(merged, map[string]float64{
		statMeanProd: lookup.Stats.MeanProductive,
		statTrend:    lookup.Stats.Trend,
		statDisp:     lookup.Stats.ProdDispersionNorm,
	})

	vector, err := h.asm.NormalizeAndWindow(withStats)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "OK",
		"region":        region,
		"district":      district,
		"year":          year,
		"data":          vector,
		"num_of_params": len(vector) / h.asm.WindowLength(),
		"productive":    lookup.Stats.Productive,
	})
}

// handleRegressionData returns the sample history for the linear baseline,
// oldest to newest; the model service trains on all but the last sample
// (regression-feature scenario).
func (h *Handler) handleRegressionData(w http.ResponseWriter, r *http.Request) {
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

	lookup, err := h.storage.MultiYear(r.Context(), region, district, year, history)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	samples := make([]features.Sample, 0, len(lookup.Years))
	for i, y := range lookup.Years {
		ndviMax, err := h.asm.NDVIMax(lookup.Meteo[i])
		if err != nil {
			httpapi.WriteError(w, h.logger, err)
			return
		}
		samples = append(samples, features.Sample{
			Year:       y,
			NDVIMax:    ndviMax,
			Productive: lookup.Yields[i],
		})
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "OK",
		"region":      region,
		"district":    district,
		"target_year": year,
		"count":       len(samples),
		"data":        samples,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	httpapi.WriteJSON(w, http.StatusBadRequest, map[string]string{
		"status":  "bad_request",
		"message": message,
	})
}
