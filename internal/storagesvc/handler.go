// Package storagesvc exposes the row store over HTTP: district/year
// discovery plus the four row-lookup shapes the collector consumes.
package storagesvc

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cropsignal/yield-feature-service/internal/adapter/httpapi"
	"github.com/cropsignal/yield-feature-service/internal/store"
)

// Handler serves the storage service routes.
type Handler struct {
	store  store.Store
	logger *slog.Logger
	clock  clockwork.Clock
}

// NewHandler creates a storage Handler.
func NewHandler(st store.Store, logger *slog.Logger, clock clockwork.Clock) *Handler {
	return &Handler{store: st, logger: logger, clock: clock}
}

// Register attaches all storage routes to the mux.
func (h *Handler) Register(mux *httpapi.Mux) {
	mux.HandleFunc("GET /", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /districts", h.handleDistricts)
	mux.HandleFunc("GET /years", h.handleYears)
	mux.HandleFunc("GET /meteo/row", h.handleRow)
	mux.HandleFunc("GET /meteo/all_years", h.handleAllYears)
	mux.HandleFunc("GET /meteo/with_yield", h.handleWithYield)
	mux.HandleFunc("GET /meteo/multi_year", h.handleMultiYear)
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"service":   "storage",
		"status":    "running",
		"timestamp": h.clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": h.clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleDistricts(w http.ResponseWriter, r *http.Request) {
	regions, err := h.store.Regions(r.Context())
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	out := make(map[string][]string, len(regions))
	for _, region := range regions {
		districts, err := h.store.Districts(r.Context(), region)
		if err != nil {
			httpapi.WriteError(w, h.logger, err)
			return
		}
		out[region] = districts
	}
	httpapi.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleYears(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")

	years, err := h.store.Years(r.Context(), region, district)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"region":   region,
		"district": district,
		"years":    years,
	})
}

// handleRow returns one district-year's flat meteo row (single-series lookup).
func (h *Handler) handleRow(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")
	year, ok := httpapi.QueryInt(r, "year", 0)
	if !ok || year == 0 {
		writeBadYear(w)
		return
	}

	row, err := h.store.Row(r.Context(), region, district, year)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "OK",
		"region":   region,
		"district": district,
		"year":     year,
		"data":     row.Meteo,
	})
}

// handleAllYears returns every row of a district, year ascending
// (correlation lookup).
func (h *Handler) handleAllYears(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")

	rows, err := h.store.DistrictRows(r.Context(), region, district)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		out[i] = map[string]any{
			"year":       row.Year,
			"productive": row.Stats.Productive,
			"meteo_data": row.Meteo,
		}
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "OK",
		"region":   region,
		"district": district,
		"count":    len(out),
		"rows":     out,
	})
}

// handleWithYield returns the current and previous year rows plus yield
// statistics (prediction-feature lookup).
func (h *Handler) handleWithYield(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")
	year, ok := httpapi.QueryInt(r, "year", 0)
	if !ok || year == 0 {
		writeBadYear(w)
		return
	}

	curr, err := h.store.Row(r.Context(), region, district, year)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}
	prev, err := h.store.Row(r.Context(), region, district, year-1)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":                "OK",
		"region":                region,
		"district":              district,
		"year":                  year,
		"meteo_data":            curr.Meteo,
		"meteo_data_prev":       prev.Meteo,
		"productive":            curr.Stats.Productive,
		"mean_productive":       curr.Stats.MeanProductive,
		"trend":                 curr.Stats.Trend,
		"prod_disperssion_norm": curr.Stats.ProdDispersionNorm,
	})
}

// handleMultiYear returns the target year plus history preceding years.
// All-or-nothing: one missing year fails the whole request, because a
// regression trained on a gap-filled history would be silently wrong.
func (h *Handler) handleMultiYear(w http.ResponseWriter, r *http.Request) {
	region, district := r.URL.Query().Get("region"), r.URL.Query().Get("district")
	year, ok := httpapi.QueryInt(r, "year", 0)
	if !ok || year == 0 {
		writeBadYear(w)
		return
	}
	history, ok := httpapi.QueryInt(r, "history", 5)
	if !ok || history < 1 {
		httpapi.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "bad_request",
			"message": "history must be a positive integer",
		})
		return
	}

	years := make([]int, 0, history+1)
	meteoRows := make([][]float64, 0, history+1)
	yields := make([]float64, 0, history+1)
	for y := year - history; y <= year; y++ {
		row, err := h.store.Row(r.Context(), region, district, y)
		if err != nil {
			httpapi.WriteError(w, h.logger, err)
			return
		}
		years = append(years, y)
		meteoRows = append(meteoRows, row.Meteo)
		yields = append(yields, row.Stats.Productive)
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "OK",
		"region":      region,
		"district":    district,
		"target_year": year,
		"years":       years,
		"meteo_rows":  meteoRows,
		"yields":      yields,
	})
}

func writeBadYear(w http.ResponseWriter) {
	httpapi.WriteJSON(w, http.StatusBadRequest, map[string]string{
		"status":  "bad_request",
		"message": "year must be a non-zero integer",
	})
}
