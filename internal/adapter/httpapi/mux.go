package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cropsignal/yield-feature-service/internal/observability"
)

// Mux is a ServeMux that applies request-id, logging, and metrics middleware
// to every registered route and always exposes GET /metrics.
type Mux struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	metrics *observability.HTTPMetrics
}

// NewMux creates a Mux with the /metrics route pre-registered.
func NewMux(logger *slog.Logger, metrics *observability.HTTPMetrics) *Mux {
	m := &Mux{
		mux:     http.NewServeMux(),
		logger:  logger,
		metrics: metrics,
	}
	m.mux.Handle("GET /metrics", promhttp.Handler())
	return m
}

// HandleFunc registers a handler under the shared middleware. The pattern
// uses ServeMux method syntax, e.g. "GET /timeseries".
func (m *Mux) HandleFunc(pattern string, h http.HandlerFunc) {
	m.mux.Handle(pattern, m.instrument(pattern, h))
}

func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

func (m *Mux) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		m.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		m.metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		m.logger.Info("request handled",
			"route", route,
			"status", sw.status,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", requestID,
			"query", r.URL.RawQuery,
		)
	})
}

// statusWriter records the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// WriteJSON renders v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response body
}

// QueryInt parses an integer query parameter, returning fallback when absent.
// A second return of false means the value was present but malformed.
func QueryInt(r *http.Request, name string, fallback int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
