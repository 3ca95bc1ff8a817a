package mlsvc

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cropsignal/yield-feature-service/internal/adapter/httpapi"
	"github.com/cropsignal/yield-feature-service/internal/features"
	"github.com/cropsignal/yield-feature-service/internal/stats"
)

// Handler serves the model service routes. The conv model can be swapped at
// runtime through /model/reload; a missing weight file leaves the service up
// with predictions answering 503.
type Handler struct {
	modelPath string
	logger    *slog.Logger
	clock     clockwork.Clock

	mu    sync.RWMutex
	model *ConvModel
}

// NewHandler creates a model Handler and attempts the initial model load.
// Load failure is logged, not fatal: the regression baseline and health
// endpoints work without the conv model.
func NewHandler(modelPath string, logger *slog.Logger, clock clockwork.Clock) *Handler {
	h := &Handler{modelPath: modelPath, logger: logger, clock: clock}
	if err := h.reload(); err != nil {
		logger.Warn("conv model not loaded", "path", modelPath, "error", err)
	}
	return h
}

// Register attaches all model service routes to the mux.
func (h *Handler) Register(mux *httpapi.Mux) {
	mux.HandleFunc("GET /", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /model/info", h.handleModelInfo)
	mux.HandleFunc("POST /model/reload", h.handleModelReload)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("POST /regression", h.handleRegression)
}

func (h *Handler) reload() error {
	model, err := LoadConvModel(h.modelPath)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.model = model
	h.mu.Unlock()
	h.logger.Info("conv model loaded", "path", h.modelPath, "name", model.Name, "input_params", model.InputParams)
	return nil
}

func (h *Handler) loadedModel() *ConvModel {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.model
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"service":      "ml-service",
		"status":       "running",
		"model_loaded": h.loadedModel() != nil,
		"model_path":   h.modelPath,
		"timestamp":    h.clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "OK",
		"model_loaded": h.loadedModel() != nil,
		"timestamp":    h.clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	info := map[string]any{
		"model_path":   h.modelPath,
		"model_loaded": false,
	}
	if m := h.loadedModel(); m != nil {
		info["model_loaded"] = true
		info["model_name"] = m.Name
		info["input_params"] = m.InputParams
	}
	httpapi.WriteJSON(w, http.StatusOK, info)
}

func (h *Handler) handleModelReload(w http.ResponseWriter, _ *http.Request) {
	if err := h.reload(); err != nil {
		h.logger.Warn("model reload failed", "error", err)
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "OK",
		"model_loaded": h.loadedModel() != nil,
	})
}

type predictRequest struct {
	Region      string    `json:"region"`
	District    string    `json:"district"`
	Year        int       `json:"year"`
	Data        []float64 `json:"data"`
	NumOfParams int       `json:"num_of_params"`
	Productive  float64   `json:"productive"`
}

// handlePredict runs the conv regressor on an assembled feature vector and
// scores it against the observed yield.
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	if len(req.Data) == 0 {
		writeBadRequest(w, "data is required")
		return
	}

	model := h.loadedModel()
	if model == nil {
		httpapi.WriteError(w, h.logger, &ModelUnavailableError{})
		return
	}

	prediction, err := model.Predict(req.Data, req.NumOfParams)
	if err != nil {
		httpapi.WriteError(w, h.logger, err)
		return
	}

	absErr, errPercent := score(prediction, req.Productive)
	h.logger.Info("prediction served",
		"region", req.Region, "district", req.District, "year", req.Year,
		"prediction", prediction, "actual", req.Productive, "error_percent", errPercent)

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "OK",
		"region":        req.Region,
		"district":      req.District,
		"year":          req.Year,
		"prediction":    prediction,
		"actual":        req.Productive,
		"error":         absErr,
		"error_percent": errPercent,
	})
}

type regressionRequest struct {
	Region     string            `json:"region"`
	District   string            `json:"district"`
	TargetYear int               `json:"target_year"`
	Data       []features.Sample `json:"data"`
}

// handleRegression fits the linear baseline on all samples but the last and
// evaluates the fit on the last (the target year).
func (h *Handler) handleRegression(w http.ResponseWriter, r *http.Request) {
	var req regressionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	// The last sample is held out for evaluation, so a fit needs two more.
	if len(req.Data) < 3 {
		writeBadRequest(w, "need at least 3 samples: the regression trains on all but the last")
		return
	}

	train := req.Data[:len(req.Data)-1]
	test := req.Data[len(req.Data)-1]

	xs := make([]float64, len(train))
	ys := make([]float64, len(train))
	for i, s := range train {
		xs[i] = s.NDVIMax
		ys[i] = s.Productive
	}

	line, err := stats.FitLine(xs, ys)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	prediction := line.Predict(test.NDVIMax)
	absErr, errPercent := score(prediction, test.Productive)
	h.logger.Info("regression served",
		"region", req.Region, "district", req.District, "target_year", req.TargetYear,
		"prediction", prediction, "actual", test.Productive, "error_percent", errPercent)

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "OK",
		"region":        req.Region,
		"district":      req.District,
		"year":          req.TargetYear,
		"prediction":    prediction,
		"actual":        test.Productive,
		"error":         absErr,
		"error_percent": errPercent,
		"slope":         line.Slope,
		"intercept":     line.Intercept,
	})
}

// score returns the absolute error and error percentage of a prediction
// against the observed value; percentage is 0 when the observation is 0.
func score(prediction, actual float64) (absErr, errPercent float64) {
	absErr = math.Abs(prediction - actual)
	if actual != 0 {
		errPercent = absErr / actual * 100
	}
	return absErr, errPercent
}

func writeBadRequest(w http.ResponseWriter, message string) {
	httpapi.WriteJSON(w, http.StatusBadRequest, map[string]string{
		"status":  "bad_request",
		"message": message,
	})
}
