package mlsvc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsignal/yield-feature-service/internal/adapter/httpapi"
	"github.com/cropsignal/yield-feature-service/internal/observability"
)

func newTestServer(t *testing.T, modelPath string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := httpapi.NewMux(logger, observability.NewHTTPMetricsForTesting())
	NewHandler(modelPath, logger, clockwork.NewFakeClock()).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postBody(t *testing.T, url string, payload any, wantStatus int) map[string]any {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, wantStatus, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandlePredict(t *testing.T) {
	srv := newTestServer(t, writeModel(t, twoParamModel()))

	t.Run("scores the prediction against the observed yield", func(t *testing.T) {
		body := postBody(t, srv.URL+"/predict", map[string]any{
			"region":        "volga",
			"district":      "kamyshin",
			"year":          2020,
			"data":          []float64{0, 0, 4, 4},
			"num_of_params": 2,
			"productive":    5.0,
		}, http.StatusOK)

		assert.Equal(t, float64(4), body["prediction"])
		assert.Equal(t, float64(5), body["actual"])
		assert.Equal(t, float64(1), body["error"])
		assert.Equal(t, float64(20), body["error_percent"])
	})

	t.Run("zero observed yield gives zero percent", func(t *testing.T) {
		body := postBody(t, srv.URL+"/predict", map[string]any{
			"data":          []float64{0, 0, 4, 4},
			"num_of_params": 2,
			"productive":    0.0,
		}, http.StatusOK)

		assert.Equal(t, float64(4), body["error"])
		assert.Equal(t, float64(0), body["error_percent"])
	})

	t.Run("shape mismatch", func(t *testing.T) {
		body := postBody(t, srv.URL+"/predict", map[string]any{
			"data":          []float64{1, 2, 3},
			"num_of_params": 3,
		}, http.StatusInternalServerError)
		assert.Equal(t, "internal", body["status"])
	})

	t.Run("empty data", func(t *testing.T) {
		body := postBody(t, srv.URL+"/predict", map[string]any{
			"num_of_params": 2,
		}, http.StatusBadRequest)
		assert.Equal(t, "bad_request", body["status"])
	})
}

func TestHandlePredictWithoutModel(t *testing.T) {
	srv := newTestServer(t, filepath.Join(t.TempDir(), "missing.json"))

	body := postBody(t, srv.URL+"/predict", map[string]any{
		"data":          []float64{0, 0, 4, 4},
		"num_of_params": 2,
	}, http.StatusServiceUnavailable)

	assert.Equal(t, "model_unavailable", body["status"])
}

func TestHandleRegression(t *testing.T) {
	srv := newTestServer(t, filepath.Join(t.TempDir(), "missing.json"))

	t.Run("trains on all but the last sample", func(t *testing.T) {
		// Train pairs (0.4, 18) and (0.5, 19) give slope 10, intercept 14;
		// the target sample (0.7, 20) is predicted at 21.
		body := postBody(t, srv.URL+"/regression", map[string]any{
			"region":      "volga",
			"district":    "kamyshin",
			"target_year": 2020,
			"data": []map[string]any{
				{"year": 2018, "ndvi_max": 0.4, "productive": 18},
				{"year": 2019, "ndvi_max": 0.5, "productive": 19},
				{"year": 2020, "ndvi_max": 0.7, "productive": 20},
			},
		}, http.StatusOK)

		assert.InDelta(t, 21, body["prediction"].(float64), 1e-9)
		assert.Equal(t, float64(20), body["actual"])
		assert.InDelta(t, 1, body["error"].(float64), 1e-9)
		assert.InDelta(t, 5, body["error_percent"].(float64), 1e-9)
		assert.InDelta(t, 10, body["slope"].(float64), 1e-9)
		assert.InDelta(t, 14, body["intercept"].(float64), 1e-9)
	})

	t.Run("works without the conv model", func(t *testing.T) {
		body := postBody(t, srv.URL+"/regression", map[string]any{
			"data": []map[string]any{
				{"ndvi_max": 0.4, "productive": 18},
				{"ndvi_max": 0.5, "productive": 19},
				{"ndvi_max": 0.6, "productive": 20},
			},
		}, http.StatusOK)
		assert.Equal(t, "OK", body["status"])
	})

	t.Run("too few samples", func(t *testing.T) {
		// Two samples leave only one training point after the holdout, so
		// the guard rejects anything below three.
		for _, data := range [][]map[string]any{
			{{"ndvi_max": 0.4, "productive": 18}},
			{{"ndvi_max": 0.4, "productive": 18}, {"ndvi_max": 0.5, "productive": 19}},
		} {
			body := postBody(t, srv.URL+"/regression", map[string]any{"data": data}, http.StatusBadRequest)
			assert.Equal(t, "bad_request", body["status"])
			assert.Contains(t, body["message"], "3 samples")
		}
	})

	t.Run("constant ndvi cannot be fitted", func(t *testing.T) {
		body := postBody(t, srv.URL+"/regression", map[string]any{
			"data": []map[string]any{
				{"ndvi_max": 0.5, "productive": 18},
				{"ndvi_max": 0.5, "productive": 19},
				{"ndvi_max": 0.5, "productive": 20},
			},
		}, http.StatusBadRequest)
		assert.Equal(t, "bad_request", body["status"])
	})
}

func TestHandleModelReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	srv := newTestServer(t, path)

	t.Run("starts unloaded when the file is missing", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/model/info")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, false, body["model_loaded"])
	})

	t.Run("reload picks up a new weight file", func(t *testing.T) {
		raw, err := json.Marshal(twoParamModel())
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, raw, 0o644))

		body := postBody(t, srv.URL+"/model/reload", map[string]any{}, http.StatusOK)
		assert.Equal(t, true, body["model_loaded"])

		// The previously rejected prediction now succeeds.
		predict := postBody(t, srv.URL+"/predict", map[string]any{
			"data":          []float64{0, 0, 4, 4},
			"num_of_params": 2,
		}, http.StatusOK)
		assert.Equal(t, float64(4), predict["prediction"])
	})
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, writeModel(t, twoParamModel()))

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, true, body["model_loaded"])
}
