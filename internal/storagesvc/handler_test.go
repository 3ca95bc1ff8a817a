package storagesvc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropsignal/yield-feature-service/internal/adapter/httpapi"
	"github.com/cropsignal/yield-feature-service/internal/observability"
	"github.com/cropsignal/yield-feature-service/internal/store"
)

// memStore is a fixture Store with one district holding years 2018-2020 and
// another holding 2020 only.
type memStore struct {
	rows map[int]store.Row
}

func newMemStore() *memStore {
	return &memStore{rows: map[int]store.Row{
		2018: {Year: 2018, Meteo: []float64{1, 1}, Stats: store.Stats{Productive: 18}},
		2019: {Year: 2019, Meteo: []float64{2, 2}, Stats: store.Stats{Productive: 19, MeanProductive: 18.5, Trend: 0.3, ProdDispersionNorm: 1.02}},
		2020: {Year: 2020, Meteo: []float64{3, 3}, Stats: store.Stats{Productive: 20, MeanProductive: 19, Trend: 0.35, ProdDispersionNorm: 1.08}},
	}}
}

func (s *memStore) Regions(context.Context) ([]string, error) { return []string{"volga"}, nil }

func (s *memStore) Districts(_ context.Context, region string) ([]string, error) {
	if region != "volga" {
		return nil, &store.NotFoundError{Region: region}
	}
	return []string{"kamyshin", "uryupinsk"}, nil
}

func (s *memStore) Years(ctx context.Context, region, district string) ([]int, error) {
	rows, err := s.DistrictRows(ctx, region, district)
	if err != nil {
		return nil, err
	}
	years := make([]int, len(rows))
	for i, r := range rows {
		years[i] = r.Year
	}
	return years, nil
}

func (s *memStore) Row(_ context.Context, region, district string, year int) (store.Row, error) {
	if region != "volga" || district != "kamyshin" {
		if district == "uryupinsk" && year == 2020 {
			return s.rows[2020], nil
		}
		return store.Row{}, &store.NotFoundError{Region: region, District: district, Year: year}
	}
	row, ok := s.rows[year]
	if !ok {
		return store.Row{}, &store.NotFoundError{Region: region, District: district, Year: year}
	}
	return row, nil
}

func (s *memStore) DistrictRows(_ context.Context, region, district string) ([]store.Row, error) {
	if region != "volga" || district != "kamyshin" {
		return nil, &store.NotFoundError{Region: region, District: district}
	}
	return []store.Row{s.rows[2018], s.rows[2019], s.rows[2020]}, nil
}

func (s *memStore) Append(context.Context, store.Measurement) error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := httpapi.NewMux(logger, observability.NewHTTPMetricsForTesting())
	NewHandler(newMemStore(), logger, clockwork.NewFakeClock()).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getBody(t *testing.T, url string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, wantStatus, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandleDistricts(t *testing.T) {
	srv := newTestServer(t)
	body := getBody(t, srv.URL+"/districts", http.StatusOK)

	districts, ok := body["volga"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"kamyshin", "uryupinsk"}, districts)
}

func TestHandleYears(t *testing.T) {
	srv := newTestServer(t)
	body := getBody(t, srv.URL+"/years?region=volga&district=kamyshin", http.StatusOK)

	assert.Equal(t, []any{float64(2018), float64(2019), float64(2020)}, body["years"])
}

func TestHandleRow(t *testing.T) {
	srv := newTestServer(t)

	t.Run("success", func(t *testing.T) {
		body := getBody(t, srv.URL+"/meteo/row?region=volga&district=kamyshin&year=2020", http.StatusOK)
		assert.Equal(t, []any{float64(3), float64(3)}, body["data"])
	})

	t.Run("missing year param", func(t *testing.T) {
		body := getBody(t, srv.URL+"/meteo/row?region=volga&district=kamyshin", http.StatusBadRequest)
		assert.Equal(t, "bad_request", body["status"])
	})

	t.Run("unknown year", func(t *testing.T) {
		body := getBody(t, srv.URL+"/meteo/row?region=volga&district=kamyshin&year=1999", http.StatusNotFound)
		assert.Equal(t, "not_found", body["status"])
		assert.Contains(t, body["message"], "1999")
	})
}

func TestHandleAllYears(t *testing.T) {
	srv := newTestServer(t)
	body := getBody(t, srv.URL+"/meteo/all_years?region=volga&district=kamyshin", http.StatusOK)

	assert.Equal(t, float64(3), body["count"])
	rows, ok := body["rows"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 3)

	first := rows[0].(map[string]any)
	assert.Equal(t, float64(2018), first["year"])
	assert.Equal(t, float64(18), first["productive"])
}

func TestHandleWithYield(t *testing.T) {
	srv := newTestServer(t)

	t.Run("bundles current and previous year", func(t *testing.T) {
		body := getBody(t, srv.URL+"/meteo/with_yield?region=volga&district=kamyshin&year=2020", http.StatusOK)

		assert.Equal(t, []any{float64(3), float64(3)}, body["meteo_data"])
		assert.Equal(t, []any{float64(2), float64(2)}, body["meteo_data_prev"])
		assert.Equal(t, float64(20), body["productive"])
		assert.Equal(t, 1.08, body["prod_disperssion_norm"])
	})

	t.Run("missing previous year fails", func(t *testing.T) {
		// 2018 exists but 2017 does not.
		body := getBody(t, srv.URL+"/meteo/with_yield?region=volga&district=kamyshin&year=2018", http.StatusNotFound)
		assert.Equal(t, "not_found", body["status"])
	})
}

func TestHandleMultiYear(t *testing.T) {
	srv := newTestServer(t)

	t.Run("consecutive history", func(t *testing.T) {
		body := getBody(t, srv.URL+"/meteo/multi_year?region=volga&district=kamyshin&year=2020&history=2", http.StatusOK)

		assert.Equal(t, []any{float64(2018), float64(2019), float64(2020)}, body["years"])
		assert.Equal(t, []any{float64(18), float64(19), float64(20)}, body["yields"])

		rows, ok := body["meteo_rows"].([]any)
		require.True(t, ok)
		assert.Len(t, rows, 3)
	})

	t.Run("gap fails the whole request", func(t *testing.T) {
		body := getBody(t, srv.URL+"/meteo/multi_year?region=volga&district=kamyshin&year=2020&history=5", http.StatusNotFound)
		assert.Equal(t, "not_found", body["status"])
	})

	t.Run("non-positive history rejected", func(t *testing.T) {
		body := getBody(t, srv.URL+"/meteo/multi_year?region=volga&district=kamyshin&year=2020&history=0", http.StatusBadRequest)
		assert.Equal(t, "bad_request", body["status"])
	})
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	body := getBody(t, srv.URL+"/health", http.StatusOK)

	assert.Equal(t, "OK", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}
