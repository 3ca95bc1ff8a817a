package client

import (
	"context"
	"strconv"
	"time"

	"github.com/cropsignal/yield-feature-service/internal/features"
)

// CollectorClient calls the feature-assembly service.
type CollectorClient struct {
	caller
}

// NewCollectorClient creates a collector client with the given per-call timeout.
func NewCollectorClient(baseURL string, timeout time.Duration) *CollectorClient {
	return &CollectorClient{caller: newCaller(baseURL, "collector", timeout)}
}

// PredictData is the assembled model input for one district-year.
type PredictData struct {
	Data        []float64 `json:"data"`
	NumOfParams int       `json:"num_of_params"`
	Productive  float64   `json:"productive"`
}

// Timeseries fetches one parameter's daily series for plotting.
func (c *CollectorClient) Timeseries(ctx context.Context, region, district string, year int, param string) ([]float64, error) {
	q := districtQuery(region, district, year)
	q.Set("param", param)

	var body struct {
		Timeseries []float64 `json:"timeseries"`
	}
	if err := c.getJSON(ctx, "/timeseries", q, &body); err != nil {
		return nil, err
	}
	return body.Timeseries, nil
}

// Correlation fetches the district's NDVI-max/yield samples, year ascending.
func (c *CollectorClient) Correlation(ctx context.Context, region, district string) ([]features.Sample, error) {
	var body struct {
		Data []features.Sample `json:"data"`
	}
	if err := c.getJSON(ctx, "/correlation", districtQuery(region, district, 0), &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// PredictData fetches the normalized, windowed feature vector for a year.
func (c *CollectorClient) PredictData(ctx context.Context, region, district string, year int) (*PredictData, error) {
	var body PredictData
	if err := c.getJSON(ctx, "/predict_data", districtQuery(region, district, year), &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// RegressionData fetches the oldest-to-newest sample history for regression.
func (c *CollectorClient) RegressionData(ctx context.Context, region, district string, year, history int) ([]features.Sample, error) {
	q := districtQuery(region, district, year)
	q.Set("history", strconv.Itoa(history))

	var body struct {
		Data []features.Sample `json:"data"`
	}
	if err := c.getJSON(ctx, "/regression_data", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// Health probes the collector, degrading to "unavailable".
func (c *CollectorClient) Health(ctx context.Context) string {
	return c.health(ctx)
}
