package client

import (
	"context"
	"time"

	"github.com/cropsignal/yield-feature-service/internal/features"
)

// ModelClient calls the model-serving service. Inference calls get a longer
// timeout than lookups; the timeout passed here should be tens of seconds.
type ModelClient struct {
	caller
}

// NewModelClient creates a model-service client with the given inference timeout.
func NewModelClient(baseURL string, timeout time.Duration) *ModelClient {
	return &ModelClient{caller: newCaller(baseURL, "ml-service", timeout)}
}

// PredictRequest carries the assembled feature vector to the conv regressor.
type PredictRequest struct {
	Region      string    `json:"region"`
	District    string    `json:"district"`
	Year        int       `json:"year"`
	Data        []float64 `json:"data"`
	NumOfParams int       `json:"num_of_params"`
	Productive  float64   `json:"productive"`
}

// RegressionRequest carries the sample history to the linear baseline.
type RegressionRequest struct {
	Region     string            `json:"region"`
	District   string            `json:"district"`
	TargetYear int               `json:"target_year"`
	Data       []features.Sample `json:"data"`
}

// PredictionResult is the model service's evaluation of one prediction.
type PredictionResult struct {
	Prediction   float64 `json:"prediction"`
	Actual       float64 `json:"actual"`
	Error        float64 `json:"error"`
	ErrorPercent float64 `json:"error_percent"`

	// Regression-only diagnostics.
	Slope     float64 `json:"slope,omitempty"`
	Intercept float64 `json:"intercept,omitempty"`
}

// Predict runs the conv regressor on an assembled feature vector.
func (c *ModelClient) Predict(ctx context.Context, req PredictRequest) (*PredictionResult, error) {
	var body PredictionResult
	if err := c.postJSON(ctx, "/predict", req, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// Regression trains the linear baseline on all but the last sample and
// evaluates it on the last.
func (c *ModelClient) Regression(ctx context.Context, req RegressionRequest) (*PredictionResult, error) {
	var body PredictionResult
	if err := c.postJSON(ctx, "/regression", req, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// Health probes the model service, degrading to "unavailable".
func (c *ModelClient) Health(ctx context.Context) string {
	return c.health(ctx)
}
