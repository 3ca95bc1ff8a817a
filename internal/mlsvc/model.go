// Package mlsvc serves the prediction models: a 1D convolutional regressor
// over the assembled feature tensor and a linear-regression baseline over
// NDVI-max/yield pairs.
package mlsvc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// ModelUnavailableError reports that no conv model is loaded; prediction
// requests are rejected rather than answered from nothing.
type ModelUnavailableError struct{}

func (*ModelUnavailableError) Error() string   { return "prediction model is not loaded" }
func (*ModelUnavailableError) Kind() string    { return "model_unavailable" }
func (*ModelUnavailableError) HTTPStatus() int { return http.StatusServiceUnavailable }

// ConvLayer is one 1D convolution: weights indexed [out][in][kernel].
type ConvLayer struct {
	Weights [][][]float64 `json:"weights"`
	Bias    []float64     `json:"bias"`
}

// DenseLayer is the fully connected head: weights indexed [out][in].
type DenseLayer struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// ConvModel is a yield regressor: stacked valid-padding 1D convolutions with
// ReLU activations, global average pooling over the day axis, and a dense
// head producing one scalar.
type ConvModel struct {
	Name        string      `json:"name"`
	InputParams int         `json:"input_params"`
	ConvLayers  []ConvLayer `json:"conv_layers"`
	Dense       DenseLayer  `json:"dense"`
}

// LoadConvModel reads and validates a JSON weight file.
func LoadConvModel(path string) (*ConvModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model file: %w", err)
	}

	var m ConvModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model file: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid model %q: %w", m.Name, err)
	}
	return &m, nil
}

func (m *ConvModel) validate() error {
	if len(m.ConvLayers) == 0 {
		return fmt.Errorf("no conv layers")
	}

	channels := m.InputParams
	for i, layer := range m.ConvLayers {
		if len(layer.Weights) == 0 || len(layer.Weights) != len(layer.Bias) {
			return fmt.Errorf("conv layer %d: %d filters but %d biases", i, len(layer.Weights), len(layer.Bias))
		}
		for _, filter := range layer.Weights {
			if len(filter) != channels {
				return fmt.Errorf("conv layer %d: filter spans %d channels, input has %d", i, len(filter), channels)
			}
			for _, kernel := range filter {
				if len(kernel) == 0 {
					return fmt.Errorf("conv layer %d: empty kernel", i)
				}
			}
		}
		channels = len(layer.Weights)
	}

	if len(m.Dense.Weights) != 1 || len(m.Dense.Bias) != 1 {
		return fmt.Errorf("dense head must produce exactly one output")
	}
	if len(m.Dense.Weights[0]) != channels {
		return fmt.Errorf("dense head takes %d inputs, conv stack produces %d", len(m.Dense.Weights[0]), channels)
	}
	return nil
}

// Predict reshapes the flat feature vector into [numParams × seqLen] and runs
// the forward pass.
func (m *ConvModel) Predict(data []float64, numParams int) (float64, error) {
	if numParams <= 0 {
		return 0, fmt.Errorf("num_of_params must be positive, got %d", numParams)
	}
	if numParams != m.InputParams {
		return 0, fmt.Errorf("feature vector has %d parameters, model expects %d", numParams, m.InputParams)
	}
	if len(data) == 0 || len(data)%numParams != 0 {
		return 0, fmt.Errorf("feature vector length %d is not divisible by %d parameters", len(data), numParams)
	}

	// Row-major reshape: parameter is the outer axis, matching the
	// collector's flattening order.
	seqLen := len(data) / numParams
	x := make([][]float64, numParams)
	for i := range x {
		x[i] = data[i*seqLen : (i+1)*seqLen]
	}

	for i, layer := range m.ConvLayers {
		var err error
		x, err = layer.apply(x)
		if err != nil {
			return 0, fmt.Errorf("conv layer %d: %w", i, err)
		}
	}

	pooled := globalAveragePool(x)
	out := m.Dense.Bias[0]
	for i, w := range m.Dense.Weights[0] {
		out += w * pooled[i]
	}
	return out, nil
}

// apply runs a valid-padding convolution with ReLU over [channels × length].
func (l ConvLayer) apply(x [][]float64) ([][]float64, error) {
	inLen := len(x[0])
	kernel := len(l.Weights[0][0])
	outLen := inLen - kernel + 1
	if outLen < 1 {
		return nil, fmt.Errorf("input length %d shorter than kernel %d", inLen, kernel)
	}

	out := make([][]float64, len(l.Weights))
	for o, filter := range l.Weights {
		row := make([]float64, outLen)
		for t := 0; t < outLen; t++ {
			acc := l.Bias[o]
			for i, ch := range filter {
				for k, w := range ch {
					acc += w * x[i][t+k]
				}
			}
			if acc < 0 {
				acc = 0 // ReLU
			}
			row[t] = acc
		}
		out[o] = row
	}
	return out, nil
}

func globalAveragePool(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		var sum float64
		for _, v := range row {
			sum += v
		}
		out[i] = sum / float64(len(row))
	}
	return out
}
