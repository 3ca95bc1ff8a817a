package mlsvc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoParamModel sums both input channels with a kernel-1 conv and passes the
// pooled value straight through the dense head, so predictions are easy to
// compute by hand.
func twoParamModel() ConvModel {
	return ConvModel{
		Name:        "test-sum",
		InputParams: 2,
		ConvLayers: []ConvLayer{
			{Weights: [][][]float64{{{1}, {1}}}, Bias: []float64{0}},
		},
		Dense: DenseLayer{Weights: [][]float64{{1}}, Bias: []float64{0}},
	}
}

func writeModel(t *testing.T, m ConvModel) string {
	t.Helper()
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestLoadConvModel(t *testing.T) {
	t.Run("valid model", func(t *testing.T) {
		m, err := LoadConvModel(writeModel(t, twoParamModel()))
		require.NoError(t, err)
		assert.Equal(t, "test-sum", m.Name)
		assert.Equal(t, 2, m.InputParams)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConvModel(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
		_, err := LoadConvModel(path)
		assert.Error(t, err)
	})

	t.Run("no conv layers", func(t *testing.T) {
		m := twoParamModel()
		m.ConvLayers = nil
		_, err := LoadConvModel(writeModel(t, m))
		assert.ErrorContains(t, err, "no conv layers")
	})

	t.Run("filter channel mismatch", func(t *testing.T) {
		m := twoParamModel()
		m.InputParams = 3
		_, err := LoadConvModel(writeModel(t, m))
		assert.ErrorContains(t, err, "channels")
	})

	t.Run("dense head must be scalar", func(t *testing.T) {
		m := twoParamModel()
		m.Dense.Weights = [][]float64{{1}, {1}}
		m.Dense.Bias = []float64{0, 0}
		_, err := LoadConvModel(writeModel(t, m))
		assert.ErrorContains(t, err, "one output")
	})

	t.Run("dense input mismatch", func(t *testing.T) {
		m := twoParamModel()
		m.Dense.Weights = [][]float64{{1, 1}}
		_, err := LoadConvModel(writeModel(t, m))
		assert.ErrorContains(t, err, "conv stack produces")
	})
}

func TestConvModelPredict(t *testing.T) {
	t.Run("channel sum", func(t *testing.T) {
		m := twoParamModel()
		// Rows [0 0] and [4 4]: conv sums to [4 4], pooled 4.
		got, err := m.Predict([]float64{0, 0, 4, 4}, 2)
		require.NoError(t, err)
		assert.InDelta(t, 4, got, 1e-9)
	})

	t.Run("relu and kernel window", func(t *testing.T) {
		m := ConvModel{
			Name:        "test-diff",
			InputParams: 1,
			ConvLayers: []ConvLayer{
				{Weights: [][][]float64{{{1, -1}}}, Bias: []float64{0}},
			},
			Dense: DenseLayer{Weights: [][]float64{{2}}, Bias: []float64{1}},
		}
		// Input [1 3 2]: valid conv gives [1-3, 3-2] = [-2, 1], ReLU [0, 1],
		// pooled 0.5, dense 2*0.5+1.
		got, err := m.Predict([]float64{1, 3, 2}, 1)
		require.NoError(t, err)
		assert.InDelta(t, 2, got, 1e-9)
	})

	t.Run("parameter count mismatch", func(t *testing.T) {
		m := twoParamModel()
		_, err := m.Predict([]float64{1, 2, 3}, 3)
		assert.ErrorContains(t, err, "model expects")
	})

	t.Run("length not divisible", func(t *testing.T) {
		m := twoParamModel()
		_, err := m.Predict([]float64{1, 2, 3}, 2)
		assert.ErrorContains(t, err, "not divisible")
	})

	t.Run("sequence shorter than kernel", func(t *testing.T) {
		m := twoParamModel()
		m.ConvLayers[0].Weights = [][][]float64{{{1, 1, 1}, {1, 1, 1}}}
		_, err := m.Predict([]float64{1, 2, 3, 4}, 2)
		assert.ErrorContains(t, err, "shorter than kernel")
	})

	t.Run("non-positive params", func(t *testing.T) {
		m := twoParamModel()
		_, err := m.Predict([]float64{1}, 0)
		assert.Error(t, err)
	})
}
