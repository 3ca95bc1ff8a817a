package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const yamlConfig = `
params:
  - name: temp_mean
    coef: 50
  - name: ndvi
  - name: precip
    coef: 10
stat_params:
  - name: mean_prod
    coef: 100
  - name: trend
sequence_length: 4
window:
  start: 1
  end: 3
regions:
  volga:
    prefix: vlg
    districts:
      kamyshin: 17
      uryupinsk: 3
`

func TestLoadYAML(t *testing.T) {
	reg, degraded, err := Load(writeConfig(t, "config.yaml", yamlConfig))

	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, []string{"temp_mean", "ndvi", "precip"}, reg.ParamNames())
	assert.Equal(t, []string{"mean_prod", "trend"}, reg.StatParamNames())
	assert.Equal(t, 4, reg.SequenceLength())
	assert.Equal(t, 12, reg.RowLength())

	start, end := reg.Window()
	assert.Equal(t, 1, start)
	assert.Equal(t, 3, end)

	region, ok := reg.Regions["volga"]
	require.True(t, ok)
	assert.Equal(t, "vlg", region.FilePrefix)
	assert.Equal(t, 17, region.Districts["kamyshin"])
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"params": [{"name": "ndvi"}, {"name": "hum_mean", "coef": 100}],
		"sequence_length": 365
	}`)

	reg, degraded, err := Load(path)

	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Equal(t, 1, reg.ParamIndex("hum_mean"))
	assert.Equal(t, []float64{1, 100}, reg.NormalizationVector([]string{"ndvi", "hum_mean"}))
}

func TestLoadDefaults(t *testing.T) {
	t.Run("missing sequence length and window", func(t *testing.T) {
		reg, degraded, err := Load(writeConfig(t, "config.yaml", "params:\n  - name: ndvi\n"))

		require.NoError(t, err)
		assert.False(t, degraded)
		assert.Equal(t, DefaultSequenceLength, reg.SequenceLength())

		start, end := reg.Window()
		assert.Equal(t, DefaultWindowStart, start)
		assert.Equal(t, DefaultWindowEnd, end)
	})

	t.Run("explicit zero coefficient is preserved", func(t *testing.T) {
		reg, _, err := Load(writeConfig(t, "config.yaml", "params:\n  - name: ndvi\n    coef: 0\n"))

		require.NoError(t, err)
		assert.Equal(t, []float64{0}, reg.NormalizationVector([]string{"ndvi"}))
	})
}

func TestLoadDegraded(t *testing.T) {
	cases := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "file missing",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.yaml")
			},
		},
		{
			name: "malformed yaml",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", "params: [unclosed")
			},
		},
		{
			name: "malformed json",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.json", "{")
			},
		},
		{
			name: "duplicate parameter",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", "params:\n  - name: ndvi\n  - name: ndvi\n")
			},
		},
		{
			name: "name in both params and stat_params",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", "params:\n  - name: trend\nstat_params:\n  - name: trend\n    coef: 100\n")
			},
		},
		{
			name: "inverted window",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", "params:\n  - name: ndvi\nwindow:\n  start: 9\n  end: 3\n")
			},
		},
		{
			name: "negative sequence length",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", "sequence_length: -1\n")
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg, degraded, err := Load(tc.path(t))

			assert.Error(t, err)
			assert.True(t, degraded)

			// Degraded load still hands back a usable default registry.
			require.NotNil(t, reg)
			assert.Equal(t, DefaultSequenceLength, reg.SequenceLength())
			assert.Empty(t, reg.ParamNames())
			assert.NotNil(t, reg.Regions)
		})
	}
}

func TestParamIndexUnknown(t *testing.T) {
	assert.Equal(t, -1, Default().ParamIndex("ndvi"))
}
