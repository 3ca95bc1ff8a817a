package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStorageDefaults(t *testing.T) {
	cfg, err := LoadStorage()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "config.yaml", cfg.RegistryPath)
	assert.Equal(t, "source", cfg.DataDir)
	assert.Equal(t, "csv", cfg.StoreBackend)
	assert.False(t, cfg.IngestEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-measurements", cfg.KafkaTopic)
	assert.Equal(t, "yield-storage", cfg.KafkaGroupID)
	assert.Equal(t, 50, cfg.IngestBatchSize)
}

func TestLoadStorageFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "postgres://user:pass@db:5432/yield?sslmode=disable")
	t.Setenv("INGEST_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("INGEST_BATCH_SIZE", "25")

	cfg, err := LoadStorage()
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.True(t, cfg.IngestEnabled)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 25, cfg.IngestBatchSize)
}

func TestLoadStorageValidation(t *testing.T) {
	t.Run("postgres backend needs a dsn", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "postgres")
		_, err := LoadStorage()
		assert.ErrorContains(t, err, "POSTGRES_DSN")
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "sqlite")
		_, err := LoadStorage()
		assert.ErrorContains(t, err, "STORE_BACKEND")
	})

	t.Run("non-positive batch size", func(t *testing.T) {
		t.Setenv("INGEST_BATCH_SIZE", "0")
		_, err := LoadStorage()
		assert.ErrorContains(t, err, "INGEST_BATCH_SIZE")
	})

	t.Run("malformed batch size", func(t *testing.T) {
		t.Setenv("INGEST_BATCH_SIZE", "many")
		_, err := LoadStorage()
		assert.ErrorContains(t, err, "INGEST_BATCH_SIZE")
	})
}

func TestLoadCollector(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadCollector()
		require.NoError(t, err)

		assert.Equal(t, ":8001", cfg.HTTPAddr)
		assert.Equal(t, "http://storage-service:8000", cfg.StorageURL)
		assert.Equal(t, 30*time.Second, cfg.LookupTimeout)
	})

	t.Run("custom timeout", func(t *testing.T) {
		t.Setenv("LOOKUP_TIMEOUT", "5s")
		cfg, err := LoadCollector()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Second, cfg.LookupTimeout)
	})

	t.Run("malformed timeout", func(t *testing.T) {
		t.Setenv("LOOKUP_TIMEOUT", "soon")
		_, err := LoadCollector()
		assert.ErrorContains(t, err, "LOOKUP_TIMEOUT")
	})

	t.Run("non-positive timeout", func(t *testing.T) {
		t.Setenv("LOOKUP_TIMEOUT", "-1s")
		_, err := LoadCollector()
		assert.Error(t, err)
	})
}

func TestLoadML(t *testing.T) {
	cfg, err := LoadML()
	require.NoError(t, err)

	assert.Equal(t, ":8002", cfg.HTTPAddr)
	assert.Equal(t, "models/winter_wheat.json", cfg.ModelPath)
}

func TestLoadWebmaster(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadWebmaster()
		require.NoError(t, err)

		assert.Equal(t, ":8003", cfg.HTTPAddr)
		assert.Equal(t, "http://collector-service:8001", cfg.CollectorURL)
		assert.Equal(t, "http://ml-service:8002", cfg.MLURL)
		assert.Equal(t, 30*time.Second, cfg.LookupTimeout)
		assert.Equal(t, 60*time.Second, cfg.InferenceTimeout)
	})

	t.Run("custom inference timeout", func(t *testing.T) {
		t.Setenv("INFERENCE_TIMEOUT", "90s")
		cfg, err := LoadWebmaster()
		require.NoError(t, err)
		assert.Equal(t, 90*time.Second, cfg.InferenceTimeout)
	})
}
