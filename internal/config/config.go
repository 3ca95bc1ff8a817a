// Package config reads per-service settings from environment variables,
// applying defaults where unset. A .env file in the working directory is
// loaded first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Common holds the settings every service binary shares.
type Common struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Storage configures the row-lookup service.
type Storage struct {
	Common
	RegistryPath string
	DataDir      string
	StoreBackend string // "csv" or "postgres"
	PostgresDSN  string

	IngestEnabled   bool
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaGroupID    string
	IngestBatchSize int
}

// Collector configures the feature-assembly service.
type Collector struct {
	Common
	RegistryPath  string
	StorageURL    string
	LookupTimeout time.Duration
}

// ML configures the model-serving service.
type ML struct {
	Common
	ModelPath string
}

// Webmaster configures the orchestration service.
type Webmaster struct {
	Common
	CollectorURL     string
	MLURL            string
	LookupTimeout    time.Duration
	InferenceTimeout time.Duration
}

// LoadStorage reads the storage service configuration.
func LoadStorage() (*Storage, error) {
	common, err := loadCommon(":8000")
	if err != nil {
		return nil, err
	}

	cfg := &Storage{
		Common:       *common,
		RegistryPath: envOrDefault("REGISTRY_PATH", "config.yaml"),
		DataDir:      envOrDefault("DATA_DIR", "source"),
		StoreBackend: envOrDefault("STORE_BACKEND", "csv"),
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),

		IngestEnabled: envBool("INGEST_ENABLED", false),
		KafkaBrokers:  splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:    envOrDefault("KAFKA_TOPIC", "raw-measurements"),
		KafkaGroupID:  envOrDefault("KAFKA_GROUP_ID", "yield-storage"),
	}

	cfg.IngestBatchSize, err = envInt("INGEST_BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	if cfg.IngestBatchSize <= 0 {
		return nil, errors.New("INGEST_BATCH_SIZE must be positive")
	}

	switch cfg.StoreBackend {
	case "csv":
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, errors.New("STORE_BACKEND is postgres but POSTGRES_DSN is not set")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want csv or postgres)", cfg.StoreBackend)
	}
	if cfg.IngestEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("INGEST_ENABLED is true but KAFKA_BROKERS is empty")
	}
	return cfg, nil
}

// LoadCollector reads the collector service configuration.
func LoadCollector() (*Collector, error) {
	common, err := loadCommon(":8001")
	if err != nil {
		return nil, err
	}

	lookupTimeout, err := envDuration("LOOKUP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	return &Collector{
		Common:        *common,
		RegistryPath:  envOrDefault("REGISTRY_PATH", "config.yaml"),
		StorageURL:    envOrDefault("STORAGE_URL", "http://storage-service:8000"),
		LookupTimeout: lookupTimeout,
	}, nil
}

// LoadML reads the model service configuration.
func LoadML() (*ML, error) {
	common, err := loadCommon(":8002")
	if err != nil {
		return nil, err
	}

	return &ML{
		Common:    *common,
		ModelPath: envOrDefault("MODEL_PATH", "models/winter_wheat.json"),
	}, nil
}

// LoadWebmaster reads the webmaster service configuration.
func LoadWebmaster() (*Webmaster, error) {
	common, err := loadCommon(":8003")
	if err != nil {
		return nil, err
	}

	lookupTimeout, err := envDuration("LOOKUP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	inferenceTimeout, err := envDuration("INFERENCE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	return &Webmaster{
		Common:           *common,
		CollectorURL:     envOrDefault("COLLECTOR_URL", "http://collector-service:8001"),
		MLURL:            envOrDefault("ML_URL", "http://ml-service:8002"),
		LookupTimeout:    lookupTimeout,
		InferenceTimeout: inferenceTimeout,
	}, nil
}

func loadCommon(defaultAddr string) (*Common, error) {
	// Best effort: absent .env files are the normal case in containers.
	_ = godotenv.Load()

	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	return &Common{
		HTTPAddr:        envOrDefault("HTTP_ADDR", defaultAddr),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true"
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
