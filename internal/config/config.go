package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/random"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port        int
	DatabaseURL string
	Environment string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BlobBackend    string
	BlobBasePath   string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string

	JWTSecret         string
	JWTSecretFromEnv  bool
	StoragePolicyFile string

	MonitorInterval      time.Duration
	CapacityWarningRatio float64
}

const (
	BlobBackendMinio = "minio"
	BlobBackendLocal = "local"
)

// Load reads a .env file when present and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		Environment:       getEnv("ENVIRONMENT", "dev"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		BlobBackend:       getEnv("BLOB_BACKEND", BlobBackendMinio),
		BlobBasePath:      getEnv("BLOB_BASE_PATH", "./archive"),
		MinioEndpoint:     getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:    getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey:    getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:       os.Getenv("MINIO_USE_SSL") == "true",
		MinioBucket:       getEnv("MINIO_BUCKET", "archive"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		StoragePolicyFile: os.Getenv("STORAGE_POLICY_FILE"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	var err error
	if cfg.Port, err = strconv.Atoi(getEnv("PORT", "8080")); err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}
	if cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0")); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.MonitorInterval, err = time.ParseDuration(getEnv("MONITOR_INTERVAL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid MONITOR_INTERVAL: %w", err)
	}
	if cfg.CapacityWarningRatio, err = strconv.ParseFloat(getEnv("CAPACITY_WARNING_RATIO", "0.9"), 64); err != nil {
		return nil, fmt.Errorf("invalid CAPACITY_WARNING_RATIO: %w", err)
	}
	if cfg.CapacityWarningRatio <= 0 || cfg.CapacityWarningRatio > 1 {
		return nil, fmt.Errorf("CAPACITY_WARNING_RATIO must be in (0, 1], got %v", cfg.CapacityWarningRatio)
	}

	switch cfg.BlobBackend {
	case BlobBackendMinio, BlobBackendLocal:
	default:
		return nil, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
	}

	if cfg.JWTSecret != "" {
		cfg.JWTSecretFromEnv = true
	} else {
		// Generated secret for development
		cfg.JWTSecret = random.String(32)
	}

	return cfg, nil
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
