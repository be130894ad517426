// Package config provides configuration management for the application.
// Options are read from environment variables, with an optional .env file
// loaded first for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Audit   AuditConfig
	Storage StorageConfig
	Redis   RedisConfig
	Metrics MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Port the server listens on.
	Port string
	// MasterKey guards the admin endpoints when set. Empty disables auth.
	MasterKey string
}

// LogConfig holds process logging configuration.
type LogConfig struct {
	// Format is "json" (default) or "text" for colorized development output.
	Format string
	// Level is debug, info, warn or error.
	Level string
}

// AuditConfig holds the audit pipeline configuration surface.
type AuditConfig struct {
	// QueueCapacity is the ingestion queue hard limit.
	QueueCapacity int
	// BatchSize is the maximum entries drained per flush tick.
	BatchSize int
	// FlushInterval is the scheduler tick period.
	FlushInterval time.Duration
	// LogsDir is where the daily NDJSON files live.
	LogsDir string
	// RetentionDays is the cleanup age threshold (0 disables the loop).
	RetentionDays int
	// DBEnabled toggles the record-store sink.
	DBEnabled bool
}

// StorageConfig selects and configures the record-store backend.
type StorageConfig struct {
	// Type is mongodb (default), sqlite or postgresql.
	Type string

	MongoDBURL      string
	MongoDBDatabase string

	SQLitePath string

	PostgreSQLURL      string
	PostgreSQLMaxConns int
}

// RedisConfig configures the optional stats count cache.
type RedisConfig struct {
	// URL enables the Redis cache when non-empty; the in-memory cache is
	// used otherwise.
	URL string
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:      getEnv("PORT", "8080"),
			MasterKey: os.Getenv("MASTER_KEY"),
		},
		Log: LogConfig{
			Format: getEnv("LOG_FORMAT", "json"),
			Level:  getEnv("LOG_LEVEL", "info"),
		},
		Audit: AuditConfig{
			QueueCapacity: getEnvInt("AUDIT_QUEUE_CAPACITY", 1000),
			BatchSize:     getEnvInt("AUDIT_BATCH_SIZE", 50),
			FlushInterval: time.Duration(getEnvInt("AUDIT_FLUSH_INTERVAL_MS", 5000)) * time.Millisecond,
			LogsDir:       getEnv("AUDIT_LOGS_DIR", "logs"),
			RetentionDays: getEnvInt("AUDIT_RETENTION_DAYS", 30),
			DBEnabled:     getEnvBool("AUDIT_DB_ENABLED", false),
		},
		Storage: StorageConfig{
			Type:               getEnv("STORAGE_TYPE", "mongodb"),
			MongoDBURL:         os.Getenv("MONGODB_URL"),
			MongoDBDatabase:    getEnv("MONGODB_DATABASE", "jifijs"),
			SQLitePath:         getEnv("SQLITE_PATH", "data/jifijs.db"),
			PostgreSQLURL:      os.Getenv("POSTGRESQL_URL"),
			PostgreSQLMaxConns: getEnvInt("POSTGRESQL_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Metrics: MetricsConfig{
			Enabled:  getEnvBool("METRICS_ENABLED", false),
			Endpoint: getEnv("METRICS_ENDPOINT", "/metrics"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Audit.QueueCapacity <= 0 {
		return fmt.Errorf("AUDIT_QUEUE_CAPACITY must be positive, got %d", c.Audit.QueueCapacity)
	}
	if c.Audit.BatchSize <= 0 {
		return fmt.Errorf("AUDIT_BATCH_SIZE must be positive, got %d", c.Audit.BatchSize)
	}
	if c.Audit.FlushInterval <= 0 {
		return fmt.Errorf("AUDIT_FLUSH_INTERVAL_MS must be positive, got %s", c.Audit.FlushInterval)
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must not be negative, got %d", c.Audit.RetentionDays)
	}
	if c.Audit.DBEnabled && c.Storage.Type == "mongodb" && c.Storage.MongoDBURL == "" {
		return fmt.Errorf("MONGODB_URL is required when AUDIT_DB_ENABLED=true and STORAGE_TYPE=mongodb")
	}
	if c.Audit.DBEnabled && c.Storage.Type == "postgresql" && c.Storage.PostgreSQLURL == "" {
		return fmt.Errorf("POSTGRESQL_URL is required when AUDIT_DB_ENABLED=true and STORAGE_TYPE=postgresql")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
