package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// StorageBackend selects the escrow store implementation.
type StorageBackend string

const (
	BackendMemory   StorageBackend = "memory"
	BackendFile     StorageBackend = "file"
	BackendPostgres StorageBackend = "postgres"
	BackendRedis    StorageBackend = "redis"
)

// Config captures process-level configuration. Built from the environment so
// main stays lean.
type Config struct {
	Addr     string
	LogLevel slog.Level
	Storage  StorageConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// StorageConfig selects and parameterizes the escrow store backend.
type StorageConfig struct {
	Backend StorageBackend
	// SnapshotPath is the canonical location for the file backend.
	SnapshotPath string
	// ExtraSnapshotPaths enables the multi-location reconciliation adapter
	// for deployments with ambiguous working directories. Empty in normal
	// production use.
	ExtraSnapshotPaths []string
}

// PostgresConfig holds connection settings for the postgres backend.
type PostgresConfig struct {
	DSN string
}

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the audit trail publisher. Empty brokers
// means audit events stay on the in-process store.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:     envOr("ESCROWD_ADDR", ":8080"),
		LogLevel: parseLevel(os.Getenv("ESCROWD_LOG_LEVEL")),
		Storage: StorageConfig{
			Backend:      StorageBackend(envOr("ESCROWD_STORAGE_BACKEND", string(BackendFile))),
			SnapshotPath: envOr("ESCROWD_SNAPSHOT_PATH", "data/escrows.json"),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("ESCROWD_POSTGRES_DSN"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("ESCROWD_REDIS_URL"),
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic: envOr("ESCROWD_AUDIT_TOPIC", "escrowd.audit"),
		},
	}
	if extra := os.Getenv("ESCROWD_EXTRA_SNAPSHOT_PATHS"); extra != "" {
		cfg.Storage.ExtraSnapshotPaths = splitList(extra)
	}
	if brokers := os.Getenv("ESCROWD_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitList(brokers)
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
