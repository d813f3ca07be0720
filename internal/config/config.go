// Package config loads tminus's runtime configuration from an optional YAML
// file, a .env file, and environment overrides, in that order — mirroring
// the teacher's config-loading layering.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP dispatch entrypoint.
type ServerConfig struct {
	Host string `json:"host" env:"SERVER_HOST"`
	Port int    `json:"port" env:"SERVER_PORT"`
}

// ActorStoreConfig controls the per-actor embedded SQL store.
type ActorStoreConfig struct {
	BaseDir        string `json:"base_dir" env:"ACTOR_STORE_BASE_DIR"`
	MigrateOnStart bool   `json:"migrate_on_start" env:"ACTOR_STORE_MIGRATE_ON_START"`
}

// RegistryConfig controls the shared global registry Postgres connection.
type RegistryConfig struct {
	DSN             string `json:"dsn" env:"REGISTRY_DSN"`
	MaxOpenConns    int    `json:"max_open_conns" env:"REGISTRY_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" env:"REGISTRY_MAX_IDLE_CONNS"`
	ConnMaxLifeSecs int    `json:"conn_max_life_secs" env:"REGISTRY_CONN_MAX_LIFE_SECS"`
	MigrateOnStart  bool   `json:"migrate_on_start" env:"REGISTRY_MIGRATE_ON_START"`
}

// QueueConfig controls the outbound durable mirror queue.
type QueueConfig struct {
	Addr     string `json:"addr" env:"QUEUE_REDIS_ADDR"`
	Password string `json:"password" env:"QUEUE_REDIS_PASSWORD"`
	DB       int    `json:"db" env:"QUEUE_REDIS_DB"`
}

// BlobConfig controls the audit blob store.
type BlobConfig struct {
	Addr     string `json:"addr" env:"BLOB_REDIS_ADDR"`
	Password string `json:"password" env:"BLOB_REDIS_PASSWORD"`
	DB       int    `json:"db" env:"BLOB_REDIS_DB"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL"`
	Format string `json:"format" env:"LOG_FORMAT"`
}

// SecurityConfig controls the deletion-certificate signing key.
type SecurityConfig struct {
	MasterKey string `json:"master_key" env:"MASTER_KEY"`
}

// RateLimitConfig controls per-user actor dispatch throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int     `json:"burst" env:"RATE_LIMIT_BURST"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	ActorStore ActorStoreConfig `json:"actor_store"`
	Registry   RegistryConfig   `json:"registry"`
	Queue      QueueConfig      `json:"queue"`
	Blob       BlobConfig       `json:"blob"`
	Logging    LoggingConfig    `json:"logging"`
	Security   SecurityConfig   `json:"security"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		ActorStore: ActorStoreConfig{
			BaseDir:        "./data/actors",
			MigrateOnStart: true,
		},
		Registry: RegistryConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifeSecs: 300,
			MigrateOnStart:  true,
		},
		Queue:   QueueConfig{Addr: "localhost:6379"},
		Blob:    BlobConfig{Addr: "localhost:6379", DB: 1},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}

// Load loads configuration from an optional YAML file and environment
// overrides, the way the teacher layers envdecode.Decode over loadFromFile.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

// LoadFile reads configuration from a YAML file directly, skipping env
// overrides — used by tests that want a deterministic config.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
