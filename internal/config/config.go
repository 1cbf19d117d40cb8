// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string `yaml:"host" env:"SERVER_HOST"`
	Port            int    `yaml:"port" env:"SERVER_PORT"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec" env:"SERVER_READ_TIMEOUT_SEC"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec" env:"SERVER_WRITE_TIMEOUT_SEC"`
}

// DatabaseConfig controls the PostgreSQL connection.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_sec" env:"DATABASE_CONN_MAX_LIFETIME_SEC"`
	MigrationsPath  string `yaml:"migrations_path" env:"DATABASE_MIGRATIONS_PATH"`
}

// RedisConfig controls the optional catalog cache.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	TTLSec   int    `yaml:"ttl_sec" env:"REDIS_TTL_SEC"`
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	TokenTTLMin   int    `yaml:"token_ttl_min" env:"AUTH_TOKEN_TTL_MIN"`
	RatePerSecond int    `yaml:"rate_per_second" env:"AUTH_RATE_PER_SECOND"`
	RateBurst     int    `yaml:"rate_burst" env:"AUTH_RATE_BURST"`
}

// LoggingConfig mirrors pkg/logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// WorkerConfig controls the background services.
type WorkerConfig struct {
	CartTTLMin         int    `yaml:"cart_ttl_min" env:"WORKER_CART_TTL_MIN"`
	JanitorIntervalSec int    `yaml:"janitor_interval_sec" env:"WORKER_JANITOR_INTERVAL_SEC"`
	ReportSchedule     string `yaml:"report_schedule" env:"WORKER_REPORT_SCHEDULE"`
}

// AuditConfig controls request audit persistence.
type AuditConfig struct {
	FilePath string `yaml:"file_path" env:"AUDIT_FILE_PATH"`
	MaxItems int    `yaml:"max_items" env:"AUDIT_MAX_ITEMS"`
}

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	Workers  WorkerConfig   `yaml:"workers"`
	Audit    AuditConfig    `yaml:"audit"`
}

// Load reads CONFIG_PATH (default config.yaml) if present, then applies
// environment overrides. A missing file is not an error: env-only deployment
// is supported.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	path := strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required")
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 30,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			MigrationsPath: "migrations",
			MaxOpenConns:   20,
			MaxIdleConns:   5,
		},
		Redis: RedisConfig{TTLSec: 300},
		Auth: AuthConfig{
			TokenTTLMin:   60,
			RatePerSecond: 50,
			RateBurst:     100,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Workers: WorkerConfig{
			CartTTLMin:         240,
			JanitorIntervalSec: 60,
			ReportSchedule:     "@daily",
		},
		Audit: AuditConfig{MaxItems: 200},
	}
}
