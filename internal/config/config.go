// Package config loads bridge configuration from the environment with
// an optional bridge.toml overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the bridge daemon.
type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Storage   StorageConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// BackendConfig holds the remote verification service endpoints.
type BackendConfig struct {
	// APIURL is the base URL of the verification API.
	APIURL string
	// DashboardURL is used to build links to verified contracts.
	DashboardURL string
}

// StorageConfig holds local state storage configuration.
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled     bool
	ServiceName string
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
}

// fileConfig is the subset of settings that may be supplied via
// bridge.toml. Environment variables take precedence over the file.
type fileConfig struct {
	Backend struct {
		APIURL       string `toml:"api_url"`
		DashboardURL string `toml:"dashboard_url"`
	} `toml:"backend"`
	Server struct {
		Host string `toml:"host"`
		Port int    `toml:"port"`
	} `toml:"server"`
	Storage struct {
		Type        string `toml:"type"`
		SQLitePath  string `toml:"sqlite_path"`
		DatabaseURL string `toml:"database_url"`
	} `toml:"storage"`
}

// configFile is the search name for the optional overlay file.
const configFile = "bridge.toml"

// Load loads configuration from the environment, with bridge.toml in
// the working directory filling unset values.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvInt("PORT", 8491),
			Host:         getEnv("HOST", "127.0.0.1"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 120),
		},
		Backend: BackendConfig{
			APIURL:       getEnv("TENDERLY_API_URL", "https://api.tenderly.co/api/v1"),
			DashboardURL: getEnv("TENDERLY_DASHBOARD_URL", "https://dashboard.tenderly.co"),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/remixbridge.db"),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 300),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 50),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Metrics: MetricsConfig{
			Enabled:     getEnvBool("METRICS_ENABLED", true),
			ServiceName: getEnv("SERVICE_NAME", "remixbridge"),
		},
	}

	if err := applyFile(cfg); err != nil {
		return nil, err
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	return cfg, nil
}

// applyFile overlays bridge.toml onto values not already set through
// the environment. The file is optional; a missing file is not an error.
func applyFile(cfg *Config) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", configFile, err)
	}

	var fc fileConfig
	if _, err := toml.Decode(string(data), &fc); err != nil {
		return fmt.Errorf("parsing %s: %w", configFile, err)
	}

	if fc.Backend.APIURL != "" && os.Getenv("TENDERLY_API_URL") == "" {
		cfg.Backend.APIURL = fc.Backend.APIURL
	}
	if fc.Backend.DashboardURL != "" && os.Getenv("TENDERLY_DASHBOARD_URL") == "" {
		cfg.Backend.DashboardURL = fc.Backend.DashboardURL
	}
	if fc.Server.Host != "" && os.Getenv("HOST") == "" {
		cfg.Server.Host = fc.Server.Host
	}
	if fc.Server.Port != 0 && os.Getenv("PORT") == "" {
		cfg.Server.Port = fc.Server.Port
	}
	if fc.Storage.Type != "" && os.Getenv("STORAGE_TYPE") == "" {
		cfg.Storage.Type = fc.Storage.Type
	}
	if fc.Storage.SQLitePath != "" && os.Getenv("SQLITE_PATH") == "" {
		cfg.Storage.SQLite.Path = fc.Storage.SQLitePath
	}
	if fc.Storage.DatabaseURL != "" && os.Getenv("DATABASE_URL") == "" {
		cfg.Storage.Postgres.URL = fc.Storage.DatabaseURL
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}
