// Package config loads application configuration from environment variables.
// All variables carry the CREWDECK_ prefix and fall back to sensible defaults
// for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/crewdeck/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// RedisConfig holds Redis configuration for session tenant caching
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SessionTTL time.Duration
}

// AuthConfig holds authentication and authorization settings
type AuthConfig struct {
	// PermissionCacheSize bounds the memoized permission decisions
	PermissionCacheSize int
	// PermissionCacheTTL bounds how stale a memoized decision may be
	PermissionCacheTTL time.Duration
	// TokenCleanupSchedule is a cron expression for expired token removal
	TokenCleanupSchedule string
	// InvitationCleanupSchedule is a cron expression for expired invitation removal
	InvitationCleanupSchedule string
	// AuditRetention is how long audit entries are kept
	AuditRetention time.Duration
	// AuditCleanupSchedule is a cron expression for audit retention enforcement
	AuditCleanupSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CREWDECK_HOST", "0.0.0.0"),
			Port:            getEnv("CREWDECK_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CREWDECK_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CREWDECK_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CREWDECK_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CREWDECK_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CREWDECK_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("CREWDECK_POSTGRES_URL", "postgres://localhost:5432/crewdeck?sslmode=disable"),
			MaxOpenConns:    getEnvInt("CREWDECK_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns:    getEnvInt("CREWDECK_POSTGRES_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("CREWDECK_POSTGRES_CONN_LIFETIME", 5*time.Minute),
			ConnectTimeout:  getEnvDuration("CREWDECK_POSTGRES_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Addr:       getEnv("CREWDECK_REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("CREWDECK_REDIS_PASSWORD", ""),
			DB:         getEnvInt("CREWDECK_REDIS_DB", 0),
			SessionTTL: getEnvDuration("CREWDECK_SESSION_TTL", 24*time.Hour),
		},
		Auth: AuthConfig{
			PermissionCacheSize:       getEnvInt("CREWDECK_PERMISSION_CACHE_SIZE", 10000),
			PermissionCacheTTL:        getEnvDuration("CREWDECK_PERMISSION_CACHE_TTL", 30*time.Second),
			TokenCleanupSchedule:      getEnv("CREWDECK_TOKEN_CLEANUP_SCHEDULE", "0 * * * *"),
			InvitationCleanupSchedule: getEnv("CREWDECK_INVITATION_CLEANUP_SCHEDULE", "30 * * * *"),
			AuditRetention:            getEnvDuration("CREWDECK_AUDIT_RETENTION", 90*24*time.Hour),
			AuditCleanupSchedule:      getEnv("CREWDECK_AUDIT_CLEANUP_SCHEDULE", "45 2 * * *"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("CREWDECK_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("CREWDECK_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.Auth.PermissionCacheSize <= 0 {
		return fmt.Errorf("permission cache size must be positive")
	}
	if c.Auth.PermissionCacheTTL <= 0 {
		return fmt.Errorf("permission cache TTL must be positive")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
