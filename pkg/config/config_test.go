package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/crewdeck/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 24*time.Hour, cfg.Redis.SessionTTL)
	assert.Equal(t, 10000, cfg.Auth.PermissionCacheSize)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("CREWDECK_PORT", "9000")
	t.Setenv("CREWDECK_SESSION_TTL", "1h")
	t.Setenv("CREWDECK_PERMISSION_CACHE_SIZE", "50")
	t.Setenv("CREWDECK_LOG_LEVEL", "debug")
	t.Setenv("CREWDECK_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Redis.SessionTTL)
	assert.Equal(t, 50, cfg.Auth.PermissionCacheSize)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("CREWDECK_SESSION_TTL", "not-a-duration")
	t.Setenv("CREWDECK_PERMISSION_CACHE_SIZE", "lots")
	t.Setenv("CREWDECK_LOG_LEVEL", "verbose")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Redis.SessionTTL)
	assert.Equal(t, 10000, cfg.Auth.PermissionCacheSize)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	t.Run("same server and health port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.HealthPort = cfg.Server.Port
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing postgres URL", func(t *testing.T) {
		cfg := valid()
		cfg.Database.URL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("non-positive cache settings", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.PermissionCacheSize = 0
		assert.Error(t, cfg.Validate())

		cfg = valid()
		cfg.Auth.PermissionCacheTTL = 0
		assert.Error(t, cfg.Validate())
	})
}
