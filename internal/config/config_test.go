package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
binance:
  api_key: key
  secret_key: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.System.LogLevel)
	assert.Equal(t, 5, cfg.Execution.DepthLevels)
	assert.Equal(t, 100, cfg.Execution.DepthUpdateMs)
	assert.Equal(t, 100, cfg.Execution.WatchIntervalMs)
	assert.Equal(t, 1500, cfg.Execution.ListenKeyKeepaliveInterval)
	assert.Equal(t, 9090, cfg.Telemetry.MetricsPort)
	assert.False(t, cfg.Binance.Testnet)
	assert.Empty(t, cfg.Storage.SQLitePath)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("MAKERFILL_TEST_KEY", "expanded-key")
	t.Setenv("MAKERFILL_TEST_SECRET", "expanded-secret")

	path := writeConfig(t, `
binance:
  api_key: ${MAKERFILL_TEST_KEY}
  secret_key: ${MAKERFILL_TEST_SECRET}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-key", cfg.Binance.APIKey)
	assert.Equal(t, "expanded-secret", cfg.Binance.SecretKey)
}

func TestLoadMissingEnvVarFailsValidation(t *testing.T) {
	path := writeConfig(t, `
binance:
  api_key: ${MAKERFILL_TEST_UNSET_VAR}
  secret_key: secret
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Binance.APIKey = "key"
		cfg.Binance.SecretKey = "secret"
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(*Config) {},
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.System.LogLevel = "VERBOSE" },
			wantErr: "log_level",
		},
		{
			name:    "unsupported depth levels",
			mutate:  func(c *Config) { c.Execution.DepthLevels = 7 },
			wantErr: "depth_levels",
		},
		{
			name:    "unsupported update rate",
			mutate:  func(c *Config) { c.Execution.DepthUpdateMs = 50 },
			wantErr: "depth_update_ms",
		},
		{
			name:    "watch interval too small",
			mutate:  func(c *Config) { c.Execution.WatchIntervalMs = 1 },
			wantErr: "watch_interval_ms",
		},
		{
			name:    "keepalive out of range",
			mutate:  func(c *Config) { c.Execution.ListenKeyKeepaliveInterval = 10 },
			wantErr: "listen_key_keepalive_interval",
		},
		{
			name: "bad metrics port only matters when enabled",
			mutate: func(c *Config) {
				c.Telemetry.EnableMetrics = true
				c.Telemetry.MetricsPort = 70000
			},
			wantErr: "metrics_port",
		},
		{
			name:   "bad metrics port ignored when disabled",
			mutate: func(c *Config) { c.Telemetry.MetricsPort = 70000 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MAKERFILL_TEST_VALUE", "abc")

	assert.Equal(t, "abc", expandEnvVars("${MAKERFILL_TEST_VALUE}"))
	assert.Equal(t, "pre-abc-post", expandEnvVars("pre-${MAKERFILL_TEST_VALUE}-post"))
	assert.Equal(t, "", expandEnvVars("${MAKERFILL_TEST_UNSET_VAR}"))
	assert.Equal(t, "$NOT_A_REF", expandEnvVars("$NOT_A_REF"))
}
