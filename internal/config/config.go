// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	Binance   BinanceConfig   `yaml:"binance"`
	System    SystemConfig    `yaml:"system"`
	Execution ExecutionConfig `yaml:"execution"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Storage   StorageConfig   `yaml:"storage"`
}

// BinanceConfig contains venue credentials and endpoints
type BinanceConfig struct {
	APIKey     string `yaml:"api_key"`
	SecretKey  string `yaml:"secret_key"`
	Testnet    bool   `yaml:"testnet"`
	WSEndpoint string `yaml:"ws_endpoint"` // Optional override for the futures stream endpoint
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// ExecutionConfig contains engine tuning parameters
type ExecutionConfig struct {
	DepthLevels                int `yaml:"depth_levels"`                  // Order book levels per symbol stream
	DepthUpdateMs              int `yaml:"depth_update_ms"`               // Stream update rate in milliseconds
	WatchIntervalMs            int `yaml:"watch_interval_ms"`             // Completion watcher poll interval
	ListenKeyKeepaliveInterval int `yaml:"listen_key_keepalive_interval"` // Seconds between keepalives
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	EnableMetrics bool `yaml:"enable_metrics"`
	MetricsPort   int  `yaml:"metrics_port"`
}

// StorageConfig contains persistence settings. An empty path disables
// persistence.
type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} references with environment variable values.
// Missing variables expand to the empty string.
func expandEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]
		return os.Getenv(name)
	})
}

// Load reads, expands and validates the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.Execution.DepthLevels == 0 {
		c.Execution.DepthLevels = 5
	}
	if c.Execution.DepthUpdateMs == 0 {
		c.Execution.DepthUpdateMs = 100
	}
	if c.Execution.WatchIntervalMs == 0 {
		c.Execution.WatchIntervalMs = 100
	}
	if c.Execution.ListenKeyKeepaliveInterval == 0 {
		c.Execution.ListenKeyKeepaliveInterval = 1500
	}
	if c.Telemetry.MetricsPort == 0 {
		c.Telemetry.MetricsPort = 9090
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Binance.APIKey == "" {
		return fmt.Errorf("binance.api_key is required")
	}
	if c.Binance.SecretKey == "" {
		return fmt.Errorf("binance.secret_key is required")
	}
	switch strings.ToUpper(c.System.LogLevel) {
	case "DEBUG", "INFO", "WARN", "ERROR", "FATAL":
	default:
		return fmt.Errorf("system.log_level must be one of DEBUG INFO WARN ERROR FATAL, got %q", c.System.LogLevel)
	}
	switch c.Execution.DepthLevels {
	case 5, 10, 20:
	default:
		return fmt.Errorf("execution.depth_levels must be 5, 10 or 20, got %d", c.Execution.DepthLevels)
	}
	switch c.Execution.DepthUpdateMs {
	case 100, 250, 500:
	default:
		return fmt.Errorf("execution.depth_update_ms must be 100, 250 or 500, got %d", c.Execution.DepthUpdateMs)
	}
	if c.Execution.WatchIntervalMs < 10 || c.Execution.WatchIntervalMs > 10000 {
		return fmt.Errorf("execution.watch_interval_ms must be between 10 and 10000, got %d", c.Execution.WatchIntervalMs)
	}
	if c.Execution.ListenKeyKeepaliveInterval < 60 || c.Execution.ListenKeyKeepaliveInterval > 3600 {
		return fmt.Errorf("execution.listen_key_keepalive_interval must be between 60 and 3600 seconds, got %d", c.Execution.ListenKeyKeepaliveInterval)
	}
	if c.Telemetry.EnableMetrics && (c.Telemetry.MetricsPort < 1 || c.Telemetry.MetricsPort > 65535) {
		return fmt.Errorf("telemetry.metrics_port must be a valid port, got %d", c.Telemetry.MetricsPort)
	}
	return nil
}
