package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/apphost/internal/shell/docker"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Docker    DockerConfig    `mapstructure:"docker"`
	Log       LogConfig       `mapstructure:"log"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Topology  TopologyConfig  `mapstructure:"topology"`
}

// DockerConfig holds Docker client and container configuration.
type DockerConfig struct {
	Host         string        `mapstructure:"host"`
	PullPolicy   string        `mapstructure:"pull_policy"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
	RemoveOnStop bool          `mapstructure:"remove_on_stop"`
	HostIP       string        `mapstructure:"host_ip"` // Interface endpoints are published on
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig holds the read-only dashboard server configuration.
type DashboardConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the dashboard address in host:port format.
func (c DashboardConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TopologyConfig selects where the topology comes from.
type TopologyConfig struct {
	// ComposeFile loads services from a compose file instead of the
	// built-in declaration.
	ComposeFile string `mapstructure:"compose_file"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("docker.host", "")
	v.SetDefault("docker.pull_policy", string(docker.PullMissing))
	v.SetDefault("docker.stop_timeout", "10s")
	v.SetDefault("docker.remove_on_stop", true)
	v.SetDefault("docker.host_ip", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.host", "127.0.0.1")
	v.SetDefault("dashboard.port", 18888)
	v.SetDefault("dashboard.read_timeout", "10s")
	v.SetDefault("dashboard.write_timeout", "10s")
	v.SetDefault("dashboard.shutdown_timeout", "5s")
	v.SetDefault("topology.compose_file", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// Missing file falls back to defaults
		}
	}

	v.SetEnvPrefix("APPHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	if _, err := docker.ParsePullPolicy(c.Docker.PullPolicy); err != nil {
		return fmt.Errorf("docker.pull_policy: %w", err)
	}
	if c.Docker.StopTimeout < 0 {
		return fmt.Errorf("docker.stop_timeout must not be negative")
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port < 1 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port %d out of range", c.Dashboard.Port)
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Logs go to w so that published output on stdout stays clean.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
