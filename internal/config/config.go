// Package config loads the web2apk service configuration from YAML with
// environment expansion and .env support.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Toolchain   ToolchainConfig   `yaml:"toolchain"`
	Gradle      GradleConfig      `yaml:"gradle"`
	Build       BuildConfig       `yaml:"build"`
	Server      ServerConfig      `yaml:"server"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Events      EventsConfig      `yaml:"events"`
	Notify      NotifyConfig      `yaml:"notify"`
	ObjectStore ObjectStoreConfig `yaml:"objectstore"`
	Retention   RetentionConfig   `yaml:"retention"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// PathsConfig locates the directories the pipeline reads and writes.
type PathsConfig struct {
	TempDir            string `yaml:"temp_dir"`            // per-package workspaces
	BuildsDir          string `yaml:"builds_dir"`          // published APKs, outlives workspaces
	AssetsDir          string `yaml:"assets_dir"`          // bundled default-icon.png
	UploadsDir         string `yaml:"uploads_dir"`         // multipart uploads
	GradleDistribution string `yaml:"gradle_distribution"` // presence enables offline mode
}

// ToolchainConfig names the external executables.
type ToolchainConfig struct {
	NPM     string `yaml:"npm"`
	NPX     string `yaml:"npx"`
	Gradle  string `yaml:"gradle"`
	Wrapper string `yaml:"wrapper"` // relative to the android project directory
}

// GradleConfig controls the generated build-tool configuration.
type GradleConfig struct {
	Mirrors  []string `yaml:"mirrors"` // google, mavenCentral, gradlePluginPortal or a maven URL
	JVMHeap  string   `yaml:"jvm_heap"`
	Encoding string   `yaml:"encoding"`
}

// BuildConfig controls pipeline execution.
type BuildConfig struct {
	Timeout          string `yaml:"timeout"` // empty means no deadline
	MaxConcurrent    int    `yaml:"max_concurrent"`
	QueueSize        int    `yaml:"queue_size"`
	RecoverArtifacts *bool  `yaml:"recover_artifacts,omitempty"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"` // per file
	MaxFiles       int    `yaml:"max_files"`
	PublicDir      string `yaml:"public_dir"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventsConfig configures the SQLite build ledger. An empty path disables it.
type EventsConfig struct {
	Path string `yaml:"path"`
}

// NotifyConfig configures NATS build notifications. An empty URL disables them.
type NotifyConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ObjectStoreConfig configures the optional MinIO artifact mirror.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint"` // host:port without scheme; empty disables mirroring
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// RetentionConfig controls the periodic sweep of published builds and stale uploads.
type RetentionConfig struct {
	Interval string `yaml:"interval"`
	MaxAge   string `yaml:"max_age"` // empty keeps builds forever
}

// LoggingConfig controls slog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from configPath. A missing file yields defaults so
// the CLI works without any configuration.
func Load(configPath string) (*Config, error) {
	// .env is optional; variables already in the environment win.
	_ = godotenv.Load()

	cfg := &Config{Metrics: MetricsConfig{Enabled: true}}
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides honours PORT when the address was not set explicitly.
func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" && cfg.Server.Addr == "" {
		cfg.Server.Addr = ":" + port
	}
}

// BuildTimeout returns the deadline for a single conversion (0 = none).
func (c *Config) BuildTimeout() time.Duration {
	return parseDurationOrZero(c.Build.Timeout)
}

// RecoveryEnabled reports whether a pre-existing artifact may be used after
// the whole strategy chain failed.
func (c *Config) RecoveryEnabled() bool {
	return c.Build.RecoverArtifacts == nil || *c.Build.RecoverArtifacts
}

// RetentionInterval returns the sweep interval.
func (c *Config) RetentionInterval() time.Duration {
	return parseDurationOrZero(c.Retention.Interval)
}

// RetentionMaxAge returns how long published builds are kept (0 = forever).
func (c *Config) RetentionMaxAge() time.Duration {
	return parseDurationOrZero(c.Retention.MaxAge)
}

func parseDurationOrZero(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Default()
	example.Build.Timeout = "30m"
	example.Events.Path = "data/events.db"
	example.Retention.MaxAge = "168h"

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
