// Copyright 2026 The Lattice Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable read by Load.
const EnvVar = "LATTICE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the configuration of a task client process.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment" json:"environment"`

	// API configures the task REST endpoints.
	API APIConfig `yaml:"api" json:"api"`

	// Stream configures the push connection.
	Stream StreamConfig `yaml:"stream" json:"stream"`

	// Reconcile configures status reads.
	Reconcile ReconcileConfig `yaml:"reconcile" json:"reconcile"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty" json:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty" json:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty" json:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Empty strings and zero numbers leave the base value in place.
type ConfigOverrides struct {
	API       *APIConfig       `yaml:"api,omitempty" json:"api,omitempty"`
	Stream    *StreamConfig    `yaml:"stream,omitempty" json:"stream,omitempty"`
	Reconcile *ReconcileConfig `yaml:"reconcile,omitempty" json:"reconcile,omitempty"`
	Logging   *LoggingConfig   `yaml:"logging,omitempty" json:"logging,omitempty"`
}

// APIConfig configures the task REST endpoints.
type APIConfig struct {
	// BaseURL is the API server root, e.g. https://lattice.example.com.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Token is sent as a bearer token. Usually "${LATTICE_TOKEN}".
	Token string `yaml:"token" json:"token"`

	// Timeout bounds each status or revoke request.
	// Default: 30s
	Timeout string `yaml:"timeout" json:"timeout"`
}

// StreamConfig configures the push connection.
type StreamConfig struct {
	// Path is the event stream endpoint.
	// Default: /api/v1/tasks/stream-updates
	Path string `yaml:"path" json:"path"`

	// ReconnectDelay is the wait after a terminal stream failure.
	// Default: 5s
	ReconnectDelay string `yaml:"reconnect_delay" json:"reconnect_delay"`

	// RetryDelay is the wait before re-opening a dropped connection,
	// until the server sends its own retry interval.
	// Default: 3s
	RetryDelay string `yaml:"retry_delay" json:"retry_delay"`

	// MaxTransientRetries is how many consecutive drops the stream
	// absorbs before the failure becomes terminal. Negative disables
	// internal retries.
	// Default: 5
	MaxTransientRetries int `yaml:"max_transient_retries" json:"max_transient_retries"`

	// HeartbeatStaleAfter is how long an open stream may go without a
	// heartbeat before watchers report it as stale.
	// Default: 90s
	HeartbeatStaleAfter string `yaml:"heartbeat_stale_after" json:"heartbeat_stale_after"`
}

// ReconcileConfig configures status reads.
type ReconcileConfig struct {
	// Concurrency bounds parallel status reads.
	// Default: 4
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level" json:"level"`

	// Format is text, json, or auto (text on a terminal, JSON otherwise).
	// Default: auto
	Format string `yaml:"format" json:"format"`
}

// Default returns the default configuration, used as the base before
// the config file is loaded. The file is still required: there is no
// default API URL.
func Default() *Config {
	return &Config{
		Environment: Development,
		API: APIConfig{
			Timeout: "30s",
		},
		Stream: StreamConfig{
			Path:                "/api/v1/tasks/stream-updates",
			ReconnectDelay:      "5s",
			RetryDelay:          "3s",
			MaxTransientRetries: 5,
			HeartbeatStaleAfter: "90s",
		},
		Reconcile: ReconcileConfig{
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by LATTICE_CONFIG. It
// fails if the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your lattice config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, applies the
// overrides for the configured environment and expands variables. The
// result is not validated; call [Config.Validate].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile decodes a single configuration file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &ConfigOverrides{
				Logging: &LoggingConfig{Level: "warn", Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.API != nil {
		overrideString(&c.API.BaseURL, overrides.API.BaseURL)
		overrideString(&c.API.Token, overrides.API.Token)
		overrideString(&c.API.Timeout, overrides.API.Timeout)
	}
	if overrides.Stream != nil {
		overrideString(&c.Stream.Path, overrides.Stream.Path)
		overrideString(&c.Stream.ReconnectDelay, overrides.Stream.ReconnectDelay)
		overrideString(&c.Stream.RetryDelay, overrides.Stream.RetryDelay)
		overrideString(&c.Stream.HeartbeatStaleAfter, overrides.Stream.HeartbeatStaleAfter)
		if overrides.Stream.MaxTransientRetries != 0 {
			c.Stream.MaxTransientRetries = overrides.Stream.MaxTransientRetries
		}
	}
	if overrides.Reconcile != nil && overrides.Reconcile.Concurrency != 0 {
		c.Reconcile.Concurrency = overrides.Reconcile.Concurrency
	}
	if overrides.Logging != nil {
		overrideString(&c.Logging.Level, overrides.Logging.Level)
		overrideString(&c.Logging.Format, overrides.Logging.Format)
	}
}

func overrideString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// fields that commonly carry deployment-specific values.
func (c *Config) expandVariables() {
	c.API.BaseURL = expandVars(c.API.BaseURL)
	c.API.Token = expandVars(c.API.Token)
	c.Stream.Path = expandVars(c.Stream.Path)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
// An unset or empty variable without a default expands to "".
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	} else if parsed, err := url.Parse(c.API.BaseURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url must be an http or https URL, got %q", c.API.BaseURL))
	}

	if !strings.HasPrefix(c.Stream.Path, "/") {
		errs = append(errs, fmt.Errorf("stream.path must start with /, got %q", c.Stream.Path))
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"api.timeout", c.API.Timeout},
		{"stream.reconnect_delay", c.Stream.ReconnectDelay},
		{"stream.retry_delay", c.Stream.RetryDelay},
		{"stream.heartbeat_stale_after", c.Stream.HeartbeatStaleAfter},
	} {
		if _, err := parsePositiveDuration(field.name, field.value); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Reconcile.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("reconcile.concurrency must be at least 1, got %d", c.Reconcile.Concurrency))
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be auto, text, or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// APITimeout returns api.timeout. Call only after Validate succeeds.
func (c *Config) APITimeout() time.Duration {
	return mustDuration(c.API.Timeout)
}

// ReconnectDelay returns stream.reconnect_delay. Call only after
// Validate succeeds.
func (c *Config) ReconnectDelay() time.Duration {
	return mustDuration(c.Stream.ReconnectDelay)
}

// RetryDelay returns stream.retry_delay. Call only after Validate
// succeeds.
func (c *Config) RetryDelay() time.Duration {
	return mustDuration(c.Stream.RetryDelay)
}

// HeartbeatStaleAfter returns stream.heartbeat_stale_after. Call only
// after Validate succeeds.
func (c *Config) HeartbeatStaleAfter() time.Duration {
	return mustDuration(c.Stream.HeartbeatStaleAfter)
}

// LogLevel returns logging.level. Call only after Validate succeeds.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Logging.Level)
	return level
}

func parsePositiveDuration(name, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return duration, nil
}

func mustDuration(value string) time.Duration {
	duration, _ := time.ParseDuration(value)
	return duration
}

func parseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
