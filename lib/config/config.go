// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment selects which override section of the file applies.
type Environment string

const (
	// Development is for a viewer talking to a locally running
	// analysis service.
	Development Environment = "development"
	// Production is for a viewer talking to a deployed service.
	Production Environment = "production"
)

// EnvVar names the environment variable Load reads the file path from.
const EnvVar = "FLIGHTLINK_CONFIG"

// Config is the configuration for the flightlink client.
type Config struct {
	// Environment identifies which override section applies.
	Environment Environment `yaml:"environment"`

	// Paths configures where client state lives.
	Paths PathsConfig `yaml:"paths"`

	// Server configures the analysis service connection.
	Server ServerConfig `yaml:"server"`

	// Reconnect bounds automatic reconnection.
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// Upload configures log file uploads.
	Upload UploadConfig `yaml:"upload"`

	// Telemetry configures the telemetry document pushed to the service.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config.
	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields that can differ per environment.
type Overrides struct {
	Server *ServerConfig `yaml:"server,omitempty"`
	Log    *LogConfig    `yaml:"log,omitempty"`
}

// PathsConfig configures directory and file locations.
type PathsConfig struct {
	// State is the directory for persistent client state.
	// Default: ~/.local/state/flightlink
	State string `yaml:"state"`

	// IdentityFile stores the client id so it survives restarts.
	// Default: ${FLIGHTLINK_STATE}/identity.cbor
	IdentityFile string `yaml:"identity_file"`
}

// ServerConfig configures the analysis service.
type ServerConfig struct {
	// Endpoint is the websocket base URL; the client id is appended.
	// Default: ws://localhost:8000/ws
	Endpoint string `yaml:"endpoint"`

	// ClientID pins the client id. Empty means use the identity file.
	ClientID string `yaml:"client_id"`
}

// ReconnectConfig bounds automatic reconnection after a lost connection.
type ReconnectConfig struct {
	// MaxAttempts is the number of automatic attempts before giving up.
	// Default: 5
	MaxAttempts int `yaml:"max_attempts"`

	// Backoff is the fixed delay before each attempt.
	// Default: 5s
	Backoff time.Duration `yaml:"backoff"`
}

// UploadConfig configures uploads.
type UploadConfig struct {
	// Throttle is the pause after each chunk.
	// Default: 100ms
	Throttle time.Duration `yaml:"throttle"`
}

// TelemetryConfig configures the telemetry source.
type TelemetryConfig struct {
	// File is a JSON or JSONC telemetry document. Empty disables sync.
	File string `yaml:"file"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text
	Format string `yaml:"format"`

	// File receives log output. Empty means stderr, except in the
	// interactive UI, which discards logs unless a file is set.
	File string `yaml:"file"`
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Default returns the default configuration. LoadFile merges the file
// over these values.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			State:        filepath.Join(homeDir, ".local", "state", "flightlink"),
			IdentityFile: "${FLIGHTLINK_STATE}/identity.cbor",
		},
		Server: ServerConfig{
			Endpoint: "ws://localhost:8000/ws",
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 5,
			Backoff:     5 * time.Second,
		},
		Upload: UploadConfig{
			Throttle: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Resolved returns Default with variables expanded, for running
// without a config file.
func Resolved() *Config {
	cfg := Default()
	cfg.expandVariables()
	return cfg
}

// Load loads the file named by FLIGHTLINK_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your flightlink.yaml, or use --config", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, merged over Default.
//
// Environment variables do not override values in the file. The only
// expansion is ${VAR} and ${VAR:-default} in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.Endpoint != "" {
			c.Server.Endpoint = overrides.Server.Endpoint
		}
		if overrides.Server.ClientID != "" {
			c.Server.ClientID = overrides.Server.ClientID
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
		if overrides.Log.File != "" {
			c.Log.File = overrides.Log.File
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"FLIGHTLINK_STATE": c.Paths.State,
		"HOME":             os.Getenv("HOME"),
	}

	c.Paths.State = expandVars(c.Paths.State, vars)
	vars["FLIGHTLINK_STATE"] = c.Paths.State

	c.Paths.IdentityFile = expandVars(c.Paths.IdentityFile, vars)
	c.Telemetry.File = expandVars(c.Telemetry.File, vars)
	c.Log.File = expandVars(c.Log.File, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}. vars take precedence
// over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Server.Endpoint == "" {
		errs = append(errs, errors.New("server.endpoint is required"))
	} else if endpoint, err := url.Parse(c.Server.Endpoint); err != nil {
		errs = append(errs, fmt.Errorf("server.endpoint: %w", err))
	} else if endpoint.Scheme != "ws" && endpoint.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("server.endpoint must use ws or wss, got %q", endpoint.Scheme))
	}

	if c.Server.ClientID == "" && c.Paths.IdentityFile == "" {
		errs = append(errs, errors.New("paths.identity_file is required when server.client_id is empty"))
	}

	if c.Reconnect.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("reconnect.max_attempts must be positive, got %d", c.Reconnect.MaxAttempts))
	}
	if c.Reconnect.Backoff <= 0 {
		errs = append(errs, fmt.Errorf("reconnect.backoff must be positive, got %s", c.Reconnect.Backoff))
	}
	if c.Upload.Throttle < 0 {
		errs = append(errs, fmt.Errorf("upload.throttle must not be negative, got %s", c.Upload.Throttle))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	formats := []string{"text", "json"}
	if !contains(formats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the state directory and the identity file's
// directory if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Paths.State}
	if c.Paths.IdentityFile != "" {
		paths = append(paths, filepath.Dir(c.Paths.IdentityFile))
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
