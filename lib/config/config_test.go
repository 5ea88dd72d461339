// Copyright 2026 The Flightlink Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "flightlink.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Server.Endpoint != "ws://localhost:8000/ws" {
		t.Errorf("expected endpoint=ws://localhost:8000/ws, got %s", cfg.Server.Endpoint)
	}
	if cfg.Reconnect.MaxAttempts != 5 || cfg.Reconnect.Backoff != 5*time.Second {
		t.Errorf("expected 5 attempts every 5s, got %d every %s", cfg.Reconnect.MaxAttempts, cfg.Reconnect.Backoff)
	}
	if cfg.Upload.Throttle != 100*time.Millisecond {
		t.Errorf("expected throttle=100ms, got %s", cfg.Upload.Throttle)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestResolvedExpandsIdentityFile(t *testing.T) {
	cfg := Resolved()
	want := filepath.Join(cfg.Paths.State, "identity.cbor")
	if cfg.Paths.IdentityFile != want {
		t.Errorf("expected identity_file=%s, got %s", want, cfg.Paths.IdentityFile)
	}
}

func TestLoad_RequiresEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when FLIGHTLINK_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "FLIGHTLINK_CONFIG environment variable not set") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestLoad_WithEnvVar(t *testing.T) {
	configPath := writeConfig(t, `
environment: production
server:
  endpoint: wss://analysis.example.com/ws
`)
	t.Setenv(EnvVar, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Production {
		t.Errorf("expected environment=production, got %s", cfg.Environment)
	}
	if cfg.Server.Endpoint != "wss://analysis.example.com/ws" {
		t.Errorf("expected endpoint from file, got %s", cfg.Server.Endpoint)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
paths:
  state: /var/lib/flightlink
server:
  endpoint: ws://10.0.0.5:8000/ws
  client_id: viewer-7
reconnect:
  max_attempts: 3
  backoff: 2s
upload:
  throttle: 250ms
telemetry:
  file: ${FLIGHTLINK_STATE}/telemetry.jsonc
log:
  level: debug
  format: json
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.ClientID != "viewer-7" {
		t.Errorf("expected client_id=viewer-7, got %s", cfg.Server.ClientID)
	}
	if cfg.Reconnect.MaxAttempts != 3 || cfg.Reconnect.Backoff != 2*time.Second {
		t.Errorf("expected 3 attempts every 2s, got %d every %s", cfg.Reconnect.MaxAttempts, cfg.Reconnect.Backoff)
	}
	if cfg.Upload.Throttle != 250*time.Millisecond {
		t.Errorf("expected throttle=250ms, got %s", cfg.Upload.Throttle)
	}
	if cfg.Paths.IdentityFile != "/var/lib/flightlink/identity.cbor" {
		t.Errorf("identity_file not derived from state: %s", cfg.Paths.IdentityFile)
	}
	if cfg.Telemetry.File != "/var/lib/flightlink/telemetry.jsonc" {
		t.Errorf("telemetry.file not expanded: %s", cfg.Telemetry.File)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, %v", level, err)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("expected format=json, got %s", cfg.Log.Format)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	configPath := writeConfig(t, "reconnect:\n  backoff: soon\n")
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

server:
  endpoint: ws://localhost:8000/ws

log:
  level: debug

development:
  server:
    endpoint: ws://localhost:9000/ws

production:
  server:
    endpoint: wss://analysis.example.com/ws
  log:
    level: warn
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Server.Endpoint != "wss://analysis.example.com/ws" {
		t.Errorf("expected production endpoint, got %s", cfg.Server.Endpoint)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected level=warn from production override, got %s", cfg.Log.Level)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("FLIGHTLINK_ENDPOINT", "ws://env/ws")
	t.Setenv("FLIGHTLINK_STATE", "/env/state")

	configPath := writeConfig(t, `
paths:
  state: /file/state
server:
  endpoint: ws://file/ws
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Server.Endpoint != "ws://file/ws" {
		t.Errorf("expected endpoint from file, got %s (env vars should not override)", cfg.Server.Endpoint)
	}
	if cfg.Paths.State != "/file/state" {
		t.Errorf("expected state from file, got %s (env vars should not override)", cfg.Paths.State)
	}
	if cfg.Paths.IdentityFile != "/file/state/identity.cbor" {
		t.Errorf("expected identity under file state, got %s", cfg.Paths.IdentityFile)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/flightlink",
			vars:     map[string]string{"HOME": "/home/pilot"},
			expected: "/home/pilot/flightlink",
		},
		{
			input:    "${FLIGHTLINK_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid environment",
			modify:  func(c *Config) { c.Environment = "staging" },
			wantErr: true,
		},
		{
			name:    "empty endpoint",
			modify:  func(c *Config) { c.Server.Endpoint = "" },
			wantErr: true,
		},
		{
			name:    "http endpoint",
			modify:  func(c *Config) { c.Server.Endpoint = "http://localhost:8000/ws" },
			wantErr: true,
		},
		{
			name: "no identity source",
			modify: func(c *Config) {
				c.Paths.IdentityFile = ""
			},
			wantErr: true,
		},
		{
			name: "pinned client id needs no identity file",
			modify: func(c *Config) {
				c.Paths.IdentityFile = ""
				c.Server.ClientID = "viewer-1"
			},
			wantErr: false,
		},
		{
			name:    "zero attempts",
			modify:  func(c *Config) { c.Reconnect.MaxAttempts = 0 },
			wantErr: true,
		},
		{
			name:    "zero backoff",
			modify:  func(c *Config) { c.Reconnect.Backoff = 0 },
			wantErr: true,
		},
		{
			name:    "zero throttle allowed",
			modify:  func(c *Config) { c.Upload.Throttle = 0 },
			wantErr: false,
		},
		{
			name:    "invalid log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			modify:  func(c *Config) { c.Log.Format = "logfmt" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.State = filepath.Join(tmpDir, "state")
	cfg.Paths.IdentityFile = filepath.Join(tmpDir, "identity", "id.cbor")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.State, filepath.Dir(cfg.Paths.IdentityFile)} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
