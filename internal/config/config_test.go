// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	// Agent defaults
	if cfg.Agent.Name != "agent" {
		t.Errorf("Agent.Name = %q, want agent", cfg.Agent.Name)
	}
	if cfg.Agent.ReceiverURL != "http://127.0.0.1:8090" {
		t.Errorf("Agent.ReceiverURL = %q, want http://127.0.0.1:8090", cfg.Agent.ReceiverURL)
	}
	if cfg.Agent.SpoolDir != "/var/lib/vantage/spool" {
		t.Errorf("Agent.SpoolDir = %q, want /var/lib/vantage/spool", cfg.Agent.SpoolDir)
	}
	if cfg.Agent.ChunkInterval != time.Second {
		t.Errorf("Agent.ChunkInterval = %v, want 1s", cfg.Agent.ChunkInterval)
	}
	if cfg.Agent.StopFlushTimeout != 15*time.Second {
		t.Errorf("Agent.StopFlushTimeout = %v, want 15s", cfg.Agent.StopFlushTimeout)
	}
	if cfg.Agent.UploadTimeout != 2*time.Minute {
		t.Errorf("Agent.UploadTimeout = %v, want 2m", cfg.Agent.UploadTimeout)
	}
	if cfg.Agent.FakeCapture {
		t.Errorf("Agent.FakeCapture should be false by default")
	}

	// Receiver defaults
	if cfg.Receiver.Host != "0.0.0.0" {
		t.Errorf("Receiver.Host = %q, want 0.0.0.0", cfg.Receiver.Host)
	}
	if cfg.Receiver.Port != 8090 {
		t.Errorf("Receiver.Port = %d, want 8090", cfg.Receiver.Port)
	}
	if cfg.Receiver.BaseDir != "/data/recordings" {
		t.Errorf("Receiver.BaseDir = %q, want /data/recordings", cfg.Receiver.BaseDir)
	}
	if cfg.Receiver.FFmpegPath != "ffmpeg" {
		t.Errorf("Receiver.FFmpegPath = %q, want ffmpeg", cfg.Receiver.FFmpegPath)
	}
	if cfg.Receiver.SubprocessTimeout != 5*time.Minute {
		t.Errorf("Receiver.SubprocessTimeout = %v, want 5m", cfg.Receiver.SubprocessTimeout)
	}
	if cfg.Receiver.RepairQueueSize != 256 {
		t.Errorf("Receiver.RepairQueueSize = %d, want 256", cfg.Receiver.RepairQueueSize)
	}
	if cfg.Receiver.ShutdownTimeout != 10*time.Second {
		t.Errorf("Receiver.ShutdownTimeout = %v, want 10s", cfg.Receiver.ShutdownTimeout)
	}
	if cfg.Receiver.RateLimitReqs != 120 {
		t.Errorf("Receiver.RateLimitReqs = %d, want 120", cfg.Receiver.RateLimitReqs)
	}
	if cfg.Receiver.RateLimitWindow != time.Minute {
		t.Errorf("Receiver.RateLimitWindow = %v, want 1m", cfg.Receiver.RateLimitWindow)
	}
	if len(cfg.Receiver.CORSOrigins) != 1 || cfg.Receiver.CORSOrigins[0] != "*" {
		t.Errorf("Receiver.CORSOrigins = %v, want [*]", cfg.Receiver.CORSOrigins)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
	if cfg.Logging.Caller {
		t.Errorf("Logging.Caller should be false by default")
	}
}

// TestDefaultConfigValidates ensures the shipped defaults pass validation,
// so a bare `vantage-receiver` with no config file can start.
func TestDefaultConfigValidates(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"AGENT_NAME", "agent.name"},
		{"AGENT_RECEIVER_URL", "agent.receiver_url"},
		{"AGENT_SPOOL_DIR", "agent.spool_dir"},
		{"AGENT_CHUNK_INTERVAL", "agent.chunk_interval"},
		{"AGENT_FAKE_CAPTURE", "agent.fake_capture"},
		{"RECEIVER_PORT", "receiver.port"},
		{"RECEIVER_BASE_DIR", "receiver.base_dir"},
		{"RECEIVER_FFMPEG_PATH", "receiver.ffmpeg_path"},
		{"RECEIVER_CORS_ORIGINS", "receiver.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"log_format", "logging.format"},
		// Unrelated environment must be dropped, not guessed at.
		{"PATH", ""},
		{"HOME", ""},
		{"RECEIVER_UNKNOWN_KNOB", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("AGENT_NAME", "desk-07")
	t.Setenv("AGENT_CHUNK_INTERVAL", "250ms")
	t.Setenv("RECEIVER_PORT", "9100")
	t.Setenv("RECEIVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	// Run from an empty directory so no stray vantage.yaml is picked up.
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Agent.Name != "desk-07" {
		t.Errorf("Agent.Name = %q, want desk-07", cfg.Agent.Name)
	}
	if cfg.Agent.ChunkInterval != 250*time.Millisecond {
		t.Errorf("Agent.ChunkInterval = %v, want 250ms", cfg.Agent.ChunkInterval)
	}
	if cfg.Receiver.Port != 9100 {
		t.Errorf("Receiver.Port = %d, want 9100", cfg.Receiver.Port)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Receiver.CORSOrigins) != len(want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.Receiver.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Receiver.CORSOrigins[i] != want[i] {
			t.Errorf("CORSOrigins[%d] = %q, want %q", i, cfg.Receiver.CORSOrigins[i], want[i])
		}
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched fields keep their defaults.
	if cfg.Receiver.SubprocessTimeout != 5*time.Minute {
		t.Errorf("Receiver.SubprocessTimeout = %v, want default 5m", cfg.Receiver.SubprocessTimeout)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
agent:
  name: lab-3
  spool_dir: /tmp/vantage-spool
receiver:
  port: 8443
  base_dir: /srv/recordings
logging:
  format: console
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Agent.Name != "lab-3" {
		t.Errorf("Agent.Name = %q, want lab-3", cfg.Agent.Name)
	}
	if cfg.Agent.SpoolDir != "/tmp/vantage-spool" {
		t.Errorf("Agent.SpoolDir = %q, want /tmp/vantage-spool", cfg.Agent.SpoolDir)
	}
	if cfg.Receiver.Port != 8443 {
		t.Errorf("Receiver.Port = %d, want 8443", cfg.Receiver.Port)
	}
	if cfg.Receiver.BaseDir != "/srv/recordings" {
		t.Errorf("Receiver.BaseDir = %q, want /srv/recordings", cfg.Receiver.BaseDir)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %q, want console", cfg.Logging.Format)
	}
}

// TestEnvBeatsConfigFile pins the layering order: defaults < file < env.
func TestEnvBeatsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("receiver:\n  port: 8443\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("RECEIVER_PORT", "9999")
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Receiver.Port != 9999 {
		t.Errorf("Receiver.Port = %d, want env override 9999", cfg.Receiver.Port)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "empty agent name",
			mutate:  func(c *Config) { c.Agent.Name = "" },
			wantSub: "Agent.Name",
		},
		{
			name:    "bad receiver url",
			mutate:  func(c *Config) { c.Agent.ReceiverURL = "not a url" },
			wantSub: "ReceiverURL",
		},
		{
			name:    "chunk interval too small",
			mutate:  func(c *Config) { c.Agent.ChunkInterval = 10 * time.Millisecond },
			wantSub: "ChunkInterval",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Receiver.Port = 70000 },
			wantSub: "Port",
		},
		{
			name:    "empty base dir",
			mutate:  func(c *Config) { c.Receiver.BaseDir = "" },
			wantSub: "BaseDir",
		},
		{
			name:    "subprocess timeout too small",
			mutate:  func(c *Config) { c.Receiver.SubprocessTimeout = 100 * time.Millisecond },
			wantSub: "SubprocessTimeout",
		},
		{
			name:    "zero repair queue",
			mutate:  func(c *Config) { c.Receiver.RepairQueueSize = 0 },
			wantSub: "RepairQueueSize",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantSub: "Level",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantSub: "Format",
		},
		{
			name:    "non-positive stop flush timeout",
			mutate:  func(c *Config) { c.Agent.StopFlushTimeout = 0 },
			wantSub: "stop_flush_timeout",
		},
		{
			name:    "non-positive shutdown timeout",
			mutate:  func(c *Config) { c.Receiver.ShutdownTimeout = -time.Second },
			wantSub: "shutdown_timeout",
		},
		{
			name:    "non-positive rate limit window",
			mutate:  func(c *Config) { c.Receiver.RateLimitWindow = 0 },
			wantSub: "rate_limit_window",
		},
		{
			name:    "empty ffmpeg path",
			mutate:  func(c *Config) { c.Receiver.FFmpegPath = "" },
			wantSub: "ffmpeg_path",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() accepted invalid config")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

// chdir switches the working directory for the duration of a test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}
