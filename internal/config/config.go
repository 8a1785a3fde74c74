// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package config loads Vantage configuration via Koanf v2 with layered
// sources: built-in defaults, an optional YAML config file, and environment
// variables (highest priority).
package config

import (
	"time"
)

// Config is the root configuration shared by both binaries. The agent reads
// Agent+Logging, the receiver reads Receiver+Logging; loading the whole tree
// in both keeps a single config file usable for co-located deployments.
type Config struct {
	Agent    AgentConfig    `koanf:"agent"`
	Receiver ReceiverConfig `koanf:"receiver"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// AgentConfig configures the capture-side host process.
type AgentConfig struct {
	// Name identifies this machine on uploads (X-Agent-Name).
	Name string `koanf:"name" validate:"required"`

	// ReceiverURL is the ingest endpoint of the receiver service.
	ReceiverURL string `koanf:"receiver_url" validate:"required,url"`

	// Token is the bearer token sent on ingest calls. Optional; must match
	// the receiver's configured token when that is set.
	Token string `koanf:"token"`

	// SpoolDir holds in-progress temp recordings and the uploaded ledger.
	SpoolDir string `koanf:"spool_dir" validate:"required"`

	// ChunkInterval is the recorder time-slice for chunk emission.
	ChunkInterval time.Duration `koanf:"chunk_interval" validate:"min=100ms"`

	// StopFlushTimeout bounds how long shutdown waits for finalize.
	StopFlushTimeout time.Duration `koanf:"stop_flush_timeout"`

	// UploadTimeout bounds a single delivery attempt to the receiver.
	UploadTimeout time.Duration `koanf:"upload_timeout"`

	// FakeCapture swaps the platform capture device for the synthetic one.
	// Used in development and tests.
	FakeCapture bool `koanf:"fake_capture"`
}

// ReceiverConfig configures the ingestion receiver service.
type ReceiverConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"min=1,max=65535"`

	// BaseDir is the storage root: <base>/<agent>/<date>/<file>.
	BaseDir string `koanf:"base_dir" validate:"required"`

	// Token gates POST ingest when non-empty. GET endpoints stay open;
	// they are operator-local tooling.
	Token string `koanf:"token"`

	// FFmpegPath is the remux utility binary. Resolved via PATH when bare.
	FFmpegPath string `koanf:"ffmpeg_path"`

	// SubprocessTimeout bounds every ffmpeg invocation. A hung subprocess
	// is killed when the deadline passes.
	SubprocessTimeout time.Duration `koanf:"subprocess_timeout" validate:"min=1s"`

	// RepairQueueSize bounds the async post-ingest repair backlog.
	RepairQueueSize int `koanf:"repair_queue_size" validate:"min=1"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimitReqs/RateLimitWindow throttle ingest per remote IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// CORSOrigins applies to the operator GET endpoints.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:             "agent",
			ReceiverURL:      "http://127.0.0.1:8090",
			Token:            "",
			SpoolDir:         "/var/lib/vantage/spool",
			ChunkInterval:    time.Second,
			StopFlushTimeout: 15 * time.Second,
			UploadTimeout:    2 * time.Minute,
			FakeCapture:      false,
		},
		Receiver: ReceiverConfig{
			Host:              "0.0.0.0",
			Port:              8090,
			BaseDir:           "/data/recordings",
			Token:             "",
			FFmpegPath:        "ffmpeg",
			SubprocessTimeout: 5 * time.Minute,
			RepairQueueSize:   256,
			ShutdownTimeout:   10 * time.Second,
			RateLimitReqs:     120,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
