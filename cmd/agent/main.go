// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package main is the entry point for the Vantage capture agent.
//
// The agent records every capturable screen of its host: one session
// per screen, chunked on a fixed cadence into a local spool, with a
// health monitor that restarts sessions that go black, freeze or stall.
// Finished recordings upload to the ingestion receiver; an upload
// ledger makes delivery idempotent across restarts.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered load (defaults, YAML file, env)
//  2. Spool housekeeping: purge temp files older than 24h
//  3. Upload ledger and uploader (circuit breaker over HTTP)
//  4. Spool drain: deliver recordings left over from a previous run
//  5. Capture manager: one monitored session per screen
//
// # Signal Handling
//
// SIGINT and SIGTERM stop all sessions and flush their recordings
// within the configured stop-flush timeout before the process exits.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/vantage-rec/vantage/internal/capture"
	"github.com/vantage-rec/vantage/internal/capture/fakedev"
	"github.com/vantage-rec/vantage/internal/config"
	"github.com/vantage-rec/vantage/internal/health"
	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("agent", cfg.Agent.Name).
		Str("receiver_url", cfg.Agent.ReceiverURL).
		Str("spool_dir", cfg.Agent.SpoolDir).
		Msg("Starting Vantage agent")

	ledger, err := transfer.LoadLedger(filepath.Join(cfg.Agent.SpoolDir, "uploaded.json"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load upload ledger")
	}

	uploader := transfer.NewUploader(cfg.Agent.ReceiverURL, cfg.Agent.Name, cfg.Agent.Token, cfg.Agent.UploadTimeout)
	client, err := transfer.NewClient(cfg.Agent.SpoolDir, ledger, uploader)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize transfer client")
	}

	if _, err := client.PurgeStale(transfer.StaleAge); err != nil {
		logging.Warn().Err(err).Msg("Spool housekeeping failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := client.DrainSpool(ctx); err != nil {
		logging.Warn().Err(err).Msg("Spool drain incomplete")
	}

	device := openDevice(cfg)
	manager := capture.NewManager(device, client, capture.SessionConfig{
		Requested:     capture.DefaultProfile,
		ChunkInterval: cfg.Agent.ChunkInterval,
		Monitor:       health.DefaultMonitorConfig(),
	})

	if err := manager.StartAll(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start capture sessions")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal, flushing sessions")

	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.Agent.StopFlushTimeout)
	defer flushCancel()
	if err := manager.StopAndFlushAll(flushCtx); err != nil {
		logging.Error().Err(err).Msg("Shutdown flush incomplete")
		os.Exit(1)
	}

	logging.Info().Msg("Agent stopped gracefully")
}

// openDevice selects the capture backend. Platform capture is not wired
// in this build; the synthetic device keeps the pipeline exercisable
// end to end.
func openDevice(cfg *config.Config) capture.Device {
	if cfg.Agent.FakeCapture {
		logging.Info().Msg("Using synthetic capture device")
		return fakedev.New(fakedev.Options{SourceCount: 2})
	}
	logging.Warn().Msg("No platform capture backend built in, falling back to synthetic device")
	return fakedev.New(fakedev.Options{SourceCount: 1})
}
