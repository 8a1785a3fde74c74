// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package main is the entry point for the Vantage ingestion receiver.
//
// The receiver accepts recording uploads from capture agents, verifies
// their integrity, organizes them as agent/date/segment files under the
// recordings base directory, and exposes maintenance operations: segment
// listing, per-screen merging via ffmpeg, and repair of damaged uploads.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered load (defaults, YAML file, env)
//  2. Logging: zerolog, JSON or console format
//  3. Remux runner: locate ffmpeg, bounded subprocess timeouts
//  4. Repair queue: background timestamp fixes for fresh uploads
//  5. Supervisor tree: HTTP server and repair queue under suture
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the HTTP server stops
// accepting connections, in-flight uploads complete within the shutdown
// timeout, and the repair queue drains its current job.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vantage-rec/vantage/internal/config"
	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/receiver"
	"github.com/vantage-rec/vantage/internal/remux"
	"github.com/vantage-rec/vantage/internal/supervisor"
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
		Str("base_dir", cfg.Receiver.BaseDir).
		Int("port", cfg.Receiver.Port).
		Msg("Starting Vantage receiver")

	if err := os.MkdirAll(cfg.Receiver.BaseDir, 0o755); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create recordings base directory")
	}

	runner := remux.NewRunner(cfg.Receiver.FFmpegPath, cfg.Receiver.SubprocessTimeout)
	if runner.Available() {
		logging.Info().Str("binary", runner.Binary()).Msg("ffmpeg available")
	} else {
		logging.Warn().
			Str("binary", runner.Binary()).
			Msg("ffmpeg not found, merges and repairs will fail until it is installed")
	}

	repairs := receiver.NewRepairQueue(runner, cfg.Receiver.RepairQueueSize)
	handler := receiver.NewHandler(&cfg.Receiver, runner, repairs)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Receiver.Host, cfg.Receiver.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Receiver.ShutdownTimeout,
	})
	tree.AddMaintenanceService(repairs)
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Receiver.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Receiver listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
		os.Exit(1)
	}

	logging.Info().Msg("Receiver stopped gracefully")
}
