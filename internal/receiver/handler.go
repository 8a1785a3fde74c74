// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package receiver

import (
	"context"
	"time"

	"github.com/vantage-rec/vantage/internal/config"
)

// Remuxer is the subset of remux.Runner the handlers need. Tests inject a
// fake so handler behaviour is exercised without an ffmpeg binary.
type Remuxer interface {
	Binary() string
	Available() bool
	FixTimestamps(ctx context.Context, path string) error
	Concat(ctx context.Context, listFile, output string) error
	Repair(ctx context.Context, src, dst string) error
}

// Handler carries the receiver's endpoint implementations and their shared
// dependencies.
type Handler struct {
	cfg       *config.ReceiverConfig
	remux     Remuxer
	repairs   *RepairQueue
	locks     *groupLocks
	startTime time.Time
}

// NewHandler creates the receiver handler set.
func NewHandler(cfg *config.ReceiverConfig, remux Remuxer, repairs *RepairQueue) *Handler {
	return &Handler{
		cfg:       cfg,
		remux:     remux,
		repairs:   repairs,
		locks:     newGroupLocks(),
		startTime: time.Now(),
	}
}
