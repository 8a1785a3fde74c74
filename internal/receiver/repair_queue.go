// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package receiver

import (
	"context"

	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/metrics"
)

// RepairQueue drains async post-ingest timestamp repairs. Ingest responses
// return before the repair runs; the queue decouples upload latency from
// ffmpeg runtime and bounds subprocess concurrency to the single worker.
//
// RepairQueue implements suture.Service and is supervised alongside the
// HTTP server.
type RepairQueue struct {
	remux Remuxer
	jobs  chan string
}

// NewRepairQueue creates a queue with the given backlog capacity.
func NewRepairQueue(remux Remuxer, capacity int) *RepairQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &RepairQueue{
		remux: remux,
		jobs:  make(chan string, capacity),
	}
}

// Enqueue schedules a timestamp repair for the stored file. Returns false
// when the backlog is full; the file stays playable either way, only its
// duration metadata remains off until a later repair pass.
func (q *RepairQueue) Enqueue(path string) bool {
	select {
	case q.jobs <- path:
		metrics.RepairQueueDepth.Set(float64(len(q.jobs)))
		return true
	default:
		logging.Warn().Str("path", path).Msg("Repair queue full, skipping timestamp repair")
		return false
	}
}

// Serve implements suture.Service. It drains the queue until the context
// is cancelled. A failed repair is logged and dropped; the stored file is
// already durable and repair is best-effort.
func (q *RepairQueue) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path := <-q.jobs:
			metrics.RepairQueueDepth.Set(float64(len(q.jobs)))
			if err := q.remux.FixTimestamps(ctx, path); err != nil {
				logging.Error().Err(err).Str("path", path).Msg("Async timestamp repair failed")
				continue
			}
			logging.Debug().Str("path", path).Msg("Async timestamp repair completed")
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (q *RepairQueue) String() string {
	return "repair-queue"
}
