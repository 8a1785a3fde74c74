// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package capture

import (
	"context"
	"time"
)

// ChunkSink consumes the chunk stream of one session. Appends arrive
// from a single goroutine in emission order.
type ChunkSink interface {
	// Append stores one chunk.
	Append(chunk []byte) error
	// Bytes is the total payload size appended so far.
	Bytes() int64
	// Close releases the sink without finalizing it. Used on abandoned
	// sessions; finalized sinks are closed by the transfer layer.
	Close() error
}

// RecordingMeta describes a finished recording for the transfer layer.
type RecordingMeta struct {
	SessionID     string
	SourceID      string
	Label         string
	Profile       Profile
	StartedAt     time.Time
	DurationMs    int64
	ChunkCount    int
	IsLastSession bool
}

// Transfer is the downstream consumer of finished recordings. The
// transfer client implements it; tests substitute fakes.
type Transfer interface {
	// OpenSink returns the chunk sink for a new session: disk-backed
	// when a temp file can be created, in-memory otherwise. It never
	// fails; degraded mode is the fallback.
	OpenSink(sourceID, label string) ChunkSink
	// Finalize names, persists and delivers the finished recording held
	// by the sink.
	Finalize(ctx context.Context, sink ChunkSink, meta RecordingMeta) error
}
