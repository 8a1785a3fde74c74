// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package transfer persists finished recordings to the agent spool and
// delivers them to the ingestion receiver, keeping an uploaded ledger so
// a file is never delivered twice.
package transfer

import (
	"fmt"
	"os"
	"sync"

	"github.com/vantage-rec/vantage/internal/metrics"
)

// DiskSink streams chunks into a temp file in the spool directory.
// Chunks appended before the file is open are buffered and flushed in
// arrival order once it is; the caller never observes the hand-over.
type DiskSink struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	ready   bool
	pending [][]byte
	bytes   int64
	openErr error
}

// newDiskSink creates an unready sink bound to a temp path. markReady or
// markFailed completes it.
func newDiskSink(path string) *DiskSink {
	return &DiskSink{path: path}
}

// Path is the temp file location backing this sink.
func (s *DiskSink) Path() string { return s.path }

// markReady attaches the opened temp file and flushes any chunks that
// arrived early, preserving order.
func (s *DiskSink) markReady(f *os.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.file = f
	s.ready = true
	for _, chunk := range s.pending {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("flushing pending chunks: %w", err)
		}
	}
	s.pending = nil
	return nil
}

func (s *DiskSink) markFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openErr = err
}

// Append writes one chunk, buffering while the temp file is not yet
// open.
func (s *DiskSink) Append(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openErr != nil {
		return s.openErr
	}

	s.bytes += int64(len(chunk))
	metrics.CaptureChunksTotal.WithLabelValues("disk").Inc()

	if !s.ready {
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		s.pending = append(s.pending, buf)
		return nil
	}
	_, err := s.file.Write(chunk)
	return err
}

// Bytes is the total payload appended so far, buffered or written.
func (s *DiskSink) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Close releases the temp file without finalizing. The file stays on
// disk for housekeeping to reap.
func (s *DiskSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// closeFile flushes and closes the backing file ahead of the rename to
// its final name.
func (s *DiskSink) closeFile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		s.file = nil
		return err
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// MemorySink buffers the whole recording in memory. It is the fallback
// when the spool temp file cannot be created; the recording survives as
// long as the process does.
type MemorySink struct {
	mu  sync.Mutex
	buf []byte
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Append accumulates one chunk.
func (s *MemorySink) Append(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, chunk...)
	metrics.CaptureChunksTotal.WithLabelValues("memory").Inc()
	return nil
}

// Bytes is the buffered payload size.
func (s *MemorySink) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.buf))
}

// Data returns the buffered recording.
func (s *MemorySink) Data() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

// Close drops the buffer.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
	return nil
}
