// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package transfer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vantage-rec/vantage/internal/capture"
	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/metrics"
	"github.com/vantage-rec/vantage/internal/receiver"
)

// tempPrefix marks in-progress spool files so housekeeping and listing
// can tell them from finished recordings.
const tempPrefix = ".rec-"

// Client owns the agent spool: it hands sinks to capture sessions,
// names and persists finished recordings, and delivers them through the
// uploader exactly once per file name.
type Client struct {
	spoolDir string
	ledger   *Ledger
	uploader *Uploader
}

// NewClient builds a transfer client over a spool directory. The
// uploader may be nil, in which case recordings are only spooled.
func NewClient(spoolDir string, ledger *Ledger, uploader *Uploader) (*Client, error) {
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}
	return &Client{spoolDir: spoolDir, ledger: ledger, uploader: uploader}, nil
}

// SpoolDir is the directory the client persists recordings into.
func (c *Client) SpoolDir() string { return c.spoolDir }

// OpenSink returns the chunk sink for a new session. Disk is preferred;
// when the temp file cannot be created the session degrades to
// in-memory buffering instead of failing.
func (c *Client) OpenSink(sourceID, label string) capture.ChunkSink {
	sink, err := c.CreateTempFile(sourceID, label)
	if err != nil {
		logging.Warn().
			Str("source_id", sourceID).
			Str("label", label).
			Err(err).
			Msg("spool temp file unavailable, buffering recording in memory")
		return NewMemorySink()
	}
	return sink
}

// CreateTempFile opens a spool temp file for one session and returns a
// disk sink over it.
func (c *Client) CreateTempFile(sourceID, label string) (*DiskSink, error) {
	f, err := os.CreateTemp(c.spoolDir, tempPrefix+capture.SanitizeLabel(label)+"-*.webm")
	if err != nil {
		return nil, fmt.Errorf("creating spool temp file: %w", err)
	}

	sink := newDiskSink(f.Name())
	if err := sink.markReady(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return sink, nil
}

// FinalName derives the final recording file name from the session
// label and start time.
func FinalName(meta capture.RecordingMeta) string {
	label := capture.SanitizeLabel(meta.Label)
	return fmt.Sprintf("recording-%s-%d.webm", label, meta.StartedAt.UnixMilli())
}

// Finalize completes a recording: disk sinks are renamed to their final
// spool name and delivered from the file; memory sinks go through Save.
// On delivery failure the spool file is retained for a later drain.
func (c *Client) Finalize(ctx context.Context, sink capture.ChunkSink, meta capture.RecordingMeta) error {
	switch s := sink.(type) {
	case *DiskSink:
		return c.finalizeDisk(ctx, s, meta)
	case *MemorySink:
		return c.Save(ctx, FinalName(meta), s.Data(), meta)
	default:
		return fmt.Errorf("unsupported sink type %T", sink)
	}
}

func (c *Client) finalizeDisk(ctx context.Context, sink *DiskSink, meta capture.RecordingMeta) error {
	if err := sink.closeFile(); err != nil {
		return fmt.Errorf("closing spool temp file: %w", err)
	}

	finalPath := filepath.Join(c.spoolDir, FinalName(meta))
	if err := os.Rename(sink.Path(), finalPath); err != nil {
		return fmt.Errorf("renaming recording into spool: %w", err)
	}

	return c.deliverFile(ctx, finalPath, meta)
}

// Save persists an in-memory recording to the spool and delivers it.
// Spooling first means a failed delivery still leaves a file to retry.
func (c *Client) Save(ctx context.Context, fileName string, data []byte, meta capture.RecordingMeta) error {
	finalPath := filepath.Join(c.spoolDir, fileName)
	if err := os.WriteFile(finalPath, data, 0o644); err != nil {
		return fmt.Errorf("spooling recording: %w", err)
	}
	return c.deliverFile(ctx, finalPath, meta)
}

// deliverFile uploads one spooled recording, consulting the ledger
// first. A successful delivery records the name and removes the file; a
// failed one leaves both untouched.
func (c *Client) deliverFile(ctx context.Context, path string, meta capture.RecordingMeta) error {
	name := filepath.Base(path)

	if c.ledger != nil && c.ledger.Contains(name) {
		logging.Info().Str("file", name).Msg("recording already delivered, skipping upload")
		metrics.UploadsTotal.WithLabelValues("skipped").Inc()
		os.Remove(path)
		return nil
	}

	if c.uploader == nil {
		logging.Info().Str("file", name).Msg("no uploader configured, recording left in spool")
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading spooled recording: %w", err)
	}

	up := Upload{
		FileName: name,
		ISODate:  meta.StartedAt.UTC().Format("2006-01-02"),
		Hash:     receiver.HashBytes(data),
		Size:     int64(len(data)),
		Body:     bytes.NewReader(data),
	}

	if err := c.uploader.Do(ctx, up); err != nil {
		metrics.UploadsTotal.WithLabelValues("failed").Inc()
		logging.Error().
			Str("file", name).
			Int64("size", up.Size).
			Err(err).
			Msg("delivery failed, recording retained in spool")
		return fmt.Errorf("delivering %s: %w", name, err)
	}

	if c.ledger != nil {
		if err := c.ledger.Add(name); err != nil {
			// The upload went through; losing the ledger entry risks a
			// duplicate on restart, which the receiver tolerates by
			// overwriting. Keep going.
			logging.Error().Str("file", name).Err(err).Msg("recording delivered but ledger update failed")
		}
	}
	metrics.UploadsTotal.WithLabelValues("delivered").Inc()
	os.Remove(path)

	logging.Info().
		Str("file", name).
		Int64("size", up.Size).
		Bool("last_session", meta.IsLastSession).
		Msg("recording delivered")
	return nil
}

// DrainSpool attempts delivery of every finished recording left in the
// spool, typically from a previous run that crashed or lost the
// receiver. Temp files are skipped.
func (c *Client) DrainSpool(ctx context.Context) error {
	entries, err := os.ReadDir(c.spoolDir)
	if err != nil {
		return fmt.Errorf("reading spool: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name[0] == '.' || filepath.Ext(name) != ".webm" {
			continue
		}

		meta := capture.RecordingMeta{StartedAt: entryModTime(entry)}
		if err := c.deliverFile(ctx, filepath.Join(c.spoolDir, name), meta); err != nil {
			logging.Warn().Str("file", name).Err(err).Msg("spool drain delivery failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}
