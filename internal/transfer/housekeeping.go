// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vantage-rec/vantage/internal/logging"
)

// StaleAge is how long a spool leftover from a crashed prior run may
// linger before startup housekeeping reaps it.
const StaleAge = 24 * time.Hour

// PurgeStale removes spool files older than maxAge: abandoned temp files
// and finished recordings alike. It runs at agent startup, before any
// session opens a sink and before DrainSpool, so it can never race a live
// recording and anything it spares is still a delivery candidate.
func (c *Client) PurgeStale(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = StaleAge
	}
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(c.spoolDir)
	if err != nil {
		return 0, fmt.Errorf("reading spool: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !purgeCandidate(entry.Name()) {
			continue
		}
		if entryModTime(entry).After(cutoff) {
			continue
		}

		path := filepath.Join(c.spoolDir, entry.Name())
		if err := os.Remove(path); err != nil {
			logging.Warn().Str("file", entry.Name()).Err(err).Msg("stale spool file removal failed")
			continue
		}
		removed++
	}

	if removed > 0 {
		logging.Info().Int("removed", removed).Msg("purged stale spool files")
	}
	return removed, nil
}

// purgeCandidate limits the purge to files this process wrote. The ledger
// and anything an operator dropped next to it are off limits.
func purgeCandidate(name string) bool {
	if strings.HasPrefix(name, tempPrefix) {
		return true
	}
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".webm")
}

func entryModTime(entry os.DirEntry) time.Time {
	info, err := entry.Info()
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
