// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package segment models recorded media segments at rest on the receiver:
// filename-derived identity, duplicate detection, path sanitization, and
// container header validity.
package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/vantage-rec/vantage/internal/logging"
)

// DefaultScreenID is assigned to segments whose filename carries no
// screen<N> marker.
const DefaultScreenID = "default"

var (
	screenIDPattern  = regexp.MustCompile(`(?i)screen(\d+)`)
	timestampPattern = regexp.MustCompile(`(\d{13})`)
)

// File is one segment at rest under <base>/<agent>/<date>/.
type File struct {
	AgentName   string `json:"agentName"`
	ISODate     string `json:"isoDate"`
	FileName    string `json:"fileName"`
	Path        string `json:"-"`
	ScreenID    string `json:"screenId"`
	TimestampMs int64  `json:"timestampMs"`
	Size        int64  `json:"size"`
}

// identity is the deduplication key: segments sharing (screenID, timestampMs)
// are the same recording delivered more than once.
type identity struct {
	screenID    string
	timestampMs int64
}

// ParseName extracts the screen ID and embedded 13-digit epoch timestamp
// from a segment filename. Missing markers yield DefaultScreenID and 0.
func ParseName(fileName string) (screenID string, timestampMs int64) {
	screenID = DefaultScreenID
	if m := screenIDPattern.FindStringSubmatch(fileName); m != nil {
		screenID = "screen" + m[1]
	}
	if m := timestampPattern.FindStringSubmatch(fileName); m != nil {
		// Cannot overflow int64: 13 digits max.
		timestampMs, _ = strconv.ParseInt(m[1], 10, 64)
	}
	return screenID, timestampMs
}

// List enumerates the segments for one agent/date directory, filters by an
// optional substring pattern, removes duplicates by (screenID, timestampMs)
// keeping the first seen, and returns the survivors timestamp-ascending.
// The second return value lists the filenames skipped as duplicates.
//
// Segments without an embedded timestamp have no usable identity and are
// exempt from deduplication.
func List(baseDir, agent, date, pattern string) ([]File, []string, error) {
	dir := filepath.Join(baseDir, SanitizeAgentName(agent), SanitizeISODate(date))

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read segment directory %s: %w", dir, err)
	}

	seen := make(map[identity]string)
	var files []File
	var skipped []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// Hidden files are in-flight ingest spools and concat lists; the
		// merged- prefix marks merge outputs, which are not segments and
		// must not feed back into later merges.
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "merged-") {
			continue
		}
		if pattern != "" && !strings.Contains(name, pattern) {
			continue
		}

		screenID, timestampMs := ParseName(name)
		if timestampMs != 0 {
			id := identity{screenID: screenID, timestampMs: timestampMs}
			if first, dup := seen[id]; dup {
				logging.Warn().
					Str("file", name).
					Str("kept", first).
					Str("screen_id", screenID).
					Int64("timestamp_ms", timestampMs).
					Msg("Skipping duplicate segment")
				skipped = append(skipped, name)
				continue
			}
			seen[id] = name
		}

		info, err := entry.Info()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to stat segment %s: %w", name, err)
		}

		files = append(files, File{
			AgentName:   agent,
			ISODate:     SanitizeISODate(date),
			FileName:    name,
			Path:        filepath.Join(dir, name),
			ScreenID:    screenID,
			TimestampMs: timestampMs,
			Size:        info.Size(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].TimestampMs < files[j].TimestampMs
	})

	return files, skipped, nil
}

// GroupByScreen splits segments into per-screen groups, preserving the
// timestamp order within each group. Group keys are sorted for deterministic
// iteration by callers.
func GroupByScreen(files []File) (map[string][]File, []string) {
	groups := make(map[string][]File)
	for _, f := range files {
		groups[f.ScreenID] = append(groups[f.ScreenID], f)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return groups, keys
}
