// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package receiver

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/metrics"
	"github.com/vantage-rec/vantage/internal/remux"
	"github.com/vantage-rec/vantage/internal/segment"
)

// MergeResult describes one produced merge output.
type MergeResult struct {
	ScreenID     string `json:"screenId"`
	Output       string `json:"output"`
	SegmentCount int    `json:"segmentCount"`
	// Copied is true for the single-segment case: a straight byte copy
	// with no remux side effects.
	Copied bool `json:"copied"`
}

// MergeResponse is the GET /merge and /merge-all body.
type MergeResponse struct {
	Success          bool          `json:"success"`
	Merged           []MergeResult `json:"merged"`
	Invalid          []string      `json:"invalidSegments,omitempty"`
	InvalidDeleted   bool          `json:"invalidDeleted,omitempty"`
	DeletedOriginals int           `json:"deletedOriginals,omitempty"`
}

// Merge handles GET /merge: losslessly concatenate the selected segments of
// one agent/date group into a single output. Header-invalid segments are
// excluded from the merge and reported separately.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	h.merge(w, r, false)
}

// MergeAll handles GET /merge-all: like Merge, but auto-groups the valid
// segments by screen ID and produces one output per screen.
func (h *Handler) MergeAll(w http.ResponseWriter, r *http.Request) {
	h.merge(w, r, true)
}

func (h *Handler) merge(w http.ResponseWriter, r *http.Request, perScreen bool) {
	q := r.URL.Query()
	agent := q.Get("agent")
	date := q.Get("date")
	pattern := q.Get("pattern")
	deleteOriginals := boolParam(q.Get("delete"), false)
	cleanupInvalid := boolParam(q.Get("cleanupInvalid"), false)

	if agent == "" || date == "" {
		writeError(w, http.StatusBadRequest, "agent and date are required")
		return
	}
	if perScreen {
		// merge-all ignores pattern; the screen grouping is the filter.
		pattern = ""
	}

	unlock := h.locks.Lock(segment.SanitizeAgentName(agent), segment.SanitizeISODate(date))
	defer unlock()

	files, _, err := segment.List(h.cfg.BaseDir, agent, date, pattern)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(files) == 0 {
		metrics.MergeOperationsTotal.WithLabelValues("no_segments").Inc()
		writeError(w, http.StatusNotFound, "no segments found")
		return
	}

	valid, invalid := splitByHeaderValidity(files)
	if cleanupInvalid {
		for _, f := range invalid {
			if err := os.Remove(f.Path); err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Str("file", f.FileName).Msg("Failed to delete invalid segment")
			}
		}
	}

	resp := MergeResponse{
		Success:        true,
		Merged:         []MergeResult{},
		Invalid:        fileNames(invalid),
		InvalidDeleted: cleanupInvalid && len(invalid) > 0,
	}

	var groups map[string][]segment.File
	var order []string
	if perScreen {
		groups, order = segment.GroupByScreen(valid)
	} else if len(valid) > 0 {
		// Single-group merge: the pattern selected the group, the first
		// segment names it.
		groups = map[string][]segment.File{valid[0].ScreenID: valid}
		order = []string{valid[0].ScreenID}
	}

	for _, screenID := range order {
		group := groups[screenID]
		result, err := h.mergeGroup(r, agent, date, screenID, group)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).
				Str("agent", agent).
				Str("screen_id", screenID).
				Msg("Merge failed")
			metrics.MergeOperationsTotal.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Merged = append(resp.Merged, result)

		if deleteOriginals {
			// Only the source segments are removed, never the merged output.
			for _, f := range group {
				if err := os.Remove(f.Path); err != nil {
					logging.Ctx(r.Context()).Error().Err(err).Str("file", f.FileName).Msg("Failed to delete merged original")
					continue
				}
				resp.DeletedOriginals++
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// mergeGroup produces one output for a timestamp-ordered group of valid
// segments. One segment is a straight copy; more go through the remux
// utility's concat input.
func (h *Handler) mergeGroup(r *http.Request, agent, date, screenID string, group []segment.File) (MergeResult, error) {
	dir := filepath.Join(h.cfg.BaseDir, segment.SanitizeAgentName(agent), segment.SanitizeISODate(date))
	output := filepath.Join(dir, fmt.Sprintf("merged-%s-%s.webm", screenID, segment.SanitizeISODate(date)))

	result := MergeResult{
		ScreenID:     screenID,
		Output:       output,
		SegmentCount: len(group),
	}

	if len(group) == 1 {
		if err := copyFile(group[0].Path, output); err != nil {
			return result, err
		}
		result.Copied = true
		metrics.MergeOperationsTotal.WithLabelValues("copied").Inc()
		return result, nil
	}

	listFile := filepath.Join(dir, fmt.Sprintf(".concat-%s.txt", screenID))
	defer os.Remove(listFile) //nolint:errcheck // best effort cleanup

	paths := make([]string, 0, len(group))
	for _, f := range group {
		paths = append(paths, f.Path)
	}
	if err := remux.WriteConcatList(listFile, paths); err != nil {
		return result, err
	}

	if err := h.remux.Concat(r.Context(), listFile, output); err != nil {
		return result, err
	}

	metrics.MergeOperationsTotal.WithLabelValues("merged").Inc()
	logging.Ctx(r.Context()).Info().
		Str("output", output).
		Int("segments", len(group)).
		Msg("Merged segment group")
	return result, nil
}

func splitByHeaderValidity(files []segment.File) (valid, invalid []segment.File) {
	for _, f := range files {
		if segment.HasValidHeader(f.Path) {
			valid = append(valid, f)
		} else {
			invalid = append(invalid, f)
		}
	}
	return valid, invalid
}

func fileNames(files []segment.File) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.FileName)
	}
	return names
}

func boolParam(v string, def bool) bool {
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

// copyFile copies src to dst byte-for-byte via a temp sibling and rename.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck // read-only

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()    //nolint:errcheck // already failing
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp) //nolint:errcheck // best effort cleanup
		return fmt.Errorf("failed to move copy into place: %w", err)
	}
	return nil
}
