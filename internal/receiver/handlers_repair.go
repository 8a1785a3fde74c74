// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package receiver

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/metrics"
	"github.com/vantage-rec/vantage/internal/segment"
)

// RepairedSegment describes one successfully repaired segment copy.
type RepairedSegment struct {
	FileName string `json:"fileName"`
	Output   string `json:"output"`
	// Method is "remux" for a lossless ffmpeg repair or "trim" for the
	// header-offset fallback.
	Method string `json:"method"`
	// Offset is the byte position the real header was found at; only set
	// for the trim method.
	Offset int64 `json:"offset,omitempty"`
}

// RepairFailure describes one segment that could not be repaired. The
// original is left untouched.
type RepairFailure struct {
	FileName string `json:"fileName"`
	Error    string `json:"error"`
}

// RepairResponse is the GET /repair-all body.
type RepairResponse struct {
	Success  bool              `json:"success"`
	Repaired []RepairedSegment `json:"repaired"`
	Failed   []RepairFailure   `json:"failed"`
	Skipped  []string          `json:"skippedValid,omitempty"`
}

// RepairAll handles GET /repair-all: attempt a lossless remux repair of the
// header-invalid segments (or every segment when onlyInvalid=false), falling
// back to scanning for the container magic and trimming leading garbage.
// Repaired copies land in a repaired/ subfolder; originals are never
// modified.
func (h *Handler) RepairAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	agent := q.Get("agent")
	date := q.Get("date")
	pattern := q.Get("pattern")
	onlyInvalid := boolParam(q.Get("onlyInvalid"), true)

	if agent == "" || date == "" {
		writeError(w, http.StatusBadRequest, "agent and date are required")
		return
	}

	unlock := h.locks.Lock(segment.SanitizeAgentName(agent), segment.SanitizeISODate(date))
	defer unlock()

	files, _, err := segment.List(h.cfg.BaseDir, agent, date, pattern)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := RepairResponse{
		Success:  true,
		Repaired: []RepairedSegment{},
		Failed:   []RepairFailure{},
	}

	var repairedDir string
	for _, f := range files {
		if onlyInvalid && segment.HasValidHeader(f.Path) {
			resp.Skipped = append(resp.Skipped, f.FileName)
			continue
		}

		if repairedDir == "" {
			repairedDir = filepath.Join(filepath.Dir(f.Path), "repaired")
			if err := os.MkdirAll(repairedDir, 0o755); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}

		result, err := h.repairSegment(r, f, repairedDir)
		if err != nil {
			metrics.RepairOperationsTotal.WithLabelValues("unrepairable").Inc()
			resp.Failed = append(resp.Failed, RepairFailure{FileName: f.FileName, Error: err.Error()})
			continue
		}
		resp.Repaired = append(resp.Repaired, result)
	}

	writeJSON(w, http.StatusOK, resp)
}

// repairSegment tries the remux repair first and the header-offset trim
// second. The returned error means both paths failed and the segment stays
// reported-invalid, never silently dropped.
func (h *Handler) repairSegment(r *http.Request, f segment.File, repairedDir string) (RepairedSegment, error) {
	output := filepath.Join(repairedDir, f.FileName)
	result := RepairedSegment{FileName: f.FileName, Output: output}

	remuxErr := h.remux.Repair(r.Context(), f.Path, output)
	if remuxErr == nil {
		result.Method = "remux"
		metrics.RepairOperationsTotal.WithLabelValues("remuxed").Inc()
		logging.Ctx(r.Context()).Info().Str("file", f.FileName).Msg("Repaired segment via remux")
		return result, nil
	}
	// A failed ffmpeg run may leave a partial output behind.
	os.Remove(output) //nolint:errcheck // best effort cleanup

	logging.Ctx(r.Context()).Warn().Err(remuxErr).
		Str("file", f.FileName).
		Msg("Remux repair failed, scanning for container header")

	offset, found, err := segment.ScanForMagic(f.Path)
	if err != nil {
		return result, err
	}
	if !found || offset == 0 {
		// Offset zero means the header is already where it should be; the
		// corruption is elsewhere and trimming cannot help.
		return result, remuxErr
	}

	if err := segment.WriteTrimmedCopy(f.Path, output, offset); err != nil {
		return result, err
	}

	result.Method = "trim"
	result.Offset = offset
	metrics.RepairOperationsTotal.WithLabelValues("trimmed").Inc()
	logging.Ctx(r.Context()).Info().
		Str("file", f.FileName).
		Int64("offset", offset).
		Msg("Repaired segment by trimming leading garbage")
	return result, nil
}
