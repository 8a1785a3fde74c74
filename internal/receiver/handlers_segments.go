// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package receiver

import (
	"net/http"
	"time"

	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/segment"
)

// SegmentsResponse is the GET /segments body.
type SegmentsResponse struct {
	Success  bool           `json:"success"`
	Agent    string         `json:"agent"`
	Date     string         `json:"date"`
	Count    int            `json:"count"`
	Segments []segment.File `json:"segments"`
	Skipped  []string       `json:"skippedDuplicates,omitempty"`
}

// Segments handles GET /segments: enumerate one agent/date directory,
// deduplicate by (screenID, timestampMs), and return the survivors
// timestamp-ascending.
func (h *Handler) Segments(w http.ResponseWriter, r *http.Request) {
	agent := r.URL.Query().Get("agent")
	date := r.URL.Query().Get("date")
	pattern := r.URL.Query().Get("pattern")

	if agent == "" || date == "" {
		writeError(w, http.StatusBadRequest, "agent and date are required")
		return
	}

	files, skipped, err := segment.List(h.cfg.BaseDir, agent, date, pattern)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).
			Str("agent", agent).
			Str("date", date).
			Msg("Segment listing failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if files == nil {
		files = []segment.File{}
	}
	writeJSON(w, http.StatusOK, SegmentsResponse{
		Success:  true,
		Agent:    agent,
		Date:     segment.SanitizeISODate(date),
		Count:    len(files),
		Segments: files,
		Skipped:  skipped,
	})
}

// HealthResponse is the GET /health body.
type HealthResponse struct {
	Status          string  `json:"status"`
	FFmpeg          string  `json:"ffmpeg"`
	FFmpegAvailable bool    `json:"ffmpegAvailable"`
	UptimeSeconds   float64 `json:"uptimeSeconds"`
}

// Health handles GET /health: a liveness probe reporting which remux
// utility binary is in use.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	available := h.remux.Available()
	status := "ok"
	if !available {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          status,
		FFmpeg:          h.remux.Binary(),
		FFmpegAvailable: available,
		UptimeSeconds:   time.Since(h.startTime).Seconds(),
	})
}
