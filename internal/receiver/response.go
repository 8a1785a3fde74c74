// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package receiver implements the ingestion receiver: upload verification
// and storage, segment discovery, lossless merge, and corruption repair.
package receiver

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vantage-rec/vantage/internal/logging"
)

// IngestResponse is the POST / success body.
type IngestResponse struct {
	Success  bool   `json:"success"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Verified bool   `json:"verified"`
}

// ErrorResponse is the body for every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: reason})
}
