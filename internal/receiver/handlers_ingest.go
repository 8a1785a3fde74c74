// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package receiver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/metrics"
	"github.com/vantage-rec/vantage/internal/segment"
)

// Ingest header names, shared with the transfer client.
const (
	HeaderAgentName    = "X-Agent-Name"
	HeaderFileName     = "X-File-Name"
	HeaderISODate      = "X-Iso-Date"
	HeaderFileSize     = "X-File-Size"
	HeaderFileHash     = "X-File-Hash"
	HeaderFFmpegRepair = "X-Ffmpeg-Repair"
)

// Ingest handles POST /: verify the upload against its declared size and
// hash, store it under <base>/<agent>/<date>/<file>, and queue an async
// timestamp repair. The response returns before the repair runs.
//
// A retried upload of the same name replaces the previous attempt
// (overwrite semantics); deduplication happens at listing time by
// (screenID, timestampMs).
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.IngestDuration.Observe(time.Since(start).Seconds()) }()

	agent := segment.SanitizeAgentName(r.Header.Get(HeaderAgentName))
	isoDate := segment.SanitizeISODate(r.Header.Get(HeaderISODate))
	fileName := segment.SanitizeFileName(r.Header.Get(HeaderFileName))
	repairWanted := !strings.EqualFold(r.Header.Get(HeaderFFmpegRepair), "false")

	dir := filepath.Join(h.cfg.BaseDir, agent, isoDate)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("dir", dir).Msg("Failed to create storage directory")
		metrics.IngestRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "storage-unavailable")
		return
	}

	finalPath := filepath.Join(dir, fileName)

	// Spool the body into a temp sibling while hashing. The final path only
	// ever appears after verification, so a mismatch is never partially
	// persisted.
	tmp, err := os.CreateTemp(dir, "."+fileName+".ingest-*")
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to create ingest temp file")
		metrics.IngestRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "storage-unavailable")
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // gone already on the success path

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r.Body)
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		if err == nil {
			err = closeErr
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to spool upload body")
		metrics.IngestRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "upload-read-failed")
		return
	}

	if reason := verifyUpload(r, written, hasher.Sum(nil)); reason != "" {
		logging.Ctx(r.Context()).Warn().
			Str("agent", agent).
			Str("file", fileName).
			Int64("received_bytes", written).
			Str("reason", reason).
			Msg("Rejected upload")
		metrics.IngestRequestsTotal.WithLabelValues(strings.ReplaceAll(reason, "-", "_")).Inc()
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", finalPath).Msg("Failed to move upload into place")
		metrics.IngestRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "storage-unavailable")
		return
	}

	if repairWanted {
		h.repairs.Enqueue(finalPath)
	}

	verified := r.Header.Get(HeaderFileHash) != ""
	logging.Ctx(r.Context()).Info().
		Str("agent", agent).
		Str("file", fileName).
		Int64("size", written).
		Bool("verified", verified).
		Bool("repair_queued", repairWanted).
		Msg("Upload stored")
	metrics.IngestRequestsTotal.WithLabelValues("stored").Inc()
	metrics.IngestBytesTotal.Add(float64(written))

	writeJSON(w, http.StatusOK, IngestResponse{
		Success:  true,
		Path:     finalPath,
		Size:     written,
		Verified: verified,
	})
}

// verifyUpload checks the received bytes against the declared size and
// SHA-256 hash. Returns the rejection reason, or "" when the upload passes.
// Both headers are optional; absent headers skip their check.
func verifyUpload(r *http.Request, written int64, sum []byte) string {
	if declared := r.Header.Get(HeaderFileSize); declared != "" {
		size, err := strconv.ParseInt(declared, 10, 64)
		if err != nil || size != written {
			return "size-mismatch"
		}
	}
	if declared := r.Header.Get(HeaderFileHash); declared != "" {
		if !strings.EqualFold(declared, hex.EncodeToString(sum)) {
			return "hash-mismatch"
		}
	}
	return ""
}

// HashBytes returns the hex SHA-256 digest used for the X-File-Hash header.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the hex SHA-256 digest of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
