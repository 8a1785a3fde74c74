// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package remux wraps the external ffmpeg binary for the three container
// operations the receiver needs: regenerating presentation timestamps,
// lossless concatenation, and best-effort repair. Streams are always copied,
// never re-encoded.
//
// Every invocation runs under a bounded timeout; a hung subprocess is killed
// when the deadline passes instead of pinning a request goroutine forever.
package remux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/metrics"
)

// ErrTimeout reports that the subprocess hit the configured deadline.
var ErrTimeout = errors.New("remux: subprocess timed out")

// stderrTailLimit bounds how much ffmpeg stderr is kept for error messages.
const stderrTailLimit = 2048

// Runner executes ffmpeg subprocesses with a bounded timeout.
type Runner struct {
	binary  string
	timeout time.Duration
}

// NewRunner creates a Runner for the given ffmpeg binary. A bare name is
// resolved via PATH at invocation time.
func NewRunner(binary string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{binary: binary, timeout: timeout}
}

// Binary returns the configured ffmpeg binary, for the health endpoint.
func (r *Runner) Binary() string {
	return r.binary
}

// Available reports whether the binary can be resolved.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// FixTimestamps regenerates the container's presentation timestamps in
// place so duration metadata is correct after an interrupted recording.
// The rewrite goes through a temp sibling and a rename; the original is
// never truncated in place.
func (r *Runner) FixTimestamps(ctx context.Context, path string) error {
	tmp := path + ".fixing.webm"
	defer os.Remove(tmp) //nolint:errcheck // gone already on the success path

	err := r.run(ctx, "fix_timestamps",
		"-y",
		"-fflags", "+genpts",
		"-i", path,
		"-c", "copy",
		tmp,
	)
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to swap repaired file into place: %w", err)
	}
	return nil
}

// Concat losslessly joins the segments named in listFile (concat demuxer
// syntax) into output, regenerating timestamps across the seam.
func (r *Runner) Concat(ctx context.Context, listFile, output string) error {
	return r.run(ctx, "concat",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-fflags", "+genpts",
		"-i", listFile,
		"-c", "copy",
		output,
	)
}

// Repair attempts a lossless remux of a damaged segment into dst, ignoring
// decoder errors where the container allows it.
func (r *Runner) Repair(ctx context.Context, src, dst string) error {
	return r.run(ctx, "repair",
		"-y",
		"-err_detect", "ignore_err",
		"-fflags", "+genpts",
		"-i", src,
		"-c", "copy",
		dst,
	)
}

func (r *Runner) run(ctx context.Context, operation string, args ...string) error {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, r.binary, args...)
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		metrics.ObserveRemux(operation, "timeout", elapsed)
		logging.Error().
			Str("operation", operation).
			Dur("timeout", r.timeout).
			Msg("Remux subprocess killed after timeout")
		return fmt.Errorf("%w: %s after %s", ErrTimeout, operation, r.timeout)
	case err != nil:
		metrics.ObserveRemux(operation, "error", elapsed)
		return fmt.Errorf("ffmpeg %s failed: %w: %s", operation, err, stderrTail(stderr.Bytes()))
	}

	metrics.ObserveRemux(operation, "ok", elapsed)
	logging.Debug().
		Str("operation", operation).
		Dur("elapsed", elapsed).
		Msg("Remux subprocess completed")
	return nil
}

func stderrTail(b []byte) string {
	if len(b) > stderrTailLimit {
		b = b[len(b)-stderrTailLimit:]
	}
	return strings.TrimSpace(string(b))
}

// WriteConcatList writes an ffmpeg concat-demuxer list file naming the
// given segment paths in order. Single quotes inside paths are escaped per
// the demuxer's quoting rules.
func WriteConcatList(path string, segments []string) error {
	var b strings.Builder
	for _, s := range segments {
		escaped := strings.ReplaceAll(s, `'`, `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list %s: %w", path, err)
	}
	return nil
}
