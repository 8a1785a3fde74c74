// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package health watches live capture sessions for failure modes that do
// not stop chunk emission: black screens, frozen images, stalled pipelines,
// and muted input tracks. It gates session start via a black-frame probe
// and classifies runtime failures on a periodic tick.
package health

import "time"

// Analysis surface bounds. Frames are sampled at most at AnalysisMaxWidth x
// AnalysisMaxHeight and further downsampled to SampleMaxWidth x
// SampleMaxHeight before pixel inspection, keeping the sampling cost flat
// regardless of the capture resolution.
const (
	AnalysisMaxWidth  = 640
	AnalysisMaxHeight = 360
	SampleMaxWidth    = 64
	SampleMaxHeight   = 36
)

// Frame is a downsampled video frame in tightly packed RGBA order.
type Frame struct {
	Width  int
	Height int
	// Pix holds 4 bytes per pixel (R, G, B, A), row-major.
	Pix []byte
}

// Sampler draws the current frame of a live capture track, downsampled to
// at most the given bounds.
type Sampler interface {
	SampleFrame(maxWidth, maxHeight int) (Frame, error)
}

// TrackInfo exposes the track-level signals the runtime monitor watches
// independently of frame sampling.
type TrackInfo interface {
	// Muted reports whether the input track is currently muted.
	Muted() bool
	// LastFrameAt is the most recent per-frame delivery callback, or the
	// zero time when the platform does not provide one.
	LastFrameAt() time.Time
	// Ended is closed when the underlying track ends.
	Ended() <-chan struct{}
}

// blackLumaThreshold: a pixel counts as near-black unless any channel
// exceeds this value.
const blackLumaThreshold = 24

// blackPixelFraction: a frame is black when fewer than this fraction of
// pixels are non-near-black.
const blackPixelFraction = 0.01

// IsBlack classifies a frame as black: fewer than 1% of its pixels have
// any channel above the near-black threshold. Empty frames are black.
func IsBlack(f Frame) bool {
	total := f.Width * f.Height
	if total == 0 || len(f.Pix) < total*4 {
		return true
	}

	lit := 0
	for i := 0; i < total*4; i += 4 {
		if f.Pix[i] > blackLumaThreshold || f.Pix[i+1] > blackLumaThreshold || f.Pix[i+2] > blackLumaThreshold {
			lit++
		}
	}
	return float64(lit)/float64(total) < blackPixelFraction
}
