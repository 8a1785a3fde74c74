// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vantage-rec/vantage/internal/health"
)

// Source is one capturable screen as enumerated by the device.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Track is a live capture of one source at one negotiated profile. It
// emits container chunks on a fixed cadence and exposes the health
// signals the runtime monitor consumes.
type Track interface {
	// SampleFrame draws the current frame downsampled to at most the
	// given bounds.
	SampleFrame(maxWidth, maxHeight int) (health.Frame, error)
	// Muted reports whether the input track is muted.
	Muted() bool
	// LastFrameAt is the most recent frame delivery, zero when the
	// device does not report per-frame callbacks.
	LastFrameAt() time.Time
	// Ended is closed when the track ends outside our control.
	Ended() <-chan struct{}
	// Profile is the actually negotiated capture profile.
	Profile() Profile
	// Chunks is the chunk emission stream. It is closed after Close.
	Chunks() <-chan []byte
	// Close stops the capture and releases the device.
	Close() error
}

// Device opens capture tracks. Implementations wrap a platform capture
// API or a synthetic generator.
type Device interface {
	// Sources enumerates the capturable screens.
	Sources(ctx context.Context) ([]Source, error)
	// Open starts capturing one source at the given profile, emitting a
	// chunk every chunkInterval. The device may negotiate the profile
	// down; Track.Profile reports the result.
	Open(ctx context.Context, source Source, profile Profile, chunkInterval time.Duration) (Track, error)
}

// ErrProfileUnsupported is returned by devices that cannot satisfy a
// requested profile, signalling the session to try the next fallback.
var ErrProfileUnsupported = errors.New("capture profile unsupported")

// StartError aggregates the per-profile failures of an exhausted
// fallback ladder.
type StartError struct {
	Source   Source
	Attempts []AttemptError
}

// AttemptError is one failed open-or-probe attempt.
type AttemptError struct {
	Profile Profile
	Err     error
}

func (e *StartError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "capture start failed for source %q after %d attempts", e.Source.ID, len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; %s: %v", a.Profile, a.Err)
	}
	return b.String()
}

// Unwrap exposes the last attempt's error, which is the lowest rung of
// the ladder and usually the most telling.
func (e *StartError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}
