// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package capture runs screen-recording sessions: it opens capture tracks
// with quality fallback, slices them into periodic chunks, feeds the
// chunks to a sink, and hands finished recordings to the transfer layer.
package capture

import (
	"fmt"
	"regexp"
	"strings"
)

// Profile is a capture quality request: frame bounds plus a frame-rate
// ceiling. The device may negotiate lower values.
type Profile struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	FPS    int `json:"fps"`
}

func (p Profile) String() string {
	return fmt.Sprintf("%dx%d@%d", p.Width, p.Height, p.FPS)
}

// DefaultProfile is the capture quality used when the caller does not
// request one.
var DefaultProfile = Profile{Width: 1920, Height: 1080, FPS: 30}

// FallbackProfiles returns the open-attempt ladder for a requested
// profile: the request itself, then 720p capped at 24fps, then 480p at
// 15fps. Rungs equal to an earlier rung are dropped.
func FallbackProfiles(requested Profile) []Profile {
	if requested == (Profile{}) {
		requested = DefaultProfile
	}

	ladder := []Profile{requested}
	mid := Profile{Width: 1280, Height: 720, FPS: min(24, requested.FPS)}
	if mid.FPS <= 0 {
		mid.FPS = 24
	}
	low := Profile{Width: 854, Height: 480, FPS: 15}

	for _, p := range []Profile{mid, low} {
		dup := false
		for _, seen := range ladder {
			if p == seen {
				dup = true
				break
			}
		}
		if !dup {
			ladder = append(ladder, p)
		}
	}
	return ladder
}

// labelPattern extracts the ordinal from human-readable source names such
// as "Screen 1", "display 2" or "Monitor3".
var labelPattern = regexp.MustCompile(`(?i)(screen|display|monitor)\s*(\d+)`)

// DeriveLabels assigns each source a stable short label for file naming.
// Sources whose name carries a screen/display/monitor ordinal become
// "screenN"; the rest are numbered sequentially in enumeration order,
// skipping ordinals already taken.
func DeriveLabels(sources []Source) map[string]string {
	labels := make(map[string]string, len(sources))
	taken := make(map[string]bool, len(sources))

	for _, src := range sources {
		if m := labelPattern.FindStringSubmatch(src.Name); m != nil {
			label := "screen" + m[2]
			if !taken[label] {
				labels[src.ID] = label
				taken[label] = true
			}
		}
	}

	next := 1
	for _, src := range sources {
		if _, ok := labels[src.ID]; ok {
			continue
		}
		for taken[fmt.Sprintf("screen%d", next)] {
			next++
		}
		label := fmt.Sprintf("screen%d", next)
		labels[src.ID] = label
		taken[label] = true
	}
	return labels
}

// SanitizeLabel keeps labels safe for file names.
func SanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "screen"
	}
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
