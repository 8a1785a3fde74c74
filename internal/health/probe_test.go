// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedSampler returns frames from a fixed script, repeating the last
// entry once exhausted.
type scriptedSampler struct {
	frames []Frame
	errs   []error
	i      int
}

func (s *scriptedSampler) SampleFrame(maxW, maxH int) (Frame, error) {
	i := s.i
	if i >= len(s.frames) {
		i = len(s.frames) - 1
	}
	s.i++
	if s.errs != nil && s.errs[i] != nil {
		return Frame{}, s.errs[i]
	}
	return s.frames[i], nil
}

func repeatFrames(f Frame, n int) []Frame {
	out := make([]Frame, n)
	for i := range out {
		out[i] = f
	}
	return out
}

func TestProbeRejectsBlackTrack(t *testing.T) {
	t.Parallel()

	s := &scriptedSampler{frames: repeatFrames(solidFrame(64, 36, 0, 0, 0), ProbeSampleCount)}

	res, err := Probe(context.Background(), s)
	if !errors.Is(err, ErrBlackScreen) {
		t.Fatalf("err = %v, want ErrBlackScreen", err)
	}
	if res.Samples != ProbeSampleCount || res.Black != ProbeSampleCount {
		t.Errorf("result = %+v, want all %d samples black", res, ProbeSampleCount)
	}
}

func TestProbeAcceptsLiveTrack(t *testing.T) {
	t.Parallel()

	s := &scriptedSampler{frames: repeatFrames(solidFrame(64, 36, 120, 120, 120), ProbeSampleCount)}

	if _, err := Probe(context.Background(), s); err != nil {
		t.Fatalf("Probe: %v", err)
	}
}

func TestProbeBlackFractionBoundary(t *testing.T) {
	t.Parallel()

	black := solidFrame(64, 36, 0, 0, 0)
	bright := solidFrame(64, 36, 120, 120, 120)

	// 8 of 10 black is exactly the 80% threshold and fails.
	frames := append(repeatFrames(black, 8), bright, bright)
	s := &scriptedSampler{frames: frames}
	if _, err := Probe(context.Background(), s); !errors.Is(err, ErrBlackScreen) {
		t.Errorf("8/10 black: err = %v, want ErrBlackScreen", err)
	}

	// 7 of 10 passes.
	frames = append(repeatFrames(black, 7), bright, bright, bright)
	s = &scriptedSampler{frames: frames}
	if _, err := Probe(context.Background(), s); err != nil {
		t.Errorf("7/10 black: err = %v, want nil", err)
	}
}

func TestProbeCountsDrawErrorsAsBlack(t *testing.T) {
	t.Parallel()

	bright := solidFrame(64, 36, 120, 120, 120)
	frames := repeatFrames(bright, ProbeSampleCount)
	errs := make([]error, ProbeSampleCount)
	for i := 0; i < 8; i++ {
		errs[i] = errors.New("draw failed")
	}

	s := &scriptedSampler{frames: frames, errs: errs}
	res, err := Probe(context.Background(), s)
	if !errors.Is(err, ErrBlackScreen) {
		t.Fatalf("err = %v, want ErrBlackScreen", err)
	}
	if res.Errors != 8 {
		t.Errorf("Errors = %d, want 8", res.Errors)
	}
}

func TestProbeHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := &scriptedSampler{frames: repeatFrames(solidFrame(64, 36, 120, 120, 120), 1)}
	start := time.Now()
	_, err := Probe(ctx, s)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("probe did not abort promptly on cancellation")
	}
}
