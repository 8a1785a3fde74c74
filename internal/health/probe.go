// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Startup probe parameters: wait out the device warmup, then sample a
// fixed burst of frames and reject the track when most of them are black.
const (
	ProbeWarmup        = 350 * time.Millisecond
	ProbeSampleCount   = 10
	ProbeSampleSpacing = 120 * time.Millisecond
	probeBlackFraction = 0.8
)

// ErrBlackScreen is returned by the startup probe when the sampled frames
// are predominantly black, meaning the source produces no usable image at
// this profile.
var ErrBlackScreen = errors.New("black-screen-detected")

// ProbeResult carries the per-sample classification of one startup probe.
type ProbeResult struct {
	Samples int
	Black   int
	Errors  int
}

// BlackFraction is the share of successful samples that were black.
func (r ProbeResult) BlackFraction() float64 {
	if r.Samples == 0 {
		return 0
	}
	return float64(r.Black) / float64(r.Samples)
}

// Probe validates a freshly opened track before recording starts. It
// waits the warmup period, samples ProbeSampleCount frames spaced
// ProbeSampleSpacing apart, and returns ErrBlackScreen when at least 80%
// of the classified frames are black. Samples that fail to draw count as
// black; a track that cannot draw at all is as useless as one that draws
// darkness.
func Probe(ctx context.Context, sampler Sampler) (ProbeResult, error) {
	var res ProbeResult

	if err := sleepCtx(ctx, ProbeWarmup); err != nil {
		return res, err
	}

	for i := 0; i < ProbeSampleCount; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, ProbeSampleSpacing); err != nil {
				return res, err
			}
		}

		frame, err := sampler.SampleFrame(SampleMaxWidth, SampleMaxHeight)
		res.Samples++
		if err != nil {
			res.Errors++
			res.Black++
			continue
		}
		if IsBlack(frame) {
			res.Black++
		}
	}

	if res.BlackFraction() >= probeBlackFraction {
		return res, fmt.Errorf("%w: %d of %d probe frames black", ErrBlackScreen, res.Black, res.Samples)
	}
	return res, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
