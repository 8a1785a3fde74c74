// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package health

import (
	"context"
	"time"

	"github.com/vantage-rec/vantage/internal/logging"
)

// Reason identifies a fatal runtime failure class.
type Reason string

const (
	ReasonBlackScreen          Reason = "black-screen-detected"
	ReasonMutedTooLong         Reason = "input-track-muted-too-long"
	ReasonRuntimeBlackFrames   Reason = "runtime-black-frames"
	ReasonFrozenImage          Reason = "runtime-stale-frame-detected"
	ReasonDrawFailed           Reason = "runtime-draw-failed"
	ReasonFrameCallbackStalled Reason = "runtime-frame-callback-timeout"
	ReasonTrackEnded           Reason = "input-track-ended"
)

// Failure is a fatal runtime condition detected by the monitor.
type Failure struct {
	Reason       Reason
	BlackStreak  int
	FrozenChecks int
	DrawFailures int
	MutedFor     time.Duration
	FrameStale   time.Duration
}

// Runtime monitor thresholds. One tick per second; heavy frame checks run
// every other tick. A failure fires on the exact tick its threshold is
// reached.
const (
	MonitorTick          = time.Second
	MutedTooLong         = 8 * time.Second
	BlackFrameStreak     = 10
	FrozenCheckStreak    = 90
	DrawFailureStreak    = 12
	FrameCallbackTimeout = 20 * time.Second
)

// MonitorConfig overrides the default thresholds, mainly for tests.
type MonitorConfig struct {
	Tick                 time.Duration
	MutedTooLong         time.Duration
	BlackFrameStreak     int
	FrozenCheckStreak    int
	DrawFailureStreak    int
	FrameCallbackTimeout time.Duration
	ReportCooldown       time.Duration
}

// DefaultMonitorConfig returns the production thresholds.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Tick:                 MonitorTick,
		MutedTooLong:         MutedTooLong,
		BlackFrameStreak:     BlackFrameStreak,
		FrozenCheckStreak:    FrozenCheckStreak,
		DrawFailureStreak:    DrawFailureStreak,
		FrameCallbackTimeout: FrameCallbackTimeout,
		ReportCooldown:       ReportCooldown,
	}
}

// Track is the union of signals the monitor observes on a live capture.
type Track interface {
	Sampler
	TrackInfo
}

// Monitor watches one live track and reports at most one fatal failure
// per cooldown window through the onFatal callback.
type Monitor struct {
	cfg     MonitorConfig
	track   Track
	onFatal func(Failure)
	latch   *reportLatch

	ticks        int
	mutedSince   time.Time
	blackStreak  int
	drawFailures int
	frozenChecks int
	hasPrevPrint bool
	prevPrint    [32]byte
}

// NewMonitor builds a runtime monitor for one track. onFatal is invoked
// from the monitor goroutine; it must not block indefinitely.
func NewMonitor(cfg MonitorConfig, track Track, onFatal func(Failure)) *Monitor {
	if cfg.Tick <= 0 {
		cfg = DefaultMonitorConfig()
	}
	return &Monitor{
		cfg:     cfg,
		track:   track,
		onFatal: onFatal,
		latch:   newReportLatch(cfg.ReportCooldown),
	}
}

// Run ticks the monitor until the context is cancelled or the track ends.
// Track end is itself reported as a fatal failure.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.track.Ended():
			m.report(Failure{Reason: ReasonTrackEnded}, time.Now())
			return
		case now := <-ticker.C:
			if f, fatal := m.Step(now); fatal {
				m.report(f, now)
			}
		}
	}
}

// Step runs one monitor tick at the given time and reports whether a
// fatal condition was detected. Exported for deterministic tests; Run is
// the production driver.
func (m *Monitor) Step(now time.Time) (Failure, bool) {
	m.ticks++

	// Muted watchdog runs on every tick.
	if m.track.Muted() {
		if m.mutedSince.IsZero() {
			m.mutedSince = now
		} else if d := now.Sub(m.mutedSince); d > m.cfg.MutedTooLong {
			return Failure{Reason: ReasonMutedTooLong, MutedFor: d}, true
		}
	} else {
		m.mutedSince = time.Time{}
	}

	// Frame-callback staleness runs on every tick, but only when the
	// platform reports per-frame delivery at all.
	if last := m.track.LastFrameAt(); !last.IsZero() {
		if d := now.Sub(last); d > m.cfg.FrameCallbackTimeout {
			return Failure{Reason: ReasonFrameCallbackStalled, FrameStale: d}, true
		}
	}

	// Heavy frame analysis runs every other tick.
	if m.ticks%2 != 0 {
		return Failure{}, false
	}
	return m.heavyCheck()
}

func (m *Monitor) heavyCheck() (Failure, bool) {
	frame, err := m.track.SampleFrame(SampleMaxWidth, SampleMaxHeight)
	if err != nil {
		m.drawFailures++
		if m.drawFailures >= m.cfg.DrawFailureStreak {
			return Failure{Reason: ReasonDrawFailed, DrawFailures: m.drawFailures}, true
		}
		return Failure{}, false
	}
	m.drawFailures = 0

	if IsBlack(frame) {
		m.blackStreak++
		if m.blackStreak >= m.cfg.BlackFrameStreak {
			return Failure{Reason: ReasonRuntimeBlackFrames, BlackStreak: m.blackStreak}, true
		}
	} else {
		m.blackStreak = 0
	}

	fp := Fingerprint(frame)
	if m.hasPrevPrint && fp == m.prevPrint {
		m.frozenChecks++
		if m.frozenChecks >= m.cfg.FrozenCheckStreak {
			return Failure{Reason: ReasonFrozenImage, FrozenChecks: m.frozenChecks}, true
		}
	} else {
		m.frozenChecks = 0
	}
	m.prevPrint = fp
	m.hasPrevPrint = true

	return Failure{}, false
}

func (m *Monitor) report(f Failure, now time.Time) {
	if !m.latch.TryReport(now) {
		logging.Debug().Str("reason", string(f.Reason)).Msg("fatal failure suppressed by report latch")
		return
	}
	logging.Warn().
		Str("reason", string(f.Reason)).
		Int("black_streak", f.BlackStreak).
		Int("frozen_checks", f.FrozenChecks).
		Int("draw_failures", f.DrawFailures).
		Dur("muted_for", f.MutedFor).
		Msg("fatal capture failure detected")
	if m.onFatal != nil {
		m.onFatal(f)
	}
	m.latch.Delivered(time.Now())
}
