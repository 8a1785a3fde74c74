// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package health

import (
	"sync"
	"time"
)

// ReportCooldown is the minimum interval between two fatal-failure
// reports from the same monitor.
const ReportCooldown = 4 * time.Second

type latchState int

const (
	latchIdle latchState = iota
	latchReported
	latchCoolingDown
)

// reportLatch serializes fatal-failure reporting: one report at a time,
// followed by a cooldown before the next one may fire. Repeated ticks
// that re-detect the same condition do not produce duplicate reports.
type reportLatch struct {
	mu       sync.Mutex
	state    latchState
	cooldown time.Duration
	until    time.Time
}

func newReportLatch(cooldown time.Duration) *reportLatch {
	if cooldown <= 0 {
		cooldown = ReportCooldown
	}
	return &reportLatch{cooldown: cooldown}
}

// TryReport acquires the latch. It succeeds from the idle state and from
// an expired cooldown; it fails while a report is in flight or the
// cooldown is still running.
func (l *reportLatch) TryReport(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case latchIdle:
		l.state = latchReported
		return true
	case latchReported:
		return false
	case latchCoolingDown:
		if now.Before(l.until) {
			return false
		}
		l.state = latchReported
		return true
	}
	return false
}

// Delivered marks the in-flight report as handed off and starts the
// cooldown window.
func (l *reportLatch) Delivered(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == latchReported {
		l.state = latchCoolingDown
		l.until = now.Add(l.cooldown)
	}
}
