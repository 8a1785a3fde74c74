// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vantage-rec/vantage/internal/health"
	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/metrics"
)

// State is the session lifecycle phase.
type State int32

const (
	StateProbing State = iota
	StateRecording
	StateStopping
	StateFinalizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateProbing:
		return "probing"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ErrNotRecording is returned by Stop when the session already left the
// recording state.
var ErrNotRecording = errors.New("session is not recording")

// SessionConfig carries the knobs a session needs beyond its source.
type SessionConfig struct {
	Requested     Profile
	ChunkInterval time.Duration
	Monitor       health.MonitorConfig
	// IsLast marks sessions that are part of an agent shutdown; the
	// flag is forwarded to the transfer layer in the recording meta.
	IsLast bool
}

// Session records one source from probe to finalize. A session runs at
// most once; restarts create a new session with a fresh instance ID so
// callbacks from a torn-down capture can never touch its successor.
type Session struct {
	ID       string
	source   Source
	label    string
	cfg      SessionConfig
	transfer Transfer

	// onFatal is invoked once when the health monitor latches a fatal
	// failure. The session stops itself first.
	onFatal func(*Session, health.Failure)

	mu         sync.Mutex
	state      State
	track      Track
	startedAt  time.Time
	chunkCount int
	failure    *health.Failure
	isLast     bool

	cancel context.CancelFunc
	done   chan struct{}
	// finalErr is set before done closes.
	finalErr error
}

// NewSession prepares a session for one source. It does not touch the
// device until Start.
func NewSession(source Source, label string, cfg SessionConfig, transfer Transfer, onFatal func(*Session, health.Failure)) *Session {
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	if cfg.Monitor.Tick <= 0 {
		cfg.Monitor = health.DefaultMonitorConfig()
	}
	return &Session{
		ID:       uuid.New().String(),
		source:   source,
		label:    SanitizeLabel(label),
		cfg:      cfg,
		transfer: transfer,
		onFatal:  onFatal,
		state:    StateProbing,
		done:     make(chan struct{}),
		isLast:   cfg.IsLast,
	}
}

// Source returns the session's capture source.
func (s *Session) Source() Source { return s.source }

// Label returns the file-naming label for this session.
func (s *Session) Label() string { return s.label }

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failure returns the fatal failure that stopped the session, if any.
func (s *Session) Failure() *health.Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Done is closed once finalize has completed, successfully or not.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the finalize error after Done is closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}

// Start walks the fallback ladder: open the track at each profile, probe
// it for a black screen, and keep the first rung that passes. On success
// the session transitions to recording and runs until Stop or a fatal
// failure. On failure every attempt's error is reported in a StartError.
func (s *Session) Start(ctx context.Context, device Device) error {
	var attempts []AttemptError

	for _, profile := range FallbackProfiles(s.cfg.Requested) {
		track, err := device.Open(ctx, s.source, profile, s.cfg.ChunkInterval)
		if err != nil {
			attempts = append(attempts, AttemptError{Profile: profile, Err: err})
			logging.Warn().
				Str("session_id", s.ID).
				Str("source_id", s.source.ID).
				Str("profile", profile.String()).
				Err(err).
				Msg("capture open failed, trying fallback")
			continue
		}

		if _, err := health.Probe(ctx, track); err != nil {
			track.Close()
			attempts = append(attempts, AttemptError{Profile: profile, Err: err})
			if ctx.Err() != nil {
				break
			}
			logging.Warn().
				Str("session_id", s.ID).
				Str("source_id", s.source.ID).
				Str("profile", profile.String()).
				Err(err).
				Msg("startup probe rejected track, trying fallback")
			continue
		}

		s.begin(track)
		return nil
	}

	s.mu.Lock()
	s.state = StateFailed
	s.finalErr = &StartError{Source: s.source, Attempts: attempts}
	s.mu.Unlock()
	close(s.done)
	metrics.CaptureFailuresTotal.WithLabelValues("start-exhausted").Inc()
	return s.finalErr
}

func (s *Session) begin(track Track) {
	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.track = track
	s.state = StateRecording
	s.startedAt = time.Now()
	s.cancel = cancel
	s.mu.Unlock()

	metrics.CaptureSessionsActive.Inc()
	logging.Info().
		Str("session_id", s.ID).
		Str("source_id", s.source.ID).
		Str("label", s.label).
		Str("profile", track.Profile().String()).
		Msg("recording started")

	monitor := health.NewMonitor(s.cfg.Monitor, track, func(f health.Failure) {
		s.fail(f)
	})
	go monitor.Run(runCtx)
	go s.run(track)
}

// run is the single chunk-consumer goroutine: every chunk is appended to
// the sink in emission order, and when the stream ends the recording is
// finalized.
func (s *Session) run(track Track) {
	defer metrics.CaptureSessionsActive.Dec()

	sink := s.transfer.OpenSink(s.source.ID, s.label)

	for chunk := range track.Chunks() {
		if err := sink.Append(chunk); err != nil {
			logging.Error().
				Str("session_id", s.ID).
				Err(err).
				Msg("chunk append failed")
			continue
		}
		s.mu.Lock()
		s.chunkCount++
		s.mu.Unlock()
	}

	// The monitor has nothing left to watch once chunk emission stops.
	// Finalize runs on a fresh context so a stopped run context cannot
	// abort the hand-off; the transfer layer applies its own timeouts.
	s.cancel()
	s.finalize(context.Background(), sink)
}

func (s *Session) finalize(ctx context.Context, sink ChunkSink) {
	s.mu.Lock()
	s.state = StateFinalizing
	meta := RecordingMeta{
		SessionID:     s.ID,
		SourceID:      s.source.ID,
		Label:         s.label,
		Profile:       s.track.Profile(),
		StartedAt:     s.startedAt,
		DurationMs:    time.Since(s.startedAt).Milliseconds(),
		ChunkCount:    s.chunkCount,
		IsLastSession: s.isLast,
	}
	failed := s.failure != nil
	s.mu.Unlock()

	err := s.transfer.Finalize(ctx, sink, meta)

	s.mu.Lock()
	s.finalErr = err
	if failed {
		s.state = StateFailed
	} else if err != nil {
		s.state = StateFailed
	} else {
		s.state = StateDone
	}
	s.mu.Unlock()
	close(s.done)

	if err != nil {
		logging.Error().Str("session_id", s.ID).Err(err).Msg("finalize failed")
		return
	}
	logging.Info().
		Str("session_id", s.ID).
		Str("label", s.label).
		Int("chunks", meta.ChunkCount).
		Int64("duration_ms", meta.DurationMs).
		Msg("recording finalized")
}

// fail records a fatal health failure, stops the capture so the partial
// recording still flushes, and notifies the owner.
func (s *Session) fail(f health.Failure) {
	s.mu.Lock()
	if s.failure != nil || s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	s.failure = &f
	s.mu.Unlock()

	metrics.CaptureFailuresTotal.WithLabelValues(string(f.Reason)).Inc()

	if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRecording) {
		logging.Error().Str("session_id", s.ID).Err(err).Msg("stop after fatal failure")
	}
	if s.onFatal != nil {
		s.onFatal(s, f)
	}
}

// Stop ends the capture. The chunk stream drains and the recording
// finalizes asynchronously; wait on Done for completion.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateRecording {
		s.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotRecording, s.state)
	}
	s.state = StateStopping
	track := s.track
	s.mu.Unlock()

	return track.Close()
}

// StopAndFlush marks the session as the agent's last, stops it and waits
// for finalize to complete or the context to expire.
func (s *Session) StopAndFlush(ctx context.Context) error {
	s.mu.Lock()
	s.isLast = true
	s.mu.Unlock()

	if err := s.Stop(); err != nil && !errors.Is(err, ErrNotRecording) {
		return err
	}

	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		s.mu.Lock()
		cancel := s.cancel
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return fmt.Errorf("flush timed out: %w", ctx.Err())
	}
}
