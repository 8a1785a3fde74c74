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

	"github.com/vantage-rec/vantage/internal/health"
	"github.com/vantage-rec/vantage/internal/logging"
)

// Manager runs one session per source and serializes the slot: a new
// session for a source does not start until the previous one has fully
// finalized, so two recordings of the same screen can never interleave
// their chunks or race on the transfer layer.
type Manager struct {
	device   Device
	transfer Transfer
	cfg      SessionConfig

	// restartDelay spaces automatic restarts after a fatal failure.
	restartDelay time.Duration

	mu       sync.Mutex
	slots    map[string]*Session
	labels   map[string]string
	stopping bool
}

// NewManager builds a manager over a device and transfer client.
func NewManager(device Device, transfer Transfer, cfg SessionConfig) *Manager {
	return &Manager{
		device:       device,
		transfer:     transfer,
		cfg:          cfg,
		restartDelay: 2 * time.Second,
		slots:        make(map[string]*Session),
		labels:       make(map[string]string),
	}
}

// StartAll enumerates the device's sources, derives their labels and
// starts a session per source. Sources that exhaust the fallback ladder
// are reported but do not block the others.
func (m *Manager) StartAll(ctx context.Context) error {
	sources, err := m.device.Sources(ctx)
	if err != nil {
		return fmt.Errorf("enumerating capture sources: %w", err)
	}
	if len(sources) == 0 {
		return errors.New("no capturable sources found")
	}

	m.mu.Lock()
	m.labels = DeriveLabels(sources)
	m.mu.Unlock()

	var failed []string
	for _, src := range sources {
		if err := m.Start(ctx, src); err != nil {
			failed = append(failed, src.ID)
			logging.Error().Str("source_id", src.ID).Err(err).Msg("session start failed")
		}
	}
	if len(failed) == len(sources) {
		return fmt.Errorf("all %d sources failed to start", len(sources))
	}
	return nil
}

// Start begins a session for one source. If the source's slot still
// holds a finalizing session, Start waits for it to drain first.
func (m *Manager) Start(ctx context.Context, source Source) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return errors.New("manager is shutting down")
	}
	prev := m.slots[source.ID]
	label := m.labels[source.ID]
	m.mu.Unlock()

	if label == "" {
		label = "screen1"
	}

	if prev != nil {
		select {
		case <-prev.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	sess := NewSession(source, label, m.cfg, m.transfer, m.handleFatal)

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return errors.New("manager is shutting down")
	}
	m.slots[source.ID] = sess
	m.mu.Unlock()

	return sess.Start(ctx, m.device)
}

// handleFatal restarts the slot after a fatal failure, unless shutdown
// has begun or the slot was already superseded. Callbacks from a
// torn-down session are discarded by the identity check.
func (m *Manager) handleFatal(s *Session, f health.Failure) {
	m.mu.Lock()
	current := m.slots[s.Source().ID]
	stopping := m.stopping
	m.mu.Unlock()

	if stopping || current == nil || current.ID != s.ID {
		logging.Debug().
			Str("session_id", s.ID).
			Str("reason", string(f.Reason)).
			Msg("ignoring fatal failure from stale session")
		return
	}

	go func() {
		<-s.Done()
		time.Sleep(m.restartDelay)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := m.Start(ctx, s.Source()); err != nil {
			logging.Error().
				Str("source_id", s.Source().ID).
				Err(err).
				Msg("session restart failed")
		}
	}()
}

// Sessions snapshots the current slot table.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, s)
	}
	return out
}

// StopAndFlushAll stops every active session in parallel and waits for
// all of them to finalize within the context deadline. It is the agent
// shutdown path; the manager accepts no new sessions afterwards.
func (m *Manager) StopAndFlushAll(ctx context.Context) error {
	m.mu.Lock()
	m.stopping = true
	sessions := make([]*Session, 0, len(m.slots))
	for _, s := range m.slots {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	errCh := make(chan error, len(sessions))
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.StopAndFlush(ctx); err != nil {
				errCh <- fmt.Errorf("session %s: %w", s.ID, err)
			}
		}(s)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
