// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

// Package fakedev is a synthetic capture device for development and
// integration testing. It emits chunks shaped like real recordings (the
// first chunk begins with the EBML magic) and animates a noise frame so
// the health monitor sees a live image.
package fakedev

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vantage-rec/vantage/internal/capture"
	"github.com/vantage-rec/vantage/internal/health"
	"github.com/vantage-rec/vantage/internal/segment"
)

// Options shape the synthetic device's behavior.
type Options struct {
	// SourceCount is the number of fake screens to enumerate.
	SourceCount int
	// Black makes every frame black, which trips the startup probe.
	Black bool
	// ChunkSize is the payload size of each emitted chunk.
	ChunkSize int
}

// Device is a synthetic capture.Device.
type Device struct {
	opts Options
}

// New builds a fake device.
func New(opts Options) *Device {
	if opts.SourceCount <= 0 {
		opts.SourceCount = 1
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 16 * 1024
	}
	return &Device{opts: opts}
}

// Sources enumerates the configured number of fake screens, named the
// way desktop platforms name them so label derivation has something to
// parse.
func (d *Device) Sources(ctx context.Context) ([]capture.Source, error) {
	sources := make([]capture.Source, 0, d.opts.SourceCount)
	for i := 1; i <= d.opts.SourceCount; i++ {
		sources = append(sources, capture.Source{
			ID:   fmt.Sprintf("fake:%d", i),
			Name: fmt.Sprintf("Screen %d", i),
		})
	}
	return sources, nil
}

// Open starts a synthetic track at the requested profile. The fake
// device accepts any profile as-is.
func (d *Device) Open(ctx context.Context, source capture.Source, profile capture.Profile, chunkInterval time.Duration) (capture.Track, error) {
	if chunkInterval <= 0 {
		return nil, errors.New("chunk interval must be positive")
	}

	fps := profile.FPS
	if fps <= 0 {
		fps = 30
	}

	t := &track{
		profile:   profile,
		black:     d.opts.Black,
		chunkSize: d.opts.ChunkSize,
		// Frame updates are paced at the profile's frame rate instead
		// of spinning.
		frames:  rate.NewLimiter(rate.Limit(fps), 1),
		chunks:  make(chan []byte, 4),
		ended:   make(chan struct{}),
		closed:  make(chan struct{}),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		lastFrm: time.Now(),
	}
	go t.emit(chunkInterval)
	go t.animate()
	return t, nil
}

type track struct {
	profile   capture.Profile
	black     bool
	chunkSize int
	frames    *rate.Limiter

	chunks chan []byte
	ended  chan struct{}
	closed chan struct{}

	mu      sync.Mutex
	seed    int64
	lastFrm time.Time
	stopped bool
	rng     *rand.Rand
}

// emit pushes one chunk per interval. The first chunk starts with the
// EBML magic so downstream header validation passes.
func (t *track) emit(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(t.chunks)

	first := true
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			chunk := make([]byte, t.chunkSize)
			t.mu.Lock()
			t.rng.Read(chunk)
			t.mu.Unlock()
			if first {
				copy(chunk, segment.EBMLMagic)
				first = false
			}
			select {
			case t.chunks <- chunk:
			case <-t.closed:
				return
			}
		}
	}
}

// animate advances the noise seed at the frame rate so consecutive
// samples fingerprint differently.
func (t *track) animate() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-t.closed
		cancel()
	}()

	for {
		if err := t.frames.Wait(ctx); err != nil {
			return
		}
		t.mu.Lock()
		t.seed++
		t.lastFrm = time.Now()
		t.mu.Unlock()
	}
}

func (t *track) SampleFrame(maxWidth, maxHeight int) (health.Frame, error) {
	w, h := maxWidth, maxHeight
	if w <= 0 || h <= 0 {
		return health.Frame{}, errors.New("invalid sample bounds")
	}

	f := health.Frame{Width: w, Height: h, Pix: make([]byte, w*h*4)}
	if t.black {
		return f, nil
	}

	t.mu.Lock()
	seed := t.seed
	t.mu.Unlock()

	rng := rand.New(rand.NewSource(seed))
	rng.Read(f.Pix)
	return f, nil
}

func (t *track) Muted() bool { return false }

func (t *track) LastFrameAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastFrm
}

func (t *track) Ended() <-chan struct{} { return t.ended }

func (t *track) Profile() capture.Profile { return t.profile }

func (t *track) Chunks() <-chan []byte { return t.chunks }

func (t *track) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	t.stopped = true
	close(t.closed)
	return nil
}
