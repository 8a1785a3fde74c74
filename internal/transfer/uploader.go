// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/vantage-rec/vantage/internal/logging"
	"github.com/vantage-rec/vantage/internal/metrics"
	"github.com/vantage-rec/vantage/internal/receiver"
)

// ErrCircuitOpen wraps gobreaker's open-state rejections so callers can
// distinguish a tripped breaker from a transport failure.
var ErrCircuitOpen = errors.New("upload circuit open")

// Upload describes one delivery to the receiver.
type Upload struct {
	FileName string
	ISODate  string
	Hash     string
	Size     int64
	Body     io.Reader
}

// Uploader delivers recordings over HTTP. A circuit breaker sheds load
// while the receiver is down, and a rate limiter paces deliveries so a
// backlog drain does not saturate the link.
type Uploader struct {
	url     string
	agent   string
	token   string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	limiter *rate.Limiter
}

// NewUploader builds an uploader for one receiver endpoint.
func NewUploader(url, agentName, token string, timeout time.Duration) *Uploader {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	settings := gobreaker.Settings{
		Name:        "recording-upload",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("upload circuit state changed")
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	}

	return &Uploader{
		url:     url,
		agent:   agentName,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
}

// Do delivers one upload through the breaker. The receiver's response is
// decoded far enough to surface its error string on failure.
func (u *Uploader) Do(ctx context.Context, up Upload) error {
	if err := u.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := u.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, u.post(ctx, up)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

func (u *Uploader) post(ctx context.Context, up Upload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.url, up.Body)
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}

	req.Header.Set("Content-Type", "video/webm")
	req.Header.Set(receiver.HeaderAgentName, u.agent)
	req.Header.Set(receiver.HeaderFileName, up.FileName)
	req.Header.Set(receiver.HeaderISODate, up.ISODate)
	req.Header.Set(receiver.HeaderFileSize, strconv.FormatInt(up.Size, 10))
	req.Header.Set(receiver.HeaderFileHash, up.Hash)
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}
	req.ContentLength = up.Size

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er receiver.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		return fmt.Errorf("receiver rejected upload: %s (status %d)", er.Error, resp.StatusCode)
	}
	return fmt.Errorf("receiver rejected upload: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}
