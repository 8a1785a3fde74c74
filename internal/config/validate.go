// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks per-field rules (via validator struct tags) plus the
// cross-field constraints the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Agent.StopFlushTimeout <= 0 {
		return fmt.Errorf("agent.stop_flush_timeout must be positive, got %s", c.Agent.StopFlushTimeout)
	}
	if c.Receiver.ShutdownTimeout <= 0 {
		return fmt.Errorf("receiver.shutdown_timeout must be positive, got %s", c.Receiver.ShutdownTimeout)
	}
	if c.Receiver.RateLimitWindow <= 0 {
		return fmt.Errorf("receiver.rate_limit_window must be positive, got %s", c.Receiver.RateLimitWindow)
	}
	if c.Receiver.FFmpegPath == "" {
		return fmt.Errorf("receiver.ffmpeg_path must not be empty")
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the slice directly
	if ok {
		*target = verrs
	}
	return ok
}
