// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package segment

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Path-hostile characters stripped from every path component an upload can
// influence. Directory traversal is additionally blocked by stripping the
// separators themselves.
const hostileChars = `\/:*?"<>|`

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	isoDateShape  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// sanitizeComponent strips hostile characters, collapses whitespace runs to
// a single dash, and removes leading/trailing dots. Returns "" when nothing
// safe remains.
func sanitizeComponent(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(hostileChars, r) {
			continue
		}
		b.WriteRune(r)
	}
	out := whitespaceRun.ReplaceAllString(b.String(), "-")
	out = strings.Trim(out, ".")
	return out
}

// SanitizeAgentName returns a filesystem-safe agent directory name.
// "Jane Doe" becomes "Jane-Doe"; an empty result falls back to "agent".
func SanitizeAgentName(agent string) string {
	if out := sanitizeComponent(agent); out != "" {
		return out
	}
	return "agent"
}

// SanitizeISODate normalizes a date header to YYYY-MM-DD. Invalid or
// missing values default to today (UTC): a mis-dated upload is still
// ingested rather than rejected.
func SanitizeISODate(date string) string {
	date = strings.TrimSpace(date)
	if isoDateShape.MatchString(date) {
		if _, err := time.Parse("2006-01-02", date); err == nil {
			return date
		}
	}
	return time.Now().UTC().Format("2006-01-02")
}

// SanitizeFileName returns a safe segment filename, falling back to a
// timestamped default when nothing safe remains.
func SanitizeFileName(name string) string {
	if out := sanitizeComponent(name); out != "" {
		return out
	}
	return fmt.Sprintf("recording-%d.webm", time.Now().UnixMilli())
}
