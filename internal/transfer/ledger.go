// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
)

// Ledger records the file names already delivered to the receiver, so a
// retried finalize or an agent restart never uploads the same recording
// twice. It persists as a JSON array next to the spool.
type Ledger struct {
	mu      sync.Mutex
	path    string
	entries map[string]struct{}
}

// LoadLedger reads the ledger file, treating a missing file as an empty
// ledger. A corrupt ledger is an error; silently resetting it would
// allow duplicate deliveries.
func LoadLedger(path string) (*Ledger, error) {
	l := &Ledger{path: path, entries: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading upload ledger: %w", err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parsing upload ledger %s: %w", path, err)
	}
	for _, name := range names {
		l.entries[name] = struct{}{}
	}
	return l, nil
}

// Contains reports whether a file name was already delivered.
func (l *Ledger) Contains(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[name]
	return ok
}

// Add records a delivered file name and persists the ledger atomically.
func (l *Ledger) Add(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[name]; ok {
		return nil
	}
	l.entries[name] = struct{}{}
	if err := l.persist(); err != nil {
		delete(l.entries, name)
		return err
	}
	return nil
}

// Names returns the recorded file names, sorted.
func (l *Ledger) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// persist writes the ledger through a temp file plus rename so a crash
// mid-write never leaves a truncated ledger. Caller holds l.mu.
func (l *Ledger) persist() error {
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding upload ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("creating ledger temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing upload ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing upload ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing upload ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing upload ledger: %w", err)
	}
	return nil
}
