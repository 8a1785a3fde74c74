// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package receiver

import "sync"

// groupLocks serializes merge and repair operations per agent/date group.
// Concurrent calls against different groups proceed in parallel; calls
// against the same group queue behind each other so two merges never race
// on the same concat list or output file.
type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given group, creating it on first use,
// and returns the unlock function. Locks are never evicted; the group
// cardinality is bounded by agents x dates actually operated on.
func (g *groupLocks) Lock(agent, date string) func() {
	key := agent + "\x00" + date

	g.mu.Lock()
	lock, ok := g.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[key] = lock
	}
	g.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
