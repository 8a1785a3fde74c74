// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package transfer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestDiskSinkFlushesPendingInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pending.webm")

	sink := newDiskSink(path)

	// Chunks arriving before the file is open are buffered.
	if err := sink.Append([]byte("first-")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sink.Append([]byte("second-")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := sink.Bytes(); got != int64(len("first-second-")) {
		t.Errorf("Bytes = %d, want %d", got, len("first-second-"))
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.markReady(f); err != nil {
		t.Fatalf("markReady: %v", err)
	}

	// Later chunks stream straight through.
	if err := sink.Append([]byte("third")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sink.closeFile(); err != nil {
		t.Fatalf("closeFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("first-second-third")) {
		t.Errorf("file content = %q, want ordered flush then stream", data)
	}
}

func TestDiskSinkCopiesPendingChunks(t *testing.T) {
	sink := newDiskSink(filepath.Join(t.TempDir(), "x.webm"))

	chunk := []byte("mutable")
	if err := sink.Append(chunk); err != nil {
		t.Fatal(err)
	}
	// The caller may reuse its buffer after Append returns.
	copy(chunk, "XXXXXXX")

	f, err := os.Create(sink.Path())
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.markReady(f); err != nil {
		t.Fatal(err)
	}
	if err := sink.closeFile(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(sink.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("mutable")) {
		t.Errorf("pending chunk aliased caller buffer: %q", data)
	}
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()

	if err := sink.Append([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append([]byte("def")); err != nil {
		t.Fatal(err)
	}

	if got := sink.Bytes(); got != 6 {
		t.Errorf("Bytes = %d, want 6", got)
	}
	if !bytes.Equal(sink.Data(), []byte("abcdef")) {
		t.Errorf("Data = %q", sink.Data())
	}

	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if got := sink.Bytes(); got != 0 {
		t.Errorf("Bytes after Close = %d, want 0", got)
	}
}
