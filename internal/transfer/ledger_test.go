// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package transfer

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLedgerMissingFileIsEmpty(t *testing.T) {
	l, err := LoadLedger(filepath.Join(t.TempDir(), "uploaded.json"))
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}
	if l.Contains("anything.webm") {
		t.Error("empty ledger claims to contain an entry")
	}
	if names := l.Names(); len(names) != 0 {
		t.Errorf("Names = %v, want empty", names)
	}
}

func TestLedgerAddPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploaded.json")

	l, err := LoadLedger(path)
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}
	if err := l.Add("recording-screen1-1700000000000.webm"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add("recording-screen2-1700000000001.webm"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reloaded, err := LoadLedger(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	want := []string{
		"recording-screen1-1700000000000.webm",
		"recording-screen2-1700000000001.webm",
	}
	if got := reloaded.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
	if !reloaded.Contains(want[0]) {
		t.Error("reloaded ledger lost an entry")
	}
}

func TestLedgerAddIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploaded.json")
	l, err := LoadLedger(path)
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := l.Add("recording-screen1-1700000000000.webm"); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}
	if got := len(l.Names()); got != 1 {
		t.Errorf("entries = %d, want 1", got)
	}
}

func TestLedgerRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploaded.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadLedger(path); err == nil {
		t.Fatal("corrupt ledger loaded without error")
	}
}

func TestLedgerNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	l, err := LoadLedger(filepath.Join(dir, "uploaded.json"))
	if err != nil {
		t.Fatalf("LoadLedger: %v", err)
	}
	if err := l.Add("a.webm"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "uploaded.json" {
			t.Errorf("unexpected file in ledger dir: %s", e.Name())
		}
	}
}
