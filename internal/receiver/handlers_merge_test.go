// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package receiver

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/vantage-rec/vantage/internal/segment"
)

// seedSegment writes a segment file, valid or not, into the handler's
// store.
func seedSegment(t *testing.T, h *Handler, agent, date, name string, valid bool, payload []byte) string {
	t.Helper()
	dir := filepath.Join(h.cfg.BaseDir, agent, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	var data []byte
	if valid {
		data = append(append([]byte{}, segment.EBMLMagic...), payload...)
	} else {
		data = append([]byte{0, 0, 0, 0}, payload...)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func getRequest(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func TestSegmentsRequiresAgentAndDate(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.Segments(w, getRequest("/segments?agent=host1"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing date: status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	h.Segments(w, getRequest("/segments?date=2026-08-29"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing agent: status = %d, want 400", w.Code)
	}
}

func TestSegmentsListsDeduplicated(t *testing.T) {
	h, _ := newTestHandler(t)
	seedSegment(t, h, "host1", "2026-08-29", "a-screen1-1000000000000.webm", true, []byte("x"))
	seedSegment(t, h, "host1", "2026-08-29", "b-screen1-1000000000000.webm", true, []byte("x"))
	seedSegment(t, h, "host1", "2026-08-29", "c-screen1-2000000000000.webm", true, []byte("x"))

	w := httptest.NewRecorder()
	h.Segments(w, getRequest("/segments?agent=host1&date=2026-08-29"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeJSON[SegmentsResponse](t, w)
	if resp.Count != 2 || len(resp.Segments) != 2 {
		t.Fatalf("count = %d segments = %d, want 2", resp.Count, len(resp.Segments))
	}
	if resp.Segments[0].TimestampMs != 1000000000000 || resp.Segments[1].TimestampMs != 2000000000000 {
		t.Error("segments not timestamp-ascending")
	}
	if len(resp.Skipped) != 1 {
		t.Errorf("skipped = %v, want one duplicate", resp.Skipped)
	}
}

func TestSegmentsEmptyDirectory(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.Segments(w, getRequest("/segments?agent=nobody&date=2026-08-29"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeJSON[SegmentsResponse](t, w)
	if !resp.Success || resp.Count != 0 || resp.Segments == nil {
		t.Errorf("response = %+v, want empty success", resp)
	}
}

func TestMergeSingleSegmentIsByteCopy(t *testing.T) {
	h, remux := newTestHandler(t)
	src := seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-1000000000000.webm", true, []byte("only segment"))

	w := httptest.NewRecorder()
	h.Merge(w, getRequest("/merge?agent=host1&date=2026-08-29"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	resp := decodeJSON[MergeResponse](t, w)
	if len(resp.Merged) != 1 {
		t.Fatalf("merged = %+v, want one result", resp.Merged)
	}
	result := resp.Merged[0]
	if !result.Copied || result.SegmentCount != 1 {
		t.Errorf("result = %+v, want copied single segment", result)
	}

	// Byte-for-byte copy, no remux invocation.
	srcData, _ := os.ReadFile(src)
	outData, err := os.ReadFile(result.Output)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(srcData, outData) {
		t.Error("single-segment merge is not a byte copy")
	}
	if len(remux.concatCalls) != 0 {
		t.Error("single-segment merge invoked concat")
	}
}

func TestMergeConcatenatesGroupInOrder(t *testing.T) {
	h, remux := newTestHandler(t)
	seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-2000000000000.webm", true, []byte("b"))
	seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-1000000000000.webm", true, []byte("a"))

	w := httptest.NewRecorder()
	h.Merge(w, getRequest("/merge?agent=host1&date=2026-08-29"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	resp := decodeJSON[MergeResponse](t, w)
	if len(resp.Merged) != 1 || resp.Merged[0].SegmentCount != 2 || resp.Merged[0].Copied {
		t.Fatalf("merged = %+v", resp.Merged)
	}

	if len(remux.concatCalls) != 1 {
		t.Fatalf("concat calls = %d, want 1", len(remux.concatCalls))
	}
	// The concat list was already cleaned up, but the output exists.
	if _, err := os.Stat(resp.Merged[0].Output); err != nil {
		t.Errorf("merge output missing: %v", err)
	}
	if _, err := os.Stat(remux.concatCalls[0][0]); !os.IsNotExist(err) {
		t.Error("concat list file left behind")
	}
}

func TestMergeExcludesInvalidSegments(t *testing.T) {
	h, remux := newTestHandler(t)
	seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-1000000000000.webm", true, []byte("good"))
	invalid := seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-2000000000000.webm", false, []byte("bad"))

	w := httptest.NewRecorder()
	h.Merge(w, getRequest("/merge?agent=host1&date=2026-08-29"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeJSON[MergeResponse](t, w)
	if len(resp.Invalid) != 1 || resp.Invalid[0] != "recording-screen1-2000000000000.webm" {
		t.Errorf("invalid = %v", resp.Invalid)
	}
	// Only the valid segment merged, as a copy.
	if len(resp.Merged) != 1 || !resp.Merged[0].Copied {
		t.Errorf("merged = %+v", resp.Merged)
	}
	if len(remux.concatCalls) != 0 {
		t.Error("invalid segment reached concat")
	}
	// Without cleanupInvalid the invalid file survives.
	if _, err := os.Stat(invalid); err != nil {
		t.Error("invalid segment deleted without cleanupInvalid")
	}
}

func TestMergeCleanupInvalidDeletes(t *testing.T) {
	h, _ := newTestHandler(t)
	seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-1000000000000.webm", true, []byte("good"))
	invalid := seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-2000000000000.webm", false, []byte("bad"))

	w := httptest.NewRecorder()
	h.Merge(w, getRequest("/merge?agent=host1&date=2026-08-29&cleanupInvalid=true"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeJSON[MergeResponse](t, w)
	if !resp.InvalidDeleted {
		t.Error("InvalidDeleted not reported")
	}
	if _, err := os.Stat(invalid); !os.IsNotExist(err) {
		t.Error("invalid segment survived cleanupInvalid=true")
	}
}

func TestMergeDeleteOriginalsKeepsOutput(t *testing.T) {
	h, _ := newTestHandler(t)
	a := seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-1000000000000.webm", true, []byte("a"))
	b := seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-2000000000000.webm", true, []byte("b"))

	w := httptest.NewRecorder()
	h.Merge(w, getRequest("/merge?agent=host1&date=2026-08-29&delete=true"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeJSON[MergeResponse](t, w)
	if resp.DeletedOriginals != 2 {
		t.Errorf("DeletedOriginals = %d, want 2", resp.DeletedOriginals)
	}
	for _, p := range []string{a, b} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("original %s survived delete=true", p)
		}
	}
	if _, err := os.Stat(resp.Merged[0].Output); err != nil {
		t.Error("merge output was deleted with the originals")
	}
}

func TestMergeNoSegments(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.Merge(w, getRequest("/merge?agent=host1&date=2026-08-29"))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestMergeAllGroupsPerScreen(t *testing.T) {
	h, remux := newTestHandler(t)
	seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-1000000000000.webm", true, []byte("a"))
	seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-2000000000000.webm", true, []byte("b"))
	seedSegment(t, h, "host1", "2026-08-29", "recording-screen2-1500000000000.webm", true, []byte("c"))

	w := httptest.NewRecorder()
	h.MergeAll(w, getRequest("/merge-all?agent=host1&date=2026-08-29"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	resp := decodeJSON[MergeResponse](t, w)
	if len(resp.Merged) != 2 {
		t.Fatalf("merged = %+v, want one output per screen", resp.Merged)
	}
	// Deterministic group order: screen1 then screen2.
	if resp.Merged[0].ScreenID != "screen1" || resp.Merged[1].ScreenID != "screen2" {
		t.Errorf("group order = %s, %s", resp.Merged[0].ScreenID, resp.Merged[1].ScreenID)
	}
	if resp.Merged[0].SegmentCount != 2 || resp.Merged[0].Copied {
		t.Errorf("screen1 result = %+v", resp.Merged[0])
	}
	if resp.Merged[1].SegmentCount != 1 || !resp.Merged[1].Copied {
		t.Errorf("screen2 result = %+v", resp.Merged[1])
	}
	if len(remux.concatCalls) != 1 {
		t.Errorf("concat calls = %d, want 1 (screen1 only)", len(remux.concatCalls))
	}
}

func TestMergeOutputNaming(t *testing.T) {
	h, _ := newTestHandler(t)
	seedSegment(t, h, "host1", "2026-08-29", "recording-screen1-1000000000000.webm", true, []byte("a"))

	w := httptest.NewRecorder()
	h.Merge(w, getRequest("/merge?agent=host1&date=2026-08-29"))

	resp := decodeJSON[MergeResponse](t, w)
	if got := filepath.Base(resp.Merged[0].Output); got != "merged-screen1-2026-08-29.webm" {
		t.Errorf("output name = %q", got)
	}
}
