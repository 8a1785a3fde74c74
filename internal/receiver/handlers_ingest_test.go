// Vantage - Screen Recording Capture and Ingestion Pipeline
// Copyright 2026 Vantage Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/vantage-rec/vantage

package receiver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/vantage-rec/vantage/internal/config"
)

// fakeRemux scripts remux outcomes for handler tests.
type fakeRemux struct {
	mu          sync.Mutex
	available   bool
	fixCalls    []string
	concatCalls [][2]string
	concatErr   error
	repairErr   error
	// repairFn, when set, runs instead of returning repairErr.
	repairFn func(src, dst string) error
}

func (f *fakeRemux) Binary() string  { return "ffmpeg" }
func (f *fakeRemux) Available() bool { return f.available }

func (f *fakeRemux) FixTimestamps(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixCalls = append(f.fixCalls, path)
	return nil
}

func (f *fakeRemux) Concat(ctx context.Context, listFile, output string) error {
	f.mu.Lock()
	f.concatCalls = append(f.concatCalls, [2]string{listFile, output})
	err := f.concatErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(output, []byte("merged"), 0o644)
}

func (f *fakeRemux) Repair(ctx context.Context, src, dst string) error {
	f.mu.Lock()
	fn := f.repairFn
	err := f.repairErr
	f.mu.Unlock()
	if fn != nil {
		return fn(src, dst)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(dst, []byte("repaired"), 0o644)
}

func newTestHandler(t *testing.T) (*Handler, *fakeRemux) {
	t.Helper()
	remux := &fakeRemux{available: true}
	cfg := &config.ReceiverConfig{
		BaseDir:         t.TempDir(),
		RepairQueueSize: 8,
		RateLimitReqs:   100,
		RateLimitWindow: time.Minute,
	}
	return NewHandler(cfg, remux, NewRepairQueue(remux, cfg.RepairQueueSize)), remux
}

func ingestRequest(body []byte, headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestIngestStoresVerifiedUpload(t *testing.T) {
	h, _ := newTestHandler(t)

	body := []byte("webm payload")
	w := httptest.NewRecorder()
	h.Ingest(w, ingestRequest(body, map[string]string{
		HeaderAgentName: "host1",
		HeaderISODate:   "2026-08-29",
		HeaderFileName:  "recording-screen1-1700000000000.webm",
		HeaderFileSize:  strconv.Itoa(len(body)),
		HeaderFileHash:  HashBytes(body),
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	resp := decodeJSON[IngestResponse](t, w)
	if !resp.Success || !resp.Verified || resp.Size != int64(len(body)) {
		t.Errorf("response = %+v", resp)
	}

	want := filepath.Join(h.cfg.BaseDir, "host1", "2026-08-29", "recording-screen1-1700000000000.webm")
	if resp.Path != want {
		t.Errorf("path = %q, want %q", resp.Path, want)
	}
	stored, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("stored file: %v", err)
	}
	if !bytes.Equal(stored, body) {
		t.Error("stored bytes differ from upload")
	}
}

func TestIngestWithoutIntegrityHeadersIsUnverified(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.Ingest(w, ingestRequest([]byte("data"), map[string]string{
		HeaderAgentName: "host1",
		HeaderISODate:   "2026-08-29",
		HeaderFileName:  "recording-screen1-1700000000000.webm",
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeJSON[IngestResponse](t, w)
	if resp.Verified {
		t.Error("upload without hash header reported verified")
	}
}

func TestIngestHashMismatchRejectedAtomically(t *testing.T) {
	h, _ := newTestHandler(t)

	body := []byte("actual bytes")
	w := httptest.NewRecorder()
	h.Ingest(w, ingestRequest(body, map[string]string{
		HeaderAgentName: "host1",
		HeaderISODate:   "2026-08-29",
		HeaderFileName:  "recording-screen1-1700000000000.webm",
		HeaderFileHash:  HashBytes([]byte("declared other bytes")),
	}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeJSON[ErrorResponse](t, w)
	if resp.Success || resp.Error != "hash-mismatch" {
		t.Errorf("response = %+v", resp)
	}

	// Nothing persisted: no final file, no temp leftovers.
	dir := filepath.Join(h.cfg.BaseDir, "host1", "2026-08-29")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("rejected upload left files behind: %v", entries)
	}
}

func TestIngestSizeMismatchRejected(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.Ingest(w, ingestRequest([]byte("12345"), map[string]string{
		HeaderAgentName: "host1",
		HeaderISODate:   "2026-08-29",
		HeaderFileName:  "recording-screen1-1700000000000.webm",
		HeaderFileSize:  "999",
	}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp := decodeJSON[ErrorResponse](t, w); resp.Error != "size-mismatch" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestIngestSanitizesHostileHeaders(t *testing.T) {
	h, _ := newTestHandler(t)

	w := httptest.NewRecorder()
	h.Ingest(w, ingestRequest([]byte("data"), map[string]string{
		HeaderAgentName: "Jane Doe",
		HeaderISODate:   "not-a-date",
		HeaderFileName:  `../..\evil:name.webm`,
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}
	resp := decodeJSON[IngestResponse](t, w)

	today := time.Now().UTC().Format("2006-01-02")
	wantDir := filepath.Join(h.cfg.BaseDir, "Jane-Doe", today)
	if filepath.Dir(resp.Path) != wantDir {
		t.Errorf("stored under %q, want %q", filepath.Dir(resp.Path), wantDir)
	}
	if strings.ContainsAny(filepath.Base(resp.Path), `/\:`) {
		t.Errorf("file name not sanitized: %q", filepath.Base(resp.Path))
	}
}

func TestIngestRetryOverwrites(t *testing.T) {
	h, _ := newTestHandler(t)

	headers := map[string]string{
		HeaderAgentName: "host1",
		HeaderISODate:   "2026-08-29",
		HeaderFileName:  "recording-screen1-1700000000000.webm",
	}

	w := httptest.NewRecorder()
	h.Ingest(w, ingestRequest([]byte("first attempt"), headers))
	if w.Code != http.StatusOK {
		t.Fatalf("first upload: %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.Ingest(w, ingestRequest([]byte("second attempt"), headers))
	if w.Code != http.StatusOK {
		t.Fatalf("second upload: %d", w.Code)
	}

	resp := decodeJSON[IngestResponse](t, w)
	stored, err := os.ReadFile(resp.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(stored) != "second attempt" {
		t.Errorf("stored = %q, want the retried bytes", stored)
	}
}

func TestIngestQueuesRepairUnlessDisabled(t *testing.T) {
	h, remux := newTestHandler(t)

	headers := map[string]string{
		HeaderAgentName: "host1",
		HeaderISODate:   "2026-08-29",
		HeaderFileName:  "recording-screen1-1700000000000.webm",
	}
	h.Ingest(httptest.NewRecorder(), ingestRequest([]byte("x"), headers))

	headers[HeaderFFmpegRepair] = "false"
	headers[HeaderFileName] = "recording-screen1-1700000000001.webm"
	h.Ingest(httptest.NewRecorder(), ingestRequest([]byte("x"), headers))

	// Drain the queue synchronously.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go h.repairs.Serve(ctx)
	<-ctx.Done()

	remux.mu.Lock()
	defer remux.mu.Unlock()
	if len(remux.fixCalls) != 1 {
		t.Fatalf("fix calls = %v, want exactly the repair-enabled upload", remux.fixCalls)
	}
	if !strings.HasSuffix(remux.fixCalls[0], "recording-screen1-1700000000000.webm") {
		t.Errorf("fixed %q", remux.fixCalls[0])
	}
}
