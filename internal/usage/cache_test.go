package usage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newCountingServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"usage":{"standard":{"totalAllowance":1000,"used":100}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestManager(t *testing.T, endpoint string) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), newTestFetcher(endpoint))
}

func TestRefreshAllWritesDensePositions(t *testing.T) {
	srv, calls := newCountingServer(t)
	m := newTestManager(t, srv.URL)

	keys := []string{"k0", "k1", "k2"}
	if err := m.RefreshAll(context.Background(), keys, []byte("blob")); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("fetch calls = %d, want 3", calls.Load())
	}

	records := m.Read()
	if len(records) != 3 {
		t.Fatalf("len(Read()) = %d, want 3", len(records))
	}
	for i := 0; i < 3; i++ {
		rec, ok := records[i]
		if !ok {
			t.Fatalf("position %d missing from cache", i)
		}
		if rec.Total != 1000 || rec.Used != 100 || rec.Balance != 900 {
			t.Errorf("position %d = %+v, want 1000/100/900", i, rec)
		}
	}
}

func TestRefreshAllSucceedsWhenEveryFetchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	m := newTestManager(t, srv.URL)
	if err := m.RefreshAll(context.Background(), []string{"a", "b"}, []byte("blob")); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	records := m.Read()
	if len(records) != 2 {
		t.Fatalf("len(Read()) = %d, want 2", len(records))
	}
	for i, rec := range records {
		if rec.Raw != RawFetchError {
			t.Errorf("position %d Raw = %q, want %q", i, rec.Raw, RawFetchError)
		}
	}
}

func TestCacheFileHeader(t *testing.T) {
	srv, _ := newCountingServer(t)
	m := newTestManager(t, srv.URL)

	blob := []byte("encrypted store bytes")
	before := time.Now().Unix()
	if err := m.RefreshAll(context.Background(), []string{"k"}, blob); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}

	data, err := os.ReadFile(m.Path())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) != 3 {
		t.Fatalf("cache has %d lines, want 3", len(lines))
	}

	ts, err := strconv.ParseInt(lines[0], 10, 64)
	if err != nil || ts < before {
		t.Errorf("generation line = %q, want unix timestamp >= %d", lines[0], before)
	}

	tag := sha1.Sum(blob)
	if lines[1] != hex.EncodeToString(tag[:]) {
		t.Errorf("integrity tag = %q, want sha1 of store blob", lines[1])
	}

	if !strings.HasPrefix(lines[2], "0\t") {
		t.Errorf("entry line = %q, want position 0 prefix", lines[2])
	}
}

func TestMergeOnAppendPreservesPriorPositions(t *testing.T) {
	srv, calls := newCountingServer(t)
	m := newTestManager(t, srv.URL)

	if err := m.RefreshAll(context.Background(), []string{"k0", "k1"}, []byte("v1")); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	before := m.Read()
	calls.Store(0)

	if err := m.MergeOnAppend(context.Background(), 2, "k2", []byte("v2")); err != nil {
		t.Fatalf("MergeOnAppend() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("fetch calls during merge = %d, want 1", calls.Load())
	}

	after := m.Read()
	if len(after) != 3 {
		t.Fatalf("len(Read()) after merge = %d, want 3", len(after))
	}
	for i := 0; i < 2; i++ {
		if after[i] != before[i] {
			t.Errorf("position %d changed across merge: %+v != %+v", i, after[i], before[i])
		}
	}
	if after[2].Total != 1000 {
		t.Errorf("appended position = %+v, want freshly fetched record", after[2])
	}
}

func TestMergeOnAppendFillsMissingWithUnknown(t *testing.T) {
	srv, _ := newCountingServer(t)
	m := newTestManager(t, srv.URL)

	// No prior cache at all
	if err := m.MergeOnAppend(context.Background(), 2, "k2", []byte("blob")); err != nil {
		t.Fatalf("MergeOnAppend() error = %v", err)
	}

	records := m.Read()
	if len(records) != 3 {
		t.Fatalf("len(Read()) = %d, want 3", len(records))
	}
	for i := 0; i < 2; i++ {
		if records[i] != UnknownRecord() {
			t.Errorf("position %d = %+v, want all-unknown record", i, records[i])
		}
	}
}

func TestInvalidateDestroysCache(t *testing.T) {
	srv, _ := newCountingServer(t)
	m := newTestManager(t, srv.URL)

	if err := m.RefreshAll(context.Background(), []string{"k"}, nil); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	if err := m.Invalidate(); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	if _, err := os.Stat(m.Path()); !os.IsNotExist(err) {
		t.Error("cache file still exists after Invalidate()")
	}
	if records := m.Read(); len(records) != 0 {
		t.Errorf("Read() after invalidate = %v, want empty", records)
	}

	// Invalidating an absent cache is not an error
	if err := m.Invalidate(); err != nil {
		t.Errorf("Invalidate() on missing cache error = %v", err)
	}
}

func TestReadToleratesGarbage(t *testing.T) {
	srv, _ := newCountingServer(t)

	cases := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"header only", "1700000000\nabcdef"},
		{"garbage timestamp", "soon\nabcdef\n0\tAAAA"},
		{"binary noise", "\x00\x01\x02"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(t, srv.URL)
			if err := os.WriteFile(m.Path(), []byte(tc.content), 0600); err != nil {
				t.Fatal(err)
			}
			if records := m.Read(); len(records) != 0 {
				t.Errorf("Read() = %v, want empty", records)
			}
		})
	}
}

func TestReadSkipsMalformedEntryLines(t *testing.T) {
	srv, _ := newCountingServer(t)
	m := newTestManager(t, srv.URL)

	good := Record{Balance: 5, Total: 10, Used: 5, Expires: "?"}
	content := strings.Join([]string{
		"1700000000",
		"deadbeef",
		"0\t" + good.encode(),
		"not-a-position\t" + good.encode(),
		"1\t!!!not-base64!!!",
		"no tab here",
	}, "\n")
	if err := os.WriteFile(m.Path(), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	records := m.Read()
	if len(records) != 1 {
		t.Fatalf("len(Read()) = %d, want 1", len(records))
	}
	if records[0] != good {
		t.Errorf("records[0] = %+v, want %+v", records[0], good)
	}
}

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Record{
		{Balance: 900, Total: 1000, Used: 100, Expires: "2025-12-31", Raw: ""},
		{Expires: "Invalid key", Raw: "http_401"},
		{Expires: "Error", Raw: RawFetchError},
		{Expires: "?", Raw: RawNoUsage},
		{Balance: -50, Total: 100, Used: 150, Expires: "?"},
	}

	for _, rec := range cases {
		got, ok := decodeRecord(rec.encode())
		if !ok {
			t.Fatalf("decodeRecord() failed for %+v", rec)
		}
		if got != rec {
			t.Errorf("round trip = %+v, want %+v", got, rec)
		}
	}
}
