package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"droidkey/internal/store"
	"droidkey/internal/usage"
)

func newTestEngine(t *testing.T) (*Engine, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"usage":{"standard":{"totalAllowance":1000,"used":100}}}`))
	}))
	t.Cleanup(srv.Close)

	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}

	fetcher := usage.NewFetcher(srv.URL, "droidkey-test", 4*time.Second)
	cache := usage.NewManager(s.Dir(), fetcher)
	return New(s, cache), srv
}

func TestListEmptyStore(t *testing.T) {
	e, _ := newTestEngine(t)

	entries, err := e.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("List() = %v, want empty", entries)
	}
}

func TestAddThenList(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	msg, err := e.Add(ctx, "sk-first")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if msg != "added. 1 key(s) total." {
		t.Errorf("Add() message = %q", msg)
	}

	e.Add(ctx, "sk-second")

	entries, err := e.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Secret != "sk-first" || entries[0].Index != 1 || !entries[0].Current {
		t.Errorf("entries[0] = %+v, want sk-first at index 1, current", entries[0])
	}
	if entries[1].Secret != "sk-second" || entries[1].Index != 2 || entries[1].Current {
		t.Errorf("entries[1] = %+v, want sk-second at index 2, not current", entries[1])
	}

	// Each add fetched usage for exactly the appended key
	if entries[0].Usage == nil || entries[0].Usage.Total != 1000 {
		t.Errorf("entries[0].Usage = %+v, want fetched record", entries[0].Usage)
	}
	if entries[1].Usage == nil || entries[1].Usage.Total != 1000 {
		t.Errorf("entries[1].Usage = %+v, want fetched record", entries[1].Usage)
	}
}

func TestUseOutOfRangeLeavesPointer(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	e.Add(ctx, "sk-a")
	e.Add(ctx, "sk-b")

	if _, err := e.Use(2); err != nil {
		t.Fatalf("Use(2) error = %v", err)
	}
	if _, err := e.Use(3); !errors.Is(err, store.ErrIndexOutOfRange) {
		t.Errorf("Use(3) error = %v, want ErrIndexOutOfRange", err)
	}

	entries, _ := e.List()
	if !entries[1].Current {
		t.Error("active pointer moved after failed Use()")
	}
}

func TestRemoveInvalidatesCache(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	e.Add(ctx, "sk-a")
	e.Add(ctx, "sk-b")
	if err := e.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	msg, err := e.Remove(1)
	if err != nil {
		t.Fatalf("Remove(1) error = %v", err)
	}
	if msg != "removed. 1 key(s) remaining." {
		t.Errorf("Remove() message = %q", msg)
	}

	entries, err := e.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Usage != nil {
		t.Errorf("entries[0].Usage = %+v, want nil after invalidation", entries[0].Usage)
	}
}

func TestRefreshEmptyStoreIsNoop(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Refresh(context.Background()); err != nil {
		t.Errorf("Refresh() on empty store error = %v", err)
	}
}

// Mirrors the reference scenario: three keys with active pointer 2, remove
// the first, switch, append a fourth.
func TestRemoveUseAddScenario(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for _, k := range []string{"A", "B", "C"} {
		if _, err := e.Add(ctx, k); err != nil {
			t.Fatalf("Add(%q) error = %v", k, err)
		}
	}
	if _, err := e.Use(2); err != nil {
		t.Fatalf("Use(2) error = %v", err)
	}
	if err := e.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// remove(1): list becomes [B, C], pointer resets to 1, cache dies
	if _, err := e.Remove(1); err != nil {
		t.Fatalf("Remove(1) error = %v", err)
	}
	entries, _ := e.List()
	if len(entries) != 2 || entries[0].Secret != "B" || entries[1].Secret != "C" {
		t.Fatalf("entries after removal = %+v, want [B C]", entries)
	}
	if !entries[0].Current {
		t.Error("active pointer did not reset to 1 after removal")
	}
	if entries[0].Usage != nil || entries[1].Usage != nil {
		t.Error("cache survived removal")
	}

	// use(2) then refresh to repopulate
	if _, err := e.Use(2); err != nil {
		t.Fatalf("Use(2) error = %v", err)
	}
	if err := e.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	before, _ := e.List()

	// add(D): positions 0,1 carried over, position 2 freshly fetched
	if _, err := e.Add(ctx, "D"); err != nil {
		t.Fatalf("Add(D) error = %v", err)
	}
	after, _ := e.List()
	if len(after) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(after))
	}
	for i := 0; i < 2; i++ {
		if after[i].Usage == nil || before[i].Usage == nil || *after[i].Usage != *before[i].Usage {
			t.Errorf("position %d usage changed across append", i)
		}
	}
	if after[2].Usage == nil || after[2].Usage.Total != 1000 {
		t.Errorf("appended entry usage = %+v, want fetched record", after[2].Usage)
	}
	if !after[1].Current {
		t.Error("active pointer moved during append")
	}
}
