package usage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"droidkey/internal/fsutil"
	"droidkey/observability"
)

// cacheFile is the on-disk usage cache: a generation timestamp line, an
// integrity tag line (SHA-1 hex of the encrypted store blob at write time),
// then one "<position>\t<base64 dump>" line per cached position.
const cacheFile = "list_cache.b64"

// Manager owns the on-disk usage cache and keeps its positions aligned with
// the key list under each mutation, using the cheapest correct update.
type Manager struct {
	path    string
	fetcher *Fetcher
}

// NewManager creates a Manager storing its cache under dir
func NewManager(dir string, fetcher *Fetcher) *Manager {
	return &Manager{
		path:    filepath.Join(dir, cacheFile),
		fetcher: fetcher,
	}
}

// Path returns the cache file location
func (m *Manager) Path() string {
	return m.path
}

// RefreshAll fetches usage for every key concurrently and replaces the cache
// wholesale with positions 0..len-1. Individual fetches degrade to their own
// diagnostic records; the refresh itself fails only if the cache cannot be
// written.
func (m *Manager) RefreshAll(ctx context.Context, keys []string, storeBlob []byte) error {
	start := time.Now()

	records := make([]Record, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			records[i] = m.fetcher.Fetch(ctx, key)
		}(i, key)
	}
	wg.Wait()

	if err := m.write(records, storeBlob); err != nil {
		return err
	}

	observability.GetMetrics().RecordCacheRefresh(time.Since(start))
	return nil
}

// MergeOnAppend updates the cache after exactly one key was appended: prior
// positions carry over unchanged (missing ones fill with the all-unknown
// record) and only the new key is fetched. Pre-existing entries may be stale
// until the next full refresh; that is the deliberate trade for not
// re-querying unchanged keys.
func (m *Manager) MergeOnAppend(ctx context.Context, oldLen int, newKey string, storeBlob []byte) error {
	old := m.Read()

	records := make([]Record, oldLen+1)
	for i := 0; i < oldLen; i++ {
		if rec, ok := old[i]; ok {
			records[i] = rec
		} else {
			records[i] = UnknownRecord()
		}
	}
	records[oldLen] = m.fetcher.Fetch(ctx, newKey)

	return m.write(records, storeBlob)
}

// Invalidate deletes the cache entirely. Removal shifts position-to-key
// correspondence in a way that cannot be patched up safely, so the next read
// shows unknown usage until an explicit refresh.
func (m *Manager) Invalidate() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove usage cache: %w", err)
	}
	observability.GetMetrics().RecordCacheInvalidation()
	return nil
}

// Read returns the cached position-to-record mapping. A cache that is
// absent, malformed, or too short for a header plus one entry yields an
// empty mapping, never an error: usage display is best-effort.
//
// The integrity tag on line two is not compared against the live store;
// a cache may describe a since-replaced store until the next refresh.
func (m *Manager) Read() map[int]Record {
	records := make(map[int]Record)

	data, err := os.ReadFile(m.path)
	if err != nil {
		return records
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) < 3 {
		return records
	}
	if _, err := strconv.ParseInt(strings.TrimSpace(lines[0]), 10, 64); err != nil {
		return records
	}

	for _, line := range lines[2:] {
		posText, dump, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		pos, err := strconv.Atoi(posText)
		if err != nil || pos < 0 {
			continue
		}
		if rec, ok := decodeRecord(dump); ok {
			records[pos] = rec
		}
	}
	return records
}

// write renders and atomically replaces the cache file
func (m *Manager) write(records []Record, storeBlob []byte) error {
	tag := sha1.Sum(storeBlob)

	lines := make([]string, 0, len(records)+2)
	lines = append(lines,
		strconv.FormatInt(time.Now().Unix(), 10),
		hex.EncodeToString(tag[:]),
	)
	for i, rec := range records {
		lines = append(lines, fmt.Sprintf("%d\t%s", i, rec.encode()))
	}

	if err := fsutil.WriteFileAtomic(m.path, []byte(strings.Join(lines, "\n")), 0600); err != nil {
		return fmt.Errorf("failed to write usage cache: %w", err)
	}
	return nil
}
