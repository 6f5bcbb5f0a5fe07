// Package engine is the single entry point over the key store and the usage
// cache, consumed by the HTTP host and the CLI. It owns the translation
// between the 1-based indices of the public surface and the 0-based
// positions of the cache.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"droidkey/internal/store"
	"droidkey/internal/usage"
	"droidkey/observability"
)

// Entry is one row of the key listing
type Entry struct {
	Secret  string        `json:"key"`
	Index   int           `json:"index"` // 1-based
	Current bool          `json:"current"`
	Usage   *usage.Record `json:"usage,omitempty"`
}

// Engine coordinates the store and the cache. One mutex serializes every
// operation: the host process is expected to issue calls one at a time, but
// concurrent callers must never interleave partial writes of the encrypted
// store and the cache.
type Engine struct {
	mu    sync.Mutex
	store *store.Store
	cache *usage.Manager
}

// New creates an Engine over the given store and cache manager
func New(s *store.Store, cache *usage.Manager) *Engine {
	return &Engine{store: s, cache: cache}
}

// List decrypts the key list and zips it with the active pointer and the
// cached usage records. A missing or corrupt cache never fails a listing;
// entries simply carry no usage.
func (e *Engine) List() ([]Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys, err := e.store.List()
	if err != nil {
		return nil, err
	}

	active := e.store.GetActive()
	cached := e.cache.Read()

	entries := make([]Entry, len(keys))
	for i, key := range keys {
		entries[i] = Entry{
			Secret:  key,
			Index:   i + 1,
			Current: i+1 == active,
		}
		if rec, ok := cached[i]; ok {
			entries[i].Usage = &rec
		}
	}

	observability.GetMetrics().SetKeysManaged(len(keys))
	return entries, nil
}

// Add appends a key to the store, then extends the cache via merge-on-append
// so only the new key is fetched. A cache write failure is logged, not
// surfaced: the cache is derived state and the key itself is already durable.
func (e *Engine) Add(ctx context.Context, secret string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys, err := e.store.AddOne(secret)
	if err != nil {
		observability.GetMetrics().RecordKeyOperation("add", "error")
		return "", err
	}

	blob, blobErr := e.store.EncryptedBlob()
	if blobErr == nil {
		if err := e.cache.MergeOnAppend(ctx, len(keys)-1, secret, blob); err != nil {
			observability.Warn("usage cache merge failed after add", "error", err)
		}
	} else {
		observability.Warn("failed to read store blob for cache tag", "error", blobErr)
	}

	observability.GetMetrics().RecordKeyOperation("add", "ok")
	observability.GetMetrics().SetKeysManaged(len(keys))
	return fmt.Sprintf("added. %d key(s) total.", len(keys)), nil
}

// Remove deletes the key at a 1-based index. The store resets the active
// pointer to 1 and the whole cache is destroyed: positions after the removed
// slot no longer correspond to their old keys and must not be guessed.
func (e *Engine) Remove(index int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys, err := e.store.RemoveAt(index)
	if err != nil {
		observability.GetMetrics().RecordKeyOperation("remove", "error")
		return "", err
	}

	if err := e.cache.Invalidate(); err != nil {
		// The store mutation is already durable; surface the stale cache
		observability.GetMetrics().RecordKeyOperation("remove", "error")
		return "", err
	}

	observability.GetMetrics().RecordKeyOperation("remove", "ok")
	observability.GetMetrics().SetKeysManaged(len(keys))
	return fmt.Sprintf("removed. %d key(s) remaining.", len(keys)), nil
}

// Use switches the active pointer to a 1-based index. Neither the list nor
// the cache is touched.
func (e *Engine) Use(index int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.SetActive(index); err != nil {
		observability.GetMetrics().RecordKeyOperation("use", "error")
		return "", err
	}

	observability.GetMetrics().RecordKeyOperation("use", "ok")
	return fmt.Sprintf("switched to #%d", index), nil
}

// Refresh fetches usage for every key concurrently and rewrites the cache.
// Individual fetches degrade to diagnostic records; Refresh reports an error
// only when the store cannot be read or the cache cannot be written.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys, err := e.store.List()
	if err != nil {
		observability.GetMetrics().RecordKeyOperation("refresh", "error")
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	blob, err := e.store.EncryptedBlob()
	if err != nil {
		observability.GetMetrics().RecordKeyOperation("refresh", "error")
		return err
	}

	jobID := uuid.NewString()
	observability.Info("refreshing usage cache", "job_id", jobID, "keys", len(keys))

	if err := e.cache.RefreshAll(ctx, keys, blob); err != nil {
		observability.GetMetrics().RecordKeyOperation("refresh", "error")
		return err
	}

	observability.Info("usage cache refreshed", "job_id", jobID)
	observability.GetMetrics().RecordKeyOperation("refresh", "ok")
	return nil
}
