package kv

import (
	"context"
	"sync"
	"time"

	"github.com/bstardust/photo-ingest/internal/logger"
)

// Cache holds recently read configuration values.
type Cache interface {
	GetMulti(keys []string) (hits map[string]string, missed []string)
	SetMulti(values map[string]string, ttl time.Duration) error
	Delete(keys ...string) error
}

// CachedStore serves reads from a Cache and falls back to the wrapped
// store for misses. A read that overlaps a write through the same
// CachedStore does not fill the cache. Writes made by other processes are
// only seen once the cached entries expire.
type CachedStore struct {
	store Store
	cache Cache
	ttl   time.Duration

	mu  sync.Mutex
	gen uint64 // bumped before and after every write
}

// NewCachedStore wraps store with cache. Entries live for ttl.
func NewCachedStore(store Store, cache Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{store: store, cache: cache, ttl: ttl}
}

// Get returns cached values and loads the rest from the wrapped store.
func (s *CachedStore) Get(ctx context.Context, keys []string) (map[string]string, error) {
	hits, missed := s.cache.GetMulti(keys)
	if len(missed) == 0 {
		return hits, nil
	}

	gen := s.generation()
	fetched, err := s.store.Get(ctx, missed)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen == gen {
		if err := s.cache.SetMulti(fetched, s.ttl); err != nil {
			logger.Warn("Failed to cache config values: %v", err)
		}
	}
	s.mu.Unlock()

	for k, v := range fetched {
		hits[k] = v
	}
	return hits, nil
}

// Put writes through to the wrapped store and drops the cached entries.
func (s *CachedStore) Put(ctx context.Context, entries map[string]string) error {
	w, ok := s.store.(Writer)
	if !ok {
		return ErrReadOnly
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	return s.write(keys, func() error { return w.Put(ctx, entries) })
}

// Delete removes keys from the wrapped store and the cache.
func (s *CachedStore) Delete(ctx context.Context, keys []string) error {
	w, ok := s.store.(Writer)
	if !ok {
		return ErrReadOnly
	}
	return s.write(keys, func() error { return w.Delete(ctx, keys) })
}

func (s *CachedStore) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// write evicts keys around fn so that no read overlapping fn can cache the
// value fn replaces.
func (s *CachedStore) write(keys []string, fn func() error) error {
	_ = s.evict(keys)
	err := fn()
	if evictErr := s.evict(keys); err == nil {
		err = evictErr
	}
	return err
}

func (s *CachedStore) evict(keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return s.cache.Delete(keys...)
}

type memoEntry struct {
	value   string
	expires time.Time
}

// MemoCache is an in-process Cache with per-entry expiry.
type MemoCache struct {
	mu      sync.Mutex
	entries map[string]memoEntry
	now     func() time.Time
}

// NewMemoCache creates an empty in-memory cache.
func NewMemoCache() *MemoCache {
	return &MemoCache{
		entries: make(map[string]memoEntry),
		now:     time.Now,
	}
}

func (c *MemoCache) GetMulti(keys []string) (map[string]string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	hits := make(map[string]string, len(keys))
	var missed []string
	for _, k := range keys {
		e, ok := c.entries[k]
		if !ok || !now.Before(e.expires) {
			delete(c.entries, k)
			missed = append(missed, k)
			continue
		}
		hits[k] = e.value
	}
	return hits, missed
}

func (c *MemoCache) SetMulti(values map[string]string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(ttl)
	for k, v := range values {
		c.entries[k] = memoEntry{value: v, expires: expires}
	}
	return nil
}

func (c *MemoCache) Delete(keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}
