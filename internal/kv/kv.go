// Package kv is the key-value configuration store the geocoding resolver
// reads its provider tokens from.
package kv

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"
)

// Keys holding provider credentials.
const (
	KeyMapbox = "config_MAPBOX"
	KeyAmap   = "config_AMAP"
)

// ErrReadOnly is returned when updating a store that only supports reads.
var ErrReadOnly = errors.New("kv: store is read-only")

// Store reads configuration values. Absent keys map to "" and are not an
// error.
type Store interface {
	Get(ctx context.Context, keys []string) (map[string]string, error)
}

// Writer is implemented by stores that accept updates.
type Writer interface {
	Put(ctx context.Context, entries map[string]string) error
	Delete(ctx context.Context, keys []string) error
}

// ReadWriter is a store that can be read and updated.
type ReadWriter interface {
	Store
	Writer
}

// MemoryStore keeps configuration in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates a store seeded with values.
func NewMemoryStore(values map[string]string) *MemoryStore {
	s := &MemoryStore{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the value of every requested key.
func (s *MemoryStore) Get(_ context.Context, keys []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, k := range lo.Uniq(keys) {
		out[k] = s.values[k]
	}
	return out, nil
}

// Put upserts entries.
func (s *MemoryStore) Put(_ context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range entries {
		s.values[k] = v
	}
	return nil
}

// Delete removes keys.
func (s *MemoryStore) Delete(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}
