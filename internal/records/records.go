// Package records persists one row per stored image.
package records

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/bstardust/photo-ingest/internal/geo"
)

// DefaultFolder is the folder every ingested image is filed under.
const DefaultFolder = "default"

// DateLayout formats Record.Date.
const DateLayout = "2006-01-02"

// ErrNotFound is returned when no record has the requested storage key.
var ErrNotFound = errors.New("records: not found")

// Record describes a stored image
type Record struct {
	ID          string         `json:"id"`
	Folder      string         `json:"folder"`
	FileName    string         `json:"file_name"`
	StorageKey  string         `json:"storage_key"`
	Location    *string        `json:"location"`
	TakenAt     *time.Time     `json:"taken_at"`
	Exif        map[string]any `json:"exif"`
	Date        string         `json:"date"`
	Width       *int           `json:"width"`
	Height      *int           `json:"height"`
	Size        int64          `json:"size"`
	Format      string         `json:"format"`
	GPSLocation *geo.GeoPoint  `json:"gps_location"`
	CreatedAt   time.Time      `json:"created_at"`
}

// WKT renders GPSLocation for PostGIS, or nil without a point.
func (r *Record) WKT() *string {
	if r.GPSLocation == nil {
		return nil
	}
	s := r.GPSLocation.WKT()
	return &s
}

// Store persists records
type Store interface {
	Insert(ctx context.Context, rec *Record) (*Record, error)
	GetByStorageKey(ctx context.Context, key string) (*Record, error)
	// DeleteByStorageKeys removes the records of keys and returns how many
	// were removed. Unknown keys are ignored.
	DeleteByStorageKeys(ctx context.Context, keys []string) (int64, error)
	Close(ctx context.Context) error
}

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byKey  map[string]*Record
	now    func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: map[string]*Record{}, now: time.Now}
}

// Insert stores a copy of rec with its ID and creation time set.
func (s *MemoryStore) Insert(_ context.Context, rec *Record) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[rec.StorageKey]; ok {
		return nil, errors.New("records: duplicate storage key " + rec.StorageKey)
	}

	s.nextID++
	stored := *rec
	stored.ID = strconv.FormatInt(s.nextID, 10)
	stored.CreatedAt = s.now().UTC()
	s.byKey[stored.StorageKey] = &stored

	out := stored
	return &out, nil
}

// GetByStorageKey returns the record stored under key.
func (s *MemoryStore) GetByStorageKey(_ context.Context, key string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

// DeleteByStorageKeys removes the records of keys.
func (s *MemoryStore) DeleteByStorageKeys(_ context.Context, keys []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, k := range lo.Uniq(keys) {
		if _, ok := s.byKey[k]; ok {
			delete(s.byKey, k)
			n++
		}
	}
	return n, nil
}

// Keys lists the stored storage keys in order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := lo.Keys(s.byKey)
	sort.Strings(keys)
	return keys
}

// Close is a no-op.
func (s *MemoryStore) Close(context.Context) error { return nil }
