// internal/journal/journal.go
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bstardust/photo-ingest/internal/logger"
)

// DefaultSaveEvery is how many new entries trigger a save.
const DefaultSaveEvery = 100

// Journal remembers the files a bulk ingest already stored so a rerun can
// skip them. A nil *Journal is valid and remembers nothing.
type Journal struct {
	mu        sync.Mutex
	path      string
	entries   map[string]Entry
	pending   int
	saveEvery int
	now       func() time.Time
}

// Entry is one ingested file.
type Entry struct {
	Path       string    `json:"path"`
	StorageKey string    `json:"storage_key"`
	Archive    string    `json:"archive,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type file struct {
	Ingested map[string]Entry `json:"ingested"`
}

// New creates a journal stored at path. An empty path disables it.
func New(path string) *Journal {
	if path == "" {
		return nil
	}
	return &Journal{
		path:      path,
		entries:   map[string]Entry{},
		saveEvery: DefaultSaveEvery,
		now:       time.Now,
	}
}

// Load reads the journal from disk. A missing file is an empty journal.
func (j *Journal) Load() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("No journal file found at %s, starting fresh", j.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("journal: read %s: %w", j.path, err)
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("journal: parse %s: %w", j.path, err)
	}
	if f.Ingested != nil {
		j.entries = f.Ingested
	}
	logger.Info("Loaded journal with %d entries from %s", len(j.entries), j.path)
	return nil
}

// Save writes the journal atomically.
func (j *Journal) Save() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.save()
}

func (j *Journal) save() error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("journal: create directory: %w", err)
	}

	data, err := json.MarshalIndent(file{Ingested: j.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}

	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return fmt.Errorf("journal: replace: %w", err)
	}
	j.pending = 0
	logger.Debug("Saved journal with %d entries to %s", len(j.entries), j.path)
	return nil
}

// MarkIngested records that path was stored under storageKey. Every
// saveEvery new entries the journal is written to disk.
func (j *Journal) MarkIngested(path, archive, storageKey string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries[path] = Entry{
		Path:       path,
		StorageKey: storageKey,
		Archive:    archive,
		Timestamp:  j.now().UTC(),
	}

	j.pending++
	if j.pending >= j.saveEvery {
		if err := j.save(); err != nil {
			logger.Error("Failed to save journal: %v", err)
		}
	}
}

// Lookup returns the entry of path, if it was ingested.
func (j *Journal) Lookup(path string) (Entry, bool) {
	if j == nil {
		return Entry{}, false
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	e, ok := j.entries[path]
	return e, ok
}

// Len returns the number of ingested files.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}
